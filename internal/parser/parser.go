package parser

import (
	"strconv"

	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/nmxmxh/kvstored/internal/kverrors"
)

// MaxLineLength bounds a single request line, per spec.md §9's open
// question on partial-line handling ("Implementations must enforce a
// configured maximum (e.g., 1 MiB) and return ParseError{TooLarge} on
// overrun"). The connection handler's 4096-byte read buffer already
// rejects longer lines before Parse sees them; Parse checks this bound
// itself so the property holds for any caller.
const MaxLineLength = 1 << 20

// Parse tokenizes one request line (trailing newline already stripped by
// the connection handler) into a ParsedCommand, per spec.md §4.D's
// seven-step procedure. a is the request arena every argument is copied
// into; produced views are bound to a's current generation.
func Parse(line []byte, a *arena.Arena) *ParsedCommand {
	if len(line) > MaxLineLength {
		return &ParsedCommand{Err: kverrors.New(kverrors.KindParse, "token too large")}
	}

	tokens, err := scanTokens(line, 1+MaxArgs)
	if err != nil {
		return &ParsedCommand{Err: kverrors.New(kverrors.KindParse, "unclosed quote")}
	}
	if len(tokens) == 0 {
		return &ParsedCommand{Err: kverrors.New(kverrors.KindParse, "empty command")}
	}

	spec, ok := lookup(tokens[0])
	if !ok {
		return &ParsedCommand{Err: kverrors.New(kverrors.KindParse, "Unknown command")}
	}

	cmd := &ParsedCommand{Opcode: spec.Opcode}
	argTokens := tokens[1:]

	if len(argTokens) < spec.MinArgs {
		cmd.Err = kverrors.New(kverrors.KindParse, "Too few arguments")
		return cmd
	}
	if len(argTokens) > spec.MaxArgs {
		cmd.Err = kverrors.New(kverrors.KindParse, "Too many arguments")
		return cmd
	}

	cmd.Args = make([]arena.StringView, len(argTokens))
	for i, t := range argTokens {
		view, aerr := copyIntoArena(a, t)
		if aerr != nil {
			cmd.Err = kverrors.New(kverrors.KindParse, "token too large")
			return cmd
		}
		cmd.Args[i] = view
	}

	if spec.HasKey && len(cmd.Args) > 0 {
		cmd.HasKey = true
		cmd.Key = cmd.Args[0]
	}

	if spec.Numeric != numericNone {
		idx := int(spec.Numeric)
		if idx < len(argTokens) {
			n, perr := strconv.ParseInt(string(argTokens[idx]), 10, 64)
			if perr != nil {
				cmd.Err = kverrors.New(kverrors.KindParse, "Invalid integer")
				return cmd
			}
			cmd.IntArg = n
			cmd.HasIntArg = true
		}
	}

	return cmd
}

// copyIntoArena allocates len(t) bytes from a and copies t in, so the
// returned view is backed by arena (and, through the connection's
// pool-allocated arena buffer, by the shared memory pool) memory rather
// than aliasing the connection's read buffer directly. This is spec.md
// §9's "copying into owned storage at the boundary between parse and
// execute" option, and the reason the request arena bounds per-argument
// length.
func copyIntoArena(a *arena.Arena, t []byte) (arena.StringView, error) {
	buf, err := a.Alloc(len(t))
	if err != nil {
		return arena.StringView{}, err
	}
	copy(buf, t)
	return arena.NewView(a, buf), nil
}
