package parser

import (
	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/nmxmxh/kvstored/internal/kverrors"
)

// ParsedCommand is the tagged structure spec.md §3 defines: an opcode, a
// primary key view, an ordered argument list, and an optional pre-parsed
// numeric argument. Args and Key are views into the request arena (each
// argument's bytes are copied in during parsing, per spec.md §9's
// "copying into owned storage" option); they die at the next arena
// reset.
type ParsedCommand struct {
	Opcode Opcode
	Key    arena.StringView
	HasKey bool
	Args   []arena.StringView

	IntArg    int64
	HasIntArg bool

	Err *kverrors.Error
}

// ArgCount is the number of argument tokens after the opcode, matching
// spec.md's arg_count.
func (c *ParsedCommand) ArgCount() int { return len(c.Args) }
