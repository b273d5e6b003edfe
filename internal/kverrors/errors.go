// Package kverrors defines the error kinds the core exposes to the wire
// protocol, per spec section 7 (Error Handling Design).
//
// Wrapping follows the teacher's utils.WrapError convention (fmt.Errorf
// with %w at each boundary) rather than a bespoke error-chain type.
package kverrors

import "fmt"

// Kind enumerates the error categories spec.md §7 assigns distinct wire
// formatting and connection-lifetime policy to.
type Kind int

const (
	// KindParse covers unknown commands, bad arities, invalid integers,
	// unclosed quotes, and over-length tokens. Non-fatal to the connection.
	KindParse Kind = iota
	// KindTypeMismatch is an opcode/stored-value-type clash.
	KindTypeMismatch
	// KindOutOfArena is arena exhaustion for the current request.
	KindOutOfArena
	// KindOutOfMemory is memory-pool/system-allocator exhaustion.
	KindOutOfMemory
	// KindStorage wraps an error surfaced by the storage facade.
	KindStorage
	// KindIO is a socket-level failure; the connection closes without a reply.
	KindIO
	// KindFatalInit is an unrecoverable startup condition; the process exits.
	KindFatalInit
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindOutOfArena:
		return "OutOfArenaSpace"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindStorage:
		return "StorageError"
	case KindIO:
		return "IoError"
	case KindFatalInit:
		return "FatalInit"
	default:
		return "UnknownError"
	}
}

// Error is the core's uniform error type, used by the parser, the
// connection handler and startup. Errors returned by the storage facade
// are plain errors and reach the wire through their Error() text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WireMessage is the text that follows "ERROR: " on the wire, per
// spec.md §6 and §7. TypeMismatch gets the Redis-flavored WRONGTYPE
// prefix other kinds don't carry.
func (e *Error) WireMessage() string {
	switch e.Kind {
	case KindTypeMismatch:
		return "WRONGTYPE " + e.Message
	case KindOutOfArena, KindOutOfMemory:
		return "OOM"
	default:
		return e.Message
	}
}

// ReplyLine renders the error the way it must appear on the wire.
func (e *Error) ReplyLine() string {
	return "ERROR: " + e.WireMessage()
}

// ClosesConnection reports whether this error kind terminates the
// connection per spec.md §7's policy table.
func (e *Error) ClosesConnection() bool {
	return e.Kind == KindIO
}

// IsFatal reports whether this error kind should terminate the process.
func (e *Error) IsFatal() bool {
	return e.Kind == KindFatalInit
}
