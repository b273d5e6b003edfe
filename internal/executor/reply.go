package executor

import (
	"strconv"
	"strings"
)

// ReplyKind tags which of the six wire shapes spec.md §6 defines a Reply
// renders as.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyBulk
	ReplyNil
	ReplyInt
	ReplyArray
	ReplyError
)

// Reply is the executor's output, independent of how the connection
// handler eventually writes it to the socket.
type Reply struct {
	Kind  ReplyKind
	Str   string
	Int   int64
	Array []string
	Err   string
}

func OK() Reply                  { return Reply{Kind: ReplyOK} }
func Bulk(s string) Reply        { return Reply{Kind: ReplyBulk, Str: s} }
func Nil() Reply                 { return Reply{Kind: ReplyNil} }
func Int(n int64) Reply          { return Reply{Kind: ReplyInt, Int: n} }
func Array(items []string) Reply { return Reply{Kind: ReplyArray, Array: items} }
func Err(msg string) Reply       { return Reply{Kind: ReplyError, Err: msg} }

// Encode renders r as the wire-format lines from spec.md §6. The result
// always ends in "\n".
func (r Reply) Encode() string {
	switch r.Kind {
	case ReplyOK:
		return "OK\n"
	case ReplyBulk:
		return r.Str + "\n"
	case ReplyNil:
		return "(nil)\n"
	case ReplyInt:
		return "(integer) " + strconv.FormatInt(r.Int, 10) + "\n"
	case ReplyArray:
		var b strings.Builder
		for i, v := range r.Array {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(") ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
		return b.String()
	case ReplyError:
		return "ERROR: " + r.Err + "\n"
	default:
		return "ERROR: internal error\n"
	}
}
