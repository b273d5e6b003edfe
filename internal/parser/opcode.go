// Package parser turns one request line into a ParsedCommand, per
// spec.md §4.D: a static opcode table plus a hand-rolled token scanner.
// Every argument token is copied into the request arena, so the
// resulting view is bound to the arena's generation rather than the
// connection's read buffer.
//
// The static-table-plus-scanner shape mirrors how the retrieval pack's
// go-snap (dzonerzy-go-snap) CLI argument parser resolves a command name
// before tokenizing its arguments. The opcode token itself is folded to
// uppercase into a small stack buffer for table lookup and never touches
// the arena.
package parser

import "strings"

// Opcode enumerates every command the executor must recognize, grouped
// the way spec.md §4.D groups them.
type Opcode int

const (
	OpUnknown Opcode = iota

	// string
	OpGet
	OpSet
	OpIncr
	OpDecr
	OpIncrBy
	OpAppend

	// list
	OpLPush
	OpRPush
	OpLPop
	OpRPop
	OpLRange
	OpLLen

	// set
	OpSAdd
	OpSRem
	OpSIsMember
	OpSMembers
	OpSCard

	// hash
	OpHSet
	OpHGet
	OpHDel
	OpHGetAll
	OpHExists

	// sorted set
	OpZAdd
	OpZRem
	OpZScore
	OpZRange
	OpZCard

	// JSON
	OpJSONSet
	OpJSONGet
	OpJSONDel

	// stream
	OpXAdd
	OpXLen
	OpXRange

	// utility
	OpType
	OpExists
	OpDel
	OpPing
	OpEcho
	OpFlushDB
	OpInfo
)

// MaxArgs is the hard cap on arguments after the opcode, per spec.md §3.
const MaxArgs = 128

// unbounded is MaxArgs spelled out at each table entry that is variadic,
// matching spec.md §4.D's "max_args may be unbounded (up to MAX_ARGS)".
const unbounded = MaxArgs

// OpSpec is one static table entry: name, arity bounds, and whether the
// opcode takes a primary key (min_args >= 1, per spec.md §4.D step 5).
type OpSpec struct {
	Opcode   Opcode
	Name     string
	MinArgs  int
	MaxArgs  int
	HasKey   bool
	Numeric  numericArg // which argument index (if any) is pre-parsed
}

type numericArg int

const (
	numericNone numericArg = -1
)

var table = []OpSpec{
	{OpGet, "GET", 1, 1, true, numericNone},
	{OpSet, "SET", 2, 2, true, numericNone},
	{OpIncr, "INCR", 1, 1, true, numericNone},
	{OpDecr, "DECR", 1, 1, true, numericNone},
	{OpIncrBy, "INCRBY", 2, 2, true, 1},
	{OpAppend, "APPEND", 2, 2, true, numericNone},

	{OpLPush, "LPUSH", 2, unbounded, true, numericNone},
	{OpRPush, "RPUSH", 2, unbounded, true, numericNone},
	{OpLPop, "LPOP", 1, 1, true, numericNone},
	{OpRPop, "RPOP", 1, 1, true, numericNone},
	{OpLRange, "LRANGE", 3, 3, true, numericNone},
	{OpLLen, "LLEN", 1, 1, true, numericNone},

	{OpSAdd, "SADD", 2, unbounded, true, numericNone},
	{OpSRem, "SREM", 2, unbounded, true, numericNone},
	{OpSIsMember, "SISMEMBER", 2, 2, true, numericNone},
	{OpSMembers, "SMEMBERS", 1, 1, true, numericNone},
	{OpSCard, "SCARD", 1, 1, true, numericNone},

	{OpHSet, "HSET", 3, unbounded, true, numericNone},
	{OpHGet, "HGET", 2, 2, true, numericNone},
	{OpHDel, "HDEL", 2, unbounded, true, numericNone},
	{OpHGetAll, "HGETALL", 1, 1, true, numericNone},
	{OpHExists, "HEXISTS", 2, 2, true, numericNone},

	{OpZAdd, "ZADD", 3, unbounded, true, numericNone},
	{OpZRem, "ZREM", 2, unbounded, true, numericNone},
	{OpZScore, "ZSCORE", 2, 2, true, numericNone},
	{OpZRange, "ZRANGE", 3, 3, true, numericNone},
	{OpZCard, "ZCARD", 1, 1, true, numericNone},

	{OpJSONSet, "JSON.SET", 3, 3, true, numericNone},
	{OpJSONGet, "JSON.GET", 1, 2, true, numericNone},
	{OpJSONDel, "JSON.DEL", 1, 2, true, numericNone},

	{OpXAdd, "XADD", 4, unbounded, true, numericNone},
	{OpXLen, "XLEN", 1, 1, true, numericNone},
	{OpXRange, "XRANGE", 3, 3, true, numericNone},

	{OpType, "TYPE", 1, 1, true, numericNone},
	{OpExists, "EXISTS", 1, unbounded, true, numericNone},
	{OpDel, "DEL", 1, unbounded, true, numericNone},
	{OpPing, "PING", 0, 1, false, numericNone},
	{OpEcho, "ECHO", 1, 1, true, numericNone},
	{OpFlushDB, "FLUSHDB", 0, 0, false, numericNone},
	{OpInfo, "INFO", 0, 0, false, numericNone},
}

var byName map[string]*OpSpec
var names map[Opcode]string

func init() {
	byName = make(map[string]*OpSpec, len(table))
	names = make(map[Opcode]string, len(table))
	for i := range table {
		byName[table[i].Name] = &table[i]
		names[table[i].Opcode] = table[i].Name
	}
}

// String renders an opcode's canonical wire name, used by metrics
// labels and log fields.
func (o Opcode) String() string {
	if name, ok := names[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// maxOpcodeNameLen bounds the uppercase-fold scratch buffer, per
// spec.md §4.D step 2 ("bounded at 31 bytes").
const maxOpcodeNameLen = 31

// lookup resolves raw opcode bytes (as they appeared on the wire) to a
// table entry, or reports ok=false for an unrecognized or over-length
// token.
func lookup(raw []byte) (*OpSpec, bool) {
	if len(raw) == 0 || len(raw) > maxOpcodeNameLen {
		return nil, false
	}
	var buf [maxOpcodeNameLen]byte
	for i, b := range raw {
		buf[i] = toUpperASCII(b)
	}
	spec, ok := byName[string(buf[:len(raw)])]
	return spec, ok
}

func toUpperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// Lookup resolves a command name, case-insensitively, to its table
// entry. Opcode.String gives the reverse mapping.
func Lookup(name string) (*OpSpec, bool) {
	spec, ok := byName[strings.ToUpper(name)]
	return spec, ok
}
