// Package storage defines the facade contract spec.md §4.H treats as an
// external collaborator: the set of atomic, per-key operations the
// executor demands from whatever persistent engine backs the server.
// This package only defines the contract and the value/type model the
// executor and facade share; internal/storage/memengine provides the
// bundled default implementation.
package storage

import "errors"

// ErrNoSuchKey names the absent-key condition. The Facade methods do not
// return it: Get and the typed accessors report an absent key through
// their bool or count results.
var ErrNoSuchKey = errors.New("no such key")

// ErrWrongType is returned by any typed accessor invoked against a key
// holding a different value type, per spec.md §4.G's TypeMismatch reply.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ValueType tags what kind of value a key currently holds, for TYPE and
// for the executor's TypeMismatch checks (spec.md §4.G).
type ValueType int

const (
	TypeNone ValueType = iota
	TypeString
	TypeList
	TypeSet
	TypeHash
	TypeZSet
	TypeJSON
	TypeStream
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeHash:
		return "hash"
	case TypeZSet:
		return "zset"
	case TypeJSON:
		return "json"
	case TypeStream:
		return "stream"
	default:
		return "none"
	}
}

// ZMember is one member/score pair in a sorted-set range reply.
type ZMember struct {
	Member string
	Score  float64
}

// StreamEntry is one XADD'd entry: a monotonic ID plus field/value pairs.
type StreamEntry struct {
	ID     string
	Fields []string // flattened field,value,field,value...
}

// Facade is the contract spec.md §4.H lists, one atomic-at-the-key-level
// operation per bullet. Every method is safe for concurrent use; the
// facade is assumed internally thread-safe per spec.md §5.
type Facade interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys []string) (int, error)

	ListPushFront(key string, values []string) (int, error)
	ListPushBack(key string, values []string) (int, error)
	ListPopFront(key string) (string, bool, error)
	ListPopBack(key string) (string, bool, error)
	ListRange(key string, start, stop int) ([]string, error)
	ListLen(key string) (int, error)

	SetAdd(key string, members []string) (int, error)
	SetRemove(key string, members []string) (int, error)
	SetMembers(key string) ([]string, error)
	SetContains(key, member string) (bool, error)
	SetCardinality(key string) (int, error)

	HashSet(key string, fieldValues []string) (int, error)
	HashGet(key, field string) (string, bool, error)
	HashDelete(key string, fields []string) (int, error)
	HashGetAll(key string) ([]string, error)
	HashExists(key, field string) (bool, error)

	ZSetAdd(key string, scoreMembers []ZMember) (int, error)
	ZSetRemove(key string, members []string) (int, error)
	ZSetScore(key, member string) (float64, bool, error)
	ZSetRange(key string, start, stop int) ([]ZMember, error)
	ZSetCardinality(key string) (int, error)

	JSONSet(key, path, value string) error
	JSONGet(key, path string) (string, bool, error)
	JSONDelete(key, path string) error

	StreamAppend(key string, fields []string) (string, error)
	StreamRange(key, start, end string) ([]StreamEntry, error)
	StreamLength(key string) (int, error)

	TypeOf(key string) (ValueType, error)
	Exists(keys []string) (int, error)
	FlushDatabase() error

	// Close releases any resources (file handles, background flush
	// goroutines) held by the engine.
	Close() error
}
