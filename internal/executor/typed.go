package executor

import (
	"strconv"

	"github.com/nmxmxh/kvstored/internal/parser"
	"github.com/nmxmxh/kvstored/internal/storage"
)

// executeTyped handles every opcode that isn't one of the direct
// existence/type utility commands Execute already special-cases: the
// string, list, set, hash, sorted-set, JSON, and stream groups from
// spec.md §4.D's minimum opcode set.
func (e *Executor) executeTyped(cmd *parser.ParsedCommand, args []string) Reply {
	key := args[0]
	rest := args[1:]

	switch cmd.Opcode {
	case parser.OpGet:
		v, ok, err := e.facade.Get(key)
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(v)

	case parser.OpSet:
		if err := e.facade.Set(key, rest[0]); err != nil {
			return storageErr(err)
		}
		return OK()

	case parser.OpIncr, parser.OpDecr:
		delta := int64(1)
		if cmd.Opcode == parser.OpDecr {
			delta = -1
		}
		return e.incrBy(key, delta)

	case parser.OpIncrBy:
		return e.incrBy(key, cmd.IntArg)

	case parser.OpAppend:
		existing, _, err := e.facade.Get(key)
		if err != nil {
			return storageErr(err)
		}
		if err := e.facade.Set(key, existing+rest[0]); err != nil {
			return storageErr(err)
		}
		return Int(int64(len(existing) + len(rest[0])))

	case parser.OpLPush:
		n, err := e.facade.ListPushFront(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpRPush:
		n, err := e.facade.ListPushBack(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpLPop:
		v, ok, err := e.facade.ListPopFront(key)
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(v)

	case parser.OpRPop:
		v, ok, err := e.facade.ListPopBack(key)
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(v)

	case parser.OpLRange:
		start, stop, err := parseRange(rest)
		if err != nil {
			return Err("Invalid integer")
		}
		items, ferr := e.facade.ListRange(key, start, stop)
		if ferr != nil {
			return storageErr(ferr)
		}
		return Array(items)

	case parser.OpLLen:
		n, err := e.facade.ListLen(key)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpSAdd:
		n, err := e.facade.SetAdd(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpSRem:
		n, err := e.facade.SetRemove(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpSIsMember:
		ok, err := e.facade.SetContains(key, rest[0])
		if err != nil {
			return storageErr(err)
		}
		return Int(boolToInt(ok))

	case parser.OpSMembers:
		members, err := e.facade.SetMembers(key)
		if err != nil {
			return storageErr(err)
		}
		return Array(members)

	case parser.OpSCard:
		n, err := e.facade.SetCardinality(key)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpHSet:
		n, err := e.facade.HashSet(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpHGet:
		v, ok, err := e.facade.HashGet(key, rest[0])
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(v)

	case parser.OpHDel:
		n, err := e.facade.HashDelete(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpHGetAll:
		fields, err := e.facade.HashGetAll(key)
		if err != nil {
			return storageErr(err)
		}
		return Array(fields)

	case parser.OpHExists:
		ok, err := e.facade.HashExists(key, rest[0])
		if err != nil {
			return storageErr(err)
		}
		return Int(boolToInt(ok))

	case parser.OpZAdd:
		members, err := parseZAdd(rest)
		if err != nil {
			return Err("Invalid integer")
		}
		n, ferr := e.facade.ZSetAdd(key, members)
		if ferr != nil {
			return storageErr(ferr)
		}
		return Int(int64(n))

	case parser.OpZRem:
		n, err := e.facade.ZSetRemove(key, rest)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpZScore:
		score, ok, err := e.facade.ZSetScore(key, rest[0])
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(strconv.FormatFloat(score, 'g', -1, 64))

	case parser.OpZRange:
		start, stop, err := parseRange(rest)
		if err != nil {
			return Err("Invalid integer")
		}
		members, ferr := e.facade.ZSetRange(key, start, stop)
		if ferr != nil {
			return storageErr(ferr)
		}
		out := make([]string, len(members))
		for i, m := range members {
			out[i] = m.Member
		}
		return Array(out)

	case parser.OpZCard:
		n, err := e.facade.ZSetCardinality(key)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpJSONSet:
		if err := e.facade.JSONSet(key, rest[0], rest[1]); err != nil {
			return storageErr(err)
		}
		return OK()

	case parser.OpJSONGet:
		path := "$"
		if len(rest) > 0 {
			path = rest[0]
		}
		v, ok, err := e.facade.JSONGet(key, path)
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			return Nil()
		}
		return Bulk(v)

	case parser.OpJSONDel:
		path := "$"
		if len(rest) > 0 {
			path = rest[0]
		}
		if err := e.facade.JSONDelete(key, path); err != nil {
			return storageErr(err)
		}
		return OK()

	case parser.OpXAdd:
		id, err := e.facade.StreamAppend(key, rest[1:])
		if err != nil {
			return storageErr(err)
		}
		return Bulk(id)

	case parser.OpXLen:
		n, err := e.facade.StreamLength(key)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))

	case parser.OpXRange:
		entries, err := e.facade.StreamRange(key, rest[0], rest[1])
		if err != nil {
			return storageErr(err)
		}
		out := make([]string, len(entries))
		for i, en := range entries {
			out[i] = en.ID
		}
		return Array(out)
	}

	return Err("Unknown command")
}

func (e *Executor) incrBy(key string, delta int64) Reply {
	existing, ok, err := e.facade.Get(key)
	if err != nil {
		return storageErr(err)
	}
	var n int64
	if ok {
		n, err = strconv.ParseInt(existing, 10, 64)
		if err != nil {
			return Err("value is not an integer")
		}
	}
	n += delta
	if err := e.facade.Set(key, strconv.FormatInt(n, 10)); err != nil {
		return storageErr(err)
	}
	return Int(n)
}

func parseRange(args []string) (int, int, error) {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, err
	}
	stop, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, err
	}
	return start, stop, nil
}

func parseZAdd(args []string) ([]storage.ZMember, error) {
	out := make([]storage.ZMember, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		score, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.ZMember{Score: score, Member: args[i+1]})
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
