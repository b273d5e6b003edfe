// Package executor implements the command executor from spec.md §4.G:
// it validates a parsed command, invokes the storage facade, and
// formats a Reply. Opcode-to-facade routing and TypeMismatch handling
// are grounded in the facade contract internal/storage defines; INFO's
// payload (supplemented beyond spec.md's bare mention) surfaces the
// memory pool and buffer pool statistics per SPEC_FULL.md.
package executor

import (
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/nmxmxh/kvstored/internal/parser"
	"github.com/nmxmxh/kvstored/internal/storage"
)

// StatsSource supplies the runtime counters INFO reports. The server
// wires its pool, buffer pool, and connection tracker into this
// interface at startup.
type StatsSource interface {
	InfoLines() []string
}

// Executor ties a storage facade to the opcode table.
type Executor struct {
	facade    storage.Facade
	stats     StatsSource
	clock     clock.Clock
	startedAt time.Time
}

// New builds an Executor. clk defaults to the real wall clock when nil.
// stats may be nil and set later with SetStats, since the server that
// typically implements StatsSource is constructed after its Executor.
func New(facade storage.Facade, stats StatsSource, clk clock.Clock) *Executor {
	if clk == nil {
		clk = clock.New()
	}
	return &Executor{facade: facade, stats: stats, clock: clk, startedAt: clk.Now()}
}

// SetStats binds the StatsSource INFO reports from, for callers that
// cannot supply it at New time because it depends on the Executor
// itself (the connection server implements StatsSource with its own
// connection-count bookkeeping).
func (e *Executor) SetStats(stats StatsSource) { e.stats = stats }

// Execute implements the execute(cmd, storage) -> Reply contract. a is
// the request arena cmd's views were allocated against.
func (e *Executor) Execute(cmd *parser.ParsedCommand, a *arena.Arena) Reply {
	if cmd.Err != nil {
		return Err(cmd.Err.WireMessage())
	}

	args := viewStrings(cmd.Args, a)

	switch cmd.Opcode {
	case parser.OpPing:
		if len(args) == 1 {
			return Bulk(args[0])
		}
		return Bulk("PONG")
	case parser.OpEcho:
		return Bulk(args[0])
	case parser.OpFlushDB:
		if err := e.facade.FlushDatabase(); err != nil {
			return storageErr(err)
		}
		return OK()
	case parser.OpInfo:
		return Bulk(e.renderInfo())
	case parser.OpDel:
		n, err := e.facade.Delete(args)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))
	case parser.OpExists:
		n, err := e.facade.Exists(args)
		if err != nil {
			return storageErr(err)
		}
		return Int(int64(n))
	case parser.OpType:
		t, err := e.facade.TypeOf(args[0])
		if err != nil {
			return storageErr(err)
		}
		return Bulk(t.String())
	}

	return e.executeTyped(cmd, args)
}

func viewStrings(views []arena.StringView, a *arena.Arena) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.String(a)
	}
	return out
}

func (e *Executor) renderInfo() string {
	out := "uptime_seconds:" + strconv.FormatInt(int64(e.clock.Now().Sub(e.startedAt).Seconds()), 10) + "\n"
	if e.stats != nil {
		for _, line := range e.stats.InfoLines() {
			out += line + "\n"
		}
	}
	return out
}

func storageErr(err error) Reply {
	return Err(err.Error())
}
