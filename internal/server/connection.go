package server

import (
	"bytes"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/nmxmxh/kvstored/internal/bufpool"
	"github.com/nmxmxh/kvstored/internal/kverrors"
	"github.com/nmxmxh/kvstored/internal/parser"
	"github.com/nmxmxh/kvstored/internal/pool"
)

// connState names the four phases spec.md §4.F assigns a connection.
// The read/dispatch/write loop below is a single goroutine, so these
// are recorded rather than branched on; nothing in this package reads
// them back.
type connState int32

const (
	stateReadingHeader connState = iota
	stateDispatchingBatch
	stateWriting
	stateClosing
)

// connection is one client's read/parse/dispatch/write loop, per
// spec.md §3's Connection entity. Each connection owns exactly one
// reader/writer goroutine pair — here, one goroutine doing both, since
// strict per-connection FIFO ordering falls out for free from serial
// execution and Go's goroutine-per-connection model plays the role the
// design's "one worker for the connection's lifetime" plays.
type connection struct {
	id    string
	conn  net.Conn
	srv   *Server
	log   *zap.Logger
	state atomic.Int32

	readBuf    []byte
	readBufCls bufpool.Class
	writeBuf   []byte
	writeBufCls bufpool.Class

	arena *arena.Arena
	cache *pool.LocalCache
}

func newConnection(srv *Server, nc net.Conn) *connection {
	id := uuid.NewString()
	c := &connection{
		id:          id,
		conn:        nc,
		srv:         srv,
		log:         srv.log.With(zap.String("conn_id", id)),
		readBufCls:  bufpool.Medium,
		writeBufCls: bufpool.Medium,
		cache:       pool.NewLocalCache(),
	}
	c.readBuf = srv.buffers.Acquire(c.readBufCls)
	c.readBuf = c.readBuf[:cap(c.readBuf)] // full capacity, zero logical length tracked separately
	c.writeBuf = srv.buffers.Acquire(c.writeBufCls)

	// The request arena's backing buffer is drawn from the shared
	// memory pool, not make(), so every connection's scratch allocations
	// flow through the pool's size-classed slab allocator (spec.md §2's
	// "D... allocates into A (backed by C via the request context)").
	// c.cache is the goroutine-local cache this connection's allocations
	// and frees route through, draining back to the owning slab on close.
	arenaBuf, err := srv.pool.Alloc(requestArenaCapacity, c.cache)
	if err != nil {
		arenaBuf = make([]byte, requestArenaCapacity)
	}
	c.arena = arena.NewFromBuffer(arenaBuf)
	return c
}

// requestArenaCapacity sizes the per-connection arena's backing buffer
// to the memory pool's largest size class, so the buffer itself is
// always class-routed rather than falling through to the pool's
// system-allocator path. Every argument token is copied into the arena
// during parsing (see internal/parser.copyIntoArena), which makes this
// constant also the cap on one request's total (aligned) argument bytes
// that spec.md §9's open question on argument length leaves to the
// implementation: a command whose arguments don't fit fails parsing
// with a "token too large" error.
const requestArenaCapacity = pool.MaxClassSize

func (c *connection) release() {
	c.srv.buffers.Release(c.readBufCls, c.readBuf)
	c.srv.buffers.Release(c.writeBufCls, c.writeBuf)
	if err := c.srv.pool.Free(c.arena.Backing(), requestArenaCapacity, c.cache); err != nil {
		c.log.Warn("free arena backing buffer", zap.Error(err))
	}
	if err := c.srv.pool.DrainCache(c.cache); err != nil {
		c.log.Warn("drain local cache", zap.Error(err))
	}
}

// serve runs the connection's full lifetime. It returns only once the
// socket is closed, by either side.
func (c *connection) serve() {
	filled := 0
	for {
		c.state.Store(int32(stateReadingHeader))
		if c.srv.cfg.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadTimeout))
		}
		if filled == cap(c.readBuf) {
			// No newline found in an entire read buffer (bufpool.Medium,
			// 4096 bytes): the line is longer than the handler accepts.
			// Per spec.md §9's open question on partial-line handling,
			// this is a hard error, not unbounded growth; the buffer is
			// never grown toward parser.MaxLineLength.
			c.writeBuf = append(c.writeBuf, kverrors.New(kverrors.KindParse, "token too large").ReplyLine()+"\n"...)
			_ = c.flush()
			return
		}
		n, err := c.conn.Read(c.readBuf[filled:])
		if err != nil {
			return // IoError per spec.md §7: connection closes, no reply
		}
		filled += n

		c.state.Store(int32(stateDispatchingBatch))
		start := 0
		pending := 0
		for pending < c.srv.cfg.PipelineCap {
			rel := bytes.IndexByte(c.readBuf[start:filled], '\n')
			if rel < 0 {
				break
			}
			end := start + rel
			line := c.readBuf[start:end]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			start = end + 1

			c.arena.Reset()
			cmd := parser.Parse(line, c.arena)
			reply := c.srv.executor.Execute(cmd, c.arena)
			c.srv.metrics.CommandExecuted(cmd.Opcode.String())
			c.writeReply(reply)
			pending++
		}

		remaining := filled - start
		copy(c.readBuf[0:], c.readBuf[start:filled])
		filled = remaining

		c.state.Store(int32(stateWriting))
		if err := c.flush(); err != nil {
			return
		}
	}
}

func (c *connection) writeReply(r interface{ Encode() string }) {
	c.writeBuf = append(c.writeBuf, r.Encode()...)
}

func (c *connection) flush() error {
	if len(c.writeBuf) == 0 {
		return nil
	}
	if c.srv.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
	}
	_, err := c.conn.Write(c.writeBuf)
	c.writeBuf = c.writeBuf[:0]
	return err
}

func (c *connection) close() {
	c.state.Store(int32(stateClosing))
	_ = c.conn.Close()
	c.release()
}
