package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/kvstored/internal/arena"
	"github.com/nmxmxh/kvstored/internal/parser"
	"github.com/nmxmxh/kvstored/internal/storage/memengine"
)

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := memengine.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return New(e, nil, nil)
}

func run(t *testing.T, ex *Executor, line string) (Reply, *arena.Arena) {
	t.Helper()
	a := arena.New(4096)
	cmd := parser.Parse([]byte(line), a)
	return ex.Execute(cmd, a), a
}

func TestPingPong(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "PING")
	assert.Equal(t, "PONG\n", r.Encode())
}

func TestSetThenGet(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "SET hello world")
	assert.Equal(t, "OK\n", r.Encode())

	r, _ = run(t, ex, "GET hello")
	assert.Equal(t, "world\n", r.Encode())
}

func TestIncrSequence(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "INCR counter")
	assert.Equal(t, "(integer) 1\n", r.Encode())
	r, _ = run(t, ex, "INCR counter")
	assert.Equal(t, "(integer) 2\n", r.Encode())
	r, _ = run(t, ex, "INCR counter")
	assert.Equal(t, "(integer) 3\n", r.Encode())
}

func TestLPushThenLRange(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "LPUSH q a b c")
	assert.Equal(t, "(integer) 3\n", r.Encode())

	r, _ = run(t, ex, "LRANGE q 0 -1")
	assert.Equal(t, "1) c\n2) b\n3) a\n", r.Encode())
}

func TestTypeMismatchReply(t *testing.T) {
	ex := newExecutor(t)
	_, _ = run(t, ex, "SET k v")
	r, _ := run(t, ex, "LPUSH k x")
	assert.Equal(t, "ERROR: WRONGTYPE Operation against a key holding the wrong kind of value\n", r.Encode())
}

func TestUnknownCommandThenConnectionContinues(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "FOO bar")
	assert.Equal(t, "ERROR: Unknown command\n", r.Encode())

	r, _ = run(t, ex, "PING")
	assert.Equal(t, "PONG\n", r.Encode())
}

func TestGetMissingKeyIsNil(t *testing.T) {
	ex := newExecutor(t)
	r, _ := run(t, ex, "GET missing")
	assert.Equal(t, "(nil)\n", r.Encode())
}
