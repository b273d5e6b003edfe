package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/kvstored/internal/bufpool"
	"github.com/nmxmxh/kvstored/internal/config"
	"github.com/nmxmxh/kvstored/internal/executor"
	"github.com/nmxmxh/kvstored/internal/logging"
	"github.com/nmxmxh/kvstored/internal/pool"
	"github.com/nmxmxh/kvstored/internal/storage/memengine"
)

// startTestServer builds a fully-wired Server bound to an ephemeral
// localhost port and runs its accept loop until the test ends.
func startTestServer(t *testing.T) net.Addr {
	t.Helper()

	cfg := config.Default()
	cfg.BindAddr = "127.0.0.1"
	cfg.Port = 0
	cfg.StorageDir = t.TempDir()

	eng, err := memengine.Open(cfg.StorageDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	p := pool.New(pool.Config{StatsEnabled: true})
	buffers := bufpool.New()
	ex := executor.New(eng, nil, nil)

	srv := New(cfg, logging.Nop(), p, buffers, ex, nil)
	ex.SetStats(srv)

	require.NoError(t, srv.Listen())
	addr := srv.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	})

	return addr
}

func dial(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestEndToEndPingAndSetGet(t *testing.T) {
	addr := startTestServer(t)
	conn, r := dial(t, addr)

	sendLine(t, conn, "PING")
	require.Equal(t, "PONG\n", readLine(t, r))

	sendLine(t, conn, "SET hello world")
	require.Equal(t, "OK\n", readLine(t, r))

	sendLine(t, conn, "GET hello")
	require.Equal(t, "world\n", readLine(t, r))
}

func TestEndToEndTypeMismatchThenConnectionContinues(t *testing.T) {
	addr := startTestServer(t)
	conn, r := dial(t, addr)

	sendLine(t, conn, "SET k v")
	require.Equal(t, "OK\n", readLine(t, r))

	sendLine(t, conn, "LPUSH k x")
	require.Equal(t, "ERROR: WRONGTYPE Operation against a key holding the wrong kind of value\n", readLine(t, r))

	sendLine(t, conn, "PING")
	require.Equal(t, "PONG\n", readLine(t, r))
}

func TestEndToEndUnknownCommand(t *testing.T) {
	addr := startTestServer(t)
	conn, r := dial(t, addr)

	sendLine(t, conn, "FOO bar")
	require.Equal(t, "ERROR: Unknown command\n", readLine(t, r))

	sendLine(t, conn, "PING")
	require.Equal(t, "PONG\n", readLine(t, r))
}

// TestPipeliningOrdering exercises spec.md §8's "Pipelining ordering"
// property: one hundred SETs written in a single batch on one
// connection come back as one hundred OKs, in order.
func TestPipeliningOrdering(t *testing.T) {
	addr := startTestServer(t)
	conn, r := dial(t, addr)

	var batch strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&batch, "SET k%d v%d\n", i, i)
	}
	_, err := conn.Write([]byte(batch.String()))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.Equal(t, "OK\n", readLine(t, r), "reply %d out of order or missing", i)
	}
}

// TestConnectionIsolation exercises spec.md §8's "Connection isolation"
// property: a parse error on one connection does not affect another's
// liveness or state.
func TestConnectionIsolation(t *testing.T) {
	addr := startTestServer(t)
	connX, rX := dial(t, addr)
	connY, rY := dial(t, addr)

	sendLine(t, connX, "NOTACOMMAND")
	require.Equal(t, "ERROR: Unknown command\n", readLine(t, rX))

	sendLine(t, connY, "SET shared value")
	require.Equal(t, "OK\n", readLine(t, rY))
	sendLine(t, connY, "GET shared")
	require.Equal(t, "value\n", readLine(t, rY))

	sendLine(t, connX, "PING")
	require.Equal(t, "PONG\n", readLine(t, rX))
}

func TestListPushAndRange(t *testing.T) {
	addr := startTestServer(t)
	conn, r := dial(t, addr)

	sendLine(t, conn, "LPUSH q a b c")
	require.Equal(t, "(integer) 3\n", readLine(t, r))

	sendLine(t, conn, "LRANGE q 0 -1")
	require.Equal(t, "1) c\n", readLine(t, r))
	require.Equal(t, "2) b\n", readLine(t, r))
	require.Equal(t, "3) a\n", readLine(t, r))
}
