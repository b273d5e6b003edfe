package memengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/kvstored/internal/storage"
)

func TestSetGetRoundTrip(t *testing.T) {
	e, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("hello", "world"))
	v, ok, err := e.Get("hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "world", v)
}

func TestTypeMismatchOnListAgainstString(t *testing.T) {
	e, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("k", "v"))
	_, err = e.ListPushFront("k", []string{"x"})
	assert.ErrorIs(t, err, storage.ErrWrongType)
}

func TestListPushAndRange(t *testing.T) {
	e, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer e.Close()

	n, err := e.ListPushFront("q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out, err := e.ListRange("q", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, out)
}

func TestFlushDatabaseClearsAllKeys(t *testing.T) {
	e, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.FlushDatabase())

	_, ok, err := e.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWALReplayRecoversUncommittedSnapshot(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, e1.Set("k1", "v1"))
	require.NoError(t, e1.Set("k2", "v2"))
	require.NoError(t, e1.wal.Close()) // simulate a crash: no clean snapshot taken

	e2, err := Open(dir, nil)
	require.NoError(t, err)
	defer e2.Close()

	v, ok, err := e2.Get("k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	v, ok, err = e2.Get("k2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestSnapshotSurvivesAndWALTruncatesAfterFlush(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, e1.Set("k", "v"))
	require.NoError(t, e1.FlushDatabase())
	require.NoError(t, e1.Set("after-flush", "yes"))
	require.NoError(t, e1.Close())

	e2, err := Open(dir, nil)
	require.NoError(t, err)
	defer e2.Close()

	_, ok, err := e2.Get("k")
	require.NoError(t, err)
	assert.False(t, ok, "flushed key must not survive restart")

	v, ok, err := e2.Get("after-flush")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}
