package memengine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/nmxmxh/kvstored/internal/storage"
)

const checksumSize = 32 // blake3.Sum256 digest size

// snapshotLocked writes data to a checksummed snapshot file, atomically
// (write to a temp file, fsync, then rename over the existing
// snapshot). Caller must hold e.mu.
func (e *Engine) snapshotLocked() error {
	payload, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Errorf("memengine: marshal snapshot: %w", err)
	}
	sum := blake3.Sum256(payload)

	tmp := e.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("memengine: create snapshot tmp: %w", err)
	}
	if _, err := f.Write(sum[:]); err != nil {
		f.Close()
		return fmt.Errorf("memengine: write snapshot checksum: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return fmt.Errorf("memengine: write snapshot payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("memengine: fsync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("memengine: close snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, e.snapshotPath); err != nil {
		return fmt.Errorf("memengine: install snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads and verifies the checksummed snapshot, if one
// exists. A missing snapshot is not an error (fresh database); a
// truncated or checksum-mismatched snapshot is logged and treated as
// absent rather than causing startup to fail, since the WAL replay that
// follows can still recover recent state.
func (e *Engine) loadSnapshot() error {
	buf, err := os.ReadFile(e.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memengine: read snapshot: %w", err)
	}
	if len(buf) < checksumSize {
		e.log.Warn("snapshot truncated, ignoring", zap.String("path", e.snapshotPath))
		return nil
	}
	wantSum := buf[:checksumSize]
	payload := buf[checksumSize:]
	gotSum := blake3.Sum256(payload)
	if !bytes.Equal(wantSum, gotSum[:]) {
		e.log.Warn("snapshot checksum mismatch, ignoring", zap.String("path", e.snapshotPath))
		return nil
	}

	var data map[string]*record
	if err := json.Unmarshal(payload, &data); err != nil {
		e.log.Warn("snapshot payload corrupt, ignoring", zap.String("path", e.snapshotPath))
		return nil
	}
	e.data = data
	return nil
}

// replayWAL applies every entry appended since the last snapshot. Called
// with e.wal still nil, so appendWAL calls made by the apply* helpers
// below are no-ops during replay.
func (e *Engine) replayWAL() error {
	f, err := os.Open(e.walPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memengine: open wal for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry walEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A partially-written final line from a crash mid-append;
			// stop replay here rather than failing startup.
			e.log.Warn("wal entry truncated, stopping replay")
			break
		}
		if err := e.applyReplayed(entry); err != nil {
			return fmt.Errorf("memengine: replay %s: %w", entry.Op, err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("memengine: scan wal: %w", err)
	}
	return nil
}

// truncateWALLocked resets the WAL file to empty, since a fresh snapshot
// now captures all state it held. Caller must hold e.mu.
func (e *Engine) truncateWALLocked() error {
	if e.wal == nil {
		return nil
	}
	if err := e.wal.Truncate(0); err != nil {
		return fmt.Errorf("memengine: truncate wal: %w", err)
	}
	_, err := e.wal.Seek(0, io.SeekStart)
	return err
}

// applyReplayed re-applies one WAL entry during recovery through the
// public methods; their WAL append is a no-op because e.wal is nil at
// this point.
func (e *Engine) applyReplayed(entry walEntry) error {
	a := entry.Args
	switch entry.Op {
	case "SET":
		if len(a) != 2 {
			return nil
		}
		_ = e.Set(a[0], a[1])
	case "DEL":
		_, _ = e.Delete(a)
	case "LPUSH":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.ListPushFront(a[0], a[1:])
	case "RPUSH":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.ListPushBack(a[0], a[1:])
	case "LPOP":
		if len(a) != 1 {
			return nil
		}
		_, _, _ = e.ListPopFront(a[0])
	case "RPOP":
		if len(a) != 1 {
			return nil
		}
		_, _, _ = e.ListPopBack(a[0])
	case "SADD":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.SetAdd(a[0], a[1:])
	case "SREM":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.SetRemove(a[0], a[1:])
	case "HSET":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.HashSet(a[0], a[1:])
	case "HDEL":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.HashDelete(a[0], a[1:])
	case "ZADD":
		if len(a) < 1 {
			return nil
		}
		members, err := parseZAddArgs(a[1:])
		if err != nil {
			return err
		}
		_, _ = e.ZSetAdd(a[0], members)
	case "ZREM":
		if len(a) < 1 {
			return nil
		}
		_, _ = e.ZSetRemove(a[0], a[1:])
	case "JSON.SET":
		if len(a) != 3 {
			return nil
		}
		_ = e.JSONSet(a[0], a[1], a[2])
	case "JSON.DEL":
		if len(a) != 2 {
			return nil
		}
		_ = e.JSONDelete(a[0], a[1])
	case "XADD":
		if len(a) < 2 {
			return nil
		}
		_, _ = e.StreamAppend(a[0], a[2:])
	}
	return nil
}

func parseZAddArgs(args []string) ([]storage.ZMember, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("memengine: malformed ZADD wal entry")
	}
	out := make([]storage.ZMember, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		var score float64
		if _, err := fmt.Sscanf(args[i], "%g", &score); err != nil {
			return nil, err
		}
		out = append(out, storage.ZMember{Score: score, Member: args[i+1]})
	}
	return out, nil
}
