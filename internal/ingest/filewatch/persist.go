package filewatch

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// offsetFile is the on-disk form of the per-path (inode, offset) state,
// keyed by watched path so a restart resumes from the last line read
// instead of re-ingesting an entire rotated-in log from byte 0.
type offsetFile map[string]offsetEntry

// offsetEntry is fileState with exported fields, since encoding/json
// skips unexported ones.
type offsetEntry struct {
	Inode  uint64 `json:"inode"`
	Offset int64  `json:"offset"`
}

// lockTimeout bounds how long loadState/saveState wait for the advisory
// file lock before giving up and running unsynchronized (state
// persistence is best-effort, never worth blocking ingestion over).
const lockTimeout = 2 * time.Second

// loadState restores previously persisted offsets, if StatePath is set
// and a state file exists. A missing or corrupt file is not fatal: the
// watcher just starts every watched file from offset 0, same as first run.
func (w *Watcher) loadState() {
	if w.cfg.StatePath == "" {
		return
	}
	lock := flock.New(w.cfg.StatePath + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !ok {
		w.log.Warnf("filewatch state lock unavailable, starting cold: %v", err)
		return
	}
	defer lock.Unlock()

	data, err := os.ReadFile(w.cfg.StatePath)
	if err != nil {
		return
	}
	var of offsetFile
	if err := json.Unmarshal(data, &of); err != nil {
		w.log.Warnf("filewatch state file corrupt, starting cold: %v", err)
		return
	}

	w.mu.Lock()
	for path, st := range of {
		w.states[path] = fileState{inode: st.Inode, offset: st.Offset}
	}
	w.mu.Unlock()
}

// saveState snapshots the current offsets to StatePath under the same
// advisory lock loadState uses, so a concurrent reload (or a second
// watcher instance pointed at the same state file by mistake) never
// observes a half-written file.
func (w *Watcher) saveState() {
	if w.cfg.StatePath == "" {
		return
	}
	lock := flock.New(w.cfg.StatePath + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !ok {
		w.log.Warnf("filewatch state lock unavailable, skipping snapshot: %v", err)
		return
	}
	defer lock.Unlock()

	w.mu.Lock()
	of := make(offsetFile, len(w.states))
	for path, st := range w.states {
		of[path] = offsetEntry{Inode: st.inode, Offset: st.offset}
	}
	w.mu.Unlock()

	data, err := json.MarshalIndent(of, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(w.cfg.StatePath, data, 0640); err != nil {
		w.log.Warnf("filewatch state snapshot failed: %v", err)
	}
}
