package usbimport

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// importedKey identifies a file uniquely enough to dedupe repeated scans
// of the same removable volume (path plus size and mtime, since a USB
// volume can be unmounted and remounted at a different path across
// operating systems).
type importedKey struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

const lockTimeout = 2 * time.Second

// loadImported restores the set of already-imported files from
// StatePath under an advisory lock, so a second Import() pass (the
// daemon re-polls the mount list on a timer) does not re-ingest a file
// it already read to completion.
func loadImported(path string, log warner) map[importedKey]bool {
	seen := map[importedKey]bool{}
	if path == "" {
		return seen
	}
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !ok {
		log.Warnf("usb import state lock unavailable, starting cold: %v", err)
		return seen
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return seen
	}
	var keys []importedKey
	if err := json.Unmarshal(data, &keys); err != nil {
		log.Warnf("usb import state file corrupt, starting cold: %v", err)
		return seen
	}
	for _, k := range keys {
		seen[k] = true
	}
	return seen
}

// saveImported persists the current dedupe set back to StatePath, under
// the same advisory lock loadImported uses.
func saveImported(path string, seen map[importedKey]bool, log warner) {
	if path == "" {
		return
	}
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !ok {
		log.Warnf("usb import state lock unavailable, skipping snapshot: %v", err)
		return
	}
	defer lock.Unlock()

	keys := make([]importedKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		log.Warnf("usb import state snapshot failed: %v", err)
	}
}

// warner is the tiny subset of *logging.Logger this file needs.
type warner interface {
	Warnf(f string, args ...interface{}) error
}
