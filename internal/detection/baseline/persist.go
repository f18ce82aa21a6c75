package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// file is the on-disk form of §6: "JSON map keyed by principal/host to
// profile summary", split into the two namespaces Baseline tracks.
type file struct {
	Users map[string]*model.Profile `json:"users"`
	Hosts map[string]*model.Profile `json:"hosts"`
}

// Save snapshots every profile to path as a single JSON document. Callers
// typically invoke this periodically (a ticker in the owning daemon)
// rather than on every Observe, since a full snapshot grows with the
// number of distinct principals and hosts.
func (b *Baseline) Save(path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f := file{Users: map[string]*model.Profile{}, Hosts: map[string]*model.Profile{}}
	for k, s := range b.users {
		s.mu.Lock()
		f.Users[k] = s.profile
		s.mu.Unlock()
	}
	for k, s := range b.hosts {
		s.mu.Lock()
		f.Hosts[k] = s.profile
		s.mu.Unlock()
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	// Snapshotting happens on a periodic ticker while Observe keeps
	// mutating profiles concurrently; renameio makes the periodic
	// snapshot crash-safe (no reader ever sees a half-written file).
	return renameio.WriteFile(path, data, 0640)
}

// Load restores a previously saved snapshot, replacing any in-memory
// profiles. Intended for process startup only.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	b := New()
	for k, p := range f.Users {
		b.users[k] = &shard{profile: p}
	}
	for k, p := range f.Hosts {
		b.hosts[k] = &shard{profile: p}
	}
	return b, nil
}
