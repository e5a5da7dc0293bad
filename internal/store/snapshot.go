package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/internal/models"
)

// Snapshotter persists room metadata and history to a single JSON file.
// Writes go through a temp file + rename so a crash mid-write never leaves a
// truncated snapshot behind.
type Snapshotter struct {
	mu   sync.Mutex
	path string
}

func NewSnapshotter(path string) *Snapshotter {
	return &Snapshotter{path: path}
}

// Load reads the snapshot file. A missing or corrupt file is not an error:
// the service starts empty and logs what happened.
func (p *Snapshotter) Load() models.Snapshot {
	snap := models.Snapshot{Rooms: map[string]models.SnapshotRoom{}}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", p.path).Warn("Failed to read snapshot, starting empty")
		}
		return snap
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		logrus.WithError(err).WithField("path", p.path).Warn("Corrupt snapshot, starting empty")
		return models.Snapshot{Rooms: map[string]models.SnapshotRoom{}}
	}
	if snap.Rooms == nil {
		snap.Rooms = map[string]models.SnapshotRoom{}
	}
	return snap
}

// Save writes the snapshot atomically.
func (p *Snapshotter) Save(snap models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
