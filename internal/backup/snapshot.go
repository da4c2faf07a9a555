package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/session"
)

// SnapshotVersion identifies the on-disk snapshot format.
const SnapshotVersion = 1

// Snapshot is the durable image of the session store, plus the permission
// mode map so one file restores the whole conversational state.
type Snapshot struct {
	Sessions           []session.Record  `json:"sessions"`
	WorkingDirectories map[string]string `json:"workingDirectories"`
	PermissionModes    json.RawMessage   `json:"permissionModes,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	Version            int               `json:"version"`
}

// Capture builds a snapshot from the live stores. modes may be nil.
func Capture(store *session.Store, modes *permission.Store) *Snapshot {
	records, dirs := store.Snapshot()
	snap := &Snapshot{
		Sessions:           records,
		WorkingDirectories: dirs,
		Timestamp:          time.Now(),
		Version:            SnapshotVersion,
	}
	if modes != nil {
		if data, err := json.Marshal(modes.Snapshot()); err == nil {
			snap.PermissionModes = data
		}
	}
	return snap
}

// Write persists the snapshot to path atomically.
func (s *Snapshot) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Read loads a snapshot from path. A missing file returns (nil, nil).
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
