package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/session"
	"github.com/harunnryd/sekimori/internal/store"
)

const (
	latestSnapshotName = "sessions.json"
	historyStampLayout = "20060102T150405"
)

// Manager snapshots the session store and the permission mode map on a
// fixed interval and keeps a bounded history of dated copies.
type Manager struct {
	sessions  *session.Store
	modes     *permission.Store
	dir       string
	interval  time.Duration
	retention int

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

func NewManager(sessions *session.Store, modes *permission.Store, stateDir string, cfg config.BackupConfig) (*Manager, error) {
	interval, err := config.DurationOrDefault(cfg.Interval, config.DefaultBackupInterval)
	if err != nil {
		return nil, fmt.Errorf("parse backup interval: %w", err)
	}

	retention := cfg.HistoryRetention
	if retention <= 0 {
		retention = config.DefaultBackupHistoryRetention
	}

	dir, err := store.BackupDir(stateDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		sessions:  sessions,
		modes:     modes,
		dir:       dir,
		interval:  interval,
		retention: retention,
	}, nil
}

func (m *Manager) Init(ctx context.Context) error {
	if err := os.MkdirAll(m.historyDir(), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	slog.Info("Backup manager initialized", "dir", m.dir, "interval", m.interval)
	return nil
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	// Baseline snapshot as soon as the daemon is up. No history copy; the
	// dated series advances only on interval ticks.
	if err := m.snapshot(false); err != nil {
		slog.Error("Initial backup failed", "error", err)
	}

	go m.run(runCtx)

	slog.Info("Backup manager started")
	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Final image so a clean shutdown never loses state.
	if err := m.snapshot(false); err != nil {
		return fmt.Errorf("final backup: %w", err)
	}

	slog.Info("Backup manager stopped")
	return nil
}

func (m *Manager) Health(ctx context.Context) error {
	if _, err := os.Stat(m.dir); err != nil {
		return fmt.Errorf("backup directory unavailable: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged and retried on the next tick.
			if err := m.snapshot(true); err != nil {
				slog.Error("Periodic backup failed", "error", err)
			}
		}
	}
}

// snapshot writes the latest image; withHistory also appends a dated copy
// and prunes the series down to the retention limit.
func (m *Manager) snapshot(withHistory bool) error {
	snap := Capture(m.sessions, m.modes)

	if err := snap.Write(m.latestPath()); err != nil {
		return err
	}

	if !withHistory {
		return nil
	}

	stamped := fmt.Sprintf("sessions-%s.json", snap.Timestamp.UTC().Format(historyStampLayout))
	if err := snap.Write(filepath.Join(m.historyDir(), stamped)); err != nil {
		return err
	}

	m.prune()

	slog.Debug("Backup written", "sessions", len(snap.Sessions), "history", stamped)
	return nil
}

// prune deletes the oldest history copies beyond the retention limit.
func (m *Manager) prune() {
	entries, err := os.ReadDir(m.historyDir())
	if err != nil {
		slog.Warn("Backup history unreadable", "error", err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= m.retention {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-m.retention] {
		if err := os.Remove(filepath.Join(m.historyDir(), name)); err != nil {
			slog.Warn("Failed to prune backup", "name", name, "error", err)
		}
	}
}

// Restore merges the most recent durable snapshot into the live store. A
// missing latest image falls back to the newest history copy. Restoring
// nothing is not an error.
func (m *Manager) Restore() error {
	snap, err := Read(m.latestPath())
	if err != nil {
		return err
	}
	if snap == nil {
		snap, err = m.newestHistory()
		if err != nil {
			return err
		}
	}
	if snap == nil {
		slog.Info("No backup to restore")
		return nil
	}

	m.sessions.Restore(snap.Sessions, snap.WorkingDirectories)

	if m.modes != nil && len(snap.PermissionModes) > 0 {
		if err := m.modes.Restore(snap.PermissionModes); err != nil {
			slog.Warn("Permission modes in backup could not be restored", "error", err)
		}
	}

	slog.Info("Sessions restored from backup", "sessions", len(snap.Sessions), "taken_at", snap.Timestamp)
	return nil
}

func (m *Manager) newestHistory() (*Snapshot, error) {
	entries, err := os.ReadDir(m.historyDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup history: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	sort.Strings(names)
	return Read(filepath.Join(m.historyDir(), names[len(names)-1]))
}

func (m *Manager) latestPath() string {
	return filepath.Join(m.dir, latestSnapshotName)
}

func (m *Manager) historyDir() string {
	return filepath.Join(m.dir, "history")
}
