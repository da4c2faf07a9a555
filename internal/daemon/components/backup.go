package components

import (
	"context"
	"fmt"

	"github.com/harunnryd/sekimori/internal/backup"
	"github.com/harunnryd/sekimori/internal/daemon"
)

// BackupComponent restores the latest snapshot during init and runs the
// periodic backup loop while the daemon is up.
type BackupComponent struct {
	manager     *backup.Manager
	initialized bool
	started     bool
}

func NewBackupComponent(manager *backup.Manager) *BackupComponent {
	return &BackupComponent{manager: manager}
}

func (b *BackupComponent) Name() string {
	return "Backup"
}

func (b *BackupComponent) Dependencies() []string {
	return nil
}

func (b *BackupComponent) Init(ctx context.Context) error {
	if b.manager == nil {
		return fmt.Errorf("backup manager not configured")
	}
	if err := b.manager.Init(ctx); err != nil {
		return err
	}
	if err := b.manager.Restore(); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	b.initialized = true
	return nil
}

func (b *BackupComponent) Start(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("backup component not initialized")
	}
	if err := b.manager.Start(ctx); err != nil {
		return err
	}
	b.started = true
	return nil
}

func (b *BackupComponent) Stop(ctx context.Context) error {
	if !b.started {
		return nil
	}
	b.started = false
	return b.manager.Stop(ctx)
}

func (b *BackupComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !b.started {
		return &daemon.ComponentHealth{Name: b.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	if err := b.manager.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: b.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: b.Name(), Healthy: true}, nil
}
