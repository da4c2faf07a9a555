package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/concurrency"
	"github.com/harunnryd/sekimori/internal/daemon"
)

// AdaptersComponent runs the configured chat adapters.
type AdaptersComponent struct {
	adapters    []adapter.InputAdapter
	initialized bool
	started     bool
}

func NewAdaptersComponent(adapters ...adapter.InputAdapter) *AdaptersComponent {
	return &AdaptersComponent{adapters: adapters}
}

func (a *AdaptersComponent) Name() string {
	return "Adapters"
}

func (a *AdaptersComponent) Dependencies() []string {
	return []string{"Router"}
}

func (a *AdaptersComponent) Init(ctx context.Context) error {
	if len(a.adapters) == 0 {
		return fmt.Errorf("no adapters configured")
	}
	a.initialized = true
	return nil
}

// Start launches each adapter's listen loop. Adapter Start blocks until
// the context ends, so every adapter gets its own goroutine.
func (a *AdaptersComponent) Start(ctx context.Context) error {
	if !a.initialized {
		return fmt.Errorf("adapters component not initialized")
	}
	for _, ad := range a.adapters {
		ad := ad
		concurrency.SafeGo(func() {
			if err := ad.Start(ctx); err != nil {
				slog.Error("Adapter exited with error", "adapter", ad.Name(), "error", err)
			}
		}, nil)
		slog.Info("Adapter started", "adapter", ad.Name())
	}
	a.started = true
	return nil
}

func (a *AdaptersComponent) Stop(ctx context.Context) error {
	if !a.started {
		return nil
	}
	for i := len(a.adapters) - 1; i >= 0; i-- {
		if err := a.adapters[i].Stop(ctx); err != nil {
			slog.Error("Adapter stop failed", "adapter", a.adapters[i].Name(), "error", err)
		}
	}
	a.started = false
	return nil
}

func (a *AdaptersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !a.started {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	for _, ad := range a.adapters {
		if err := ad.Health(ctx); err != nil {
			return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("%s: %w", ad.Name(), err)}, nil
		}
	}
	return &daemon.ComponentHealth{Name: a.Name(), Healthy: true}, nil
}
