package components

import (
	"context"
	"fmt"

	"github.com/harunnryd/sekimori/internal/daemon"
	"github.com/harunnryd/sekimori/internal/ingress"
)

// RouterComponent drives the ingress worker lane.
type RouterComponent struct {
	router  *ingress.Router
	cancel  context.CancelFunc
	started bool
}

func NewRouterComponent(router *ingress.Router) *RouterComponent {
	return &RouterComponent{router: router}
}

func (r *RouterComponent) Name() string {
	return "Router"
}

func (r *RouterComponent) Dependencies() []string {
	return []string{"Backup"}
}

func (r *RouterComponent) Init(ctx context.Context) error {
	if r.router == nil {
		return fmt.Errorf("router not configured")
	}
	return nil
}

func (r *RouterComponent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.router.Start(runCtx)
	r.started = true
	return nil
}

func (r *RouterComponent) Stop(ctx context.Context) error {
	if !r.started {
		return nil
	}
	r.started = false
	err := r.router.Close()
	r.cancel()
	return err
}

func (r *RouterComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !r.started {
		return &daemon.ComponentHealth{Name: r.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	if err := r.router.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: r.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: r.Name(), Healthy: true}, nil
}
