package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/daemon"
	"github.com/harunnryd/sekimori/internal/session"
)

// ReaperComponent expires idle sessions on the configured cron schedule.
// With a zero TTL it registers but never removes anything.
type ReaperComponent struct {
	sessions *session.Store
	ttl      time.Duration
	schedule cron.Schedule

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewReaperComponent(sessions *session.Store, cfg config.SessionConfig) (*ReaperComponent, error) {
	ttl, err := config.DurationOrDefault(cfg.TTL, config.DefaultSessionTTL)
	if err != nil {
		return nil, fmt.Errorf("parse session ttl: %w", err)
	}

	spec := cfg.SweepSchedule
	if spec == "" {
		spec = config.DefaultSessionSweepSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	return &ReaperComponent{sessions: sessions, ttl: ttl, schedule: schedule}, nil
}

func (r *ReaperComponent) Name() string {
	return "Reaper"
}

func (r *ReaperComponent) Dependencies() []string {
	return []string{"Backup"}
}

func (r *ReaperComponent) Init(ctx context.Context) error {
	if r.sessions == nil {
		return fmt.Errorf("session store not configured")
	}
	return nil
}

func (r *ReaperComponent) Start(ctx context.Context) error {
	if r.ttl <= 0 {
		slog.Info("Session reaper idle: sessions never expire")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	go r.run(runCtx)

	slog.Info("Session reaper started", "ttl", r.ttl)
	return nil
}

func (r *ReaperComponent) run(ctx context.Context) {
	defer close(r.done)

	for {
		next := r.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.sessions.Reap(r.ttl)
		}
	}
}

func (r *ReaperComponent) Stop(ctx context.Context) error {
	if !r.started {
		return nil
	}
	r.started = false
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ReaperComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return &daemon.ComponentHealth{Name: r.Name(), Healthy: true}, nil
}
