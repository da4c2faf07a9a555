package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/sekimori/internal/config"
)

type fakeComponent struct {
	name string
	deps []string

	mu      sync.Mutex
	events  *[]string
	initErr error
	started bool
}

func newFakeComponent(name string, events *[]string, deps ...string) *fakeComponent {
	return &fakeComponent{name: name, deps: deps, events: events}
}

func (f *fakeComponent) Name() string           { return f.name }
func (f *fakeComponent) Dependencies() []string { return f.deps }

func (f *fakeComponent) record(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, f.name+":"+action)
}

func (f *fakeComponent) Init(ctx context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.record("init")
	return nil
}

func (f *fakeComponent) Start(ctx context.Context) error {
	f.record("start")
	f.started = true
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.record("stop")
	f.started = false
	return nil
}

func (f *fakeComponent) Health(ctx context.Context) (*ComponentHealth, error) {
	return &ComponentHealth{Name: f.name, Healthy: f.started}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Daemon: config.DaemonConfig{
			StateDir:        t.TempDir(),
			ShutdownTimeout: "2s",
		},
	}
}

func TestDaemonLifecycleOrder(t *testing.T) {
	var events []string

	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	// Registered out of dependency order on purpose.
	d.AddComponent(newFakeComponent("Adapters", &events, "Router"))
	d.AddComponent(newFakeComponent("Router", &events, "Backup"))
	d.AddComponent(newFakeComponent("Backup", &events))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		return d.Health() == StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)

	// Init follows dependencies, stop reverses registration order.
	assert.Equal(t, []string{
		"Backup:init", "Router:init", "Adapters:init",
		"Adapters:start", "Router:start", "Backup:start",
		"Backup:stop", "Router:stop", "Adapters:stop",
	}, events)
	assert.Equal(t, StatusStopped, d.Health())
}

func TestDaemonInitFailureRollsBack(t *testing.T) {
	var events []string

	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	broken := newFakeComponent("Broken", &events)
	broken.initErr = fmt.Errorf("boom")
	d.AddComponent(broken)

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialization failed")
	assert.Equal(t, StatusStopped, d.Health())
}

func TestDaemonRejectsMissingDependency(t *testing.T) {
	var events []string

	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)
	d.AddComponent(newFakeComponent("Router", &events, "Nonexistent"))

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestDaemonRejectsCircularDependency(t *testing.T) {
	var events []string

	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)
	d.AddComponent(newFakeComponent("A", &events, "B"))
	d.AddComponent(newFakeComponent("B", &events, "A"))

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestComponentLookup(t *testing.T) {
	var events []string

	d, err := NewDaemon(testConfig(t))
	require.NoError(t, err)

	comp := newFakeComponent("Backup", &events)
	d.AddComponent(comp)

	assert.Equal(t, comp, d.Component("Backup"))
	assert.Nil(t, d.Component("Absent"))
}
