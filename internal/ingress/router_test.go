package ingress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/agent"
	"github.com/harunnryd/sekimori/internal/approval"
	"github.com/harunnryd/sekimori/internal/gateway"
	"github.com/harunnryd/sekimori/internal/logger"
	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/session"
)

type fakeRunner struct {
	mu     sync.Mutex
	runs   []agent.RunRequest
	traces []string
	scopes []string
	result agent.Result
}

func (f *fakeRunner) Run(ctx context.Context, req agent.RunRequest) (agent.Result, error) {
	f.mu.Lock()
	f.runs = append(f.runs, req)
	f.traces = append(f.traces, logger.GetTraceID(ctx))
	f.scopes = append(f.scopes, logger.GetScopeKey(ctx))
	f.mu.Unlock()

	if req.OnEvent != nil {
		req.OnEvent(agent.Event{Type: "init", SessionID: f.result.SessionID})
		req.OnEvent(agent.Event{Type: "text", SessionID: f.result.SessionID, Text: f.result.Output})
	}
	return f.result, nil
}

func (f *fakeRunner) Boundary(workingDir string) string {
	return workingDir
}

func (f *fakeRunner) recorded() []agent.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.RunRequest(nil), f.runs...)
}

type routerHarness struct {
	router    *Router
	modes     *permission.Store
	sessions  *session.Store
	mailbox   *approval.Mailbox
	transport *adapter.NullTransport
	runner    *fakeRunner
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()

	stateDir := t.TempDir()

	modes, err := permission.NewStore(stateDir)
	require.NoError(t, err)

	mailbox, err := approval.NewMailbox(stateDir)
	require.NoError(t, err)

	transport := adapter.NewNullTransport("slack")
	registry := adapter.NewRegistry(transport)
	sessions := session.NewStore()

	coord, err := approval.NewCoordinator(registry, mailbox, stateDir, time.Second, 5*time.Millisecond)
	require.NoError(t, err)

	gw := gateway.New(modes, coord, registry, sessions, time.Second)
	runner := &fakeRunner{result: agent.Result{SessionID: "sess-1", Output: "hello"}}

	router := NewRouter(modes, sessions, mailbox, gw, runner, registry)

	return &routerHarness{
		router:    router,
		modes:     modes,
		sessions:  sessions,
		mailbox:   mailbox,
		transport: transport,
		runner:    runner,
	}
}

func TestModeCommandSetsScopeAndReplies(t *testing.T) {
	h := newRouterHarness(t)

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeUserMessage), "C1", "bypass on",
		map[string]string{"user_id": "U1", "thread_ts": "T1"})
	require.NoError(t, err)

	assert.Equal(t, permission.ModeBypass, h.modes.GetModeFor("C1", "T1", "U1"))
	// Channel scope is untouched.
	assert.Equal(t, permission.ModeApproval, h.modes.GetModeFor("C1", "", "U1"))

	posted := h.transport.Posted()
	require.Len(t, posted, 1)
	assert.Contains(t, posted[0].Message.Text, "bypass")
}

func TestApprovalOffMeansBypass(t *testing.T) {
	h := newRouterHarness(t)

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeUserMessage), "C1", "approval off",
		map[string]string{"user_id": "U1"})
	require.NoError(t, err)

	assert.Equal(t, permission.ModeBypass, h.modes.GetModeFor("C1", "", "U1"))
}

func TestStatusQueryReportsEffectiveMode(t *testing.T) {
	h := newRouterHarness(t)
	require.NoError(t, h.modes.SetMode("C1", permission.ModeAuto, "U1"))

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeUserMessage), "C1", "mode?",
		map[string]string{"user_id": "U1"})
	require.NoError(t, err)

	posted := h.transport.Posted()
	require.Len(t, posted, 1)
	assert.Contains(t, posted[0].Message.Text, "auto")
}

func TestClickDepositsResolution(t *testing.T) {
	h := newRouterHarness(t)

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeActionClicked), "C1", "tick-1",
		map[string]string{"user_id": "U1", "ticket_id": "tick-1", "approved": "true"})
	require.NoError(t, err)

	rec, err := h.mailbox.Take("tick-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Approved)
	assert.Equal(t, "U1", rec.Decider)
}

func TestDenyClickCarriesReason(t *testing.T) {
	h := newRouterHarness(t)

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeActionClicked), "C1", "tick-2",
		map[string]string{"user_id": "U1", "ticket_id": "tick-2", "approved": "false"})
	require.NoError(t, err)

	rec, err := h.mailbox.Take("tick-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Approved)
	assert.Equal(t, approval.ReasonDeniedByUser, rec.Reason)
}

func TestClickWithoutTicketIDRejected(t *testing.T) {
	h := newRouterHarness(t)

	err := h.router.HandleEvent(t.Context(), "slack", string(TypeActionClicked), "C1", "",
		map[string]string{"user_id": "U1"})
	assert.Error(t, err)
}

func TestPromptDispatchRunsAgentTurn(t *testing.T) {
	h := newRouterHarness(t)
	require.NoError(t, h.modes.SetMode("C1", permission.ModeBypass, "U1"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.router.Start(ctx)

	err := h.router.HandleEvent(ctx, "slack", string(TypeUserMessage), "C1", "fix the build",
		map[string]string{"user_id": "U1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.runner.recorded()) == 1
	}, time.Second, 5*time.Millisecond)

	runs := h.runner.recorded()
	assert.Equal(t, "fix the build", runs[0].Prompt)

	// The init message binds the external session id for resumption.
	require.Eventually(t, func() bool {
		sess, ok := h.sessions.Get("U1", "C1", "")
		return ok && sess.ExternalID == "sess-1"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(h.transport.Posted()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", h.transport.Posted()[0].Message.Text)
}

func TestTurnContextCarriesTraceAndScope(t *testing.T) {
	h := newRouterHarness(t)
	require.NoError(t, h.modes.SetMode("C1", permission.ModeBypass, "U1"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.router.Start(ctx)

	err := h.router.HandleEvent(ctx, "slack", string(TypeUserMessage), "C1", "fix the build",
		map[string]string{"user_id": "U1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.runner.recorded()) == 1
	}, time.Second, 5*time.Millisecond)

	h.runner.mu.Lock()
	defer h.runner.mu.Unlock()
	require.Len(t, h.runner.traces, 1)
	assert.NotEmpty(t, h.runner.traces[0])
	assert.Equal(t, "U1:C1:direct", h.runner.scopes[0])
}

func TestSecondPromptResumesSession(t *testing.T) {
	h := newRouterHarness(t)
	require.NoError(t, h.modes.SetMode("C1", permission.ModeBypass, "U1"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.router.Start(ctx)

	meta := map[string]string{"user_id": "U1"}
	require.NoError(t, h.router.HandleEvent(ctx, "slack", string(TypeUserMessage), "C1", "first", meta))

	require.Eventually(t, func() bool {
		sess, ok := h.sessions.Get("U1", "C1", "")
		return ok && sess.ExternalID == "sess-1"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.router.HandleEvent(ctx, "slack", string(TypeUserMessage), "C1", "second", meta))

	require.Eventually(t, func() bool {
		return len(h.runner.recorded()) == 2
	}, time.Second, 5*time.Millisecond)

	runs := h.runner.recorded()
	assert.Empty(t, runs[0].ResumeSessionID)
	assert.Equal(t, "sess-1", runs[1].ResumeSessionID)
}
