package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/agent"
	"github.com/harunnryd/sekimori/internal/approval"
	"github.com/harunnryd/sekimori/internal/concurrency"
	"github.com/harunnryd/sekimori/internal/errors"
	"github.com/harunnryd/sekimori/internal/gateway"
	"github.com/harunnryd/sekimori/internal/logger"
	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/scope"
	"github.com/harunnryd/sekimori/internal/session"
)

const (
	defaultQueueSize     = 64
	defaultSubmitTimeout = 2 * time.Second
	defaultWorkerCount   = 2
)

// AgentRunner is the slice of the agent runtime the router needs.
type AgentRunner interface {
	Run(ctx context.Context, req agent.RunRequest) (agent.Result, error)
	Boundary(workingDir string) string
}

// Router turns adapter callbacks into gateway actions: mode commands and
// status queries are answered inline, approval clicks land in the mailbox,
// and prompts are queued for the agent worker.
type Router struct {
	modes      *permission.Store
	sessions   *session.Store
	mailbox    *approval.Mailbox
	gateway    *gateway.Gateway
	runner     AgentRunner
	transports *adapter.Registry

	queue         chan *Event
	submitTimeout time.Duration
	scopeLocks    *concurrency.ScopeLockManager

	wg sync.WaitGroup
}

func NewRouter(modes *permission.Store, sessions *session.Store, mailbox *approval.Mailbox, gw *gateway.Gateway, runner AgentRunner, transports *adapter.Registry) *Router {
	return &Router{
		modes:         modes,
		sessions:      sessions,
		mailbox:       mailbox,
		gateway:       gw,
		runner:        runner,
		transports:    transports,
		queue:         make(chan *Event, defaultQueueSize),
		submitTimeout: defaultSubmitTimeout,
		scopeLocks:    concurrency.NewScopeLockManager(),
	}
}

// HandleEvent is the adapter.EventHandler entry point. The event's ULID
// doubles as the trace id for everything the event sets in motion.
func (r *Router) HandleEvent(ctx context.Context, source, eventType, channelID, content string, metadata map[string]string) error {
	evt := NewEvent(source, EventType(eventType), channelID, content, metadata)
	ctx = logger.WithTraceID(ctx, evt.ID)

	slog.Debug("Event received", "id", evt.ID, "type", evt.Type, "source", evt.Source, "channel", evt.ChannelID)

	switch evt.Type {
	case TypeActionClicked:
		return r.handleClick(evt)
	case TypeUserMessage:
		return r.handleMessage(ctx, evt)
	default:
		slog.Info("Event dropped", "id", evt.ID, "type", evt.Type)
		return nil
	}
}

// handleClick converts an approve/deny button press into a mailbox record
// for the waiting coordinator, which may live in another process.
func (r *Router) handleClick(evt *Event) error {
	ticketID := evt.Metadata["ticket_id"]
	if ticketID == "" {
		return errors.InvalidInput("click event carries no ticket id")
	}
	approved := evt.Metadata["approved"] == "true"

	rec := approval.Record{Approved: approved, Decider: evt.UserID}
	if !approved {
		rec.Reason = approval.ReasonDeniedByUser
	}

	if err := r.mailbox.Deposit(ticketID, rec); err != nil {
		return errors.Wrap(err, "deposit resolution")
	}

	slog.Info("Approval resolved by click", "ticket", ticketID, "approved", approved, "decider", evt.UserID)
	return nil
}

func (r *Router) handleMessage(ctx context.Context, evt *Event) error {
	if mode, ok := permission.ParseCommand(evt.Content); ok {
		return r.handleModeCommand(ctx, evt, mode)
	}
	if permission.IsStatusQuery(evt.Content) {
		return r.handleStatusQuery(ctx, evt)
	}
	return r.enqueue(ctx, evt)
}

func (r *Router) handleModeCommand(ctx context.Context, evt *Event, mode permission.Mode) error {
	scopeKey := scope.Resolve(evt.ChannelID, evt.ThreadID, evt.UserID)

	if err := r.modes.SetMode(scopeKey, mode, evt.UserID); err != nil {
		return errors.Wrap(err, "set mode")
	}

	r.reply(ctx, evt, fmt.Sprintf("Mode is now *%s* for this conversation.", mode))
	return nil
}

func (r *Router) handleStatusQuery(ctx context.Context, evt *Event) error {
	mode := r.modes.GetModeFor(evt.ChannelID, evt.ThreadID, evt.UserID)
	r.reply(ctx, evt, fmt.Sprintf("Current mode: *%s*.", mode))
	return nil
}

// enqueue hands a prompt to the worker lane, with bounded backpressure.
func (r *Router) enqueue(ctx context.Context, evt *Event) error {
	select {
	case r.queue <- evt:
		slog.Debug("Prompt queued", "id", evt.ID)
		return nil
	case <-time.After(r.submitTimeout):
		slog.Warn("Prompt queue full, dropping event", "id", evt.ID)
		r.reply(ctx, evt, "Busy right now, please retry in a moment.")
		return errors.ErrTransient
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the worker goroutines that drain the prompt queue. Turns
// in the same scope are serialized; distinct scopes run concurrently.
func (r *Router) Start(ctx context.Context) {
	for i := 0; i < defaultWorkerCount; i++ {
		r.wg.Add(1)
		concurrency.SafeGo(func() {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-r.queue:
					if !ok {
						return
					}
					r.runTurn(ctx, evt)
				}
			}
		}, nil)
	}
}

// Close stops accepting prompts and waits for the in-flight turn.
func (r *Router) Close() error {
	close(r.queue)
	r.wg.Wait()
	return nil
}

func (r *Router) runTurn(ctx context.Context, evt *Event) {
	key := scope.Key(evt.UserID, evt.ChannelID, evt.ThreadID)

	// The worker context starts fresh, so re-stamp the turn's identifiers
	// for every log line and gate decision downstream.
	ctx = logger.WithTraceID(ctx, evt.ID)
	ctx = logger.WithScopeKey(ctx, key)

	r.scopeLocks.Lock(key)
	defer r.scopeLocks.Unlock(key)
	r.handlePrompt(ctx, evt)
}

// handlePrompt runs one agent turn for a user prompt. The session is
// touched whichever way the turn ends.
func (r *Router) handlePrompt(ctx context.Context, evt *Event) {
	defer r.sessions.Touch(evt.UserID, evt.ChannelID, evt.ThreadID)

	sess := r.sessions.GetOrCreate(evt.UserID, evt.ChannelID, evt.ThreadID)

	scopeKey := scope.Key(evt.UserID, evt.ChannelID, evt.ThreadID)
	workingDir, ok := r.sessions.WorkingDir(scopeKey)
	if !ok {
		// First turn in this scope: pin it to the runner's default boundary
		// so Auto-mode path checks have a root to enforce.
		if boundary := r.runner.Boundary(""); boundary != "" {
			workingDir = boundary
			r.sessions.SetWorkingDir(scopeKey, boundary)
		}
	}

	sc := gateway.Scope{Source: evt.Source, UserID: evt.UserID, ChannelID: evt.ChannelID, ThreadID: evt.ThreadID}

	streamed := false
	result, err := r.runner.Run(ctx, agent.RunRequest{
		Prompt:          evt.Content,
		WorkingDir:      workingDir,
		ResumeSessionID: sess.ExternalID,
		Permission:      r.gateway.PermissionCallback(sc),
		OnEvent: func(ae agent.Event) {
			switch ae.Type {
			case "init":
				r.sessions.AttachExternalID(evt.UserID, evt.ChannelID, evt.ThreadID, ae.SessionID)
			case "text":
				streamed = true
				r.reply(ctx, evt, ae.Text)
			}
		},
	})
	if err != nil {
		slog.Error("Agent turn failed", "trace", logger.GetTraceID(ctx), "scope", logger.GetScopeKey(ctx), "error", err)
		r.reply(ctx, evt, "The agent run failed, see the daemon log.")
		return
	}

	// The final result repeats the last streamed block; only relay it when
	// nothing streamed.
	if !streamed && result.Output != "" {
		r.reply(ctx, evt, result.Output)
	}
}

func (r *Router) reply(ctx context.Context, evt *Event, text string) {
	t, ok := r.transports.Lookup(evt.Source)
	if !ok {
		slog.Warn("No transport registered for source", "source", evt.Source)
		return
	}
	if _, err := t.PostMessage(ctx, evt.ChannelID, evt.ThreadID, adapter.Text(text)); err != nil {
		slog.Warn("Failed to post reply", "source", evt.Source, "error", err)
	}
}

// Health reports queue saturation.
func (r *Router) Health(ctx context.Context) error {
	usage := float64(len(r.queue)) / float64(cap(r.queue))
	if usage > 0.9 {
		return errors.Transient("prompt queue nearly full")
	}
	return nil
}
