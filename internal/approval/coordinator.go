package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/scope"
	"github.com/harunnryd/sekimori/internal/store"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusAllowed Status = "ALLOWED"
	StatusDenied  Status = "DENIED"
)

const (
	ReasonTimedOut = "timed out"
	ReasonAborted  = "aborted"
	// ReasonDeniedByUser prefixes human denials so the agent can surface them.
	ReasonDeniedByUser = "Denied by user"
)

// Ticket is one gated tool call, pending or settled.
type Ticket struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
	ChannelID string          `json:"channel_id"`
	ThreadID  string          `json:"thread_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Status    Status          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Decider   string          `json:"decider,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	SettledAt time.Time       `json:"settled_at,omitempty"`
}

// Resolution is what the agent's permission callback receives.
type Resolution struct {
	Allowed bool
	Input   json.RawMessage // passed through, or human-edited on allow
	Reason  string
	Decider string
}

// Request describes one gated tool call.
type Request struct {
	Source    string // adapter the conversation lives on; routes the prompt
	ChannelID string
	ThreadID  string
	UserID    string
	ToolName  string
	Input     json.RawMessage
	// Timeout overrides the coordinator default when positive. A resolved
	// timeout of zero or less expires immediately.
	Timeout time.Duration
}

// Coordinator brokers the approval handshake: one ticket per gated call,
// settled exactly once by the first of {external resolution, timeout,
// cancellation}.
type Coordinator struct {
	transports   *adapter.Registry
	mailbox      *Mailbox
	ticketPath   string
	timeout      time.Duration
	pollInterval time.Duration

	mu      sync.RWMutex
	tickets map[string]*Ticket
}

func NewCoordinator(transports *adapter.Registry, mailbox *Mailbox, stateDir string, timeout, pollInterval time.Duration) (*Coordinator, error) {
	base, err := store.GovernanceDir(stateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create governance dir: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	c := &Coordinator{
		transports:   transports,
		mailbox:      mailbox,
		ticketPath:   filepath.Join(base, "approvals.json"),
		timeout:      timeout,
		pollInterval: pollInterval,
		tickets:      make(map[string]*Ticket),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) load() error {
	data, err := os.ReadFile(c.ticketPath)
	if err != nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &c.tickets); err != nil {
		return fmt.Errorf("parse %s: %w", c.ticketPath, err)
	}

	// Nobody is waiting on tickets from a previous process.
	for _, t := range c.tickets {
		if t.Status == StatusPending {
			t.Status = StatusDenied
			t.Reason = "orphaned at restart"
			t.SettledAt = time.Now()
		}
	}
	return c.save()
}

func (c *Coordinator) save() error {
	data, err := json.MarshalIndent(c.tickets, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(c.ticketPath, bytes.NewReader(data))
}

// RequestApproval posts an interactive prompt and suspends the caller until
// a human resolves it, the deadline elapses, or ctx is cancelled. Every
// path returns exactly one resolution; a transport failure fails closed.
func (c *Coordinator) RequestApproval(ctx context.Context, req Request) Resolution {
	id := ulid.Make().String()

	ticket := &Ticket{
		ID:        id,
		Tool:      req.ToolName,
		Input:     req.Input,
		ChannelID: req.ChannelID,
		ThreadID:  req.ThreadID,
		UserID:    req.UserID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	c.track(ticket)

	slog.Info("Approval required", "ticket", id, "tool", req.ToolName,
		"scope", scope.Resolve(req.ChannelID, req.ThreadID, req.UserID))

	transport, ok := c.transports.Lookup(req.Source)
	if !ok {
		slog.Error("No transport serves the requesting source", "ticket", id, "source", req.Source)
		return c.settle(ctx, nil, id, nil, Resolution{
			Allowed: false,
			Input:   req.Input,
			Reason:  fmt.Sprintf("no transport registered for source %q", req.Source),
		})
	}

	ref, err := transport.PostMessage(ctx, req.ChannelID, req.ThreadID,
		adapter.ApprovalRequest(id, req.ToolName, req.Input))
	if err != nil {
		slog.Error("Approval prompt could not be delivered", "ticket", id, "error", err)
		return c.settle(ctx, transport, id, nil, Resolution{
			Allowed: false,
			Input:   req.Input,
			Reason:  "approval request could not be delivered: " + err.Error(),
		})
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	return c.wait(ctx, transport, id, req, ref, timeout)
}

func (c *Coordinator) wait(ctx context.Context, transport adapter.Transport, id string, req Request, ref adapter.MessageRef, timeout time.Duration) Resolution {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.mailbox.Clear(id); err != nil {
				slog.Warn("Failed to clear mailbox slot on cancel", "ticket", id, "error", err)
			}
			return c.settle(ctx, transport, id, &ref, Resolution{
				Allowed: false,
				Input:   req.Input,
				Reason:  ReasonAborted,
			})

		case <-timer.C:
			if err := c.mailbox.Clear(id); err != nil {
				slog.Warn("Failed to clear mailbox slot on timeout", "ticket", id, "error", err)
			}
			return c.settle(ctx, transport, id, &ref, Resolution{
				Allowed: false,
				Input:   req.Input,
				Reason:  ReasonTimedOut,
			})

		case <-ticker.C:
			rec, err := c.mailbox.Take(id)
			if err != nil {
				// A corrupt single write must not abort the whole wait.
				slog.Warn("Skipping malformed resolution record", "ticket", id, "error", err)
				continue
			}
			if rec == nil {
				continue
			}

			res := Resolution{
				Allowed: rec.Approved,
				Input:   req.Input,
				Decider: rec.Decider,
				Reason:  rec.Reason,
			}
			if rec.Approved && len(rec.EditedInput) > 0 {
				res.Input = rec.EditedInput
			}
			if !rec.Approved && res.Reason == "" {
				res.Reason = ReasonDeniedByUser
			}
			return c.settle(ctx, transport, id, &ref, res)
		}
	}
}

// settle records exactly one outcome per ticket and updates the rendered
// prompt in place. A second settlement attempt returns the first outcome.
func (c *Coordinator) settle(ctx context.Context, transport adapter.Transport, id string, ref *adapter.MessageRef, res Resolution) Resolution {
	c.mu.Lock()
	ticket, ok := c.tickets[id]
	if !ok || ticket.Status != StatusPending {
		// Already settled: first writer won.
		if ok {
			res = resolutionFromTicket(ticket)
		}
		c.mu.Unlock()
		return res
	}

	ticket.Status = StatusDenied
	if res.Allowed {
		ticket.Status = StatusAllowed
	}
	ticket.Reason = res.Reason
	ticket.Decider = res.Decider
	ticket.SettledAt = time.Now()
	if err := c.save(); err != nil {
		slog.Error("Failed to persist ticket table", "ticket", id, "error", err)
	}
	tool := ticket.Tool
	input := ticket.Input
	c.mu.Unlock()

	if ref != nil && transport != nil {
		update := adapter.ApprovalResult(id, tool, input, res.Allowed, res.Decider, res.Reason)
		// The caller's context may already be cancelled when settlement was
		// triggered by that cancellation; the prompt must still be retired.
		if err := transport.UpdateMessage(context.WithoutCancel(ctx), *ref, update); err != nil {
			slog.Warn("Failed to update approval prompt", "ticket", id, "error", err)
		}
	}

	slog.Info("Ticket settled", "ticket", id, "allowed", res.Allowed, "reason", res.Reason)
	return res
}

func resolutionFromTicket(t *Ticket) Resolution {
	return Resolution{
		Allowed: t.Status == StatusAllowed,
		Input:   t.Input,
		Reason:  t.Reason,
		Decider: t.Decider,
	}
}

func (c *Coordinator) track(t *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickets[t.ID] = t
	if err := c.save(); err != nil {
		slog.Error("Failed to persist ticket table", "ticket", t.ID, "error", err)
	}
}

// Get returns a copy of a ticket.
func (c *Coordinator) Get(id string) (Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// List returns tickets filtered by status, newest first.
func (c *Coordinator) List(statuses ...Status) []Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}

	tickets := make([]Ticket, 0, len(c.tickets))
	for _, ticket := range c.tickets {
		if len(filter) > 0 {
			if _, ok := filter[ticket.Status]; !ok {
				continue
			}
		}
		tickets = append(tickets, *ticket)
	}

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets
}

// ReadTickets loads the persisted ticket table without a coordinator, for
// the CLI surface running outside the daemon process.
func ReadTickets(stateDir string) (map[string]Ticket, error) {
	base, err := store.GovernanceDir(stateDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(base, "approvals.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Ticket{}, nil
		}
		return nil, err
	}

	tickets := make(map[string]Ticket)
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}
