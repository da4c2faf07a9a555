package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/approval"
	"github.com/harunnryd/sekimori/internal/danger"
	"github.com/harunnryd/sekimori/internal/logger"
	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/scope"
	"github.com/harunnryd/sekimori/internal/session"
)

// Decision is the gateway's verdict on one tool call. Every evaluation
// terminates in exactly one decision.
type Decision struct {
	Allowed bool
	Input   json.RawMessage
	Reason  string
	Decider string
}

// Scope identifies whose rules govern a tool call. Source names the
// adapter the conversation lives on, so prompts and notices go back out
// the same way.
type Scope struct {
	Source    string
	UserID    string
	ChannelID string
	ThreadID  string
}

// Gateway mediates between the agent's tool calls and the operator: looks
// up the scope's trust mode and either waves the call through, blocks it
// behind an interactive approval, or lets the danger classifier rule.
type Gateway struct {
	modes       *permission.Store
	coordinator *approval.Coordinator
	transports  *adapter.Registry
	sessions    *session.Store
	timeout     time.Duration
}

func New(modes *permission.Store, coordinator *approval.Coordinator, transports *adapter.Registry, sessions *session.Store, timeout time.Duration) *Gateway {
	return &Gateway{
		modes:       modes,
		coordinator: coordinator,
		transports:  transports,
		sessions:    sessions,
		timeout:     timeout,
	}
}

// Evaluate gates one tool call according to the scope's mode.
func (g *Gateway) Evaluate(ctx context.Context, sc Scope, toolName string, input json.RawMessage) Decision {
	defer g.sessions.Touch(sc.UserID, sc.ChannelID, sc.ThreadID)

	mode := g.modes.GetModeFor(sc.ChannelID, sc.ThreadID, sc.UserID)

	switch mode {
	case permission.ModeBypass:
		slog.Debug("Tool call allowed without review", "tool", toolName, "channel", sc.ChannelID)
		return Decision{Allowed: true, Input: input}

	case permission.ModeAuto:
		return g.evaluateAuto(ctx, sc, toolName, input)

	default:
		return g.evaluateInteractive(ctx, sc, toolName, input)
	}
}

// evaluateInteractive runs the full approval handshake.
func (g *Gateway) evaluateInteractive(ctx context.Context, sc Scope, toolName string, input json.RawMessage) Decision {
	res := g.coordinator.RequestApproval(ctx, approval.Request{
		Source:    sc.Source,
		ChannelID: sc.ChannelID,
		ThreadID:  sc.ThreadID,
		UserID:    sc.UserID,
		ToolName:  toolName,
		Input:     input,
		Timeout:   g.timeout,
	})

	out := input
	if res.Allowed && len(res.Input) > 0 {
		out = res.Input
	}
	return Decision{Allowed: res.Allowed, Input: out, Reason: res.Reason, Decider: res.Decider}
}

// evaluateAuto lets the danger classifier rule. Safe calls pass silently;
// unsafe calls are denied with a non-interactive notice in the channel.
func (g *Gateway) evaluateAuto(ctx context.Context, sc Scope, toolName string, input json.RawMessage) Decision {
	boundary, _ := g.sessions.WorkingDir(scope.Key(sc.UserID, sc.ChannelID, sc.ThreadID))

	verdict := danger.Classify(toolName, input, boundary)
	if verdict.Safe {
		return Decision{Allowed: true, Input: input}
	}

	slog.Info("Tool call blocked by danger classifier", "tool", toolName, "reason", verdict.Reason,
		"channel", sc.ChannelID, "trace", logger.GetTraceID(ctx))

	notice := adapter.Notice(fmt.Sprintf("Blocked %s: %s", toolName, verdict.Reason))
	if transport, ok := g.transports.Lookup(sc.Source); ok {
		if _, err := transport.PostMessage(ctx, sc.ChannelID, sc.ThreadID, notice); err != nil {
			slog.Warn("Failed to deliver block notice", "error", err)
		}
	} else {
		slog.Warn("No transport serves the scope's source, notice dropped", "source", sc.Source)
	}

	return Decision{Allowed: false, Input: input, Reason: verdict.Reason, Decider: "classifier"}
}

// PermissionCallback adapts Evaluate to the agent runtime's callback shape.
func (g *Gateway) PermissionCallback(sc Scope) func(ctx context.Context, toolName string, input json.RawMessage) (bool, json.RawMessage, string) {
	return func(ctx context.Context, toolName string, input json.RawMessage) (bool, json.RawMessage, string) {
		d := g.Evaluate(ctx, sc, toolName, input)
		return d.Allowed, d.Input, d.Reason
	}
}
