package adapter

import (
	"context"
)

// Event types delivered to the EventHandler.
const (
	EventUserMessage   = "user_message"
	EventActionClicked = "action_clicked"
)

// EventHandler is a callback function for handling events from adapters
// This avoids circular dependencies between adapters and ingress
type EventHandler func(ctx context.Context, source string, eventType string, channelID string, content string, metadata map[string]string) error

// InputAdapter defines the interface for adapters that receive events from external platforms
type InputAdapter interface {
	// Name returns the adapter name (e.g. "slack", "telegram").
	Name() string

	// Start begins listening for events (e.g. starts a server or long-poll).
	// Must respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks if the adapter is healthy and connected.
	Health(ctx context.Context) error
}

// MessageRef identifies a posted message so it can be updated in place.
type MessageRef struct {
	Channel string
	ID      string
}

// Transport defines the interface for adapters that deliver messages to
// external platforms. It is the gateway's only view of the chat platform.
type Transport interface {
	// Name returns the adapter name.
	Name() string

	// PostMessage delivers a message into a channel, optionally inside a
	// thread, and returns a reference for later in-place updates.
	PostMessage(ctx context.Context, channelID, threadID string, msg Message) (MessageRef, error)

	// UpdateMessage rewrites a previously posted message in place.
	UpdateMessage(ctx context.Context, ref MessageRef, msg Message) error

	// Health checks if the adapter is healthy and can send messages.
	Health(ctx context.Context) error
}
