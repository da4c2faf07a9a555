package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/sekimori/internal/errors"
)

// NullTransport records traffic instead of delivering it. Used by tests and
// by scopes with no adapter configured.
type NullTransport struct {
	name string

	mu      sync.Mutex
	posted  []PostedMessage
	updated []PostedMessage

	// FailPosts makes PostMessage return a transport error.
	FailPosts bool
}

type PostedMessage struct {
	Channel  string
	ThreadID string
	Ref      MessageRef
	Message  Message
}

func NewNullTransport(name string) *NullTransport {
	if name == "" {
		name = "null"
	}
	return &NullTransport{name: name}
}

func (a *NullTransport) Name() string {
	return a.name
}

func (a *NullTransport) PostMessage(ctx context.Context, channelID, threadID string, msg Message) (MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailPosts {
		return MessageRef{}, errors.Transport("null transport configured to fail")
	}

	ref := MessageRef{Channel: channelID, ID: fmt.Sprintf("null-%d", len(a.posted)+1)}
	a.posted = append(a.posted, PostedMessage{Channel: channelID, ThreadID: threadID, Ref: ref, Message: msg})
	return ref, nil
}

func (a *NullTransport) UpdateMessage(ctx context.Context, ref MessageRef, msg Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.updated = append(a.updated, PostedMessage{Channel: ref.Channel, Ref: ref, Message: msg})
	return nil
}

func (a *NullTransport) Health(ctx context.Context) error {
	return nil
}

// Posted returns a copy of everything posted so far.
func (a *NullTransport) Posted() []PostedMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PostedMessage(nil), a.posted...)
}

// Updated returns a copy of every in-place update so far.
func (a *NullTransport) Updated() []PostedMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PostedMessage(nil), a.updated...)
}
