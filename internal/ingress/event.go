package ingress

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	TypeUserMessage   EventType = "user_message"
	TypeActionClicked EventType = "action_clicked"
)

// Event is the normalized form of every inbound chat interaction.
type Event struct {
	ID     string `json:"id"`
	Source string `json:"source"` // "slack", "telegram", "cli"

	Type EventType `json:"type"`

	ChannelID string `json:"channel_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	Content string `json:"content"`

	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent normalizes an adapter callback into an Event with a fresh ULID.
func NewEvent(source string, eventType EventType, channelID, content string, metadata map[string]string) *Event {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Event{
		ID:        ulid.Make().String(),
		Source:    source,
		Type:      eventType,
		ChannelID: channelID,
		ThreadID:  threadFrom(metadata),
		UserID:    metadata["user_id"],
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// threadFrom picks the thread marker out of adapter metadata. Slack reports
// thread_ts; other adapters may set thread_id directly.
func threadFrom(metadata map[string]string) string {
	if ts := metadata["thread_ts"]; ts != "" {
		return ts
	}
	return metadata["thread_id"]
}
