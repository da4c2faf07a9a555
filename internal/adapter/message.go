package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type MessageKind string

const (
	// KindText is an ordinary reply.
	KindText MessageKind = "text"
	// KindApprovalRequest carries approve/deny actions tagged with a ticket id.
	KindApprovalRequest MessageKind = "approval_request"
	// KindApprovalResult replaces a request once the ticket settles.
	KindApprovalResult MessageKind = "approval_result"
	// KindNotice is informational only, with no actions attached.
	KindNotice MessageKind = "notice"
)

// Message is the transport-agnostic content model. Each adapter renders it
// with its platform's markup.
type Message struct {
	Kind MessageKind

	Text string

	// Approval fields
	TicketID  string
	ToolName  string
	ToolInput string // pretty-printed
	Approved  bool
	Decider   string
	Reason    string
}

func Text(text string) Message {
	return Message{Kind: KindText, Text: text}
}

func Notice(text string) Message {
	return Message{Kind: KindNotice, Text: text}
}

func ApprovalRequest(ticketID, toolName string, toolInput json.RawMessage) Message {
	return Message{
		Kind:      KindApprovalRequest,
		TicketID:  ticketID,
		ToolName:  toolName,
		ToolInput: PrettyInput(toolInput),
	}
}

func ApprovalResult(ticketID, toolName string, toolInput json.RawMessage, approved bool, decider, reason string) Message {
	return Message{
		Kind:      KindApprovalResult,
		TicketID:  ticketID,
		ToolName:  toolName,
		ToolInput: PrettyInput(toolInput),
		Approved:  approved,
		Decider:   decider,
		Reason:    reason,
	}
}

// PrettyInput renders an opaque tool input for humans. Invalid JSON is
// shown as-is rather than dropped.
func PrettyInput(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, input, "", "  "); err != nil {
		return string(input)
	}
	return buf.String()
}

// Outcome renders the settled state of an approval for display.
func (m Message) Outcome() string {
	if m.Kind != KindApprovalResult {
		return ""
	}
	verb := "Denied"
	if m.Approved {
		verb = "Approved"
	}
	out := verb
	if m.Decider != "" {
		out = fmt.Sprintf("%s by %s", verb, m.Decider)
	}
	if m.Reason != "" {
		out = fmt.Sprintf("%s (%s)", out, m.Reason)
	}
	return out
}
