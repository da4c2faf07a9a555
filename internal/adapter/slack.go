package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/harunnryd/sekimori/internal/errors"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const (
	slackActionApprove = "approve"
	slackActionDeny    = "deny"
)

type SlackAdapter struct {
	signingSecret string
	botToken      string
	eventHandler  EventHandler
	server        *http.Server
	port          int
	client        *slack.Client
}

func NewSlackAdapter(port int, signingSecret, botToken string, eventHandler EventHandler) *SlackAdapter {
	if signingSecret == "" {
		signingSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
	if botToken == "" {
		botToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	return &SlackAdapter{
		signingSecret: signingSecret,
		botToken:      botToken,
		eventHandler:  eventHandler,
		port:          port,
		client:        slack.New(botToken),
	}
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

func (s *SlackAdapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)
	mux.HandleFunc("/slack/interactions", s.handleInteractions)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		slog.Info("Slack Adapter listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Slack server failed", "error", err)
		}
	}()

	<-ctx.Done()
	return s.server.Shutdown(context.Background())
}

func (s *SlackAdapter) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SlackAdapter) PostMessage(ctx context.Context, channelID, threadID string, msg Message) (MessageRef, error) {
	opts := []slack.MsgOption{renderSlackContent(msg)}
	if threadID != "" {
		opts = append(opts, slack.MsgOptionTS(threadID))
	}

	channel, ts, err := s.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return MessageRef{}, errors.Wrap(err, "failed to send Slack message")
	}
	slog.Debug("Slack message sent", "channel", channel, "ts", ts, "kind", msg.Kind)
	return MessageRef{Channel: channel, ID: ts}, nil
}

func (s *SlackAdapter) UpdateMessage(ctx context.Context, ref MessageRef, msg Message) error {
	_, _, _, err := s.client.UpdateMessageContext(ctx, ref.Channel, ref.ID, renderSlackContent(msg))
	if err != nil {
		return errors.Wrap(err, "failed to update Slack message")
	}
	return nil
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	if s.server == nil {
		return errors.Transient("Slack server not started")
	}

	if s.client == nil {
		return errors.Transient("Slack client not initialized")
	}

	_, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return errors.Transient("Slack connection failed")
	}

	return nil
}

func renderSlackContent(msg Message) slack.MsgOption {
	switch msg.Kind {
	case KindApprovalRequest:
		return slack.MsgOptionBlocks(approvalRequestBlocks(msg)...)
	case KindApprovalResult:
		return slack.MsgOptionBlocks(approvalResultBlocks(msg)...)
	case KindNotice:
		return slack.MsgOptionText(":warning: "+msg.Text, false)
	default:
		return slack.MsgOptionText(msg.Text, false)
	}
}

func approvalRequestBlocks(msg Message) []slack.Block {
	header := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf(":lock: The agent wants to run *%s*", msg.ToolName), false, false)
	input := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("```%s```", msg.ToolInput), false, false)

	approve := slack.NewButtonBlockElement(slackActionApprove, msg.TicketID,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false))
	approve.Style = slack.StylePrimary
	deny := slack.NewButtonBlockElement(slackActionDeny, msg.TicketID,
		slack.NewTextBlockObject(slack.PlainTextType, "Deny", false, false))
	deny.Style = slack.StyleDanger

	return []slack.Block{
		slack.NewSectionBlock(header, nil, nil),
		slack.NewSectionBlock(input, nil, nil),
		slack.NewActionBlock("approval-"+msg.TicketID, approve, deny),
	}
}

func approvalResultBlocks(msg Message) []slack.Block {
	icon := ":no_entry:"
	if msg.Approved {
		icon = ":white_check_mark:"
	}
	header := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("%s *%s* — %s", icon, msg.ToolName, msg.Outcome()), false, false)
	input := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("```%s```", msg.ToolInput), false, false)

	return []slack.Block{
		slack.NewSectionBlock(header, nil, nil),
		slack.NewSectionBlock(input, nil, nil),
	}
}

func (s *SlackAdapter) verifiedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}

	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	if _, err := sv.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	if err := sv.Ensure(); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (s *SlackAdapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.verifiedBody(w, r)
	if !ok {
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if eventsAPIEvent.Type == slackevents.URLVerification {
		var cr *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(cr.Challenge))
		return
	}

	if eventsAPIEvent.Type == slackevents.CallbackEvent {
		innerEvent := eventsAPIEvent.InnerEvent
		switch ev := innerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Ignore bot messages
			if ev.BotID != "" {
				return
			}

			metadata := map[string]string{
				"user_id":   ev.User,
				"ts":        ev.TimeStamp,
				"thread_ts": ev.ThreadTimeStamp,
			}

			if s.eventHandler != nil {
				if err := s.eventHandler(r.Context(), "slack", EventUserMessage, ev.Channel, ev.Text, metadata); err != nil {
					slog.Error("Failed to handle Slack event", "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *SlackAdapter) handleInteractions(w http.ResponseWriter, r *http.Request) {
	body, ok := s.verifiedBody(w, r)
	if !ok {
		return
	}

	// Block-action payloads arrive form-encoded; the body has already been
	// consumed by the verifier, so decode it directly.
	form, err := url.ParseQuery(string(body))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	payload := form.Get("payload")

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := callback.ActionCallback.BlockActions[0]
	approved := action.ActionID == slackActionApprove

	metadata := map[string]string{
		"user_id":   callback.User.ID,
		"ticket_id": action.Value,
		"approved":  strconv.FormatBool(approved),
		"ts":        callback.Message.Timestamp,
	}

	if s.eventHandler != nil {
		if err := s.eventHandler(r.Context(), "slack", EventActionClicked, callback.Channel.ID, action.Value, metadata); err != nil {
			slog.Error("Failed to handle Slack interaction", "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}
