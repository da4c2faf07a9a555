package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramAdapter struct {
	token         string
	updateTimeout int
	eventHandler  EventHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramAdapter(token string, eventHandler EventHandler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		eventHandler:  eventHandler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram Adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		t.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	msg := update.Message
	channelID := fmt.Sprintf("%d", msg.Chat.ID)

	metadata := map[string]string{
		"user_id":   fmt.Sprintf("%d", msg.From.ID),
		"user_name": msg.From.UserName,
		"msg_id":    fmt.Sprintf("%d", msg.MessageID),
	}

	if t.eventHandler != nil {
		if err := t.eventHandler(ctx, "telegram", EventUserMessage, channelID, msg.Text, metadata); err != nil {
			slog.Error("Failed to handle Telegram event", "error", err)
		}
	}
}

// handleCallback routes an inline-keyboard click. Callback data has the
// shape "approve:<ticket>" or "deny:<ticket>".
func (t *TelegramAdapter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	verdict, ticketID, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	approved := verdict == slackActionApprove

	// Stop the client spinner even when the handler fails.
	if _, err := t.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("Failed to ack Telegram callback", "error", err)
	}

	channelID := ""
	ts := ""
	if cb.Message != nil {
		channelID = fmt.Sprintf("%d", cb.Message.Chat.ID)
		ts = fmt.Sprintf("%d", cb.Message.MessageID)
	}

	metadata := map[string]string{
		"user_id":   fmt.Sprintf("%d", cb.From.ID),
		"ticket_id": ticketID,
		"approved":  strconv.FormatBool(approved),
		"ts":        ts,
	}

	if t.eventHandler != nil {
		if err := t.eventHandler(ctx, "telegram", EventActionClicked, channelID, ticketID, metadata); err != nil {
			slog.Error("Failed to handle Telegram callback", "error", err)
		}
	}
}

func (t *TelegramAdapter) PostMessage(ctx context.Context, channelID, threadID string, msg Message) (MessageRef, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return MessageRef{}, errors.InvalidInput("invalid telegram chat ID: " + err.Error())
	}

	out := tgbotapi.NewMessage(chatID, renderTelegramText(msg))
	if threadID != "" {
		if replyTo, err := strconv.Atoi(threadID); err == nil {
			out.ReplyToMessageID = replyTo
		}
	}
	if msg.Kind == KindApprovalRequest {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Approve", slackActionApprove+":"+msg.TicketID),
				tgbotapi.NewInlineKeyboardButtonData("Deny", slackActionDeny+":"+msg.TicketID),
			),
		)
	}

	sent, err := t.bot.Send(out)
	if err != nil {
		return MessageRef{}, errors.Wrap(err, "failed to send telegram message")
	}

	slog.Debug("Telegram message sent", "chat_id", channelID, "kind", msg.Kind)
	return MessageRef{Channel: channelID, ID: fmt.Sprintf("%d", sent.MessageID)}, nil
}

func (t *TelegramAdapter) UpdateMessage(ctx context.Context, ref MessageRef, msg Message) error {
	chatID, err := strconv.ParseInt(ref.Channel, 10, 64)
	if err != nil {
		return errors.InvalidInput("invalid telegram chat ID: " + err.Error())
	}
	messageID, err := strconv.Atoi(ref.ID)
	if err != nil {
		return errors.InvalidInput("invalid telegram message ID: " + err.Error())
	}

	// Editing replaces the inline keyboard, which retires the buttons.
	edit := tgbotapi.NewEditMessageText(chatID, messageID, renderTelegramText(msg))
	if _, err := t.bot.Send(edit); err != nil {
		return errors.Wrap(err, "failed to update telegram message")
	}
	return nil
}

func renderTelegramText(msg Message) string {
	switch msg.Kind {
	case KindApprovalRequest:
		return fmt.Sprintf("The agent wants to run %s:\n\n%s", msg.ToolName, msg.ToolInput)
	case KindApprovalResult:
		return fmt.Sprintf("%s — %s\n\n%s", msg.ToolName, msg.Outcome(), msg.ToolInput)
	default:
		return msg.Text
	}
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.Transient("Telegram bot not initialized")
	}

	_, err := t.bot.GetMe()
	if err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}
