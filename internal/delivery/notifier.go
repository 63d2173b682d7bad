package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/abhisek/stepwise/internal/store"
)

// ErrNoRecipient is returned by a Notifier that cannot address the user.
var ErrNoRecipient = errors.New("no recipient for parent summary")

// Notifier sends a parent summary to the learner's parent.
type Notifier interface {
	Notify(ctx context.Context, u *store.User, s store.ParentSummary) error
}

// LogNotifier writes summaries to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, u *store.User, s store.ParentSummary) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("parent summary",
		"summary_id", s.ID,
		"user_id", u.ID,
		"session_id", s.SessionID,
		"content", s.Content,
	)
	return nil
}

// TelegramNotifier sends summaries as Telegram messages. A user's
// ParentContact holds the parent's chat id.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

// NewTelegramNotifier logs in with token.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, tgbotapi.APIEndpoint)
}

// NewTelegramNotifierWithEndpoint is NewTelegramNotifier against a custom
// Bot API endpoint of the form "https://host/bot%s/%s".
func NewTelegramNotifierWithEndpoint(token, endpoint string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &TelegramNotifier{api: api}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, u *store.User, s store.ParentSummary) error {
	chatID, ok := ChatID(u.ParentContact)
	if !ok {
		return ErrNoRecipient
	}
	msg := tgbotapi.NewMessage(chatID, messageText(u, s))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// ChatID parses a Telegram chat id from a contact string.
func ChatID(contact string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(contact), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func messageText(u *store.User, s store.ParentSummary) string {
	return fmt.Sprintf("Stepwise update for %s (%s)\n\n%s",
		u.Name, s.CreatedAt.Format("2 Jan 2006"), s.Content)
}
