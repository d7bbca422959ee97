// Package notify sends operator notifications, such as a finished bulk send or
// a failed scheduled roundup.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/talentmail/internal/config"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to one chat.
type Telegram struct {
	bot    sender
	chatID int64
	prefix string
}

// NewTelegram connects to the Bot API. endpoint may be empty for the public API.
func NewTelegram(cfg config.TelegramConfig, endpoint string, client *http.Client) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID, prefix: "talentmail: "}, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, t.prefix+text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// New returns a Telegram notifier when a token and chat are configured and
// Nop otherwise. A bot that cannot be reached is logged and replaced by Nop.
func New(cfg config.TelegramConfig, client *http.Client, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return Nop{}
	}
	t, err := NewTelegram(cfg, "", client)
	if err != nil {
		logger.Warn("telegram notifications disabled", slog.Any("err", err))
		return Nop{}
	}
	return t
}
