// Package telegram connects the chat commands to Telegram via long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/andyleap/donna/internal/models"
)

// Handler produces the reply to one incoming message.
type Handler interface {
	Handle(ctx context.Context, profile models.Profile, text string) string
}

type Bot struct {
	api     *tgbotapi.BotAPI
	handler Handler
	timeout int
}

// New authenticates against the Bot API. An empty endpoint uses Telegram's.
func New(token, endpoint string, client *http.Client, handler Handler) (*Bot, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)
	return &Bot{api: api, handler: handler, timeout: 60}, nil
}

// Run polls for updates until ctx is cancelled. Messages are handled
// concurrently; per-user ordering is enforced further down.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return
	}

	profile := models.Profile{ID: msg.Chat.ID}
	if msg.From != nil {
		profile.Username = msg.From.UserName
		profile.FirstName = msg.From.FirstName
		profile.LastName = msg.From.LastName
	}

	reply := b.handler.Handle(ctx, profile, msg.Text)
	if reply == "" {
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.DisableWebPagePreview = true
	if _, err := b.api.Send(out); err != nil {
		slog.Error("Failed to send telegram reply", "user_id", msg.Chat.ID, "error", err)
	}
}
