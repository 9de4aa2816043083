// Package bot is the Telegram front end: it receives chat updates, hands
// document-analysis work to the run queue and streams progress messages
// back to the user.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// mainKeyboard is the persistent reply keyboard shown with greetings and
// fallback replies.
var mainKeyboard = tgbotapi.ReplyKeyboardMarkup{
	Keyboard: [][]tgbotapi.KeyboardButton{
		{tgbotapi.NewKeyboardButton(buttonUpload)},
	},
	ResizeKeyboard:  true,
	OneTimeKeyboard: false,
}

// NewAPI authenticates against the Bot API with the given token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return api, nil
}

// Poller long-polls Telegram for updates and feeds them to the handler.
type Poller struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	logger  *slog.Logger
}

func NewPoller(api *tgbotapi.BotAPI, handler *Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{api: api, handler: handler, logger: logger}
}

// Run blocks until ctx is cancelled. Update handling itself is synchronous;
// long pipeline work is already deferred to the run queue by the handler.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := p.api.GetUpdatesChan(cfg)
	p.logger.Info("bot.polling.started", "bot_username", p.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.logger.Info("bot.polling.stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				p.logger.Info("bot.polling.channel_closed")
				return nil
			}
			p.handler.HandleUpdate(update)
		}
	}
}
