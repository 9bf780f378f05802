package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mirai-api/gateway/internal/config"
	"github.com/mirai-api/gateway/internal/logging"
)

// Sender delivers one rendered message to a chat
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramSender delivers messages through the Telegram bot API with a
// bounded-timeout HTTP client. A missing bot token leaves the sender in
// disabled mode: sends are logged and dropped.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
	log *logging.Logger
}

// NewTelegramSender creates a Telegram sender from config
func NewTelegramSender(cfg config.TelegramConfig, log *logging.Logger) (*TelegramSender, error) {
	if cfg.BotToken == "" {
		log.Warn("Telegram bot token not configured, notifications disabled")
		return &TelegramSender{log: log}, nil
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	return &TelegramSender{bot: bot, log: log}, nil
}

// Send delivers one message. The HTTP client timeout bounds the call; a
// cancelled context short-circuits before the network is touched.
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	if s.bot == nil {
		s.log.WithField("chat_id", chatID).Debug("Telegram disabled, dropping notification")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}

	return nil
}
