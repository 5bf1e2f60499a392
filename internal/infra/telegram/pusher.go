package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nakuljn/ember-dating/internal/infra/httpclient"
)

const maxTextRunes = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Pusher sends short nudges to users who are not connected to chat.
type Pusher struct {
	api sender
}

func NewPusher(token string) (*Pusher, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPIWithClient(strings.TrimSpace(token), tgbotapi.APIEndpoint, httpclient.New(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Pusher{api: api}, nil
}

func (p *Pusher) SendText(ctx context.Context, chatID int64, text string) error {
	if p == nil || p.api == nil {
		return fmt.Errorf("telegram pusher is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxTextRunes {
		text = string([]rune(text)[:maxTextRunes])
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
