package social

import (
	"context"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dpterminal/pkg/errors"
)

// TelegramMaxLength is the Bot API message limit
const TelegramMaxLength = 4096

// Telegram posts to a channel the bot administers
type Telegram struct {
	api       *tgbotapi.BotAPI
	channelID int64
}

// NewTelegram authorizes the bot against endpoint (tgbotapi.APIEndpoint in production)
func NewTelegram(token string, channelID int64, endpoint string, timeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Telegram{api: api, channelID: channelID}, nil
}

func (t *Telegram) Name() string   { return "telegram" }
func (t *Telegram) MaxLength() int { return TelegramMaxLength }

// Publish sends text to the channel. The Bot API client has no context
// support, so cancellation is bounded by the HTTP client timeout.
func (t *Telegram) Publish(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(t.channelID, text)
	msg.DisableWebPagePreview = true

	sent, err := t.api.Send(msg)
	if err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
			return "", errors.Wrapf(errors.ErrRateLimitExceeded, "telegram retry after %ds", tgErr.RetryAfter)
		}
		return "", errors.Wrapf(errors.ErrExternal, "telegram send: %v", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
