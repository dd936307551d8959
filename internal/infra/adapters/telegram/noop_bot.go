package telegram

import (
	"context"

	"photobridge/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outbound messages instead of calling Telegram. Used with bot.mode=noop.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("[noop-telegram] message")
	return ctx.Err()
}

func (b *NoopBotAdapter) SendPhotoURL(ctx context.Context, chatID int64, url, caption string) error {
	b.log.Info().Int64("chat_id", chatID).Str("url", url).Str("caption", caption).Msg("[noop-telegram] photo url")
	return ctx.Err()
}

func (b *NoopBotAdapter) SendPhotoBytes(ctx context.Context, chatID int64, data []byte, caption string) error {
	b.log.Info().Int64("chat_id", chatID).Int("bytes", len(data)).Str("caption", caption).Msg("[noop-telegram] photo bytes")
	return ctx.Err()
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("[noop-telegram] buttons")
	return ctx.Err()
}

// StartPolling blocks until ctx ends; there is nothing to poll.
func (b *NoopBotAdapter) StartPolling(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
