package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// ChatDelivery is the outbound half of the chat front end used by the job pipeline.
type ChatDelivery interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhotoURL(ctx context.Context, chatID int64, url, caption string) error
	SendPhotoBytes(ctx context.Context, chatID int64, data []byte, caption string) error
}

// TelegramBotAdapter adds the interactive bits only the bot front end needs.
type TelegramBotAdapter interface {
	ChatDelivery
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
}
