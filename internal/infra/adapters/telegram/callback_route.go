package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photobridge/internal/domain/ports/adapter"
)

type cbHandler func(ctx context.Context, chatID, tgID int64) error

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:menu":    r.menuCBRoute,
		"cmd:process": r.processCBRoute,
		"cmd:buy":     r.buyCBRoute,
		"cmd:credits": r.creditsCBRoute,
		"cmd:help":    r.helpCBRoute,
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the telegram spinner when we return.
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}

	if fn, ok := r.cbRoutes()[strings.TrimSpace(query.Data)]; ok {
		return fn(ctx, chatID, query.From.ID)
	}
	return errors.New("unknown callback data")
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, chatID, _ int64) error {
	return r.sendMainMenu(ctx, chatID, r.translator.T("menu_prompt"))
}

func (r *RealTelegramBotAdapter) processCBRoute(ctx context.Context, chatID, _ int64) error {
	return r.sendMainMenu(ctx, chatID, r.translator.T("send_photo_prompt"))
}

func (r *RealTelegramBotAdapter) buyCBRoute(ctx context.Context, chatID, tgID int64) error {
	return r.sendMainMenu(ctx, chatID, r.facade.HandleBuy(tgID))
}

func (r *RealTelegramBotAdapter) creditsCBRoute(ctx context.Context, chatID, tgID int64) error {
	text, err := r.facade.HandleCredits(ctx, tgID)
	if err != nil {
		text = r.translator.T("error_generic")
	}
	return r.sendMainMenu(ctx, chatID, text)
}

func (r *RealTelegramBotAdapter) helpCBRoute(ctx context.Context, chatID, _ int64) error {
	return r.sendMainMenu(ctx, chatID, r.facade.HandleHelp())
}

// sendMainMenu shows the main actions as inline buttons under intro.
func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]adapter.InlineButton{
		{{Text: r.translator.T("button_process"), Data: "cmd:process"}},
		{{Text: r.translator.T("button_buy"), Data: "cmd:buy"}, {Text: r.translator.T("button_credits"), Data: "cmd:credits"}},
		{{Text: r.translator.T("button_help"), Data: "cmd:help"}},
	}
	if strings.TrimSpace(intro) == "" {
		intro = r.translator.T("menu_prompt")
	}
	return r.SendButtons(ctx, chatID, intro, rows)
}
