package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"help":    r.handleHelpCommand,
		"credits": r.handleCreditsCommand,
		"buy":     r.handleBuyCommand,

		"addcredits": r.adminOnly(r.handleAddCreditsCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			r.log.Warn().Int64("tg_id", message.From.ID).Str("command", message.Command()).Msg("unauthorized admin command")
			return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_unauthorized"))
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStart(ctx, message.From.ID)
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", message.From.ID).Msg("start failed")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	if err := r.SetMenuCommands(ctx, message.Chat.ID, r.isAdmin(message.From.ID)); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to set dynamic menu commands")
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMainMenu(ctx, message.Chat.ID, r.facade.HandleHelp())
}

func (r *RealTelegramBotAdapter) handleCreditsCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleCredits(ctx, message.From.ID)
	if err != nil {
		text = r.translator.T("error_generic")
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleBuyCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMainMenu(ctx, message.Chat.ID, r.facade.HandleBuy(message.From.ID))
}

// handleAddCreditsCommand handles "/addcredits <userId> <amount>".
func (r *RealTelegramBotAdapter) handleAddCreditsCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	return r.SendMessage(ctx, message.Chat.ID, r.facade.HandleAddCredits(ctx, message.From.ID, args))
}

// SetMenuCommands installs the chat-scoped command list; admins also see /addcredits.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	cmds := []tgbotapi.BotCommand{
		{Command: "start", Description: "Show the main menu"},
		{Command: "credits", Description: "Show your credit balance"},
		{Command: "buy", Description: "How to buy credits"},
		{Command: "help", Description: "How it works and rules"},
	}
	if isAdmin {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "addcredits", Description: "Add credits to a user"})
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...))
	return err
}
