package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"photobridge/internal/domain"
	"photobridge/internal/infra/logging"
	"photobridge/internal/usecase"

	"github.com/rs/zerolog"
)

// BotFacade composes usecases into high-level bot commands.
// Facade methods return strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	AccountUC AccountUseCaseIface
	SubmitUC  SubmitUseCaseIface
	tr        Translator
	log       *zerolog.Logger
}

func NewBotFacade(accountUC AccountUseCaseIface, submitUC SubmitUseCaseIface, tr Translator, logger *zerolog.Logger) *BotFacade {
	return &BotFacade{AccountUC: accountUC, SubmitUC: submitUC, tr: tr, log: logger}
}

// AccountID maps a Telegram user to its ledger account.
func AccountID(tgID int64) string {
	return strconv.FormatInt(tgID, 10)
}

// HandleStart ensures the account exists and returns the welcome text.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64) (string, error) {
	acc, err := b.AccountUC.Balance(ctx, AccountID(tgID))
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	return b.tr.T("welcome_message", tgID, acc.Credits), nil
}

func (b *BotFacade) HandleCredits(ctx context.Context, tgID int64) (string, error) {
	acc, err := b.AccountUC.Balance(ctx, AccountID(tgID))
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	return b.tr.T("credits_status", acc.Credits, acc.LifetimeUses), nil
}

func (b *BotFacade) HandleHelp() string {
	return b.tr.T("help_message", strings.TrimSpace(b.tr.Rules()))
}

func (b *BotFacade) HandleBuy(tgID int64) string {
	return b.tr.T("buy_instructions", tgID)
}

// HandleAddCredits parses "/addcredits <accountId> <amount>" arguments.
func (b *BotFacade) HandleAddCredits(ctx context.Context, actorTgID int64, args []string) string {
	if len(args) != 2 {
		return b.tr.T("usage_addcredits")
	}
	target := strings.TrimSpace(args[0])
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return b.tr.T("error_amount_positive")
	}

	bal, err := b.AccountUC.AddCredits(ctx, actorTgID, target, amount)
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return b.tr.T("error_unauthorized")
	case errors.Is(err, domain.ErrInvalidAmount):
		return b.tr.T("error_amount_positive")
	case err != nil:
		logging.With(ctx, b.log).Error().Err(err).Str("target", target).Msg("add credits failed")
		return b.tr.T("error_generic")
	}
	return b.tr.T("success_credits_added", amount, target, bal)
}

// HandlePhoto submits a downloaded photo for the user and returns the chat reply;
// queued reports whether a job is now waiting for its result.
func (b *BotFacade) HandlePhoto(ctx context.Context, tgID, chatID int64, image []byte, fileName string) (reply string, queued bool) {
	_, err := b.SubmitUC.Submit(ctx, usecase.SubmitRequest{
		AccountID:    AccountID(tgID),
		OriginChatID: chatID,
		Image:        image,
		FileName:     fileName,
	})
	var de *domain.DispatchError
	switch {
	case err == nil:
		return b.tr.T("queued_message"), true
	case errors.Is(err, domain.ErrInsufficientCredits):
		return b.tr.T("error_out_of_credits"), false
	case errors.Is(err, domain.ErrEmptyImage):
		return b.tr.T("error_download"), false
	case errors.As(err, &de):
		return b.tr.T("error_dispatch", de.Error()), false
	default:
		logging.With(ctx, b.log).Error().Err(err).Msg("photo submission failed")
		return b.tr.T("error_generic"), false
	}
}
