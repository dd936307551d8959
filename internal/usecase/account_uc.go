package usecase

import (
	"context"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase exposes balance reads and manual top-ups.
type AccountUseCase interface {
	Balance(ctx context.Context, accountID string) (*model.Account, error)
	// AddCredits is the bot command path: the actor must be a configured admin.
	AddCredits(ctx context.Context, actorTgID int64, accountID string, amount int64) (int64, error)
	// Grant is the admin API path; authorization happened upstream.
	Grant(ctx context.Context, accountID string, amount int64) (int64, error)
	IsAdmin(tgID int64) bool
}

type accountUC struct {
	ledger repository.LedgerRepository
	admins map[int64]struct{}
	log    *zerolog.Logger
}

func NewAccountUseCase(ledger repository.LedgerRepository, adminIDs []int64, logger *zerolog.Logger) *accountUC {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &accountUC{ledger: ledger, admins: admins, log: logger}
}

func (a *accountUC) Balance(ctx context.Context, accountID string) (*model.Account, error) {
	defer logging.TraceDuration(a.log, "AccountUC.Balance")()
	return a.ledger.GetOrCreate(ctx, accountID)
}

func (a *accountUC) AddCredits(ctx context.Context, actorTgID int64, accountID string, amount int64) (int64, error) {
	defer logging.TraceDuration(a.log, "AccountUC.AddCredits")()
	if !a.IsAdmin(actorTgID) {
		return 0, domain.ErrForbidden
	}
	bal, err := a.Grant(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	a.log.Info().Int64("actor", actorTgID).Str("account_id", accountID).Int64("amount", amount).
		Int64("balance", bal).Msg("credits added")
	return bal, nil
}

func (a *accountUC) Grant(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	bal, err := a.ledger.Credit(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	metrics.AddCredits("topup", amount)
	return bal, nil
}

func (a *accountUC) IsAdmin(tgID int64) bool {
	_, ok := a.admins[tgID]
	return ok
}
