package postgres

import (
	"context"
	"strings"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct {
	db querier
}

func NewLedgerRepo(db querier) *ledgerRepo {
	return &ledgerRepo{db: db}
}

// GetOrCreate upserts with a no-op update so RETURNING yields the row either way.
func (r *ledgerRepo) GetOrCreate(ctx context.Context, accountID string) (*model.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO accounts (id) VALUES ($1)
ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
RETURNING id, credits, lifetime_uses, created_at, updated_at;`

	var a model.Account
	if err := r.db.QueryRow(ctx, q, accountID).Scan(&a.ID, &a.Credits, &a.LifetimeUses, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ledgerRepo) ensure(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING;`, accountID)
	return err
}

// TryDebit relies on the row lock taken by the conditional UPDATE; two debits
// of the last credit serialize and the second matches zero rows.
func (r *ledgerRepo) TryDebit(ctx context.Context, accountID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidAmount
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return false, domain.ErrInvalidArgument
	}
	if err := r.ensure(ctx, accountID); err != nil {
		return false, err
	}
	const q = `
UPDATE accounts
SET credits = credits - $2, lifetime_uses = lifetime_uses + 1, updated_at = now()
WHERE id = $1 AND credits >= $2;`

	tag, err := r.db.Exec(ctx, q, accountID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ledgerRepo) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO accounts (id, credits) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET credits = accounts.credits + EXCLUDED.credits, updated_at = now()
RETURNING credits;`

	var bal int64
	if err := r.db.QueryRow(ctx, q, accountID, amount).Scan(&bal); err != nil {
		return 0, err
	}
	return bal, nil
}
