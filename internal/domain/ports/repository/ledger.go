package repository

import (
	"context"

	"photobridge/internal/domain/model"
)

// LedgerRepository holds per-account credit balances. Every mutating call is
// atomic per account; implementations never let Credits go below zero.
type LedgerRepository interface {
	// GetOrCreate returns the account, inserting a zero-balance one on first reference.
	GetOrCreate(ctx context.Context, accountID string) (*model.Account, error)
	// TryDebit subtracts amount and bumps LifetimeUses when the balance allows it.
	// It returns false without mutating anything when it does not.
	TryDebit(ctx context.Context, accountID string, amount int64) (bool, error)
	// Credit adds a positive amount and returns the new balance.
	Credit(ctx context.Context, accountID string, amount int64) (int64, error)
}
