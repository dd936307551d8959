package model

import (
	"strings"
	"time"

	"photobridge/internal/domain"
)

// Account is the credit-holding party behind a chat user. It is created lazily
// on first reference and never destroyed.
type Account struct {
	ID           string
	Credits      int64
	LifetimeUses int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewAccount(id string) (*Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Account{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

// CanAfford reports whether a debit of amount keeps the balance non-negative.
func (a *Account) CanAfford(amount int64) bool {
	return amount > 0 && a.Credits >= amount
}
