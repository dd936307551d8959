package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

type ledgerShard struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

// LedgerRepo is the process-lifetime credit ledger.
type LedgerRepo struct {
	shards [shardCount]ledgerShard
}

func NewLedgerRepo() *LedgerRepo {
	r := &LedgerRepo{}
	for i := range r.shards {
		r.shards[i].accounts = make(map[string]*model.Account)
	}
	return r
}

// lockedAccount returns the shard (locked) and the account, creating it on demand.
// The caller must unlock the shard.
func (r *LedgerRepo) lockedAccount(accountID string) (*ledgerShard, *model.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	s := &r.shards[shardFor(accountID)]
	s.mu.Lock()
	acc, ok := s.accounts[accountID]
	if !ok {
		var err error
		acc, err = model.NewAccount(accountID)
		if err != nil {
			s.mu.Unlock()
			return nil, nil, err
		}
		s.accounts[accountID] = acc
	}
	return s, acc, nil
}

func (r *LedgerRepo) GetOrCreate(_ context.Context, accountID string) (*model.Account, error) {
	s, acc, err := r.lockedAccount(accountID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	cp := *acc
	return &cp, nil
}

func (r *LedgerRepo) TryDebit(_ context.Context, accountID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidAmount
	}
	s, acc, err := r.lockedAccount(accountID)
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	if !acc.CanAfford(amount) {
		return false, nil
	}
	acc.Credits -= amount
	acc.LifetimeUses++
	acc.UpdatedAt = time.Now()
	return true, nil
}

func (r *LedgerRepo) Credit(_ context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	s, acc, err := r.lockedAccount(accountID)
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	acc.Credits += amount
	acc.UpdatedAt = time.Now()
	return acc.Credits, nil
}
