package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// Accounts live in one hash per id: credits, uses, created_at, updated_at (unix ms).
// Every mutation is a single script so check-and-decrement is atomic on the server.

const luaEnsure = `
redis.call("HSETNX", KEYS[1], "credits", 0)
redis.call("HSETNX", KEYS[1], "uses", 0)
redis.call("HSETNX", KEYS[1], "created_at", ARGV[1])
redis.call("HSETNX", KEYS[1], "updated_at", ARGV[1])
`

var luaGetOrCreate = redis.NewScript(luaEnsure + `
return redis.call("HMGET", KEYS[1], "credits", "uses", "created_at", "updated_at")`)

var luaTryDebit = redis.NewScript(luaEnsure + `
local credits = tonumber(redis.call("HGET", KEYS[1], "credits"))
local amount = tonumber(ARGV[2])
if credits < amount then
	return 0
end
redis.call("HINCRBY", KEYS[1], "credits", -amount)
redis.call("HINCRBY", KEYS[1], "uses", 1)
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return 1`)

var luaCredit = redis.NewScript(luaEnsure + `
local bal = redis.call("HINCRBY", KEYS[1], "credits", tonumber(ARGV[2]))
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return bal`)

type LedgerRepo struct {
	c *Client
}

func NewLedgerRepo(c *Client) *LedgerRepo {
	return &LedgerRepo{c: c}
}

func (r *LedgerRepo) accountKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrInvalidArgument
	}
	return r.c.key("acct", id), nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (r *LedgerRepo) GetOrCreate(ctx context.Context, accountID string) (*model.Account, error) {
	key, err := r.accountKey(accountID)
	if err != nil {
		return nil, err
	}
	res, err := luaGetOrCreate.Run(ctx, r.c.cli, []string{key}, nowMillis()).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) != 4 {
		return nil, domain.ErrReadDatabaseRow
	}
	vals := make([]int64, 4)
	for i, v := range res {
		s, _ := v.(string)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		vals[i] = n
	}
	return &model.Account{
		ID:           strings.TrimSpace(accountID),
		Credits:      vals[0],
		LifetimeUses: vals[1],
		CreatedAt:    time.UnixMilli(vals[2]),
		UpdatedAt:    time.UnixMilli(vals[3]),
	}, nil
}

func (r *LedgerRepo) TryDebit(ctx context.Context, accountID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidAmount
	}
	key, err := r.accountKey(accountID)
	if err != nil {
		return false, err
	}
	n, err := luaTryDebit.Run(ctx, r.c.cli, []string{key}, nowMillis(), amount).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *LedgerRepo) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	key, err := r.accountKey(accountID)
	if err != nil {
		return 0, err
	}
	return luaCredit.Run(ctx, r.c.cli, []string{key}, nowMillis(), amount).Int64()
}
