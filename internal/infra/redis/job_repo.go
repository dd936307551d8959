package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// Each job is a JSON string at <prefix>:job:<id>; <prefix>:jobs:pending is a
// sorted set of ids scored by submission time (unix ms) for the expiry sweep.

var luaRegister = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1`)

// luaTake is get-and-delete plus index removal; only one caller ever sees the value.
var luaTake = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
	redis.call("ZREM", KEYS[2], ARGV[1])
	return false
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return v`)

type JobRepo struct {
	c *Client
}

func NewJobRepo(c *Client) *JobRepo {
	return &JobRepo{c: c}
}

func (r *JobRepo) jobKey(id string) string { return r.c.key("job", id) }
func (r *JobRepo) indexKey() string        { return r.c.key("jobs", "pending") }

func (r *JobRepo) Register(ctx context.Context, job *model.Job) (string, error) {
	if job == nil || job.ID == "" {
		return "", domain.ErrInvalidArgument
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	ok, err := luaRegister.Run(ctx, r.c.cli,
		[]string{r.jobKey(job.ID), r.indexKey()},
		data, job.SubmittedAt.UnixMilli(), job.ID,
	).Int64()
	if err != nil {
		return "", err
	}
	if ok == 0 {
		return "", domain.ErrAlreadyExists
	}
	return job.ID, nil
}

func (r *JobRepo) take(ctx context.Context, jobID string) (*model.Job, error) {
	raw, err := luaTake.Run(ctx, r.c.cli, []string{r.jobKey(jobID), r.indexKey()}, jobID).Text()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &job, nil
}

func (r *JobRepo) Consume(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, domain.ErrNotFound
	}
	return r.take(ctx, jobID)
}

func (r *JobRepo) Release(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	_, err := r.take(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// TakeOlderThan reads candidate ids from the index and takes each one with the
// same script as Consume, so a callback racing the sweep is resolved exactly once.
func (r *JobRepo) TakeOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := r.c.cli.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.take(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (r *JobRepo) CountPending(ctx context.Context) (int, error) {
	n, err := r.c.cli.ZCard(ctx, r.indexKey()).Result()
	return int(n), err
}
