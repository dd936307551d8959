package repository

import (
	"context"
	"time"

	"photobridge/internal/domain/model"
)

// JobRepository exclusively owns pending jobs between submission and callback.
//
// Consume is the single-evaluation primitive: for any id, exactly one caller
// across Consume and TakeOlderThan observes the job, all others get
// domain.ErrNotFound. Never-registered and already-consumed ids are
// indistinguishable.
type JobRepository interface {
	Register(ctx context.Context, job *model.Job) (string, error)
	Consume(ctx context.Context, jobID string) (*model.Job, error)
	// Release drops a job without delivering it. Missing ids are not an error.
	Release(ctx context.Context, jobID string) error
	// TakeOlderThan consumes up to limit jobs submitted before cutoff.
	TakeOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error)
	CountPending(ctx context.Context) (int, error)
}
