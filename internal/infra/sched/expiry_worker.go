package sched

import (
	"context"
	"errors"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/usecase"

	"github.com/rs/zerolog"
)

// Locker keeps replicas sharing a store from sweeping at the same time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

const sweepLockKey = "job-expiry-sweep"

// JobExpiryWorker periodically evicts jobs that never got a callback.
type JobExpiryWorker struct {
	interval time.Duration
	expiry   usecase.ExpiryUseCase
	locker   Locker // optional
	log      *zerolog.Logger
}

func NewJobExpiryWorker(interval time.Duration, expiry usecase.ExpiryUseCase, locker Locker, logger *zerolog.Logger) *JobExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	exprLog := logger.With().Str("component", "JobExpiryWorker").Logger()
	return &JobExpiryWorker{
		interval: interval,
		expiry:   expiry,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *JobExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting job expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping job expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *JobExpiryWorker) sweep(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			w.log.Debug().Msg("sweep running elsewhere, skipping")
			return
		}
		if err != nil {
			w.log.Warn().Err(err).Msg("sweep lock failed, skipping")
			return
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	n, err := w.expiry.ExpireStale(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("job expiry sweep error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale jobs expired")
	}
}
