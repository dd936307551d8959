package usecase

import (
	"context"
	"fmt"
	"time"

	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ExpiryUseCase = (*expiryUC)(nil)

const (
	ExpiredNotice         = "⌛ Your photo was not processed in time and the job has been cancelled."
	ExpiredRefundedNotice = "⌛ Your photo was not processed in time. The job was cancelled and your credit was refunded."
)

// ExpiryUseCase evicts jobs that never received a callback.
type ExpiryUseCase interface {
	ExpireStale(ctx context.Context) (int, error)
}

type ExpiryOptions struct {
	MaxPendingAge  time.Duration
	Batch          int
	RefundOnExpiry bool
	RefundAmount   int64
}

type expiryUC struct {
	jobs   repository.JobRepository
	ledger repository.LedgerRepository
	chat   adapter.ChatDelivery
	events adapter.EventPublisher
	opts   ExpiryOptions
	now    func() time.Time
	log    *zerolog.Logger
}

func NewExpiryUseCase(
	jobs repository.JobRepository,
	ledger repository.LedgerRepository,
	chat adapter.ChatDelivery,
	events adapter.EventPublisher,
	opts ExpiryOptions,
	logger *zerolog.Logger,
) *expiryUC {
	if opts.Batch <= 0 {
		opts.Batch = 200
	}
	if opts.RefundAmount <= 0 {
		opts.RefundAmount = 1
	}
	return &expiryUC{jobs: jobs, ledger: ledger, chat: chat, events: events, opts: opts, now: time.Now, log: logger}
}

// ExpireStale takes jobs older than MaxPendingAge out of the registry. A late
// callback for an expired job then resolves to OutcomeUnknownJob.
func (e *expiryUC) ExpireStale(ctx context.Context) (int, error) {
	defer logging.TraceDuration(e.log, "ExpiryUC.ExpireStale")()

	cutoff := e.now().Add(-e.opts.MaxPendingAge)
	stale, err := e.jobs.TakeOlderThan(ctx, cutoff, e.opts.Batch)
	if err != nil {
		return 0, fmt.Errorf("take stale jobs: %w", err)
	}

	for _, job := range stale {
		l := e.log.With().Str("job_id", logging.Redact(job.ID, false)).Int64("chat_id", job.OriginChatID).Logger()
		notice := ExpiredNotice
		if e.opts.RefundOnExpiry {
			if _, err := e.ledger.Credit(ctx, job.AccountID, e.opts.RefundAmount); err != nil {
				l.Error().Err(err).Msg("expiry refund failed")
			} else {
				metrics.AddCredits("refund", e.opts.RefundAmount)
				notice = ExpiredRefundedNotice
			}
		}
		if err := e.chat.SendMessage(ctx, job.OriginChatID, notice); err != nil {
			l.Warn().Err(err).Msg("expiry notice failed")
		}
		publish(ctx, e.events, e.log, adapter.JobEvent{
			Type: adapter.JobEventExpired, JobID: job.ID, AccountID: job.AccountID, ChatID: job.OriginChatID,
		})
		l.Info().Dur("age", job.Age(e.now())).Msg("pending job expired")
	}
	metrics.AddExpired(len(stale))

	if n, err := e.jobs.CountPending(ctx); err == nil {
		metrics.SetPending(n)
	}
	return len(stale), nil
}
