package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SubmitUseCase = (*submitUC)(nil)

// SubmitRequest is one photo to process on behalf of an account.
type SubmitRequest struct {
	AccountID    string
	OriginChatID int64
	Image        []byte
	FileName     string
}

// SubmitUseCase charges the account and hands the photo to the external processor.
type SubmitUseCase interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// SubmitOptions configures where the processor calls back and what a job costs.
type SubmitOptions struct {
	CallbackURL  string
	EmbedIDInURL bool   // also pass the job id as a query param on the callback url
	IDParam      string // query key for the embedded id; default "id_gen"
	DebitAmount  int64
}

type submitUC struct {
	ledger    repository.LedgerRepository
	jobs      repository.JobRepository
	processor adapter.ImageProcessor
	events    adapter.EventPublisher
	opts      SubmitOptions
	now       func() time.Time
	log       *zerolog.Logger
}

func NewSubmitUseCase(
	ledger repository.LedgerRepository,
	jobs repository.JobRepository,
	processor adapter.ImageProcessor,
	events adapter.EventPublisher,
	opts SubmitOptions,
	logger *zerolog.Logger,
) *submitUC {
	if opts.DebitAmount <= 0 {
		opts.DebitAmount = 1
	}
	if opts.IDParam == "" {
		opts.IDParam = "id_gen"
	}
	return &submitUC{
		ledger:    ledger,
		jobs:      jobs,
		processor: processor,
		events:    events,
		opts:      opts,
		now:       time.Now,
		log:       logger,
	}
}

// Submit debits before dispatch so two concurrent submissions cannot both spend
// the last credit; a synchronous dispatch failure is compensated by releasing
// the job and crediting the unit back.
func (s *submitUC) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	defer logging.TraceDuration(s.log, "SubmitUC.Submit")()

	if len(req.Image) == 0 {
		return "", domain.ErrEmptyImage
	}

	ctx = logging.WithAccountID(ctx, req.AccountID)
	ok, err := s.ledger.TryDebit(ctx, req.AccountID, s.opts.DebitAmount)
	if err != nil {
		metrics.IncSubmission("error")
		return "", fmt.Errorf("debit: %w", err)
	}
	if !ok {
		metrics.IncSubmission("insufficient_credit")
		return "", domain.ErrInsufficientCredits
	}
	metrics.AddCredits("debit", s.opts.DebitAmount)

	job, err := model.NewJob(req.OriginChatID, req.AccountID, s.now())
	if err != nil {
		s.refund(context.WithoutCancel(ctx), req.AccountID, "")
		metrics.IncSubmission("error")
		return "", err
	}
	if _, err := s.jobs.Register(ctx, job); err != nil {
		s.refund(context.WithoutCancel(ctx), req.AccountID, job.ID)
		metrics.IncSubmission("error")
		return "", fmt.Errorf("register job: %w", err)
	}

	l := logging.With(logging.WithJobID(ctx, logging.Redact(job.ID, false)), s.log)
	fileName := req.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = "photo.jpg"
	}

	err = s.processor.Dispatch(ctx, adapter.DispatchRequest{
		JobID:       job.ID,
		Image:       req.Image,
		FileName:    fileName,
		CallbackURL: s.callbackURL(job.ID),
	})
	if err != nil {
		// Compensation: the processor never accepted the job. It must still run
		// when the dispatch failed because ctx was cancelled.
		cctx := context.WithoutCancel(ctx)
		if relErr := s.jobs.Release(cctx, job.ID); relErr != nil {
			l.Error().Err(relErr).Msg("release after dispatch failure")
		}
		s.refund(cctx, req.AccountID, job.ID)
		metrics.IncSubmission("dispatch_failed")
		publish(ctx, s.events, s.log, adapter.JobEvent{
			Type: adapter.JobEventReleased, JobID: job.ID, AccountID: job.AccountID, ChatID: job.OriginChatID,
		})

		var de *domain.DispatchError
		if !errors.As(err, &de) {
			de = &domain.DispatchError{Detail: err.Error(), Err: err}
		}
		l.Warn().Err(de).Int("status", de.Status).Msg("dispatch rejected; credit restored")
		return "", de
	}

	metrics.IncSubmission("accepted")
	publish(ctx, s.events, s.log, adapter.JobEvent{
		Type: adapter.JobEventSubmitted, JobID: job.ID, AccountID: job.AccountID, ChatID: job.OriginChatID,
	})
	l.Info().Int64("chat_id", job.OriginChatID).Msg("job accepted by processor")
	return job.ID, nil
}

func (s *submitUC) refund(ctx context.Context, accountID, jobID string) {
	if _, err := s.ledger.Credit(ctx, accountID, s.opts.DebitAmount); err != nil {
		// The unit stays lost until an admin tops the account up.
		s.log.Error().Err(err).Str("account_id", accountID).Str("job_id", logging.Redact(jobID, false)).
			Msg("credit compensation failed")
		return
	}
	metrics.AddCredits("refund", s.opts.DebitAmount)
}

func (s *submitUC) callbackURL(jobID string) string {
	if !s.opts.EmbedIDInURL {
		return s.opts.CallbackURL
	}
	u, err := url.Parse(s.opts.CallbackURL)
	if err != nil {
		return s.opts.CallbackURL
	}
	q := u.Query()
	q.Set(s.opts.IDParam, jobID)
	u.RawQuery = q.Encode()
	return u.String()
}
