package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CallbackUseCase = (*callbackUC)(nil)

// Outcome is how a callback was resolved. Every outcome is acknowledged to the
// processor as success.
type Outcome string

const (
	OutcomeDelivered           Outcome = "delivered"
	OutcomeDeliveredUnresolved Outcome = "delivered_unresolved"
	OutcomeDeliveryFailed      Outcome = "delivery_failed"
	OutcomeUnknownJob          Outcome = "unknown_job"
)

// deliveryTimeout bounds the chat send once a job has been consumed.
const deliveryTimeout = 30 * time.Second

const (
	ResultCaption    = "✅ Processing complete"
	UnresolvedNotice = "Got the result callback, but it carried no result URL or base64 image. Please contact support."
)

// CallbackUseCase reconciles processor webhooks with pending jobs.
type CallbackUseCase interface {
	Handle(ctx context.Context, p Payload) (Outcome, error)
}

type callbackUC struct {
	jobs   repository.JobRepository
	chat   adapter.ChatDelivery
	events adapter.EventPublisher
	fields CallbackFields
	log    *zerolog.Logger
}

func NewCallbackUseCase(
	jobs repository.JobRepository,
	chat adapter.ChatDelivery,
	events adapter.EventPublisher,
	fields CallbackFields,
	logger *zerolog.Logger,
) *callbackUC {
	return &callbackUC{jobs: jobs, chat: chat, events: events, fields: fields, log: logger}
}

// Handle consumes the job before delivering, so a duplicate callback racing
// this one resolves to OutcomeUnknownJob. The job is never re-registered, even
// when the chat send fails.
func (c *callbackUC) Handle(ctx context.Context, p Payload) (Outcome, error) {
	defer logging.TraceDuration(c.log, "CallbackUC.Handle")()

	jobID, ok := ExtractFirst(p, c.fields.JobID)
	if !ok {
		metrics.IncCallback("malformed")
		return "", domain.ErrMalformedCallback
	}
	ctx = logging.WithJobID(ctx, logging.Redact(jobID, false))
	l := logging.With(ctx, c.log)

	job, err := c.jobs.Consume(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncCallback(string(OutcomeUnknownJob))
		l.Info().Msg("callback for unknown job ignored")
		publish(ctx, c.events, c.log, adapter.JobEvent{
			Type: adapter.JobEventUnknown, JobID: jobID, Outcome: string(OutcomeUnknownJob),
		})
		return OutcomeUnknownJob, nil
	}
	if err != nil {
		metrics.IncCallback("error")
		return "", fmt.Errorf("consume job: %w", err)
	}

	// The job is gone from the registry now; the request deadline must not
	// cost the user their result.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	res := ExtractResult(p, c.fields)
	outcome := OutcomeDelivered
	switch res.Kind {
	case ResultURL:
		err = c.chat.SendPhotoURL(ctx, job.OriginChatID, res.URL, ResultCaption)
	case ResultBytes:
		err = c.chat.SendPhotoBytes(ctx, job.OriginChatID, res.Bytes, ResultCaption)
	default:
		outcome = OutcomeDeliveredUnresolved
		err = c.chat.SendMessage(ctx, job.OriginChatID, UnresolvedNotice)
	}
	metrics.IncDelivery(string(res.Kind), err == nil)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", job.OriginChatID).Str("kind", string(res.Kind)).
			Msg("result delivery failed")
		outcome = OutcomeDeliveryFailed
	}

	metrics.IncCallback(string(outcome))
	publish(ctx, c.events, c.log, adapter.JobEvent{
		Type: adapter.JobEventDelivered, JobID: job.ID, AccountID: job.AccountID,
		ChatID: job.OriginChatID, Outcome: string(outcome),
	})
	l.Info().Str("outcome", string(outcome)).Str("kind", string(res.Kind)).Msg("callback reconciled")
	return outcome, nil
}
