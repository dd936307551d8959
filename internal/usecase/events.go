package usecase

import (
	"context"
	"time"

	"photobridge/internal/domain/ports/adapter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// publish sends a lifecycle event without letting a broker problem touch the job flow.
func publish(ctx context.Context, pub adapter.EventPublisher, log *zerolog.Logger, ev adapter.JobEvent) {
	if pub == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("job event publish failed")
	}
}
