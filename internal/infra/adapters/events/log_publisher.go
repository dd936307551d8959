package events

import (
	"context"

	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ adapter.EventPublisher = (*LogPublisher)(nil)

// LogPublisher records events at debug level when no broker is configured.
type LogPublisher struct {
	log *zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev adapter.JobEvent) error {
	p.log.Debug().
		Str("event", string(ev.Type)).
		Str("job_id", logging.Redact(ev.JobID, false)).
		Int64("chat_id", ev.ChatID).
		Str("outcome", ev.Outcome).
		Msg("job event")
	return nil
}
