package adapter

import (
	"context"
	"time"
)

type JobEventType string

const (
	JobEventSubmitted JobEventType = "job.submitted"
	JobEventReleased  JobEventType = "job.released"
	JobEventDelivered JobEventType = "job.delivered"
	JobEventUnknown   JobEventType = "job.unknown_callback"
	JobEventExpired   JobEventType = "job.expired"
)

// JobEvent is a lifecycle notification for downstream consumers (analytics, audit).
type JobEvent struct {
	ID        string       `json:"id"`
	Type      JobEventType `json:"type"`
	JobID     string       `json:"job_id"`
	AccountID string       `json:"account_id,omitempty"`
	ChatID    int64        `json:"chat_id,omitempty"`
	Outcome   string       `json:"outcome,omitempty"`
	At        time.Time    `json:"at"`
}

// EventPublisher is best effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, ev JobEvent) error
}
