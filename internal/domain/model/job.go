package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"photobridge/internal/domain"

	"github.com/oklog/ulid/v2"
)

// JobIDPrefix marks ids minted for Telegram-originated jobs.
const JobIDPrefix = "tg_"

// Job is the minimal state needed to route a processor result back to a chat.
// A Job is never mutated after registration; it is only read and deleted.
type Job struct {
	ID           string    `json:"id"`
	OriginChatID int64     `json:"origin_chat_id"`
	AccountID    string    `json:"account_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// NewJob mints a fresh job for the given origin chat and owner.
func NewJob(originChatID int64, accountID string, now time.Time) (*Job, error) {
	if originChatID == 0 || strings.TrimSpace(accountID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	id, err := NewJobID(originChatID, now)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:           id,
		OriginChatID: originChatID,
		AccountID:    accountID,
		SubmittedAt:  now,
	}, nil
}

// NewJobID returns tg_<origin>_<ULID>. The ULID random part is drawn from
// crypto/rand for every id, so ids minted in the same millisecond are not
// sequential. The id is a bearer token for the result route.
func NewJobID(originChatID int64, now time.Time) (string, error) {
	u, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("mint job id: %w", err)
	}
	return fmt.Sprintf("%s%d_%s", JobIDPrefix, originChatID, u.String()), nil
}

// Age reports how long the job has been pending.
func (j *Job) Age(now time.Time) time.Duration { return now.Sub(j.SubmittedAt) }
