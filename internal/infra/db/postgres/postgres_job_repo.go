package postgres

import (
	"context"
	"errors"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	db querier
}

func NewJobRepo(db querier) *jobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Register(ctx context.Context, job *model.Job) (string, error) {
	if job == nil || job.ID == "" {
		return "", domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO pending_jobs (id, origin_chat_id, account_id, submitted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING;`

	tag, err := r.db.Exec(ctx, q, job.ID, job.OriginChatID, job.AccountID, job.SubmittedAt)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", domain.ErrAlreadyExists
	}
	return job.ID, nil
}

// Consume deletes and returns in one statement; concurrent callers race on the
// row and only one gets it back.
func (r *jobRepo) Consume(ctx context.Context, jobID string) (*model.Job, error) {
	const q = `
DELETE FROM pending_jobs WHERE id = $1
RETURNING id, origin_chat_id, account_id, submitted_at;`

	var j model.Job
	err := r.db.QueryRow(ctx, q, jobID).Scan(&j.ID, &j.OriginChatID, &j.AccountID, &j.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) Release(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_jobs WHERE id = $1;`, jobID)
	return err
}

func (r *jobRepo) TakeOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	const q = `
DELETE FROM pending_jobs
WHERE id IN (
  SELECT id FROM pending_jobs
  WHERE submitted_at < $1
  ORDER BY submitted_at
  LIMIT $2
  FOR UPDATE SKIP LOCKED
)
RETURNING id, origin_chat_id, account_id, submitted_at;`

	rows, err := r.db.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.OriginChatID, &j.AccountID, &j.SubmittedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM pending_jobs;`).Scan(&n)
	return n, err
}
