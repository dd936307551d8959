package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type jobShard struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

// JobRepo keeps pending jobs in striped maps.
type JobRepo struct {
	shards [shardCount]jobShard
}

func NewJobRepo() *JobRepo {
	r := &JobRepo{}
	for i := range r.shards {
		r.shards[i].jobs = make(map[string]*model.Job)
	}
	return r
}

func (r *JobRepo) Register(_ context.Context, job *model.Job) (string, error) {
	if job == nil || job.ID == "" {
		return "", domain.ErrInvalidArgument
	}
	s := &r.shards[shardFor(job.ID)]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return "", domain.ErrAlreadyExists
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return job.ID, nil
}

func (r *JobRepo) Consume(_ context.Context, jobID string) (*model.Job, error) {
	s := &r.shards[shardFor(jobID)]
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.jobs, jobID)
	return job, nil
}

func (r *JobRepo) Release(_ context.Context, jobID string) error {
	s := &r.shards[shardFor(jobID)]
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return nil
}

// TakeOlderThan walks the shards one at a time, so it never holds more than one
// stripe lock and never blocks unrelated callbacks for long.
func (r *JobRepo) TakeOlderThan(_ context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []*model.Job
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for id, job := range s.jobs {
			if len(out) >= limit {
				break
			}
			if job.SubmittedAt.Before(cutoff) {
				delete(s.jobs, id)
				out = append(out, job)
			}
		}
		s.mu.Unlock()
		if len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *JobRepo) CountPending(_ context.Context) (int, error) {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.jobs)
		s.mu.Unlock()
	}
	return n, nil
}
