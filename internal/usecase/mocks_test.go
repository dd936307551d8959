//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"

	"photobridge/internal/domain/model"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- processor ----

type mockProcessor struct {
	mu       sync.Mutex
	requests []adapter.DispatchRequest

	DispatchFunc func(ctx context.Context, req adapter.DispatchRequest) error
}

func (m *mockProcessor) Dispatch(ctx context.Context, req adapter.DispatchRequest) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, req)
	}
	return nil
}

func (m *mockProcessor) Requests() []adapter.DispatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapter.DispatchRequest(nil), m.requests...)
}

// ---- chat delivery ----

type sentItem struct {
	ChatID  int64
	Kind    string // text, url, bytes
	Text    string
	URL     string
	Bytes   []byte
	Caption string
}

type mockChat struct {
	mu   sync.Mutex
	sent []sentItem
	err  error
}

func (m *mockChat) record(it sentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, it)
	return nil
}

func (m *mockChat) SendMessage(_ context.Context, chatID int64, text string) error {
	return m.record(sentItem{ChatID: chatID, Kind: "text", Text: text})
}

func (m *mockChat) SendPhotoURL(_ context.Context, chatID int64, url, caption string) error {
	return m.record(sentItem{ChatID: chatID, Kind: "url", URL: url, Caption: caption})
}

func (m *mockChat) SendPhotoBytes(_ context.Context, chatID int64, data []byte, caption string) error {
	return m.record(sentItem{ChatID: chatID, Kind: "bytes", Bytes: data, Caption: caption})
}

func (m *mockChat) Sent() []sentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentItem(nil), m.sent...)
}

// ---- events ----

type mockEvents struct {
	mu     sync.Mutex
	events []adapter.JobEvent
	err    error
}

func (m *mockEvents) Publish(_ context.Context, ev adapter.JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockEvents) Types() []adapter.JobEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.JobEventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// ---- ledger wrapper with failure hooks ----

type hookLedger struct {
	repository.LedgerRepository
	TryDebitErr error
	CreditErr   error
}

func (h *hookLedger) TryDebit(ctx context.Context, id string, amount int64) (bool, error) {
	if h.TryDebitErr != nil {
		return false, h.TryDebitErr
	}
	return h.LedgerRepository.TryDebit(ctx, id, amount)
}

func (h *hookLedger) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	if h.CreditErr != nil {
		return 0, h.CreditErr
	}
	return h.LedgerRepository.Credit(ctx, id, amount)
}

// ---- job registry wrapper with failure hooks ----

type hookJobs struct {
	repository.JobRepository
	ConsumeErr error
}

func (h *hookJobs) Consume(ctx context.Context, id string) (*model.Job, error) {
	if h.ConsumeErr != nil {
		return nil, h.ConsumeErr
	}
	return h.JobRepository.Consume(ctx, id)
}

// ---- stores that refuse work on a done context, like redis and postgres ----

type ctxBoundLedger struct {
	repository.LedgerRepository
}

func (c *ctxBoundLedger) TryDebit(ctx context.Context, id string, amount int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.LedgerRepository.TryDebit(ctx, id, amount)
}

func (c *ctxBoundLedger) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.LedgerRepository.Credit(ctx, id, amount)
}

type ctxBoundJobs struct {
	repository.JobRepository
}

func (c *ctxBoundJobs) Register(ctx context.Context, job *model.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.JobRepository.Register(ctx, job)
}

func (c *ctxBoundJobs) Consume(ctx context.Context, id string) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.JobRepository.Consume(ctx, id)
}

func (c *ctxBoundJobs) Release(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.JobRepository.Release(ctx, id)
}

var errBoom = errors.New("boom")
