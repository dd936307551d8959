//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"photobridge/internal/domain"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/infra/memory"
	"photobridge/internal/usecase"
)

const testCallbackURL = "https://bridge.example.com/webhook/process"

func newSubmitFixture(t *testing.T, credits int64) (*memory.LedgerRepo, *memory.JobRepo, *mockProcessor, *mockEvents) {
	t.Helper()
	ledger := memory.NewLedgerRepo()
	if credits > 0 {
		if _, err := ledger.Credit(context.Background(), "acc-1", credits); err != nil {
			t.Fatalf("seed credits: %v", err)
		}
	}
	return ledger, memory.NewJobRepo(), &mockProcessor{}, &mockEvents{}
}

func TestSubmitUseCase_Submit(t *testing.T) {
	ctx := context.Background()
	img := []byte{0xff, 0xd8, 0xff}

	t.Run("should reject with InsufficientCredit and create no job", func(t *testing.T) {
		// --- Arrange ---
		ledger, jobs, proc, events := newSubmitFixture(t, 0)
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		// --- Act ---
		_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})

		// --- Assert ---
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		if n, _ := jobs.CountPending(ctx); n != 0 {
			t.Errorf("expected no orphan job, found %d", n)
		}
		if len(proc.Requests()) != 0 {
			t.Error("processor must not be contacted without credit")
		}
	})

	t.Run("should reject empty image before touching the ledger", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10})
		if !errors.Is(err, domain.ErrEmptyImage) {
			t.Fatalf("expected ErrEmptyImage, got %v", err)
		}
		acc, _ := ledger.GetOrCreate(ctx, "acc-1")
		if acc.Credits != 1 {
			t.Errorf("expected balance untouched, got %d", acc.Credits)
		}
	})

	t.Run("should debit, register and dispatch on success", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		jobID, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		acc, _ := ledger.GetOrCreate(ctx, "acc-1")
		if acc.Credits != 0 || acc.LifetimeUses != 1 {
			t.Errorf("expected credits=0 uses=1, got %+v", acc)
		}
		reqs := proc.Requests()
		if len(reqs) != 1 {
			t.Fatalf("expected one dispatch, got %d", len(reqs))
		}
		if reqs[0].JobID != jobID || reqs[0].CallbackURL != testCallbackURL || reqs[0].FileName != "photo.jpg" {
			t.Errorf("unexpected dispatch request %+v", reqs[0])
		}
		if strings.Contains(reqs[0].CallbackURL, jobID) {
			t.Error("callback url must not embed the job id unless configured")
		}
		if n, _ := jobs.CountPending(ctx); n != 1 {
			t.Errorf("expected one pending job, got %d", n)
		}
		if got := events.Types(); len(got) != 1 || got[0] != adapter.JobEventSubmitted {
			t.Errorf("expected a submitted event, got %v", got)
		}
	})

	t.Run("should restore credit and release job when dispatch is rejected", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 3)
		proc.DispatchFunc = func(ctx context.Context, req adapter.DispatchRequest) error {
			return &domain.DispatchError{Status: 502, Detail: "bad gateway"}
		}
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})

		if !errors.Is(err, domain.ErrDispatchFailed) {
			t.Fatalf("expected ErrDispatchFailed, got %v", err)
		}
		var de *domain.DispatchError
		if !errors.As(err, &de) || de.Status != 502 {
			t.Fatalf("expected DispatchError with status 502, got %v", err)
		}
		acc, _ := ledger.GetOrCreate(ctx, "acc-1")
		if acc.Credits != 3 {
			t.Errorf("expected credits restored to 3, got %d", acc.Credits)
		}
		if n, _ := jobs.CountPending(ctx); n != 0 {
			t.Errorf("expected released job, %d still pending", n)
		}
		if _, err := jobs.Consume(ctx, proc.Requests()[0].JobID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected released id to be unknown, got %v", err)
		}
		if got := events.Types(); len(got) != 1 || got[0] != adapter.JobEventReleased {
			t.Errorf("expected a released event, got %v", got)
		}
	})

	t.Run("should wrap transport errors as DispatchError", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		proc.DispatchFunc = func(ctx context.Context, req adapter.DispatchRequest) error { return errBoom }
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})

		var de *domain.DispatchError
		if !errors.As(err, &de) {
			t.Fatalf("expected DispatchError, got %v", err)
		}
		if !errors.Is(err, errBoom) {
			t.Errorf("expected upstream error to stay reachable, got %v", err)
		}
	})

	t.Run("should embed job id in callback url when configured", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		opts := usecase.SubmitOptions{CallbackURL: testCallbackURL, EmbedIDInURL: true}
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, opts, newTestLogger())

		jobID, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		want := testCallbackURL + "?id_gen=" + jobID
		if got := proc.Requests()[0].CallbackURL; got != want {
			t.Errorf("wanted %q, got %q", want, got)
		}
	})

	t.Run("should embed job id under the configured query key", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		opts := usecase.SubmitOptions{CallbackURL: testCallbackURL, EmbedIDInURL: true, IDParam: "job_id"}
		uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, opts, newTestLogger())

		jobID, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		want := testCallbackURL + "?job_id=" + jobID
		if got := proc.Requests()[0].CallbackURL; got != want {
			t.Errorf("wanted %q, got %q", want, got)
		}
	})

	t.Run("should propagate ledger failures without dispatching", func(t *testing.T) {
		ledger, jobs, proc, events := newSubmitFixture(t, 1)
		hooked := &hookLedger{LedgerRepository: ledger, TryDebitErr: errBoom}
		uc := usecase.NewSubmitUseCase(hooked, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

		_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: img})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected ledger error, got %v", err)
		}
		if len(proc.Requests()) != 0 {
			t.Error("processor must not be contacted when the debit fails")
		}
	})
}

func TestSubmitUseCase_LastCreditRace(t *testing.T) {
	ctx := context.Background()
	ledger, jobs, proc, events := newSubmitFixture(t, 1)
	uc := usecase.NewSubmitUseCase(ledger, jobs, proc, events, usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: []byte{1}})
			results <- err
		}()
	}
	var ok, rejected int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("expected exactly one accepted submission, got ok=%d rejected=%d", ok, rejected)
	}
}

func TestSubmitUseCase_CompensatesAfterCancellation(t *testing.T) {
	// --- Arrange ---
	ledger, jobs, proc, events := newSubmitFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.DispatchFunc = func(ctx context.Context, _ adapter.DispatchRequest) error {
		// Shutdown lands while the processor call is in flight.
		cancel()
		return ctx.Err()
	}
	uc := usecase.NewSubmitUseCase(&ctxBoundLedger{ledger}, &ctxBoundJobs{jobs}, proc, events,
		usecase.SubmitOptions{CallbackURL: testCallbackURL}, newTestLogger())

	// --- Act ---
	_, err := uc.Submit(ctx, usecase.SubmitRequest{AccountID: "acc-1", OriginChatID: 10, Image: []byte{1}})

	// --- Assert ---
	if !errors.Is(err, domain.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	bg := context.Background()
	acc, _ := ledger.GetOrCreate(bg, "acc-1")
	if acc.Credits != 1 {
		t.Errorf("expected the debited credit back, got credits=%d", acc.Credits)
	}
	if n, _ := jobs.CountPending(bg); n != 0 {
		t.Errorf("expected the job released, %d still pending", n)
	}
}
