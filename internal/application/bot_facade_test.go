//go:build !integration

package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"photobridge/internal/application"
	"photobridge/internal/domain"
	"photobridge/internal/domain/model"
	"photobridge/internal/infra/i18n"
	"photobridge/internal/usecase"

	"github.com/rs/zerolog"
)

type mockAccountUC struct {
	accounts map[string]*model.Account
	admins   map[int64]bool
	err      error
}

func newMockAccountUC() *mockAccountUC {
	return &mockAccountUC{accounts: map[string]*model.Account{}, admins: map[int64]bool{}}
}

func (m *mockAccountUC) Balance(ctx context.Context, accountID string) (*model.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.accounts[accountID]
	if !ok {
		acc = &model.Account{ID: accountID}
		m.accounts[accountID] = acc
	}
	cp := *acc
	return &cp, nil
}

func (m *mockAccountUC) AddCredits(ctx context.Context, actor int64, accountID string, amount int64) (int64, error) {
	if !m.admins[actor] {
		return 0, domain.ErrForbidden
	}
	if m.err != nil {
		return 0, m.err
	}
	acc, _ := m.Balance(ctx, accountID)
	acc.Credits += amount
	m.accounts[accountID] = acc
	return acc.Credits, nil
}

func (m *mockAccountUC) IsAdmin(tgID int64) bool { return m.admins[tgID] }

type mockSubmitUC struct {
	last usecase.SubmitRequest
	err  error
}

func (m *mockSubmitUC) Submit(ctx context.Context, req usecase.SubmitRequest) (string, error) {
	m.last = req
	if m.err != nil {
		return "", m.err
	}
	return "tg_1_X", nil
}

func newFacade(t *testing.T, acc *mockAccountUC, sub *mockSubmitUC) *application.BotFacade {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	l := zerolog.Nop()
	return application.NewBotFacade(acc, sub, tr, &l)
}

func TestBotFacade_StartAndCredits(t *testing.T) {
	ctx := context.Background()
	acc := newMockAccountUC()
	acc.accounts["77"] = &model.Account{ID: "77", Credits: 4, LifetimeUses: 9}
	f := newFacade(t, acc, &mockSubmitUC{})

	t.Run("should greet with telegram id and balance", func(t *testing.T) {
		text, err := f.HandleStart(ctx, 77)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(text, "Your Telegram ID: 77") || !strings.Contains(text, "Credits: 4") {
			t.Errorf("unexpected welcome %q", text)
		}
	})

	t.Run("should report credits and lifetime uses", func(t *testing.T) {
		text, err := f.HandleCredits(ctx, 77)
		if err != nil {
			t.Fatal(err)
		}
		if text != "Credits: 4\nLifetime uses: 9" {
			t.Errorf("unexpected credits text %q", text)
		}
	})

	t.Run("should include the rules in help", func(t *testing.T) {
		if !strings.Contains(f.HandleHelp(), "Rules:") {
			t.Error("help must include rules")
		}
	})

	t.Run("should propagate ledger errors", func(t *testing.T) {
		acc.err = errors.New("db down")
		defer func() { acc.err = nil }()
		if _, err := f.HandleStart(ctx, 77); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestBotFacade_HandleAddCredits(t *testing.T) {
	ctx := context.Background()
	acc := newMockAccountUC()
	acc.admins[1] = true
	f := newFacade(t, acc, &mockSubmitUC{})

	testCases := []struct {
		name  string
		actor int64
		args  []string
		want  string
	}{
		{"should show usage on wrong arity", 1, []string{"55"}, "Usage: /addcredits <userId> <amount>"},
		{"should reject non-numeric amount", 1, []string{"55", "abc"}, "Amount must be positive."},
		{"should reject zero amount", 1, []string{"55", "0"}, "Amount must be positive."},
		{"should refuse non-admins", 2, []string{"55", "3"}, "You are not allowed to use this command."},
		{"should credit the target", 1, []string{"55", "3"}, "Added 3 credits to 55. New balance: 3"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.HandleAddCredits(ctx, tc.actor, tc.args); got != tc.want {
				t.Errorf("wanted %q, got %q", tc.want, got)
			}
		})
	}
}

func TestBotFacade_HandlePhoto(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		err     error
		contain string
		queued  bool
	}{
		{"should confirm a queued job", nil, "Queued.", true},
		{"should ask to buy when out of credits", domain.ErrInsufficientCredits, "Out of credits.", false},
		{"should surface processor rejections", &domain.DispatchError{Status: 500, Detail: "boom"}, "❌ Error: processor error 500: boom", false},
		{"should hide unexpected errors", errors.New("redis: connection refused"), "Something went wrong", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &mockSubmitUC{err: tc.err}
			f := newFacade(t, newMockAccountUC(), sub)

			got, queued := f.HandlePhoto(ctx, 42, -100, []byte{1}, "photo.jpg")
			if !strings.Contains(got, tc.contain) || queued != tc.queued {
				t.Errorf("wanted reply containing %q (queued=%v), got %q (queued=%v)", tc.contain, tc.queued, got, queued)
			}
			if sub.last.AccountID != "42" || sub.last.OriginChatID != -100 {
				t.Errorf("unexpected submit request %+v", sub.last)
			}
		})
	}
}
