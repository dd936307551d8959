//go:build !integration

package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"photobridge/internal/application"
	"photobridge/internal/config"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/infra/i18n"
	"photobridge/internal/infra/memory"
	"photobridge/internal/infra/worker"
	"photobridge/internal/usecase"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetFileDirectURL(string) (string, error) { return f.fileURL, nil }

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type stubProcessor struct {
	mu   sync.Mutex
	reqs []adapter.DispatchRequest
}

func (s *stubProcessor) Dispatch(_ context.Context, req adapter.DispatchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil
}

type fixture struct {
	bot    *fakeBot
	ledger *memory.LedgerRepo
	jobs   *memory.JobRepo
	proc   *stubProcessor
	r      *RealTelegramBotAdapter
}

func newFixture(t *testing.T, admins ...int64) *fixture {
	t.Helper()
	l := zerolog.Nop()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatal(err)
	}
	ledger, jobs, proc := memory.NewLedgerRepo(), memory.NewJobRepo(), &stubProcessor{}
	submit := usecase.NewSubmitUseCase(ledger, jobs, proc, nil, usecase.SubmitOptions{CallbackURL: "https://cb"}, &l)
	account := usecase.NewAccountUseCase(ledger, admins, &l)
	facade := application.NewBotFacade(account, submit, tr, &l)

	bot := &fakeBot{}
	cfg := &config.BotConfig{AdminIDs: admins, Workers: 1}
	r, err := newAdapter(bot, cfg, facade, tr, nil, worker.NewPool(1, &l), 0, &l)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{bot: bot, ledger: ledger, jobs: jobs, proc: proc, r: r}
}

func commandUpdate(from int64, text string) tgbotapi.Update {
	word := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: from},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(word)}},
	}}
}

func TestHandleUpdate_Commands(t *testing.T) {
	ctx := context.Background()

	t.Run("should greet on start and install menu commands", func(t *testing.T) {
		f := newFixture(t)
		if err := f.r.handleUpdate(ctx, commandUpdate(55, "/start")); err != nil {
			t.Fatal(err)
		}
		texts := f.bot.texts()
		if len(texts) != 1 || !strings.Contains(texts[0], "Your Telegram ID: 55") {
			t.Errorf("unexpected replies %v", texts)
		}
		if len(f.bot.requests) != 1 {
			t.Errorf("expected a setMyCommands request, got %d", len(f.bot.requests))
		}
	})

	t.Run("should refuse addcredits from non-admins", func(t *testing.T) {
		f := newFixture(t, 1)
		_ = f.r.handleUpdate(ctx, commandUpdate(2, "/addcredits 2 100"))
		if texts := f.bot.texts(); len(texts) != 1 || texts[0] != "You are not allowed to use this command." {
			t.Errorf("unexpected replies %v", texts)
		}
		acc, _ := f.ledger.GetOrCreate(ctx, "2")
		if acc.Credits != 0 {
			t.Error("credits must not change")
		}
	})

	t.Run("should add credits for admins", func(t *testing.T) {
		f := newFixture(t, 1)
		_ = f.r.handleUpdate(ctx, commandUpdate(1, "/addcredits 99 3"))
		if texts := f.bot.texts(); len(texts) != 1 || texts[0] != "Added 3 credits to 99. New balance: 3" {
			t.Errorf("unexpected replies %v", texts)
		}
	})

	t.Run("should answer callback buttons", func(t *testing.T) {
		f := newFixture(t)
		up := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb1",
			From:    &tgbotapi.User{ID: 7},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}},
			Data:    "cmd:credits",
		}}
		if err := f.r.handleUpdate(ctx, up); err != nil {
			t.Fatal(err)
		}
		if texts := f.bot.texts(); len(texts) != 1 || texts[0] != "Credits: 0\nLifetime uses: 0" {
			t.Errorf("unexpected replies %v", texts)
		}
		if len(f.bot.requests) != 1 {
			t.Error("callback query must be answered")
		}
	})
}

func TestHandleUpdate_Photo(t *testing.T) {
	ctx := context.Background()
	img := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	photoUpdate := func(from, chat int64) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: from},
			Chat: &tgbotapi.Chat{ID: chat},
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 1280},
			},
		}}
	}

	t.Run("should submit the photo and confirm queueing", func(t *testing.T) {
		f := newFixture(t)
		f.bot.fileURL = srv.URL
		_, _ = f.ledger.Credit(ctx, "10", 1)

		if err := f.r.handleUpdate(ctx, photoUpdate(10, -500)); err != nil {
			t.Fatal(err)
		}
		if len(f.proc.reqs) != 1 || string(f.proc.reqs[0].Image) != string(img) {
			t.Fatalf("expected the downloaded photo to be dispatched, got %+v", f.proc.reqs)
		}
		if !strings.HasPrefix(f.proc.reqs[0].JobID, "tg_-500_") {
			t.Errorf("job id must carry the origin chat, got %s", f.proc.reqs[0].JobID)
		}
		if texts := f.bot.texts(); len(texts) != 1 || !strings.HasPrefix(texts[0], "Queued.") {
			t.Errorf("unexpected replies %v", texts)
		}
	})

	t.Run("should tell the user when out of credits", func(t *testing.T) {
		f := newFixture(t)
		f.bot.fileURL = srv.URL

		_ = f.r.handleUpdate(ctx, photoUpdate(11, 11))
		if len(f.proc.reqs) != 0 {
			t.Error("nothing should be dispatched")
		}
		if n, _ := f.jobs.CountPending(ctx); n != 0 {
			t.Errorf("no job should be pending, got %d", n)
		}
		if texts := f.bot.texts(); len(texts) != 1 || !strings.HasPrefix(texts[0], "Out of credits.") {
			t.Errorf("unexpected replies %v", texts)
		}
	})
}

func TestLargestPhoto(t *testing.T) {
	got := largestPhoto([]tgbotapi.PhotoSize{
		{FileID: "b", Width: 800, Height: 800},
		{FileID: "a", Width: 90, Height: 90},
	})
	if got.FileID != "b" {
		t.Errorf("expected the largest rendition, got %s", got.FileID)
	}
}

func TestSendPhoto(t *testing.T) {
	f := newFixture(t)
	if err := f.r.SendPhotoURL(context.Background(), 3, "https://img/x.png", "done"); err != nil {
		t.Fatal(err)
	}
	if err := f.r.SendPhotoBytes(context.Background(), 3, []byte{1}, "done"); err != nil {
		t.Fatal(err)
	}
	if len(f.bot.sent) != 2 {
		t.Fatalf("expected two sends, got %d", len(f.bot.sent))
	}
	for _, c := range f.bot.sent {
		p, ok := c.(tgbotapi.PhotoConfig)
		if !ok || p.Caption != "done" || p.ChatID != 3 {
			t.Errorf("unexpected photo config %#v", c)
		}
	}
}
