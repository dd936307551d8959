package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"photobridge/internal/application"
	"photobridge/internal/config"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/metrics"
	"photobridge/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// maxPhotoBytes matches the Bot API download ceiling.
const maxPhotoBytes = 20 << 20

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter polls updates, hands each one to the worker pool and
// delegates to BotFacade. It is also the ChatDelivery used for results.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	translator  application.Translator
	rateLimiter RateLimiter // optional
	pool        *worker.Pool
	download    *http.Client
	log         *zerolog.Logger

	adminIDsMap map[int64]struct{}
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	facade *application.BotFacade,
	translator application.Translator,
	rateLimiter RateLimiter,
	pool *worker.Pool,
	downloadTimeout time.Duration,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, facade, translator, rateLimiter, pool, downloadTimeout, logger)
}

func newAdapter(
	bot botAPI,
	cfg *config.BotConfig,
	facade *application.BotFacade,
	translator application.Translator,
	rateLimiter RateLimiter,
	pool *worker.Pool,
	downloadTimeout time.Duration,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Second
	}
	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		translator:  translator,
		rateLimiter: rateLimiter,
		pool:        pool,
		download:    &http.Client{Timeout: downloadTimeout},
		log:         logging.Component(logger, "telegram"),
		adminIDsMap: adminMap,
	}, nil
}

// StartPolling blocks until ctx ends. Updates are queued on the pool, so a
// full pool slows polling down instead of dropping updates.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	r.log.Info().Int("workers", r.cfg.Workers).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			err := r.pool.Submit(ctx, func(ctx context.Context) error {
				return r.handleUpdate(ctx, up)
			})
			if err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("failed to queue update")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) SendPhotoURL(ctx context.Context, chatID int64, url, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	msg.Caption = caption
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendPhotoBytes(ctx context.Context, chatID int64, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "result.jpg", Bytes: data})
	msg.Caption = caption
	_, err := r.bot.Send(msg)
	return err
}

// SendButtons sends a message with inline buttons.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else btn.Text is used as callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		metrics.IncTelegramUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		metrics.IncTelegramUpdate("other")
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	switch {
	case len(msg.Photo) > 0:
		metrics.IncTelegramUpdate("photo")
		return r.handlePhoto(ctx, msg)
	case msg.IsCommand():
		metrics.IncTelegramUpdate("command")
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, msg)
		}
		return r.sendMainMenu(ctx, msg.Chat.ID, r.translator.T("unknown_message"))
	default:
		metrics.IncTelegramUpdate("other")
		return r.sendMainMenu(ctx, msg.Chat.ID, r.translator.T("unknown_message"))
	}
}

// handlePhoto downloads the largest rendition and submits it. The reply goes
// to the chat the photo came from, which is where the result will be delivered.
func (r *RealTelegramBotAdapter) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if limit := r.cfg.RateLimitPerMinute; limit > 0 && r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, rateKey(msg.From.ID), limit, time.Minute)
		if err != nil {
			logging.With(ctx, r.log).Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			return r.SendMessage(ctx, chatID, r.translator.T("error_rate_limited"))
		}
	}

	best := largestPhoto(msg.Photo)
	data, err := r.downloadFile(ctx, best.FileID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("photo download failed")
		return r.sendMainMenu(ctx, chatID, r.translator.T("error_download"))
	}

	reply, queued := r.facade.HandlePhoto(ctx, msg.From.ID, chatID, data, "photo.jpg")
	if queued {
		return r.SendMessage(ctx, chatID, reply)
	}
	return r.sendMainMenu(ctx, chatID, reply)
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[len(sizes)-1]
	for _, s := range sizes {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func (r *RealTelegramBotAdapter) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	// The direct URL embeds the bot token; never log it.
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.download.Do(req)
	if err != nil {
		return nil, errors.New("download request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func rateKey(tgID int64) string {
	return fmt.Sprintf("rate_limit:%d:photo", tgID)
}
