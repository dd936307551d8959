// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"photobridge/internal/application"
	"photobridge/internal/config"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/adapters/events"
	"photobridge/internal/infra/adapters/processor"
	tele "photobridge/internal/infra/adapters/telegram"
	"photobridge/internal/infra/api"
	pg "photobridge/internal/infra/db/postgres"
	"photobridge/internal/infra/i18n"
	"photobridge/internal/infra/logging"
	"photobridge/internal/infra/memory"
	"photobridge/internal/infra/metrics"
	red "photobridge/internal/infra/redis"
	"photobridge/internal/infra/sched"
	"photobridge/internal/infra/worker"
	"photobridge/internal/usecase"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted ids)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("photobridge stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

// stores is what a store backend contributes to the wiring.
type stores struct {
	ledger  repository.LedgerRepository
	jobs    repository.JobRepository
	limiter tele.RateLimiter
	locker  sched.Locker
	closers []func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		logger.Info().Str("prefix", cfg.Redis.KeyPrefix).Msg("store backend: redis")
		return &stores{
			ledger:  red.NewLedgerRepo(client),
			jobs:    red.NewJobRepo(client),
			limiter: red.NewRateLimiter(client),
			locker:  red.NewLocker(client),
			closers: []func(){func() { _ = client.Close() }},
		}, nil
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("store backend: postgres")
		// FOR UPDATE SKIP LOCKED already keeps concurrent sweeps disjoint.
		return &stores{
			ledger:  pg.NewLedgerRepo(pool),
			jobs:    pg.NewJobRepo(pool),
			closers: []func(){pool.Close},
		}, nil
	default:
		logger.Warn().Msg("store backend: memory; balances and pending jobs are lost on restart")
		return &stores{ledger: memory.NewLedgerRepo(), jobs: memory.NewJobRepo()}, nil
	}
}

func openEvents(cfg *config.Config, logger *zerolog.Logger) (adapter.EventPublisher, func(), error) {
	if strings.TrimSpace(cfg.Events.AMQPURL) == "" {
		return events.NewLogPublisher(logging.Component(logger, "events")), func() {}, nil
	}
	pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Queue, logging.Component(logger, "events"))
	if err != nil {
		return nil, nil, fmt.Errorf("amqp: %w", err)
	}
	logger.Info().Str("queue", cfg.Events.Queue).Msg("job events: amqp")
	return pub, pub.Close, nil
}

// chatBot is the bot surface main needs: delivery for results plus a run loop.
type chatBot interface {
	adapter.ChatDelivery
	StartPolling(ctx context.Context) error
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Stores ----
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			c()
		}
	}()

	// ---- Job events ----
	pub, closePub, err := openEvents(cfg, logger)
	if err != nil {
		return err
	}
	defer closePub()

	// ---- Image processor ----
	mp, err := processor.NewMultipartAdapter(processor.Options{
		URL:            cfg.Processor.URL,
		APIKeyHeader:   cfg.Processor.APIKeyHeader,
		APIKeyValue:    cfg.Processor.APIKeyValue,
		FileField:      cfg.Processor.FileField,
		JobIDField:     cfg.Processor.JobIDField,
		CallbackField:  cfg.Processor.CallbackField,
		Timeout:        cfg.Processor.Timeout,
		MaxErrorDetail: cfg.Processor.MaxErrorDetail,
	}, logging.Component(logger, "processor"))
	if err != nil {
		return fmt.Errorf("processor: %w", err)
	}
	proc := processor.NewLimitedProcessor(mp, cfg.Processor.MaxConcurrent)

	// ---- Use cases ----
	accountUC := usecase.NewAccountUseCase(st.ledger, cfg.Bot.AdminIDs, logging.Component(logger, "account"))
	submitUC := usecase.NewSubmitUseCase(st.ledger, st.jobs, proc, pub, usecase.SubmitOptions{
		CallbackURL:  cfg.Callback.CallbackURL(),
		EmbedIDInURL: cfg.Callback.EmbedIDInURL,
		IDParam:      cfg.Callback.JobIDFields[0],
		DebitAmount:  cfg.Jobs.DebitAmount,
	}, logging.Component(logger, "submit"))

	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	facade := application.NewBotFacade(accountUC, submitUC, tr, logging.Component(logger, "facade"))

	// ---- Telegram ----
	pool := worker.NewPool(cfg.Bot.Workers, logging.Component(logger, "worker"))
	pool.Start(ctx)
	defer pool.Stop()

	var bot chatBot
	if strings.ToLower(cfg.Bot.Mode) == "noop" {
		bot = tele.NewNoopBotAdapter(logging.Component(logger, "telegram"))
	} else {
		var limiter tele.RateLimiter
		if st.limiter != nil && cfg.Bot.RateLimitPerMinute > 0 {
			limiter = st.limiter
		}
		tg, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, tr, limiter, pool,
			cfg.Processor.DownloadTimeout, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = tg
	}

	fields := usecase.CallbackFields{
		JobID:     cfg.Callback.JobIDFields,
		ResultURL: cfg.Callback.ResultURLFields(),
		Base64:    cfg.Callback.Base64Fields,
	}
	callbackUC := usecase.NewCallbackUseCase(st.jobs, bot, pub, fields, logging.Component(logger, "callback"))
	expiryUC := usecase.NewExpiryUseCase(st.jobs, st.ledger, bot, pub, usecase.ExpiryOptions{
		MaxPendingAge:  cfg.Jobs.MaxPendingAge,
		Batch:          cfg.Jobs.SweepBatch,
		RefundOnExpiry: cfg.Jobs.RefundOnExpiry,
		RefundAmount:   cfg.Jobs.DebitAmount,
	}, logging.Component(logger, "expiry"))

	// ---- HTTP ----
	apiOpts := api.Options{
		Port:           cfg.HTTP.Port,
		CallbackPath:   cfg.Callback.Path,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		JWTSecret:      cfg.Admin.JWTSecret,
	}
	router := api.NewRouter(apiOpts, callbackUC, accountUC, st.jobs, logging.Component(logger, "http"))
	server := api.NewServer(apiOpts, router, logger)

	// ---- Expiry worker ----
	expiry := sched.NewJobExpiryWorker(cfg.Jobs.SweepInterval, expiryUC, st.locker, logger)

	logger.Info().
		Str("callback_url", cfg.Callback.CallbackURL()).
		Str("bot_mode", cfg.Bot.Mode).
		Bool("admin_api", cfg.Admin.JWTSecret != "").
		Msg("photobridge starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCanceled(bot.StartPolling(gctx)) })
	g.Go(func() error { return ignoreCanceled(expiry.Run(gctx)) })
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
