package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Options struct {
	Port           int
	CallbackPath   string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// JWTSecret enables the admin API; empty leaves it unmounted.
	JWTSecret string
}

// Server hosts the processor webhook, health, metrics and admin endpoints.
type Server struct {
	opts Options
	srv  *http.Server
	log  *zerolog.Logger
}

func NewServer(opts Options, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		opts: opts,
		log:  logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter mounts every route. accounts and jobs may be nil when the admin
// API is disabled.
func NewRouter(
	opts Options,
	callbacks usecase.CallbackUseCase,
	accounts usecase.AccountUseCase,
	jobs repository.JobRepository,
	logger *zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger))

	ok := func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "ok") }
	r.Get("/", ok)
	r.Get("/health", ok)
	r.Handle("/metrics", promhttp.Handler())

	wh := &webhookHandler{callbacks: callbacks, log: logger}
	r.With(Timeout(opts.RequestTimeout), BodyLimit(opts.MaxBodyBytes)).
		Post(opts.CallbackPath, wh.ServeHTTP)

	if opts.JWTSecret != "" && accounts != nil && jobs != nil {
		adm := &adminHandler{accounts: accounts, jobs: jobs, log: logger}
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(BearerAuth([]byte(opts.JWTSecret)), Timeout(opts.RequestTimeout), BodyLimit(1<<20))
			RegisterAdminV1(r, adm)
		})
	}
	return r
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.log.Info().Str("addr", s.srv.Addr).Str("callback_path", s.opts.CallbackPath).Msg("http server listening")
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
