// Package http exposes the run triggers, history queries, health and
// metrics over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/usecase"
)

const apiTimeout = 10 * time.Second

// TaskRunner runs queued tasks now or in the background.
type TaskRunner interface {
	RunNow(ctx context.Context) (usecase.RunResult, error)
	Dispatch() error
}

type RunEnqueuer interface {
	Enqueue(ctx context.Context, userID string) (*usecase.EnqueueResult, error)
}

type HistoryReader interface {
	Applications(ctx context.Context, userID string, limit int) (*usecase.ApplicationHistory, error)
	Stats(ctx context.Context, userID string) (*model.ApplicationStats, error)
	Task(ctx context.Context, id string) (*model.Task, error)
}

type Server struct {
	cfg     config.HTTPConfig
	runner  TaskRunner
	runs    RunEnqueuer
	history HistoryReader
	auth    *WebhookAuth
	log     *zerolog.Logger
	server  *http.Server
}

func NewServer(cfg config.HTTPConfig, runner TaskRunner, runs RunEnqueuer, history HistoryReader, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		cfg:     cfg,
		runner:  runner,
		runs:    runs,
		history: history,
		auth:    NewWebhookAuth(cfg.WebhookSecret),
		log:     &l,
	}
}

// Routes builds the router. It is exported for tests.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware())
		r.Post("/process-queue", s.handleProcessQueue)
		r.Post("/webhook", s.handleWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(apiTimeout))
		r.Get("/users/{id}/applications", s.handleApplications)
		r.Get("/users/{id}/stats", s.handleStats)
		r.Get("/tasks/{id}", s.handleTask)
	})
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Port).Bool("webhook_auth", s.auth.Enabled()).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
