// Package server composes the boardroom service: configuration, logging,
// telemetry, the completion client, the admission gate, the consultation
// orchestrator and the HTTP router.
//
// It lives in pkg/ so that both cmd/server and the boardroom CLI's
// `serve` command build the same server.
//
//	cfg, _ := config.Load("")
//	srv, err := server.New(ctx, cfg)
//	err = srv.ListenAndServe(ctx)
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/api"
	"github.com/agentoven/boardroom/internal/api/handlers"
	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/config"
	"github.com/agentoven/boardroom/internal/consult"
	"github.com/agentoven/boardroom/internal/gate"
	"github.com/agentoven/boardroom/internal/retry"
	"github.com/agentoven/boardroom/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server holds the initialized boardroom service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Orchestrator runs consultations; exposed for in-process callers.
	Orchestrator *consult.Orchestrator

	// Config is the resolved configuration.
	Config *config.Config

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc telemetry.ShutdownFunc
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(cfg config.LogConfig, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
}

// NewOrchestrator builds the consultation core from configuration.
func NewOrchestrator(cfg *config.Config, client completion.Client) *consult.Orchestrator {
	g := gate.New(cfg.Gate.TokensPerMinute, cfg.Gate.MaxParallelRequests)
	return consult.New(client, g, advisors.NewDefaultRegistry(), OptionsFromConfig(cfg))
}

// OptionsFromConfig maps configuration onto orchestrator options.
func OptionsFromConfig(cfg *config.Config) consult.Options {
	return consult.Options{
		Retry: retry.Policy{
			MaxRetries:    cfg.Retry.MaxRetries,
			InitialDelay:  cfg.Retry.InitialDelay,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
		CallTimeout:               cfg.Completion.CallTimeout,
		SecondaryPause:            cfg.Consult.SecondaryPause,
		PartialOnSynthesisFailure: cfg.Consult.PartialOnSynthesisFailure,
		Temperature:               cfg.Completion.Temperature,
		MaxTokens:                 cfg.Completion.MaxTokens,
	}
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	svc, err := completion.NewService(cfg.Completion)
	if err != nil {
		return nil, fmt.Errorf("init completion: %w", err)
	}
	log.Info().
		Str("provider", svc.Provider()).
		Strs("drivers", svc.ListDrivers()).
		Str("model", cfg.Completion.Model).
		Msg("✅ Completion service initialized")

	g := gate.New(cfg.Gate.TokensPerMinute, cfg.Gate.MaxParallelRequests)
	reg := advisors.NewDefaultRegistry()
	orch := consult.New(svc, g, reg, OptionsFromConfig(cfg))
	log.Info().
		Float64("tokens_per_minute", cfg.Gate.TokensPerMinute).
		Int("max_parallel", cfg.Gate.MaxParallelRequests).
		Msg("✅ Admission gate initialized")

	h := handlers.New(orch, reg, g)

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Orchestrator: orch,
		Config:       cfg,
		ShutdownFunc: shutdown,
	}, nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.Config.Port),
		Handler:     s.Handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: consultation streams outlive any fixed bound.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", s.Config.Port).
			Msg("🏛️ Boardroom is in session")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	if s.ShutdownFunc != nil {
		if terr := s.ShutdownFunc(shutdownCtx); terr != nil {
			log.Warn().Err(terr).Msg("Telemetry shutdown failed")
		}
	}
	return err
}
