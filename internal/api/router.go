package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/boardroom/internal/api/handlers"
	"github.com/agentoven/boardroom/internal/api/middleware"
	"github.com/agentoven/boardroom/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware. No Compress: it buffers the SSE stream.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.Auth.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/advisors", h.ListAdvisors)
		r.Get("/gate", h.GateStats)
		r.Post("/log", h.RelayLog)

		r.Route("/consult", func(r chi.Router) {
			r.Post("/", h.Consult)
			r.Get("/ws", h.ConsultWS)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "boardroom",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "boardroom",
		})
	}
}
