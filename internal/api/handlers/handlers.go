// Package handlers implements the HTTP handlers for the boardroom service.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/api/middleware"
	"github.com/agentoven/boardroom/internal/consult"
	"github.com/agentoven/boardroom/internal/gate"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/rs/zerolog"
)

// Consulter runs one consultation and streams its events.
type Consulter interface {
	Run(ctx context.Context, req models.ConsultRequest, emit consult.EmitFunc) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Orchestrator Consulter
	Advisors     *advisors.Registry
	Gate         *gate.Gate
}

// New creates a Handlers instance.
func New(c Consulter, reg *advisors.Registry, g *gate.Gate) *Handlers {
	return &Handlers{Orchestrator: c, Advisors: reg, Gate: g}
}

// ── Advisors ─────────────────────────────────────────────────

// ListAdvisors serves the advisor catalog.
// GET /api/v1/advisors
func (h *Handlers) ListAdvisors(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Advisors.Profiles())
}

// GateStats reports the admission gate's current state.
// GET /api/v1/gate
func (h *Handlers) GateStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Gate.Stats())
}

// ── Client log relay ─────────────────────────────────────────

// RelayLog writes a browser log line into the server log.
// POST /api/v1/log
func (h *Handlers) RelayLog(w http.ResponseWriter, r *http.Request) {
	var entry models.ClientLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if entry.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	level, err := zerolog.ParseLevel(strings.ToLower(entry.Level))
	if err != nil || entry.Level == "" || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	middleware.LoggerFrom(r).WithLevel(level).Str("source", "client").Msg(entry.Message)

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
