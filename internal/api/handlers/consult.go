package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentoven/boardroom/internal/api/middleware"
	"github.com/agentoven/boardroom/internal/consult"
	"github.com/agentoven/boardroom/pkg/models"
)

// Consult streams one consultation as server-sent events.
// POST /api/v1/consult
func (h *Handlers) Consult(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(ev models.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	logger := middleware.LoggerFrom(r)

	var req models.ConsultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// A malformed body is a request error like any other: one error
		// event, then the stream closes.
		reqErr := &consult.RequestError{Field: "body", Message: "invalid JSON"}
		logger.Warn().Err(err).Msg("Rejected consultation body")
		_ = emit(models.Event{Type: models.EventError, Message: reqErr.Error()})
		return
	}

	if err := h.Orchestrator.Run(r.Context(), req, emit); err != nil {
		switch {
		case errors.Is(err, consult.ErrStreamClosed), r.Context().Err() != nil:
			logger.Info().Err(err).Msg("Client went away during consultation")
		default:
			logger.Debug().Err(err).Msg("Consultation ended with error event")
		}
	}
}
