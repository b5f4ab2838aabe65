package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/agentoven/boardroom/internal/api/middleware"
	"github.com/agentoven/boardroom/internal/consult"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	requestReadTimeout = 30 * time.Second
	closeGrace         = 2 * time.Second
)

var errClientGone = errors.New("websocket client disconnected")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConsultWS streams a consultation over a WebSocket. The first client
// frame is the request; each event is one text frame; the server closes
// the socket after the terminal event.
// GET /api/v1/consult/ws
func (h *Handlers) ConsultWS(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	var req models.ConsultRequest
	if err := conn.ReadJSON(&req); err != nil {
		reqErr := &consult.RequestError{Field: "body", Message: "invalid JSON"}
		_ = conn.WriteJSON(models.Event{Type: models.EventError, Message: reqErr.Error()})
		closeNormal(conn)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	g, ctx := errgroup.WithContext(r.Context())
	finished := make(chan struct{})

	// Reader: the client sends nothing after the request, so any read
	// result other than our own close handshake means it went away.
	g.Go(func() error {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				select {
				case <-finished:
					return nil
				default:
					return errClientGone
				}
			}
		}
	})

	g.Go(func() error {
		err := h.Orchestrator.Run(ctx, req, func(ev models.Event) error {
			return conn.WriteJSON(ev)
		})
		close(finished)
		closeNormal(conn)
		_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
		if errors.Is(err, consult.ErrStreamClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Info().Err(err).Msg("WebSocket consultation ended early")
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
