package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whookdev/inspector/internal/endpoint"
	"github.com/whookdev/inspector/internal/metrics"
	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/pubsub"
	"github.com/whookdev/inspector/internal/storage"
	"github.com/whookdev/inspector/internal/viewer"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// liveFrame is one message on the viewer websocket: a history snapshot at
// subscription start, then one capture frame per stored record.
type liveFrame struct {
	Type     string                   `json:"type"`
	Captures []models.CapturedRequest `json:"captures,omitempty"`
	Capture  *models.CapturedRequest  `json:"capture,omitempty"`
}

// LiveHandler serves GET /api/endpoints/{id}/live: a websocket that streams
// newly stored captures for one endpoint, in storage order.
type LiveHandler struct {
	endpoints *endpoint.Service
	broker    pubsub.Broker
	limit     int
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewLiveHandler creates the live viewer handler.
func NewLiveHandler(endpoints *endpoint.Service, broker pubsub.Broker, limit int, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		endpoints: endpoints,
		broker:    broker,
		limit:     limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "live_handler"),
	}
}

// ServeHTTP upgrades the connection, sends the history snapshot, then
// forwards notifications until the viewer disconnects.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.endpoints.Get(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, msgEndpointNotFound)
			return
		}
		h.logger.Error("failed to load endpoint", "endpoint_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	session, err := viewer.NewSession(r.Context(), h.broker, id, h.limit)
	if err != nil {
		h.logger.Error("failed to open viewer session", "endpoint_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}
	defer session.Release()

	// History predating the subscription is fetched once, after the
	// subscription opens; the stream itself never replays it.
	history, err := h.endpoints.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load capture history", "endpoint_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}
	session.Seed(history)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "endpoint_id", id, "error", err)
		return
	}
	defer conn.Close()

	metrics.LiveSessions.Inc()
	defer metrics.LiveSessions.Dec()
	h.logger.Info("viewer connected", "endpoint_id", id)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	if err := h.writeFrame(conn, liveFrame{Type: "snapshot", Captures: session.Snapshot()}); err != nil {
		h.logger.Error("failed to send snapshot", "endpoint_id", id, "error", err)
		return
	}

	// Drain the connection so close and pong frames are processed; viewers
	// never send application data.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case capture, ok := <-session.Notifications():
			if !ok {
				return
			}
			session.Apply(capture)
			if err := h.writeFrame(conn, liveFrame{Type: "capture", Capture: capture}); err != nil {
				h.logger.Info("viewer disconnected", "endpoint_id", id, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.logger.Info("viewer disconnected", "endpoint_id", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *LiveHandler) writeFrame(conn *websocket.Conn, frame liveFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}
