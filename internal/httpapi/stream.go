package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/mcpchat/internal/status"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// statusStream pushes every change of a request's record until it reaches a
// terminal status or the client goes away.
func (s *server) statusStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestId")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Status stream upgrade failed", "request_id", id, "err", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close frame; client messages are discarded.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var last status.Record
	for {
		rec, err := s.tracker.Get(r.Context(), id)
		switch {
		case errors.Is(err, status.ErrNotFound):
		case err != nil:
			slog.Warn("Status stream read failed", "request_id", id, "err", err)
		case rec != last:
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
			last = rec
			if rec.Terminal() {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, rec.Status)
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
