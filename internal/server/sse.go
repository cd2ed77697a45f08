package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alfredjeanlab/plantlog/internal/notify"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// handleDirtyStream handles GET /v1/dirty/stream. Each frame is written as
// id:<epoch>.<seq>, event:<ready|dirty|resync>, data:<json>. A client that
// reconnects with Last-Event-ID receives what it missed or a resync.
func (s *Server) handleDirtyStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("last_id")
	}

	err := s.hub.Stream(r.Context(), lastID, notify.StreamOptions{
		Keepalive: sseKeepaliveInterval,
		OnIdle: func() error {
			if _, err := fmt.Fprint(w, ":keepalive\n\n"); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		},
	}, func(f notify.Frame) error {
		if err := writeSSEFrame(w, f); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if errors.Is(err, notify.ErrEvicted) {
		s.logger.Warn("dirty stream evicted", "remote", r.RemoteAddr)
	}
}

// writeSSEFrame writes a single SSE event to the writer.
func writeSSEFrame(w http.ResponseWriter, f notify.Frame) error {
	data := []byte("{}")
	if f.Notification != nil {
		var err error
		if data, err = json.Marshal(f.Notification); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "id:%s\nevent:%s\ndata:%s\n\n", f.ID, f.Type, data)
	return err
}
