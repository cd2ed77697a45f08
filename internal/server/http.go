package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/event-types", s.handleListEventTypes)
	mux.HandleFunc("GET /v1/event-types/{id}", s.handleGetEventType)
	mux.HandleFunc("POST /v1/event-types", s.handleCreateEventType)
	mux.HandleFunc("POST /v1/events", s.handlePutEvent)
	mux.HandleFunc("POST /v1/events/query", s.handleQueryEvents)
	mux.HandleFunc("POST /v1/plants/{id}/photos", s.handleAddPhoto)
	mux.HandleFunc("GET /v1/dirty/stream", s.handleDirtyStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Health(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEventTypes handles GET /v1/event-types?since=.
func (s *Server) handleListEventTypes(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	types, err := s.EventTypes(r.Context(), since)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_types": types})
}

// handleGetEventType handles GET /v1/event-types/{id}.
func (s *Server) handleGetEventType(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeErr(w, err)
		return
	}
	et, err := s.EventType(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, et)
}

// handleCreateEventType handles POST /v1/event-types.
func (s *Server) handleCreateEventType(w http.ResponseWriter, r *http.Request) {
	var req model.NewEventType
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	et, err := s.CreateEventType(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, et)
}

// handlePutEvent handles POST /v1/events.
func (s *Server) handlePutEvent(w http.ResponseWriter, r *http.Request) {
	var req model.NewEvent
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	ev, err := s.PutEvent(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// handleQueryEvents handles POST /v1/events/query.
func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	var req model.EventQuery
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	evs, err := s.GetEvents(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// handleAddPhoto handles POST /v1/plants/{id}/photos?taken_at=. The body is
// the raw image.
func (s *Server) handleAddPhoto(w http.ResponseWriter, r *http.Request) {
	entity, err := pathUUID(r, "id")
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var takenAt time.Time
	if v := r.URL.Query().Get("taken_at"); v != "" {
		if takenAt, err = time.Parse(time.RFC3339, v); err != nil {
			s.writeErr(w, inputError(fmt.Sprintf("invalid taken_at %q: want RFC3339", v)))
			return
		}
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeErr(w, inputError(fmt.Sprintf("photo exceeds %d bytes", maxPhotoBytes)))
			return
		}
		s.writeErr(w, inputError("failed to read photo body"))
		return
	}
	p, ev, err := s.AddPhoto(r.Context(), entity, r.Header.Get("Content-Type"), takenAt, data)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"photo": p, "event": ev})
}

// parseSince accepts unix seconds or RFC3339. Empty means the full set.
func parseSince(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return time.Time{}, nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, inputError(fmt.Sprintf("invalid since %q: want unix seconds or RFC3339", v))
	}
	return t.UTC(), nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, inputError(fmt.Sprintf("invalid %s %q", name, r.PathValue(name)))
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return inputError("invalid request body: " + err.Error())
	}
	return nil
}

// writeErr maps err to a status and error code and writes it.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
