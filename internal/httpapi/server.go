// Package httpapi is the HTTP ingress: chat turns, request status polling and
// streaming, tool diagnostics, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/crystaldolphin/mcpchat/internal/orchestrator"
	"github.com/crystaldolphin/mcpchat/internal/status"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

const defaultPollInterval = 250 * time.Millisecond

// Engine runs one chat turn.
type Engine interface {
	Process(ctx context.Context, req orchestrator.TurnRequest, onEvent orchestrator.EventFunc) (orchestrator.TurnResult, error)
}

// ToolCatalog exposes the grouped tool listing.
type ToolCatalog interface {
	GroupedByOrigin() []tools.ToolGroup
}

// Options configures the handler. Metrics defaults to the global Prometheus
// registry.
type Options struct {
	Engine       Engine
	Tracker      *status.Tracker
	Tools        ToolCatalog
	Metrics      http.Handler
	PollInterval time.Duration
}

type server struct {
	engine  Engine
	tracker *status.Tracker
	tools   ToolCatalog
	poll    time.Duration
}

// NewHandler builds the router with CORS and request logging applied.
func NewHandler(opts Options) http.Handler {
	s := &server{
		engine:  opts.Engine,
		tracker: opts.Tracker,
		tools:   opts.Tools,
		poll:    opts.PollInterval,
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/message", s.chat)
		r.Get("/chat/status/{requestId}", s.status)
		r.Get("/chat/status/{requestId}/ws", s.statusStream)
		r.Get("/tools", s.listTools)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type chatData struct {
	Response       string `json:"response"`
	Provider       string `json:"provider"`
	ContextKey     string `json:"contextKey"`
	ContextApplied bool   `json:"contextApplied"`
	RequestID      string `json:"requestId"`
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Chat: invalid request body", "err", err)
		writeError(w, invalid("invalid JSON body"))
		return
	}
	in, err := body.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := r.Context()
	s.setStatus(ctx, requestID, "received", "Solicitud recibida")

	res, err := s.engine.Process(ctx, orchestrator.TurnRequest{
		Message:    in.Message,
		History:    in.History,
		Provider:   in.Provider,
		ContextKey: in.ContextKey,
		RequestID:  requestID,
	}, s.tracker.Hook(requestID))
	if err != nil {
		if ferr := s.tracker.Fail(context.WithoutCancel(ctx), requestID, err.Error()); ferr != nil {
			slog.Warn("Status update failed", "request_id", requestID, "err", ferr)
		}
		writeError(w, err)
		return
	}

	if err := s.tracker.Complete(context.WithoutCancel(ctx), requestID, "Respuesta enviada"); err != nil {
		slog.Warn("Status update failed", "request_id", requestID, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": chatData{
			Response:       res.Text,
			Provider:       res.Provider,
			ContextKey:     res.ContextKey,
			ContextApplied: res.ContextApplied,
			RequestID:      requestID,
		},
	})
}

func (s *server) setStatus(ctx context.Context, id, st, details string) {
	if err := s.tracker.SetStatus(ctx, id, st, details); err != nil {
		slog.Warn("Status update failed", "request_id", id, "status", st, "err", err)
	}
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestId")
	rec, err := s.tracker.Get(r.Context(), id)
	if errors.Is(err, status.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{
			Error:   "Not Found",
			Message: "No status found for request " + id,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (s *server) listTools(w http.ResponseWriter, _ *http.Request) {
	groups := []tools.ToolGroup{}
	if s.tools != nil {
		groups = append(groups, s.tools.GroupedByOrigin()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": groups})
}
