// Package server exposes simulation state and recorded runs over a read-only
// HTTP API, plus a websocket stream of live tick statistics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"echochamber/internal/db"
	"echochamber/internal/sim"
)

// writeTimeout bounds a single websocket frame write
const writeTimeout = 5 * time.Second

// Server serves the API. Either the store or the live simulation may be nil;
// their routes then answer 503.
type Server struct {
	store  *db.DB
	live   *Live
	hub    *Hub
	logger *slog.Logger
}

// New creates a Server
func New(store *db.DB, live *Live, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{store: store, live: live, hub: hub, logger: logger}
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/steps", s.handleRunSteps)
	})
	r.Get("/ws/steps", s.handleStepStream)

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		Error(w, http.StatusServiceUnavailable, "no live simulation")
		return
	}
	JSON(w, http.StatusOK, s.live.State())
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		Error(w, http.StatusServiceUnavailable, "no live simulation")
		return
	}
	cfg := sim.DefaultAnalyzerConfig()
	if v, ok := queryInt(r, "top"); ok && v > 0 {
		cfg.TopN = v
	}
	if v, ok := queryInt(r, "hub_threshold"); ok && v > 0 {
		cfg.HubThreshold = v
	}
	JSON(w, http.StatusOK, s.live.Analyze(cfg))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		Error(w, http.StatusServiceUnavailable, "no run database")
		return
	}
	limit, _ := queryInt(r, "limit")
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	JSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		Error(w, http.StatusServiceUnavailable, "no run database")
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, run)
}

func (s *Server) handleRunSteps(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		Error(w, http.StatusServiceUnavailable, "no run database")
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	from, _ := queryInt(r, "from")
	limit, _ := queryInt(r, "limit")
	steps, err := s.store.StepsForRun(r.Context(), run.ID, from, limit)
	if err != nil {
		s.logger.Error("loading steps", "run", run.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load steps")
		return
	}
	if steps == nil {
		steps = []db.StepRecord{}
	}
	JSON(w, http.StatusOK, steps)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*db.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		Error(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return run, true
}

// handleStepStream pushes every tick's statistics as a JSON text message
func (s *Server) handleStepStream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("accepting websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			s.logger.Debug("closing websocket", "error", closeErr)
		}
	}()

	// The stream is one-way; CloseRead handles control frames and cancels
	// ctx once the client goes away.
	ctx := ws.CloseRead(r.Context())

	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()
	s.logger.Debug("step stream opened", "remote", r.RemoteAddr, "subscribers", s.hub.Subscribers())

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-updates:
			if err := writeMessage(ctx, ws, msg); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					s.logger.Warn("websocket write", "error", err)
				}
				return
			}
		}
	}
}

func writeMessage(ctx context.Context, ws *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, msg)
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
