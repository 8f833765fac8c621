package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/internal/scheduler"
	"github.com/elonfeng/vibescore/pkg/achievement"
	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/featured"
	"github.com/elonfeng/vibescore/pkg/ranking"
	"github.com/elonfeng/vibescore/pkg/spotlight"
)

// Leaderboards reads persisted rankings.
type Leaderboards interface {
	Leaderboard(ctx context.Context, scope ranking.Scope, categorySlug string, limit int) ([]ranking.Entry, error)
}

// Achievements checks and lists user achievements.
type Achievements interface {
	Check(ctx context.Context, userID int64) ([]achievement.Unlock, error)
	Progress(ctx context.Context, userID int64) ([]achievement.Status, error)
}

// Spotlights returns the active spotlight.
type Spotlights interface {
	CurrentWithDetails(ctx context.Context) (*spotlight.Details, error)
}

// Suggester produces featured suggestions.
type Suggester interface {
	Suggestions(ctx context.Context) (*featured.Report, error)
}

// PassRunner triggers a scheduled pass by name.
type PassRunner interface {
	RunNamed(ctx context.Context, name string) error
}

// Pinger checks storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the ops API.
type Deps struct {
	DB           Pinger
	Leaderboards Leaderboards
	Achievements Achievements
	Spotlights   Spotlights
	Featured     Suggester
	Passes       PassRunner
}

// Server provides the ops HTTP API.
type Server struct {
	deps Deps
	port int
	log  zerolog.Logger
}

// New creates a new HTTP server.
func New(deps Deps, port int, log zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		deps: deps,
		port: port,
		log:  log.With().Str("component", "server").Logger(),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rankings", s.handleRankings)
		r.Post("/passes/{name}/run", s.handleRunPass)
		r.Get("/spotlight", s.handleSpotlight)
		r.Get("/users/{id}/achievements", s.handleProgress)
		r.Post("/users/{id}/achievements/check", s.handleCheck)
		r.Get("/featured/suggestions", s.handleSuggestions)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", srv.Addr).Msg("vibescore server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := s.deps.Leaderboards.Leaderboard(r.Context(), ranking.Scope(q.Get("scope")), q.Get("category"), limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"count": len(entries),
	})
}

func (s *Server) handleRunPass(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.deps.Passes.RunNamed(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownPass):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrLocked):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "done", "pass": name})
	}
}

func (s *Server) handleSpotlight(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Spotlights.CurrentWithDetails(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "no spotlight")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	unlocks, err := s.deps.Achievements.Check(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil && len(unlocks) == 0 {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if unlocks == nil {
		unlocks = []achievement.Unlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unlocked": unlocks,
		"count":    len(unlocks),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	progress, err := s.deps.Achievements.Progress(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": progress})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Featured.Suggestions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
