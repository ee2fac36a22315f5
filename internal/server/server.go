// Package server exposes the dashboard over a small JSON API, meant for a
// wall display or a phone on the local network.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"pathdash/internal/display"
	"pathdash/internal/engine"
	"pathdash/internal/geo"
	"pathdash/internal/location"
	"pathdash/internal/prefs"
)

// Refresher triggers an immediate re-fetch of all polled feeds.
type Refresher interface {
	Refresh()
}

// Server is the HTTP front of the dashboard.
type Server struct {
	router    chi.Router
	engine    *engine.Engine
	prefs     *prefs.Store
	loc       *location.Manual
	refresher Refresher
	logger    *slog.Logger
	port      int
}

// New creates a Server with all routes registered.
func New(port int, eng *engine.Engine, store *prefs.Store, loc *location.Manual, refresher Refresher, logger *slog.Logger) *Server {
	s := &Server{
		engine:    eng,
		prefs:     store,
		loc:       loc,
		refresher: refresher,
		logger:    logger,
		port:      port,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/location", s.handleLocation)
		r.Get("/prefs", s.handleGetPrefs)
		r.Put("/prefs", s.handlePutPrefs)
	})
	s.router = r
	return s
}

// Handler returns the assembled route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the HTTP server and blocks.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleDashboard renders the latest snapshot through the user's
// preferences. The snapshot is whatever the combine loop last produced;
// the handler never blocks on a fetch.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Load(r.Context())
	if err != nil {
		s.logger.Error("load preferences", "error", err)
		p = prefs.Defaults
	}
	model := display.Map(s.engine.Latest(), p, time.Now())
	writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refresher.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}
	s.loc.Set(geo.Coordinate{Lat: req.Lat, Lon: req.Lon})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Load(r.Context())
	if err != nil {
		s.logger.Error("load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.prefs.Save(r.Context(), p); err != nil {
		s.logger.Error("save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
