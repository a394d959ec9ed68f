// Package server exposes the research data over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/candidate"
	"github.com/brunotatsuya/affiliana-cli/pkg/niche"
	"github.com/brunotatsuya/affiliana-cli/pkg/product"
	"github.com/brunotatsuya/affiliana-cli/pkg/research"
)

// Server provides the HTTP API.
type Server struct {
	niches  *niche.Registry
	catalog *product.Catalog
	engine  *candidate.Engine
	limits  research.Thresholds
	workers int
	port    int
	log     *zap.Logger
	router  chi.Router
}

// New creates a new HTTP server.
func New(niches *niche.Registry, catalog *product.Catalog, engine *candidate.Engine, limits research.Thresholds, workers, port int, log *zap.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	s := &Server{
		niches:  niches,
		catalog: catalog,
		engine:  engine,
		limits:  limits,
		workers: workers,
		port:    port,
		log:     log,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/niches", s.handleNiches)
		r.Get("/niches/{id}", s.handleNiche)
		r.Get("/niches/{id}/products", s.handleNicheProducts)
		r.Get("/products/{asin}", s.handleProduct)
		r.Get("/candidates", s.handleCandidates)
		r.Get("/candidates/{id}/statistics", s.handleStatistics)
		r.Get("/snapshot.csv", s.handleSnapshot)
	})
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNiches(w http.ResponseWriter, r *http.Request) {
	niches, err := s.niches.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  niches,
		"count": len(niches),
	})
}

func (s *Server) handleNiche(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	n, err := s.niches.ByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kws, err := s.engine.Reachable(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":     n,
		"keywords": kws,
	})
}

func (s *Server) handleNicheProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if _, err := s.niches.ByID(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	products, err := s.catalog.ForNiche(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  products,
		"count": len(products),
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.ByASIN(r.Context(), chi.URLParam(r, "asin"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	limits, err := s.thresholds(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	niches, err := s.engine.Candidates(r.Context(), limits.MinVolume, limits.MaxDomainAuthority)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":                 niches,
		"count":                len(niches),
		"min_volume":           limits.MinVolume,
		"max_domain_authority": limits.MaxDomainAuthority,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	n, err := s.niches.ByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cs, err := s.engine.Statistics(r.Context(), *n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": cs})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	limits, err := s.thresholds(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	niches, err := s.engine.Candidates(ctx, limits.MinVolume, limits.MaxDomainAuthority)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	all, err := s.engine.StatisticsForAll(ctx, niches, s.workers)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("snapshot statistics incomplete", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="snapshot.csv"`)
	if err := candidate.WriteCSV(w, all); err != nil {
		s.log.Error("write snapshot", zap.Error(err))
	}
}

// thresholds reads min_volume and max_da, falling back to the configured limits.
func (s *Server) thresholds(r *http.Request) (research.Thresholds, error) {
	limits := s.limits
	q := r.URL.Query()
	if v := q.Get("min_volume"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return limits, fmt.Errorf("invalid min_volume %q", v)
		}
		limits.MinVolume = n
	}
	if v := q.Get("max_da"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return limits, fmt.Errorf("invalid max_da %q", v)
		}
		limits.MaxDomainAuthority = n
	}
	return limits, nil
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid id %q", raw)})
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *candidate.InsufficientDataError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
