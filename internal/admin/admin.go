// Package admin serves the demo server's operational endpoints: a health
// check, a JSON snapshot of the pool, and Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/utkarsh5026/threadpool/internal/metrics"
)

type Server struct {
	router *chi.Mux
	server *http.Server
	pool   metrics.StatsSource
	log    zerolog.Logger
}

type response struct {
	Data any `json:"data"`
}

type health struct {
	Status string    `json:"status"`
	Size   int       `json:"size"`
	Live   int       `json:"live"`
	Time   time.Time `json:"timestamp"`
}

// New builds the admin router. Nothing listens until Start.
func New(addr string, src metrics.StatsSource, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	s := &Server{
		router: r,
		pool:   src,
		log:    log,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens and serves until Stop. It returns nil after a clean Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is like Start but uses an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin endpoint listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the admin endpoint down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports healthy while every worker is live.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.pool.Stats()

	h := health{
		Status: "healthy",
		Size:   stats.Size,
		Live:   stats.Live,
		Time:   time.Now().UTC(),
	}
	code := http.StatusOK
	if stats.Live < stats.Size {
		h.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, h)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response{Data: data}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("admin request")
		})
	}
}
