package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/pipeline"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer starts, cancels, and reports analysis runs.
type Analyzer interface {
	Start(ctx context.Context) (string, error)
	Cancel() bool
	Status() pipeline.Status
}

// LocationStore holds the selected point and the last result.
type LocationStore interface {
	Select(p domain.GeoPoint) error
	Snapshot() store.Snapshot
}

// API bundles the collaborators behind the /api routes.
type API struct {
	Store    LocationStore
	Analyzer Analyzer
	Searcher domain.PlaceSearcher
	// Country restricts place searches that do not name one.
	Country string
}

// Server exposes health, readiness, metrics, and the analysis API.
type Server struct {
	httpServer *http.Server
	api        API
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and /api routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api API, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/locations/search", s.handleSearch)
	mux.HandleFunc("GET /api/location", s.handleGetLocation)
	mux.HandleFunc("PUT /api/location", s.handlePutLocation)
	mux.HandleFunc("POST /api/analysis", s.handleStartAnalysis)
	mux.HandleFunc("DELETE /api/analysis", s.handleCancelAnalysis)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysisStatus)
	mux.HandleFunc("GET /api/result", s.handleResult)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
