package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dpterminal/internal/api/health"
	"dpterminal/internal/domain/thumbnail"
	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port           int
	ServiceName    string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	SessionCookie  string
	SessionTTL     time.Duration
	SecureCookies  bool
	ForceHTTPS     bool
	AllowedOrigins []string
}

// Dependencies are the services behind the routes. Thumbnails is optional.
type Dependencies struct {
	Dispatcher Dispatcher
	Sessions   Sessions
	Thumbnails thumbnail.Repository
	Health     *health.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds the routed handler with all middleware applied
func NewRouter(cfg ServerConfig, deps Dependencies, log *logger.Logger) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "dp_session"
	}

	h := &handlers{
		dispatcher:   deps.Dispatcher,
		sessions:     deps.Sessions,
		thumbnails:   deps.Thumbnails,
		maxBodyBytes: cfg.MaxBodyBytes,
		log:          log.With("component", "api"),
	}

	r := mux.NewRouter()
	r.Use(requestLogger(log))

	// Kubernetes probes
	r.HandleFunc("/health", deps.Health.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", deps.Health.HandleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/live", deps.Health.HandleLiveness).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	app := r.NewRoute().Subrouter()
	app.Use(sessionCookie(cfg.SessionCookie, cfg.SessionTTL, cfg.SecureCookies))
	app.HandleFunc("/chat", h.chat).Methods(http.MethodPost)
	app.HandleFunc("/set_personality", h.setPersonality).Methods(http.MethodPost)
	app.HandleFunc("/personalities", h.personalities).Methods(http.MethodGet)

	if deps.Thumbnails != nil {
		r.HandleFunc("/thumbnails/{id:[0-9a-fA-F-]+}.png", h.thumbnail).Methods(http.MethodGet)
	}

	// Root endpoint (service info)
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	}).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var handler http.Handler = r
	handler = cors(cfg.AllowedOrigins)(handler)
	handler = httpsRedirect(cfg.ForceHTTPS)(handler)
	handler = recoverer(log)(handler)
	return handler
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, deps Dependencies, log *logger.Logger) *Server {
	port := 5000
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(cfg, deps, log),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
