package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whookdev/inspector/internal/config"
	"github.com/whookdev/inspector/internal/handlers"
)

// Server hosts the public ingestion surface and the dashboard API on one
// listener.
type Server struct {
	cfg    *config.Config
	server *http.Server
	logger *slog.Logger
}

// New wires the handlers into a configured http.Server.
func New(cfg *config.Config, ingest *handlers.IngestHandler, endpoints *handlers.EndpointHandler, live *handlers.LiveHandler, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "server"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(ingest, endpoints, live),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes(ingest *handlers.IngestHandler, endpoints *handlers.EndpointHandler, live *handlers.LiveHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/endpoints", endpoints.Create)
	mux.HandleFunc("GET /api/endpoints", endpoints.List)
	mux.HandleFunc("DELETE /api/endpoints/{id}", endpoints.Delete)
	mux.HandleFunc("GET /api/endpoints/{id}/requests", endpoints.ListRequests)
	mux.Handle("GET /api/endpoints/{id}/live", live)

	// Everything else is the public capture surface: ANY /<opaque-key>.
	mux.Handle("/", ingest)

	return mux
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("starting server", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	return s.server.Shutdown(ctx)
}
