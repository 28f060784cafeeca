package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/sdk"
)

// Server represents the HTTP API server
type Server struct {
	router *chi.Mux
	client *sdk.Client
	config *types.APIConfig
	http   *http.Server
	log    *logrus.Entry
}

// NewServer creates a new API server
func NewServer(client *sdk.Client, config *types.APIConfig) (*Server, error) {
	router, err := NewRouter(client).SetupRoutes()
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return &Server{
		router: router,
		client: client,
		config: config,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: logging.Component(logrus.NewEntry(client.Logger()), "api"),
	}, nil
}

// Start starts the HTTP server and blocks until it is stopped.
// A server closed by Stop returns nil.
func (s *Server) Start() error {
	addr := s.http.Addr

	s.log.Infof("Starting IndexTree API server on %s", addr)
	s.log.Infof("API endpoints available at http://%s/api/v1/", addr)
	s.log.Infof("Health check available at http://%s/health", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GetRouter returns the configured router
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

// Stop drains in-flight requests and closes the cache store
func (s *Server) Stop(ctx context.Context) error {
	shutdownErr := s.http.Shutdown(ctx)
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close cache store: %w", err)
	}
	return shutdownErr
}

// Run starts the server and stops it once ctx is done, allowing grace for in-flight requests
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		s.client.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("Server shutdown complete")
	return <-errCh
}
