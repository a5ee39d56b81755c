package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/trackarr/internal/api/handlers"
	"github.com/amaumene/trackarr/internal/api/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Services are the controllers behind the HTTP routes. Podcasts may be nil
// when no podcast provider is configured.
type Services struct {
	Stats    handlers.StatsReader
	Progress handlers.ProgressService
	Imports  handlers.ImportRunner
	Podcasts handlers.PodcastRefresher
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server listening on port
func NewServer(port string, services Services, logger *logrus.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(services, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute, // imports run inside the request
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter configures all HTTP routes
func NewRouter(services Services, logger *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Logging(logger))

	router.Handle("/health", handlers.NewHealthHandler(logger)).Methods(http.MethodGet)
	router.Handle("/status", handlers.NewStatusHandler(services.Stats, logger)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	progress := handlers.NewProgressHandler(services.Progress, logger)
	api.HandleFunc("/progress", progress.Apply).Methods(http.MethodPost)
	api.HandleFunc("/seen/{id:[0-9]+}", progress.DeleteSeen).Methods(http.MethodDelete)
	api.HandleFunc("/media", progress.List).Methods(http.MethodGet)
	api.HandleFunc("/media/consumed", progress.Consumed).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}", progress.Details).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}/history", progress.History).Methods(http.MethodGet)

	api.Handle("/imports/{source}", handlers.NewImportHandler(services.Imports, logger)).Methods(http.MethodPost)

	if services.Podcasts != nil {
		api.Handle("/podcasts/{identifier}", handlers.NewPodcastHandler(services.Podcasts, logger)).Methods(http.MethodPost)
	}

	return router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
