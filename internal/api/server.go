package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/tamilarr/internal/api/handlers"
	"github.com/amaumene/tamilarr/internal/api/middleware"
	"github.com/amaumene/tamilarr/internal/config"
	"github.com/amaumene/tamilarr/internal/controllers"
	"github.com/amaumene/tamilarr/internal/metrics"
	"github.com/amaumene/tamilarr/internal/models"
	"github.com/amaumene/tamilarr/internal/services/trackers"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	db        *models.Database
	crawlCtrl *controllers.CrawlController
	trackers  *trackers.Client
	logger    *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, crawlCtrl *controllers.CrawlController, trackersClient *trackers.Client, logger *logrus.Logger) *Server {
	s := &Server{
		db:        db,
		crawlCtrl: crawlCtrl,
		trackers:  trackersClient,
		logger:    logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.ServerHost + ":" + cfg.ServerPort,
		Handler:      middleware.Logging(middleware.CORS(mux), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Stremio addon resources
	manifestHandler := handlers.NewManifestHandler(s.logger)
	mux.HandleFunc("/manifest.json", manifestHandler.ServeHTTP)

	catalogHandler := handlers.NewCatalogHandler(s.db, s.logger)
	mux.HandleFunc("/catalog/{type}/{id}", catalogHandler.ServeHTTP)

	metaHandler := handlers.NewMetaHandler(s.db, s.logger)
	mux.HandleFunc("/meta/{type}/{id}", metaHandler.ServeHTTP)

	streamHandler := handlers.NewStreamHandler(s.db, s.trackers, s.logger)
	mux.HandleFunc("/stream/{type}/{id}", streamHandler.ServeHTTP)

	searchHandler := handlers.NewSearchHandler(s.db, s.logger)
	mux.HandleFunc("/search", searchHandler.ServeHTTP)

	// Health check
	healthHandler := handlers.NewHealthHandler(s.db, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Status endpoint
	statusHandler := handlers.NewStatusHandler(s.db, s.crawlCtrl, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Introspection
	debugHandler := handlers.NewDebugStreamsHandler(s.db, s.logger)
	mux.HandleFunc("/debug/streams/{id}", debugHandler.ServeHTTP)

	mux.Handle("/metrics", metrics.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

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
