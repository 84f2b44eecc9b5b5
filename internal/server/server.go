// Package server assembles the HTTP + WebSocket API: public market
// reads, the authenticated admin surface, and the live event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matkalabs/matkad/internal/server/handler"
	"github.com/matkalabs/matkad/internal/server/middleware"
	"github.com/matkalabs/matkad/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, admin authentication is disabled
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health       *handler.HealthHandler
	Markets      *handler.MarketHandler
	Declarations *handler.DeclarationHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Public reads and
// the WebSocket stream are open; everything under /api/admin/ requires
// the API key.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Public surface.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{marketId}", handlers.Markets.GetMarket)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Admin surface, behind auth.
	admin := http.NewServeMux()
	admin.HandleFunc("POST /api/admin/markets", handlers.Markets.CreateMarket)
	admin.HandleFunc("PUT /api/admin/markets/{marketId}", handlers.Markets.UpdateMarket)
	admin.HandleFunc("DELETE /api/admin/markets/{marketId}", handlers.Markets.DeleteMarket)
	admin.HandleFunc("POST /api/admin/markets/declare", handlers.Declarations.Declare)
	admin.HandleFunc("POST /api/admin/markets/publish-open", handlers.Declarations.PublishOpen)
	admin.HandleFunc("POST /api/admin/markets/reset-result", handlers.Declarations.ResetResult)
	admin.HandleFunc("GET /api/admin/results", handlers.Declarations.History)

	mux.Handle("/api/admin/", middleware.Auth(cfg.APIKey)(admin))

	// Middleware chain around the whole mux.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
