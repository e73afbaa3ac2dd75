// Package server implements the stagegate HTTP API server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cedarwud/stagegate/internal/orchestrator"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

const defaultMaxRequestBody = 1 << 20

// Server is the stagegate HTTP API server.
type Server struct {
	orch   *orchestrator.Orchestrator
	store  snapshot.Store
	router chi.Router
	addr   string
	srv    *http.Server
}

// New creates a new HTTP server.
func New(cfg types.ServerConfig, orch *orchestrator.Orchestrator, store snapshot.Store) *Server {
	s := &Server{
		orch:  orch,
		store: store,
		addr:  cfg.Addr,
	}

	maxBody := cfg.MaxRequestBody
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBody
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(slog.Default()))
	r.Use(middleware.Recoverer)
	r.Use(APIKey(cfg.APIKey))
	r.Use(MaxBody(maxBody))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	fmt.Printf("stagegate server listening on %s\n", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
