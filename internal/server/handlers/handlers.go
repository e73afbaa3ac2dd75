// Package handlers implements HTTP request handlers for the stagegate API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cedarwud/stagegate/internal/orchestrator"
	"github.com/cedarwud/stagegate/internal/snapshot"
)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	orch   *orchestrator.Orchestrator
	store  snapshot.Store
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(orch *orchestrator.Orchestrator, store snapshot.Store) *Handlers {
	return &Handlers{
		orch:   orch,
		store:  store,
		logger: slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
