package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

const defaultRetentionDays = 30

// ListSnapshots returns snapshot summaries, optionally filtered by stage.
func (h *Handlers) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	summaries, err := h.store.List(r.Context(), stage, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots", err)
		return
	}
	if summaries == nil {
		summaries = []types.SnapshotSummary{}
	}
	_ = json.NewEncoder(w).Encode(summaries)
}

// GetSnapshot returns a full snapshot by ID.
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "snapshotID")
	snap, err := h.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "snapshot not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load snapshot", err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

// CleanupSnapshots deletes snapshots older than the requested retention window.
func (h *Handlers) CleanupSnapshots(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RetentionDays int `json:"retentionDays"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
			return
		}
	}
	if body.RetentionDays <= 0 {
		body.RetentionDays = defaultRetentionDays
	}

	result, err := h.store.Cleanup(r.Context(), body.RetentionDays)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "cleanup failed", err)
		return
	}
	_ = json.NewEncoder(w).Encode(result)
}

// ConsolidatedReport returns aggregate quality statistics across snapshots.
func (h *Handlers) ConsolidatedReport(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	report, err := h.store.ConsolidatedReport(r.Context(), stage)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build report", err)
		return
	}
	_ = json.NewEncoder(w).Encode(report)
}
