package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cedarwud/stagegate/internal/orchestrator"
	"github.com/cedarwud/stagegate/pkg/types"
)

// ListStages returns all registered stages.
func (h *Handlers) ListStages(w http.ResponseWriter, _ *http.Request) {
	stages := h.orch.Stages()
	if stages == nil {
		stages = []types.ExecutionStage{}
	}
	_ = json.NewEncoder(w).Encode(stages)
}

// GetStage returns a single stage definition.
func (h *Handlers) GetStage(w http.ResponseWriter, r *http.Request) {
	stageID := chi.URLParam(r, "stageID")
	stage, ok := h.orch.Stage(stageID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "stage not found", nil)
		return
	}
	_ = json.NewEncoder(w).Encode(stage)
}

// GetExecutionOrder returns the dependency-resolved stage execution order.
func (h *Handlers) GetExecutionOrder(w http.ResponseWriter, _ *http.Request) {
	order, err := h.orch.ComputeExecutionOrder(nil)
	if err != nil {
		if errors.Is(err, orchestrator.ErrCircularDependency) {
			h.writeError(w, http.StatusConflict, err.Error(), err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to compute order", err)
		return
	}
	if order == nil {
		order = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string][]string{"order": order})
}
