package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cedarwud/stagegate/internal/orchestrator"
)

// RunPipeline executes the full validation pipeline with the submitted data payload.
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
			return
		}
	}
	if body.Data == nil {
		body.Data = map[string]interface{}{}
	}

	result, err := h.orch.Run(r.Context(), body.Data)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrCircularDependency),
			errors.Is(err, orchestrator.ErrUnknownDependency),
			errors.Is(err, orchestrator.ErrMissingValidator):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error(), err)
		default:
			h.writeError(w, http.StatusInternalServerError, "pipeline execution failed", err)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(result)
}
