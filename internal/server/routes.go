package server

import (
	"expvar"

	"github.com/go-chi/chi/v5"

	"github.com/cedarwud/stagegate/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.orch, s.store)

	r.Route("/api", func(r chi.Router) {
		// Health
		r.Get("/health", h.Health)

		// Stages
		r.Get("/stages", h.ListStages)
		r.Get("/stages/{stageID}", h.GetStage)
		r.Get("/stages/order", h.GetExecutionOrder)

		// Pipeline execution
		r.Post("/run", h.RunPipeline)

		// Snapshots
		r.Get("/snapshots", h.ListSnapshots)
		r.Get("/snapshots/{snapshotID}", h.GetSnapshot)
		r.Post("/snapshots/cleanup", h.CleanupSnapshots)

		// Reporting
		r.Get("/report", h.ConsolidatedReport)
	})

	r.Handle("/debug/vars", expvar.Handler())
}
