package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rankwatch/internal/handlers"
	"rankwatch/internal/handlers/api"
	"rankwatch/internal/middleware"
)

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Items     api.ItemStore
	Tracker   api.Registrar
	Refresher api.Refresher
	DB        handlers.Pinger
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Dependencies) {
	ownerMiddleware := middleware.NewOwnerMiddleware(s.Cfg.OwnerHeader)

	probeHandler := handlers.NewProbeHandler(deps.DB)
	itemHandler := api.NewItemHandler(deps.Items, deps.Tracker, deps.Refresher, s.Cfg, s.Logger)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Owner-scoped API
	itemHandler.Register(s.App.Group("/api", ownerMiddleware.RequireOwner))
}
