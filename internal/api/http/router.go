package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	WorkOrders     *handlers.WorkOrdersHandler
	Stats          *handlers.StatsHandler
	Ledger         *handlers.LedgerHandler
	Catalog        *handlers.CatalogHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	supervisors := auth.RequireRole(domain.RoleSupervisor, domain.RoleAdmin)

	orders := protected.Group("/work-orders")
	orders.Get("/:id", cfg.WorkOrders.GetWorkOrder)
	orders.Get("/:id/history", cfg.WorkOrders.ListHistory)
	orders.Get("/:id/transitions", cfg.WorkOrders.DecideTransition)
	orders.Post("/:id/transitions", cfg.WorkOrders.CommitTransition)
	orders.Put("/:id/partner", cfg.WorkOrders.AssignPartner)

	stats := protected.Group("/stats")
	stats.Get("/:process/daily", cfg.Stats.Daily)
	stats.Get("/:process/weekly", cfg.Stats.Weekly)

	protected.Post("/ledger/:process/ensure-open", supervisors, cfg.Ledger.EnsureOpen)
	protected.Get("/catalog/:kind", cfg.Catalog.List)
	protected.Get("/metrics", supervisors, cfg.Health.Metrics)
}
