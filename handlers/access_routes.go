// handlers/access_routes.go
package handlers

import (
	"music-access-system/middleware"
	"music-access-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAccessRoutes(app *fiber.App, entitlementService *services.EntitlementService, downloadService *services.DownloadService, auditService *services.AuditService) {
	// 🔓 Internal routes — no user context, but **still require Gateway auth**.
	// Called service-to-service by the storefront and the monitoring pipeline.
	app.Get("/internal/entitlement/check", entitlementService.CheckEntitlement)
	app.Post("/internal/audit/suspicious", auditService.IngestSuspiciousEvent)

	// 🔐 Secured routes — require user context (userID, roles)
	// Applied per-route: a root-prefix group would mount the middleware as a
	// global Use and gate the public routes other setups register.
	app.Post("/download-token", middleware.UserContextMiddleware(), downloadService.RequestDownloadToken)
	app.Get("/download", middleware.UserContextMiddleware(), downloadService.Download)
}
