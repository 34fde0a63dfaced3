// handlers/content_routes.go
package handlers

import (
	"music-access-system/middleware"
	"music-access-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupContentRoutes(app *fiber.App, contentService *services.ContentService, subscriptionService *services.SubscriptionService, revenueService *services.RevenueService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/tracks", contentService.ListContent)

	// 🔐 Secured routes — require user context (userID, roles)
	// Applied per-route so the public /tracks above stays public.
	userCtx := middleware.UserContextMiddleware()
	app.Post("/tracks/:id/interactions", userCtx, contentService.RecordInteraction)
	app.Post("/subscriptions", userCtx, subscriptionService.Subscribe)
	app.Get("/subscriptions/quota", userCtx, subscriptionService.GetQuota)

	// ✅ DJ-only surfaces
	djOnly := middleware.RequireRole("dj")
	app.Post("/tracks", userCtx, djOnly, contentService.CreateContent)
	app.Patch("/tracks/:id/status", userCtx, djOnly, contentService.UpdateContentStatus)
	app.Get("/monetization/settings", userCtx, djOnly, revenueService.GetMonetizationSettings)
	app.Put("/monetization/settings", userCtx, djOnly, revenueService.UpdateMonetizationSettings)
}
