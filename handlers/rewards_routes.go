// handlers/rewards_routes.go
package handlers

import (
	"music-access-system/middleware"
	"music-access-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardsRoutes(app *fiber.App, referralService *services.ReferralService) {
	// 🔐 All rewards routes require user context
	secured := app.Group("/rewards", middleware.UserContextMiddleware())

	secured.Get("/points", referralService.GetPoints)
	secured.Get("/referral", referralService.GetReferral)
	secured.Post("/referral/generate", referralService.GenerateReferralCode)
	secured.Post("/track", referralService.TrackReferralEndpoint)
}
