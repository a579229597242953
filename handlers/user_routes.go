// handlers/user_routes.go
package handlers

import (
	"offerwall-rewards-system/middleware"
	"offerwall-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupUserRoutes wires the authenticated account endpoints. Everything under
// /s/ requires the gateway-supplied user context.
func SetupUserRoutes(app *fiber.App, userService *services.UserService, withdrawalService *services.WithdrawalService) {
	secured := app.Group("/s/user", middleware.UserContextMiddleware())

	secured.Post("/signup", userService.HandleSignup)
	secured.Get("/balance", userService.HandleBalance)
	secured.Get("/transactions", userService.HandleTransactions)

	secured.Get("/referral", userService.HandleReferralInfo)
	secured.Post("/referral/apply", userService.HandleReferralApply)

	secured.Post("/withdrawals", withdrawalService.HandleRequest)
	secured.Get("/withdrawals", withdrawalService.HandleList)
}
