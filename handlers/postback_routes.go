// handlers/postback_routes.go
package handlers

import (
	"offerwall-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupPostbackRoutes exposes the partner-facing callback. The advertising
// network calls this directly (not through the Gateway) and authenticates
// with the shared secret in the query string.
func SetupPostbackRoutes(app *fiber.App, postbackService *services.PostbackService) {
	app.Get("/postback", postbackService.HandlePostback)
}
