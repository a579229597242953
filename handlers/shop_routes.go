// handlers/shop_routes.go
package handlers

import (
	"offerwall-rewards-system/middleware"
	"offerwall-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupShopRoutes wires the public catalog and the admin management surface.
func SetupShopRoutes(app *fiber.App, catalogService *services.CatalogService) {
	app.Get("/shop/rewards", catalogService.ListPublished)

	admin := app.Group("/s/admin/rewards", middleware.UserContextMiddleware(), middleware.RequireAdmin())
	admin.Get("/", catalogService.GetAllRewards)
	admin.Post("/", catalogService.CreateReward)
	admin.Patch("/:id", catalogService.UpdateReward)
	admin.Delete("/:id", catalogService.ArchiveReward)
	admin.Post("/:id/image", catalogService.UploadRewardImage)
}
