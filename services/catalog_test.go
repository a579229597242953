package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"offerwall-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func catalogApp(svc *CatalogService) *fiber.App {
	app := fiber.New()
	app.Get("/shop/rewards", svc.ListPublished)
	app.Post("/s/admin/rewards", svc.CreateReward)
	app.Delete("/s/admin/rewards/:id", svc.ArchiveReward)
	return app
}

func TestCatalogListOnlyPublishedInStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db)

	rewards := []models.Reward{
		{ID: uuid.NewString(), Name: "Visible", Slug: "visible", Category: models.RewardCategoryGiftCard, PricePoints: 100, Stock: -1, Status: models.RewardStatusPublished},
		{ID: uuid.NewString(), Name: "Draft", Slug: "draft", Category: models.RewardCategoryGiftCard, PricePoints: 100, Stock: -1, Status: models.RewardStatusDraft},
		{ID: uuid.NewString(), Name: "Sold out", Slug: "sold-out", Category: models.RewardCategoryGiftCard, PricePoints: 100, Stock: 0, Status: models.RewardStatusPublished},
	}
	for i := range rewards {
		if err := db.Create(&rewards[i]).Error; err != nil {
			t.Fatalf("seed reward: %v", err)
		}
	}

	app := catalogApp(svc)
	resp, err := app.Test(httptest.NewRequest("GET", "/shop/rewards", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var listed []models.Reward
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Visible" {
		t.Fatalf("listed = %+v, want only the published in-stock entry", listed)
	}
}

func TestCatalogCreateAndArchive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db)
	app := catalogApp(svc)

	body := strings.NewReader(`{"name":"Steam Card","category":"gift_card","price_points":2500,"status":"published"}`)
	req := httptest.NewRequest("POST", "/s/admin/rewards", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created models.Reward
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.Slug, "steam-card-") {
		t.Fatalf("slug = %q, want steam-card-* prefix", created.Slug)
	}
	if created.Stock != -1 {
		t.Fatalf("stock = %d, want unlimited default -1", created.Stock)
	}

	resp, err = app.Test(httptest.NewRequest("DELETE", "/s/admin/rewards/"+created.ID, nil))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archive status = %d, want 200", resp.StatusCode)
	}

	var reloaded models.Reward
	db.First(&reloaded, "id = ?", created.ID)
	if reloaded.Status != models.RewardStatusArchived {
		t.Fatalf("status = %s, want archived", reloaded.Status)
	}

	// Price validation rejects zero/negative.
	bad := strings.NewReader(`{"name":"Free","category":"other","price_points":0}`)
	req = httptest.NewRequest("POST", "/s/admin/rewards", bad)
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero price status = %d, want 400", resp.StatusCode)
	}
}
