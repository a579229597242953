// services/catalog.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"offerwall-rewards-system/models"
	"offerwall-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService manages the server-side reward catalog. The shop front only
// ever sees published, in-stock entries; prices live here and nowhere else.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// --- Public Handlers ---

// ListPublished returns the redeemable catalog for the shop front.
func (s *CatalogService) ListPublished(c *fiber.Ctx) error {
	var rewards []models.Reward
	query := s.DB.Where("status = ? AND stock != 0", models.RewardStatusPublished)

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Order("price_points ASC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// --- Admin Handlers ---

// CreateReward creates a new catalog entry (Admin only)
func (s *CatalogService) CreateReward(c *fiber.Ctx) error {
	var req struct {
		Name        string                `json:"name"`
		Category    models.RewardCategory `json:"category"`
		Description string                `json:"description"`
		ImageURL    string                `json:"image_url"`
		PricePoints int64                 `json:"price_points"`
		Stock       *int                  `json:"stock"`
		Status      models.RewardStatus   `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.PricePoints <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and a positive price are required"})
	}
	if req.Status == "" {
		req.Status = models.RewardStatusDraft
	}

	reward := &models.Reward{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        fmt.Sprintf("%s-%s", slug.Make(req.Name), uuid.NewString()[:6]),
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		PricePoints: req.PricePoints,
		Stock:       -1, // unlimited unless specified
		Status:      req.Status,
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}

	if err := s.DB.Create(reward).Error; err != nil {
		log.Printf("DB Error creating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}
	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateReward updates an existing catalog entry (Admin only)
func (s *CatalogService) UpdateReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var existing models.Reward
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Name        *string                `json:"name"`
		Category    *models.RewardCategory `json:"category"`
		Description *string                `json:"description"`
		ImageURL    *string                `json:"image_url"`
		PricePoints *int64                 `json:"price_points"`
		Stock       *int                   `json:"stock"`
		Status      *models.RewardStatus   `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.ImageURL != nil {
		existing.ImageURL = *req.ImageURL
	}
	if req.PricePoints != nil {
		if *req.PricePoints <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Price must be positive"})
		}
		existing.PricePoints = *req.PricePoints
	}
	if req.Stock != nil {
		existing.Stock = *req.Stock
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}
	return c.JSON(existing)
}

// ArchiveReward removes a catalog entry from circulation (Admin only).
// Existing withdrawal history keeps its denormalized name and price.
func (s *CatalogService) ArchiveReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	res := s.DB.Model(&models.Reward{}).
		Where("id = ?", id).
		Update("status", models.RewardStatusArchived)
	if res.Error != nil {
		log.Printf("DB Error archiving reward: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to archive reward"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
	}
	return c.JSON(fiber.Map{"message": "Reward archived successfully"})
}

// UploadRewardImage stores a card image in R2 and attaches the URL (Admin only)
func (s *CatalogService) UploadRewardImage(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
	}

	key := fmt.Sprintf("rewards/%s%s", reward.ID, filepath.Ext(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for reward %s: %v", reward.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload image"})
	}

	if err := s.DB.Model(&reward).Update("image_url", url).Error; err != nil {
		log.Printf("DB Error saving image URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save image URL"})
	}
	return c.JSON(fiber.Map{"message": "Image uploaded", "image_url": url})
}

// GetAllRewards fetches the full catalog including drafts (Admin only)
func (s *CatalogService) GetAllRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("created_at DESC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching all rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}
