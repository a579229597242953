package models

import (
	"time"

	"gorm.io/gorm"
)

// RewardCategory groups catalog entries for the shop front.
type RewardCategory string

const (
	RewardCategoryGiftCard     RewardCategory = "gift_card"
	RewardCategoryGameCurrency RewardCategory = "game_currency"
	RewardCategoryOther        RewardCategory = "other"
)

// RewardStatus indicates the publishing status of a catalog entry
type RewardStatus string

const (
	RewardStatusDraft     RewardStatus = "draft"
	RewardStatusPublished RewardStatus = "published"
	RewardStatusArchived  RewardStatus = "archived"
)

// Reward is one redeemable catalog entry. PricePoints is authoritative —
// clients only ever send the reward id; the price is read server-side at
// withdrawal time. Stock < 0 means unlimited.
type Reward struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Category    RewardCategory `gorm:"size:32;not null" json:"category"`
	Description string         `gorm:"type:text" json:"description"`
	ImageURL    string         `gorm:"type:text" json:"image_url"`
	PricePoints int64          `gorm:"not null" json:"price_points"`
	Stock       int            `gorm:"not null;default:-1" json:"stock"`
	Status      RewardStatus   `gorm:"size:16;not null;default:'draft';index" json:"status"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// InStock reports whether the reward can currently be redeemed.
func (r *Reward) InStock() bool {
	return r.Stock != 0
}
