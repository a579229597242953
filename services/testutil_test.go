package services

import (
	"fmt"
	"testing"
	"time"

	"offerwall-rewards-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Withdrawal{},
		&models.Reward{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() Config {
	return Config{
		PointsPerUnit:      1000,
		UserSplit:          0.6,
		ReferralThreshold:  500,
		ReferralBonus:      50,
		CommissionRate:     0.05,
		SignupBonus:        50,
		WithdrawalCooldown: 7 * 24 * time.Hour,
		PostbackSecret:     "test-secret",
	}
}

func createTestUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	user := &models.User{ID: id}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return user
}

func userByID(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("load user %s: %v", id, err)
	}
	return &user
}
