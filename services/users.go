// services/users.go
package services

import (
	"errors"
	"log"

	"offerwall-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService creates local account rows for verified principals and serves
// the read-only balance/history endpoints.
type UserService struct {
	DB        *gorm.DB
	Ledger    *LedgerService
	Referrals *ReferralService
	Cfg       Config
}

func NewUserService(db *gorm.DB, ledger *LedgerService, referrals *ReferralService, cfg Config) *UserService {
	return &UserService{DB: db, Ledger: ledger, Referrals: referrals, Cfg: cfg}
}

// EnsureUser creates the account row for a verified principal if it doesn't
// exist yet, paying the one-time signup bonus only when the row was actually
// created. Returns whether this call created the account.
func (s *UserService) EnsureUser(userID, signupIP string) (bool, error) {
	created := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{ID: userID, SignupIP: signupIP}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already signed up; bonus stays one-time
		}
		created = true

		if s.Cfg.SignupBonus > 0 {
			if _, err := s.Ledger.CreditTx(tx, userID, s.Cfg.SignupBonus, models.SourceSignupBonus, "welcome bonus", nil, ""); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

// HandleSignup registers the verified principal locally. An optional
// referral code presented at signup links the new account under its owner;
// a bad code doesn't fail the signup, the account just stays unlinked.
func (s *UserService) HandleSignup(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ReferralCode string `json:"referral_code"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_request"})
		}
	}

	created, err := s.EnsureUser(userID, c.IP())
	if err != nil {
		log.Printf("❌ [USER] signup failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}

	referralApplied := false
	if created && req.ReferralCode != "" {
		if err := s.Referrals.ApplyCode(userID, req.ReferralCode); err != nil {
			log.Printf("⚠️ [USER] referral code %q rejected for %s: %v", req.ReferralCode, userID, err)
		} else {
			referralApplied = true
		}
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"created":          created,
		"referral_applied": referralApplied,
	})
}

// HandleBalance returns the caller's balance and lifetime counters.
func (s *UserService) HandleBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found", "code": "not_found"})
		}
		log.Printf("❌ [USER] balance read failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}

	return c.JSON(fiber.Map{
		"balance":            user.Balance,
		"lifetime_earned":    user.LifetimeEarned,
		"lifetime_withdrawn": user.LifetimeWithdrawn,
	})
}

// HandleTransactions lists the caller's ledger entries, newest first.
// limit is capped at 100.
func (s *UserService) HandleTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	entries, err := s.Ledger.Transactions(userID, limit, offset)
	if err != nil {
		log.Printf("❌ [USER] transaction list failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}
	return c.JSON(fiber.Map{"transactions": entries, "limit": limit, "offset": offset})
}

// HandleReferralInfo returns the caller's referral code (generated on first
// request) and program stats.
func (s *UserService) HandleReferralInfo(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	stats, err := s.Referrals.Stats(userID, c.Get("X-User-Name"))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found", "code": "not_found"})
		}
		log.Printf("❌ [USER] referral stats failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}
	return c.JSON(stats)
}

// HandleReferralApply links the caller under the owner of the submitted code.
func (s *UserService) HandleReferralApply(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_request"})
	}

	if err := s.Referrals.ApplyCode(userID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required", "code": "invalid_request"})
		case errors.Is(err, models.ErrReferralCodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "referral code not found", "code": "not_found"})
		case errors.Is(err, models.ErrSelfReferral):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "self referral not allowed", "code": "self_referral"})
		case errors.Is(err, models.ErrAlreadyReferred):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "referral already set", "code": "already_referred"})
		case errors.Is(err, models.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found", "code": "not_found"})
		default:
			log.Printf("❌ [USER] referral apply failed for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
		}
	}
	return c.JSON(fiber.Map{"message": "referral applied"})
}
