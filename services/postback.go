// services/postback.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"offerwall-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PostbackService turns offer-completion callbacks from the advertising
// network into ledger credits. The network delivers at-least-once and retries
// on anything that isn't a 2xx, so replays are the steady state here — a
// duplicate transaction id must come back as success, not as an error.
type PostbackService struct {
	DB        *gorm.DB
	Ledger    *LedgerService
	Referrals *ReferralService
	Cfg       Config
}

func NewPostbackService(db *gorm.DB, ledger *LedgerService, referrals *ReferralService, cfg Config) *PostbackService {
	return &PostbackService{DB: db, Ledger: ledger, Referrals: referrals, Cfg: cfg}
}

// PostbackResult reports what a processed callback did.
type PostbackResult struct {
	EntryID        string
	PointsCredited int64
	PlatformShare  int64
	Duplicate      bool
}

// HandlePostback is the partner-facing GET endpoint. Query parameters:
// user_id, payout (decimal, currency units), transaction_id, secret,
// offer_name (optional).
func (s *PostbackService) HandlePostback(c *fiber.Ctx) error {
	secret := c.Query("secret")
	if s.Cfg.PostbackSecret == "" || secret != s.Cfg.PostbackSecret {
		log.Printf("🚫 [POSTBACK] bad secret from %s", c.IP())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid secret", "code": "unauthorized"})
	}

	userID := c.Query("user_id")
	txnID := c.Query("transaction_id")
	payoutRaw := c.Query("payout")
	if userID == "" || txnID == "" || payoutRaw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id, payout and transaction_id are required", "code": "invalid_request"})
	}
	payout, err := strconv.ParseFloat(payoutRaw, 64)
	if err != nil || payout <= 0 || math.IsInf(payout, 0) || math.IsNaN(payout) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payout must be a positive number", "code": "invalid_request"})
	}

	if len(s.Cfg.PostbackAllowedIPs) > 0 && !containsIP(s.Cfg.PostbackAllowedIPs, c.IP()) {
		log.Printf("🚫 [POSTBACK] %s not in allow-list", c.IP())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "origin not allowed", "code": "unauthorized"})
	}

	result, err := s.Process(userID, payout, txnID, c.IP(), c.Query("offer_name"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown user", "code": "not_found"})
		case errors.Is(err, models.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payout too small to credit", "code": "invalid_request"})
		default:
			log.Printf("❌ [POSTBACK] txn %s for %s failed: %v", txnID, userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
		}
	}

	if result.Duplicate {
		return c.JSON(fiber.Map{"status": "already_processed", "transaction_id": txnID})
	}
	return c.JSON(fiber.Map{
		"status":         "ok",
		"transaction_id": txnID,
		"points":         result.PointsCredited,
	})
}

// Process validates against the ledger and applies the 60/40 split credit
// plus referral side effects in one transaction. The idempotency claim is
// the credit insert itself, so a concurrent replay of txnID serializes on
// the primary key and exactly one call credits.
func (s *PostbackService) Process(userID string, payout float64, txnID, originIP, offerLabel string) (*PostbackResult, error) {
	points := int64(math.Floor(payout * s.Cfg.PointsPerUnit * s.Cfg.UserSplit))
	retained := int64(math.Floor(payout * s.Cfg.PointsPerUnit * (1 - s.Cfg.UserSplit)))
	if points <= 0 {
		return nil, models.ErrInvalidRequest
	}

	description := fmt.Sprintf("offer payout %.4f", payout)
	if offerLabel != "" {
		description = fmt.Sprintf("offer %q payout %.4f", offerLabel, payout)
	}

	result := &PostbackResult{PointsCredited: points, PlatformShare: retained}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Unknown user must be reported as not_found even for a replayed id,
		// so the existence check precedes the claim.
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrUserNotFound
		}

		ip := originIP
		entryID, err := s.Ledger.CreditTx(tx, userID, points, models.SourceOfferNetwork, description, &ip, txnID)
		if errors.Is(err, models.ErrDuplicateTransaction) {
			result.Duplicate = true
			return nil
		}
		if err != nil {
			return err
		}
		result.EntryID = entryID

		// Referral side effects commit or roll back together with the credit,
		// so a failure here surfaces as a 5xx and the partner retries the
		// whole thing against a still-unclaimed transaction id.
		if err := s.Referrals.OnEarningsCreditedTx(tx, userID, points); err != nil {
			return fmt.Errorf("referral step: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		log.Printf("💰 [POSTBACK] txn %s: %d pts → %s (platform share %d)", txnID, points, userID, retained)
	}
	return result, nil
}

func containsIP(list []string, ip string) bool {
	for _, allowed := range list {
		if allowed == ip {
			return true
		}
	}
	return false
}
