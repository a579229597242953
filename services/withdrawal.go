// services/withdrawal.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"offerwall-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithdrawalService authorizes point-to-reward conversions. Prices always
// come from the server-side catalog; client input is ids only.
type WithdrawalService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Cfg    Config
	Now    func() time.Time
}

func NewWithdrawalService(db *gorm.DB, ledger *LedgerService, cfg Config) *WithdrawalService {
	return &WithdrawalService{DB: db, Ledger: ledger, Cfg: cfg, Now: time.Now}
}

// Request runs the four gate checks in order — catalog, cool-down, balance,
// then the mutation. The first failing check decides the reported error.
func (s *WithdrawalService) Request(userID, rewardID string, deliveryInfo *string) (*models.Withdrawal, error) {
	now := s.Now()
	var withdrawal *models.Withdrawal

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.First(&reward, "id = ? AND status = ?", rewardID, models.RewardStatusPublished).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrRewardNotFound
			}
			return err
		}
		if !reward.InStock() {
			return models.ErrOutOfStock
		}

		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrUserNotFound
			}
			return err
		}

		// First-withdrawal cool-down: measured from account creation, lifted
		// permanently once first_withdrawal_at is stamped.
		if user.FirstWithdrawalAt == nil {
			elapsed := now.Sub(user.CreatedAt)
			if elapsed < s.Cfg.WithdrawalCooldown {
				remaining := s.Cfg.WithdrawalCooldown - elapsed
				days := int(math.Ceil(remaining.Hours() / 24))
				return &models.CooldownError{DaysRemaining: days}
			}
		}

		if _, err := s.Ledger.DebitTx(tx, userID, reward.PricePoints, models.SourceWithdrawal,
			fmt.Sprintf("withdrawal: %s", reward.Name)); err != nil {
			return err
		}

		// Finite stock decrements behind the same guard that checked it, so
		// concurrent redemptions can't oversell the last unit.
		if reward.Stock > 0 {
			res := tx.Model(&models.Reward{}).
				Where("id = ? AND stock > 0", reward.ID).
				Update("stock", gorm.Expr("stock - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.ErrOutOfStock
			}
		}

		// Set-once stamp; COALESCE keeps the original timestamp forever.
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("first_withdrawal_at", gorm.Expr("COALESCE(first_withdrawal_at, ?)", now)).Error; err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			ID:           uuid.NewString(),
			UserID:       userID,
			RewardID:     reward.ID,
			RewardName:   reward.Name,
			PointsSpent:  reward.PricePoints,
			DeliveryInfo: deliveryInfo,
			Status:       models.WithdrawalPending,
		}
		return tx.Create(withdrawal).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎁 [WITHDRAWAL] %s: %d pts for %q (%s)", userID, withdrawal.PointsSpent, withdrawal.RewardName, withdrawal.ID)
	return withdrawal, nil
}

// List returns a user's withdrawal history newest-first.
func (s *WithdrawalService) List(userID string, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var withdrawals []models.Withdrawal
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&withdrawals).Error
	return withdrawals, err
}

// ClaimPending flips up to limit pending withdrawals to processing and
// returns the ones this caller actually claimed. The per-row guarded update
// makes the claim safe against a second worker.
func (s *WithdrawalService) ClaimPending(limit int) ([]models.Withdrawal, error) {
	var candidates []models.Withdrawal
	if err := s.DB.Where("status = ?", models.WithdrawalPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	now := s.Now()
	claimed := make([]models.Withdrawal, 0, len(candidates))
	for _, w := range candidates {
		res := s.DB.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", w.ID, models.WithdrawalPending).
			Updates(map[string]interface{}{"status": models.WithdrawalProcessing, "processed_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			w.Status = models.WithdrawalProcessing
			w.ProcessedAt = &now
			claimed = append(claimed, w)
		}
	}
	return claimed, nil
}

// Complete marks a processing withdrawal delivered.
func (s *WithdrawalService) Complete(id string) error {
	now := s.Now()
	res := s.DB.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalProcessing).
		Updates(map[string]interface{}{"status": models.WithdrawalCompleted, "completed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("withdrawal %s not in processing state", id)
	}
	return nil
}

// Abort moves a withdrawal from fromStatus to toStatus and refunds the spent
// points as a compensating credit. The guarded status flip runs in the same
// transaction as the refund, so the refund is paid exactly once no matter
// how many workers race on the same row.
func (s *WithdrawalService) Abort(id string, fromStatus, toStatus models.WithdrawalStatus, reason string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var w models.Withdrawal
		if err := tx.First(&w, "id = ?", id).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", id, fromStatus).
			Update("status", toStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // someone else already resolved it
		}

		if _, err := s.Ledger.CreditTx(tx, w.UserID, w.PointsSpent, models.SourceWithdrawal,
			fmt.Sprintf("refund for withdrawal %s: %s", w.ID, reason), nil, ""); err != nil {
			return err
		}

		// Put the unit back for finite-stock rewards.
		if err := tx.Model(&models.Reward{}).
			Where("id = ? AND stock >= 0", w.RewardID).
			Update("stock", gorm.Expr("stock + 1")).Error; err != nil {
			return err
		}

		log.Printf("↩️ [WITHDRAWAL] %s %s, refunded %d pts to %s (%s)", w.ID, toStatus, w.PointsSpent, w.UserID, reason)
		return nil
	})
}

// CancelStale cancels and refunds withdrawals stuck in pending longer than
// maxAge. Run from the scheduler as a provider-outage guard.
func (s *WithdrawalService) CancelStale(maxAge time.Duration) (int, error) {
	cutoff := s.Now().Add(-maxAge)
	var stale []models.Withdrawal
	if err := s.DB.Where("status = ? AND created_at < ?", models.WithdrawalPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	cancelled := 0
	for _, w := range stale {
		if err := s.Abort(w.ID, models.WithdrawalPending, models.WithdrawalCancelled, "pending too long"); err != nil {
			log.Printf("❌ [WITHDRAWAL] failed to cancel stale %s: %v", w.ID, err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// HandleRequest is the authenticated POST endpoint for redemptions.
func (s *WithdrawalService) HandleRequest(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		RewardID     string  `json:"reward_id"`
		DeliveryInfo *string `json:"delivery_info"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_request"})
	}
	if req.RewardID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_id is required", "code": "invalid_request"})
	}

	withdrawal, err := s.Request(userID, req.RewardID, req.DeliveryInfo)
	if err != nil {
		var cooldown *models.CooldownError
		switch {
		case errors.As(err, &cooldown):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":          cooldown.Error(),
				"code":           "cooldown_active",
				"days_remaining": cooldown.DaysRemaining,
			})
		case errors.Is(err, models.ErrRewardNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "reward not found", "code": "not_found"})
		case errors.Is(err, models.ErrOutOfStock):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "reward out of stock", "code": "out_of_stock"})
		case errors.Is(err, models.ErrInsufficientBalance):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient balance", "code": "insufficient_balance"})
		case errors.Is(err, models.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found", "code": "not_found"})
		default:
			log.Printf("❌ [WITHDRAWAL] request failed for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
		}
	}

	balance, err := s.Ledger.Balance(userID)
	if err != nil {
		log.Printf("⚠️ [WITHDRAWAL] balance read after request failed for %s: %v", userID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"withdrawal": withdrawal,
		"balance":    balance,
	})
}

// HandleList is the authenticated withdrawal-history endpoint.
func (s *WithdrawalService) HandleList(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	withdrawals, err := s.List(userID, limit, offset)
	if err != nil {
		log.Printf("❌ [WITHDRAWAL] list failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}
	return c.JSON(fiber.Map{"withdrawals": withdrawals, "limit": limit, "offset": offset})
}
