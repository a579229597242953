// services/referral.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"offerwall-rewards-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ReferralService tracks who referred whom, pays the one-time unlock bonus
// and the ongoing commission. It never moves points except through the
// ledger credit primitive.
type ReferralService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Cfg    Config
}

func NewReferralService(db *gorm.DB, ledger *LedgerService, cfg Config) *ReferralService {
	return &ReferralService{DB: db, Ledger: ledger, Cfg: cfg}
}

// maxChainDepth bounds the ancestor walk when validating a new link.
const maxChainDepth = 32

// OnEarningsCreditedTx applies referral side effects for points just credited
// to userID. Runs inside the same transaction as the triggering credit.
//
// The unlock is a guarded single-statement flip of referral_unlocked, so even
// two concurrent postbacks crossing the threshold together pay the bonus
// exactly once. The commission is paid on every credit, unlock or not.
func (s *ReferralService) OnEarningsCreditedTx(tx *gorm.DB, userID string, points int64) error {
	if points <= 0 {
		return nil
	}

	var user models.User
	if err := tx.Select("id", "referred_by").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrUserNotFound
		}
		return err
	}
	if user.ReferredBy == nil {
		return nil
	}
	referrerID := *user.ReferredBy

	if err := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("lifetime_cumulative", gorm.Expr("lifetime_cumulative + ?", points)).Error; err != nil {
		return err
	}

	// One-time unlock bonus once cumulative earnings cross the threshold.
	unlock := tx.Model(&models.User{}).
		Where("id = ? AND referral_unlocked = ? AND lifetime_cumulative >= ?", userID, false, s.Cfg.ReferralThreshold).
		Update("referral_unlocked", true)
	if unlock.Error != nil {
		return unlock.Error
	}
	if unlock.RowsAffected > 0 {
		desc := fmt.Sprintf("referral unlock bonus for referred user %s", userID)
		if _, err := s.Ledger.CreditTx(tx, referrerID, s.Cfg.ReferralBonus, models.SourceReferralBonus, desc, nil, ""); err != nil {
			return fmt.Errorf("referral unlock credit for %s: %w", referrerID, err)
		}
		log.Printf("🎉 [REFERRAL] Unlock bonus %d → %s (referred %s)", s.Cfg.ReferralBonus, referrerID, userID)
	}

	// Ongoing commission on every credited amount.
	commission := int64(math.Floor(float64(points) * s.Cfg.CommissionRate))
	if commission > 0 {
		desc := fmt.Sprintf("commission on %d points earned by %s", points, userID)
		if _, err := s.Ledger.CreditTx(tx, referrerID, commission, models.SourceReferralCommission, desc, nil, ""); err != nil {
			return fmt.Errorf("referral commission credit for %s: %w", referrerID, err)
		}
	}

	return nil
}

// EnsureCode returns the user's referral code, generating one on first use.
// displayName only seeds the readable prefix; identity stays the uuid suffix.
func (s *ReferralService) EnsureCode(userID, displayName string) (string, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", models.ErrUserNotFound
		}
		return "", err
	}
	if user.ReferralCode != nil {
		return *user.ReferralCode, nil
	}

	prefix := slug.Make(displayName)
	if prefix == "" {
		prefix = "user"
	}
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}

	// Retry on unique-index collision; the suffix makes that rare.
	for attempt := 0; attempt < 3; attempt++ {
		code := fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:6])
		res := s.DB.Model(&models.User{}).
			Where("id = ? AND referral_code IS NULL", userID).
			Update("referral_code", code)
		if res.Error == nil && res.RowsAffected > 0 {
			return code, nil
		}
		if res.Error == nil {
			// Someone else set the code concurrently — read it back.
			if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
				return "", err
			}
			if user.ReferralCode != nil {
				return *user.ReferralCode, nil
			}
			continue
		}
		log.Printf("⚠️ [REFERRAL] code collision for %s (attempt %d): %v", userID, attempt+1, res.Error)
	}
	return "", fmt.Errorf("unable to allocate referral code for %s", userID)
}

// ApplyCode links userID under the owner of code. The link is set at most
// once and the guard is a conditional update, so a concurrent double apply
// leaves exactly one referrer.
func (s *ReferralService) ApplyCode(userID, code string) error {
	if code == "" {
		return models.ErrInvalidRequest
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var referrer models.User
		if err := tx.First(&referrer, "referral_code = ?", code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrReferralCodeNotFound
			}
			return err
		}

		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrUserNotFound
			}
			return err
		}
		if user.ReferredBy != nil {
			return models.ErrAlreadyReferred
		}

		if err := s.validateLink(tx, &user, &referrer); err != nil {
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND referred_by IS NULL", userID).
			Update("referred_by", referrer.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrAlreadyReferred
		}

		log.Printf("🤝 [REFERRAL] %s linked under %s (code %s)", userID, referrer.ID, code)
		return nil
	})
}

// validateLink rejects self referral by identity, by shared signup address,
// and by cycles (the referrer chain must not lead back to the user).
func (s *ReferralService) validateLink(tx *gorm.DB, user, referrer *models.User) error {
	if referrer.ID == user.ID {
		return models.ErrSelfReferral
	}
	if user.SignupIP != "" && user.SignupIP == referrer.SignupIP {
		return models.ErrSelfReferral
	}

	ancestor := referrer
	for depth := 0; depth < maxChainDepth && ancestor.ReferredBy != nil; depth++ {
		if *ancestor.ReferredBy == user.ID {
			return models.ErrSelfReferral
		}
		var next models.User
		if err := tx.Select("id", "referred_by").First(&next, "id = ?", *ancestor.ReferredBy).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return err
		}
		ancestor = &next
	}
	return nil
}

// ReferralStats summarizes a user's referral program standing.
type ReferralStats struct {
	Code           string `json:"code"`
	ReferredCount  int64  `json:"referred_count"`
	UnlockedCount  int64  `json:"unlocked_count"`
	PointsEarned   int64  `json:"points_earned"`
	ReferredBy     string `json:"referred_by,omitempty"`
	UnlockProgress int64  `json:"unlock_progress"`
}

// Stats builds the referral summary for the info endpoint.
func (s *ReferralService) Stats(userID, displayName string) (*ReferralStats, error) {
	code, err := s.EnsureCode(userID, displayName)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	stats := &ReferralStats{Code: code, UnlockProgress: user.LifetimeCumulative}
	if user.ReferredBy != nil {
		stats.ReferredBy = *user.ReferredBy
	}

	if err := s.DB.Model(&models.User{}).
		Where("referred_by = ?", userID).
		Count(&stats.ReferredCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.User{}).
		Where("referred_by = ? AND referral_unlocked = ?", userID, true).
		Count(&stats.UnlockedCount).Error; err != nil {
		return nil, err
	}

	var earned *int64
	if err := s.DB.Model(&models.Transaction{}).
		Select("SUM(amount)").
		Where("user_id = ? AND source IN ?", userID,
			[]models.TransactionSource{models.SourceReferralBonus, models.SourceReferralCommission}).
		Scan(&earned).Error; err != nil {
		return nil, err
	}
	if earned != nil {
		stats.PointsEarned = *earned
	}

	return stats, nil
}
