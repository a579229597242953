// services/ledger.go
package services

import (
	"errors"

	"offerwall-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns every point movement. All money flows through Credit and
// Debit so the full history is auditable from the transactions table alone.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// MaxPageSize caps transaction listing requests.
const MaxPageSize = 100

// CreditTx appends a credit entry and bumps the balance inside the caller's
// transaction. entryID may be the partner's transaction id; the insert runs
// with ON CONFLICT DO NOTHING on the primary key, so a replayed id comes back
// as ErrDuplicateTransaction without touching the balance. An empty entryID
// gets a fresh uuid (internal credits: bonuses, commissions, refunds).
func (s *LedgerService) CreditTx(tx *gorm.DB, userID string, amount int64, source models.TransactionSource, description string, originIP *string, entryID string) (string, error) {
	if amount <= 0 {
		return "", models.ErrInvalidRequest
	}
	if entryID == "" {
		entryID = uuid.NewString()
	}

	entry := models.Transaction{
		ID:          entryID,
		UserID:      userID,
		Amount:      amount,
		Direction:   models.DirectionCredit,
		Source:      source,
		Description: description,
		OriginIP:    originIP,
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", models.ErrDuplicateTransaction
	}

	update := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"lifetime_earned": gorm.Expr("lifetime_earned + ?", amount),
		})
	if update.Error != nil {
		return "", update.Error
	}
	if update.RowsAffected == 0 {
		// Rolls back the entry insert with the enclosing transaction.
		return "", models.ErrUserNotFound
	}

	return entryID, nil
}

// Credit is CreditTx wrapped in its own transaction.
func (s *LedgerService) Credit(userID string, amount int64, source models.TransactionSource, description string, originIP *string, entryID string) (string, error) {
	var id string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = s.CreditTx(tx, userID, amount, source, description, originIP, entryID)
		return err
	})
	return id, err
}

// DebitTx removes points inside the caller's transaction. The balance check
// and decrement are one guarded UPDATE, so two concurrent debits can never
// both pass a check only one of them can satisfy.
func (s *LedgerService) DebitTx(tx *gorm.DB, userID string, amount int64, source models.TransactionSource, description string) (string, error) {
	if amount <= 0 {
		return "", models.ErrInvalidRequest
	}

	update := tx.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":            gorm.Expr("balance - ?", amount),
			"lifetime_withdrawn": gorm.Expr("lifetime_withdrawn + ?", amount),
		})
	if update.Error != nil {
		return "", update.Error
	}
	if update.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return "", models.ErrUserNotFound
		}
		return "", models.ErrInsufficientBalance
	}

	entry := models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      -amount,
		Direction:   models.DirectionDebit,
		Source:      source,
		Description: description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return "", err
	}

	return entry.ID, nil
}

// Debit is DebitTx wrapped in its own transaction.
func (s *LedgerService) Debit(userID string, amount int64, source models.TransactionSource, description string) (string, error) {
	var id string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = s.DebitTx(tx, userID, amount, source, description)
		return err
	})
	return id, err
}

// Balance returns the current spendable balance.
func (s *LedgerService) Balance(userID string) (int64, error) {
	var user models.User
	if err := s.DB.Select("balance").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.ErrUserNotFound
		}
		return 0, err
	}
	return user.Balance, nil
}

// Transactions lists a user's ledger entries newest-first.
func (s *LedgerService) Transactions(userID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var entries []models.Transaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	return entries, err
}
