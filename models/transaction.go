package models

import "time"

// TransactionDirection marks which way points moved.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// TransactionSource tags where a ledger entry came from.
type TransactionSource string

const (
	SourceSignupBonus        TransactionSource = "signup_bonus"
	SourceOfferNetwork       TransactionSource = "lootably"
	SourceReferralBonus      TransactionSource = "referral_bonus"
	SourceReferralCommission TransactionSource = "referral_commission"
	SourceWithdrawal         TransactionSource = "withdrawal"
)

// Transaction is one immutable ledger entry. For partner-originated credits
// the primary key is the partner's transaction id, so the row itself is the
// durable idempotency claim — a replay collides on insert instead of
// crediting twice. Corrections are compensating entries, never edits.
type Transaction struct {
	ID     string `gorm:"primaryKey;size:128" json:"id"`
	UserID string `gorm:"index;type:uuid;not null" json:"user_id"`

	// Amount is signed: positive for credits, negative for debits.
	Amount      int64                `gorm:"not null" json:"amount"`
	Direction   TransactionDirection `gorm:"size:16;not null" json:"direction"`
	Source      TransactionSource    `gorm:"size:32;not null;index" json:"source"`
	Description string               `gorm:"type:text" json:"description"`
	OriginIP    *string              `gorm:"size:64" json:"origin_ip,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
