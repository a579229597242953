package models

import "time"

// WithdrawalStatus is one-directional: pending → processing → completed,
// or pending/processing → cancelled/failed. Nothing moves backwards except
// administrative reversal, which this service does not expose.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// Withdrawal is a point-to-reward conversion request. RewardName and
// PointsSpent are denormalized at request time so later catalog edits don't
// rewrite history.
type Withdrawal struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;type:uuid;not null" json:"user_id"`

	RewardID     string           `gorm:"index;type:uuid;not null" json:"reward_id"`
	RewardName   string           `gorm:"not null" json:"reward_name"`
	PointsSpent  int64            `gorm:"not null" json:"points_spent"`
	DeliveryInfo *string          `gorm:"type:text" json:"delivery_info,omitempty"`
	Status       WithdrawalStatus `gorm:"size:16;not null;index;default:'pending'" json:"status"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
