package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local account row for a verified principal. The gateway owns
// identity; this service owns the point balance and referral linkage.
type User struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"` // gateway principal id

	// Balance is the spendable point total. Must equal the signed sum of the
	// user's ledger entries; never negative.
	Balance           int64 `json:"balance" gorm:"not null;default:0"`
	LifetimeEarned    int64 `json:"lifetime_earned" gorm:"not null;default:0"`
	LifetimeWithdrawn int64 `json:"lifetime_withdrawn" gorm:"not null;default:0"`

	// LifetimeCumulative drives the referral unlock threshold. Maintained by
	// the referral engine, monotonic — spending never decrements it.
	LifetimeCumulative int64 `json:"lifetime_cumulative" gorm:"not null;default:0"`

	ReferralCode     *string `gorm:"uniqueIndex" json:"referral_code,omitempty"` // generated lazily
	ReferredBy       *string `gorm:"index" json:"referred_by,omitempty"`         // set at most once
	ReferralUnlocked bool    `json:"referral_unlocked" gorm:"not null;default:false"`

	SignupIP          string     `gorm:"size:64" json:"-"`
	FirstWithdrawalAt *time.Time `json:"first_withdrawal_at,omitempty"` // set once, never overwritten

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
