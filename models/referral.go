package models

import "time"

const (
	ReferralStatusPending  = "pending"
	ReferralStatusVerified = "verified"
)

// ReferralCode is a user's personal invite code. One code per user, codes
// globally unique; created lazily on first request.
type ReferralCode struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`
	Code   string `gorm:"uniqueIndex;not null" json:"code"`

	Timestamps
}

// Referral tracks referrals and signup bonuses
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"` // at most one referral per referred user

	ReferralCodeUsed string     `gorm:"not null" json:"referral_code_used"`
	Status           string     `gorm:"not null;default:'pending'" json:"status"` // pending | verified
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`

	Timestamps
}

// Points ledger reasons. Reasons with a DedupKey are credited at most once.
const (
	PointsReasonSignupBonus   = "signup_bonus"
	PointsReasonReferralBonus = "referral_bonus"
	PointsReasonPurchase      = "purchase"
)

// PointsHistory is the append-only rewards ledger. A user's balance is always
// SUM(delta) over their entries — never a mutated column. DedupKey carries the
// unique-constraint guard for at-most-once crediting (nil for repeatable
// reasons).
type PointsHistory struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Delta     int64     `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"not null" json:"reason"`
	DedupKey  *string   `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
