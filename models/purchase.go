// models/purchase.go
package models

import "time"

// Purchase is a one-time entitlement to a piece of content.
// Rows are immutable once created; the unique index makes the purchase sync
// idempotent per (user, type, content).
type Purchase struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string `json:"user_id" gorm:"uniqueIndex:ux_purchases_user_content,priority:1;not null"`
	ContentType string `json:"content_type" gorm:"uniqueIndex:ux_purchases_user_content,priority:2;not null"`
	ContentID   string `json:"content_id" gorm:"uniqueIndex:ux_purchases_user_content,priority:3;not null"`

	// ExternalOrderID links back to the payment service's checkout record.
	ExternalOrderID string `json:"external_order_id" gorm:"uniqueIndex;not null"`

	// Amounts in minor currency units (cents), split at record time.
	AmountCents         int64 `json:"amount_cents"`
	DJAmountCents       int64 `json:"dj_amount_cents"`
	PlatformAmountCents int64 `json:"platform_amount_cents"`
	DJSharePct          int   `json:"dj_share_pct"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
