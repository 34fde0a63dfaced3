// models/content.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ContentTypeTrack = "track"
	ContentTypeZip   = "zip"
)

const (
	ContentStatusActive   = "active"
	ContentStatusInactive = "inactive"
)

// ValidContentType reports whether t is one of the two paid content kinds.
func ValidContentType(t string) bool {
	return t == ContentTypeTrack || t == ContentTypeZip
}

type Content struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	DJID        string `json:"dj_id" gorm:"index;not null"` // owner, immutable after creation
	ContentType string `json:"content_type" gorm:"index;not null"`
	Title       string `json:"title" gorm:"not null"`
	Slug        string `json:"slug" gorm:"index"`

	// 🖼️ Media
	ArtworkURL string `json:"artwork_url,omitempty"`

	// 📁 Core file (R2 object key — resolved to a presigned URL at download time)
	FileKey string `json:"file_key,omitempty"`

	PriceCents int64 `json:"price_cents" gorm:"default:0"`

	Status string `json:"status" gorm:"not null;default:'active'"` // active | inactive

	Timestamps
}

// MonetizationSettings holds the revenue share for a DJ.
// Absent row means the platform default of 80% applies.
type MonetizationSettings struct {
	ID              string `json:"id" gorm:"primaryKey;type:uuid"`
	DJID            string `json:"dj_id" gorm:"uniqueIndex;not null"`
	RevenueSharePct int    `json:"revenue_share_pct" gorm:"not null;default:80"` // 0..100

	Timestamps
}

// InteractionType is the closed set of content interaction kinds fed to the
// external ranking service.
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionPurchase InteractionType = "purchase"
	InteractionWishlist InteractionType = "wishlist"
	InteractionFollowDJ InteractionType = "follow_dj"
	InteractionPlay     InteractionType = "play"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionPurchase, InteractionWishlist, InteractionFollowDJ, InteractionPlay:
		return true
	}
	return false
}

type Interaction struct {
	ID        string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string          `json:"user_id" gorm:"index;not null"`
	ContentID string          `json:"content_id" gorm:"index;not null"`
	Type      InteractionType `json:"type" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
