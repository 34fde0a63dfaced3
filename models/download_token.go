// models/download_token.go
package models

import "time"

// DownloadToken is a short-lived single-use capability issued after a fresh
// entitlement check. Used flips false→true exactly once via a conditional
// update; expired or already-used tokens fail closed at consume time.
type DownloadToken struct {
	Token       string    `json:"token" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;not null"`
	ContentID   string    `json:"content_id" gorm:"not null"`
	ContentType string    `json:"content_type" gorm:"not null"`
	Used        bool      `json:"used" gorm:"not null;default:false"`
	IssuedAt    time.Time `json:"issued_at" gorm:"autoCreateTime"`
	ExpiresAt   time.Time `json:"expires_at" gorm:"index;not null"`
}
