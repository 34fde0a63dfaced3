// models/audit_log.go
package models

import "time"

// Recognized suspicious-activity types. Detection (rate/velocity analysis)
// lives in the external monitoring pipeline; this table is only the sink.
const (
	AuditConcurrentDownloadLimit = "concurrent_download_limit_exceeded"
	AuditRapidDownloadPattern    = "rapid_download_pattern"
	AuditMultipleIPAccess        = "multiple_ip_access"
)

// AuditLogEntry is append-only.
type AuditLogEntry struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	Type         string    `json:"type" gorm:"index;not null"`
	TargetUserID string    `json:"target_user_id" gorm:"index"`
	Metadata     string    `json:"metadata" gorm:"type:text"` // JSON blob
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}
