// models/subscription.go
package models

import "time"

// Subscription grants metered access to one DJ's catalogue.
// Usage counters are mutated only by the quota manager's atomic consume;
// past ExpiresAt the row goes inert but is never deleted.
type Subscription struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID string `json:"user_id" gorm:"index;not null"`
	DJID   string `json:"dj_id" gorm:"index;not null"`
	Plan   string `json:"plan" gorm:"not null"`

	TrackQuota     int `json:"track_quota" gorm:"not null"`
	ZipQuota       int `json:"zip_quota" gorm:"not null"`
	FanUploadQuota int `json:"fan_upload_quota" gorm:"not null"`

	TracksUsed int `json:"tracks_used" gorm:"not null;default:0"`
	ZipsUsed   int `json:"zips_used" gorm:"not null;default:0"`

	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`

	Timestamps
}

// PlanSpec is one entry of the fixed plan catalogue. DurationDays is consumed
// once, at subscription creation, to compute ExpiresAt.
type PlanSpec struct {
	TrackQuota     int `json:"track_quota"`
	ZipQuota       int `json:"zip_quota"`
	FanUploadQuota int `json:"fan_upload_quota"`
	DurationDays   int `json:"duration_days"`
}

// Plans is the plan catalogue. fan_upload_quota is carried on the row but the
// entitlement check never consults it; the fan-upload surface lives elsewhere.
var Plans = map[string]PlanSpec{
	"basic": {TrackQuota: 5, ZipQuota: 1, FanUploadQuota: 3, DurationDays: 30},
	"pro":   {TrackQuota: 15, ZipQuota: 4, FanUploadQuota: 10, DurationDays: 30},
	"elite": {TrackQuota: 40, ZipQuota: 10, FanUploadQuota: 25, DurationDays: 30},
}
