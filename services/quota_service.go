// services/quota_service.go
package services

import (
	"fmt"
	"time"

	"music-access-system/models"

	"gorm.io/gorm"
)

// ConsumeResult is the outcome of a quota consume attempt.
type ConsumeResult int

const (
	ConsumeOK ConsumeResult = iota
	ConsumeQuotaExhausted
)

type QuotaService struct {
	DB *gorm.DB
}

func NewQuotaService(db *gorm.DB) *QuotaService {
	return &QuotaService{DB: db}
}

// TryConsume checks and charges one unit of the subscription's quota for the
// given content type as a single conditional UPDATE, so concurrent requests
// can never grant more than quota units. RowsAffected == 0 means exhausted
// (or the row expired since the caller's lookup).
func (s *QuotaService) TryConsume(subscriptionID, contentType string) (ConsumeResult, error) {
	var usedCol, quotaCol string
	switch contentType {
	case models.ContentTypeTrack:
		usedCol, quotaCol = "tracks_used", "track_quota"
	case models.ContentTypeZip:
		usedCol, quotaCol = "zips_used", "zip_quota"
	default:
		return ConsumeQuotaExhausted, fmt.Errorf("unknown content type %q", contentType)
	}

	res := s.DB.Model(&models.Subscription{}).
		Where("id = ? AND "+usedCol+" < "+quotaCol+" AND expires_at > ?", subscriptionID, time.Now()).
		UpdateColumn(usedCol, gorm.Expr(usedCol+" + 1"))
	if res.Error != nil {
		return ConsumeQuotaExhausted, res.Error
	}
	if res.RowsAffected == 0 {
		return ConsumeQuotaExhausted, nil
	}
	return ConsumeOK, nil
}
