// services/scheduler.go
package services

import (
	"log"
	"time"

	"music-access-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the background jobs: purging dead download
// tokens and sweeping pending referrals for verification.
func (s *DownloadService) StartMaintenanceScheduler(referrals *ReferralService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Hourly: delete tokens past expiry (used rows included — once expired
	// they can never be consumed again).
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			res := s.DB.Where("expires_at < ?", time.Now()).
				Delete(&models.DownloadToken{})
			if res.Error != nil {
				log.Printf("[Scheduler] Token purge failed: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("[Scheduler] Purged %d expired download token(s)", res.RowsAffected)
			}
		}),
	)

	// Every minute: verify referrals whose referred user has purchased.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(referrals.VerifyPendingReferrals),
	)
}
