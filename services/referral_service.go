// services/referral_service.go
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"music-access-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bonus sizes (points).
const (
	SignupBonusPoints   = 100
	ReferralBonusPoints = 250
)

const codeAllocAttempts = 5

type ReferralService struct {
	DB       *gorm.DB
	LinkBase string
}

func NewReferralService(db *gorm.DB) *ReferralService {
	linkBase := os.Getenv("REFERRAL_LINK_BASE")
	if linkBase == "" {
		linkBase = "https://app.mixhub.io/signup"
	}
	return &ReferralService{DB: db, LinkBase: linkBase}
}

// GetOrCreateCode returns the user's referral code, allocating one lazily.
// The codes table is the single place of record, so the "get" and "generate"
// call sites can never diverge. The random suffix is not collision-free:
// allocation retries on a unique-constraint violation instead of assuming
// success.
func (s *ReferralService) GetOrCreateCode(userID string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.DB.Where("user_id = ?", userID).First(&rc).Error
	if err == nil {
		return &rc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < codeAllocAttempts; attempt++ {
		rc = models.ReferralCode{
			ID:     uuid.NewString(),
			UserID: userID,
			Code:   buildReferralCode(userID),
		}
		err := s.DB.Create(&rc).Error
		if err == nil {
			return &rc, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Either the code collided or a concurrent request already
			// allocated this user's code. Re-read before retrying.
			var existing models.ReferralCode
			if lookupErr := s.DB.Where("user_id = ?", userID).First(&existing).Error; lookupErr == nil {
				return &existing, nil
			}
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("could not allocate a unique referral code for user %s", userID)
}

// buildReferralCode derives a code like MIX-ab12-Xy34: a stable prefix seeded
// from the user id plus a random suffix.
func buildReferralCode(userID string) string {
	seed := strings.ToLower(strings.ReplaceAll(userID, "-", ""))
	if len(seed) > 4 {
		seed = seed[:4]
	}
	return fmt.Sprintf("MIX-%s-%s", seed, randomSuffix(4))
}

const suffixCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to a
		// uuid-derived suffix so allocation can still proceed.
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
	}
	for i, b := range buf {
		buf[i] = suffixCharset[int(b)%len(suffixCharset)]
	}
	return string(buf)
}

// TrackReferral records who referred referredUserID and credits the signup
// bonus. Safe to call any number of times: the referral row is unique per
// referred user and the bonus append is guarded by the ledger's dedup key, so
// re-invocations repair a missing bonus but never duplicate anything. Unknown
// codes and self-referrals are silently treated as "no referral" — the signup
// bonus still applies.
func (s *ReferralService) TrackReferral(referredUserID, code string) error {
	var existing models.Referral
	err := s.DB.Where("referred_id = ?", referredUserID).First(&existing).Error
	if err == nil {
		return s.awardSignupBonus(referredUserID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if code != "" {
		var rc models.ReferralCode
		err := s.DB.Where("code = ?", code).First(&rc).Error
		switch {
		case err == nil && rc.UserID != referredUserID:
			ref := models.Referral{
				ID:               uuid.NewString(),
				ReferrerID:       rc.UserID,
				ReferredID:       referredUserID,
				ReferralCodeUsed: rc.Code,
				Status:           models.ReferralStatusPending,
			}
			if createErr := s.DB.Create(&ref).Error; createErr != nil {
				// A concurrent call creating the same referral is fine; the
				// unique index on referred_id is the arbiter.
				if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
					return createErr
				}
			}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}

	return s.awardSignupBonus(referredUserID)
}

func (s *ReferralService) awardSignupBonus(userID string) error {
	key := "signup:" + userID
	return s.CreditPoints(userID, SignupBonusPoints, models.PointsReasonSignupBonus, &key)
}

// CreditPoints appends one ledger entry. When dedupKey is set the append is
// at-most-once: a duplicate-key violation means the credit already happened
// and is not an error.
func (s *ReferralService) CreditPoints(userID string, delta int64, reason string, dedupKey *string) error {
	entry := models.PointsHistory{
		ID:       uuid.NewString(),
		UserID:   userID,
		Delta:    delta,
		Reason:   reason,
		DedupKey: dedupKey,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		if dedupKey != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// Balance derives the points balance as the sum of ledger deltas — the ledger
// is the source of truth, there is no mutable balance column to drift.
func (s *ReferralService) Balance(userID string) (int64, error) {
	var balance int64
	err := s.DB.Model(&models.PointsHistory{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&balance).Error
	return balance, err
}

// ReferralStats summarizes a referrer's invites.
type ReferralStats struct {
	TotalInvites        int64 `json:"totalInvites"`
	SuccessfulReferrals int64 `json:"successfulReferrals"`
}

func (s *ReferralService) Stats(userID string) (ReferralStats, error) {
	var stats ReferralStats
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_id = ?", userID).
		Count(&stats.TotalInvites).Error; err != nil {
		return stats, err
	}
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_id = ? AND status = ?", userID, models.ReferralStatusVerified).
		Count(&stats.SuccessfulReferrals).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// VerifyPendingReferrals flips pending referrals to verified once the referred
// user has made a purchase, and credits the referrer bonus. The status flip is
// a conditional update and the bonus is dedup-keyed, so concurrent sweeps from
// multiple instances stay exactly-once.
func (s *ReferralService) VerifyPendingReferrals() {
	var pending []models.Referral
	if err := s.DB.Where("status = ?", models.ReferralStatusPending).Find(&pending).Error; err != nil {
		log.Printf("[ReferralSweep] DB error listing pending referrals: %v", err)
		return
	}

	for _, ref := range pending {
		var purchases int64
		if err := s.DB.Model(&models.Purchase{}).
			Where("user_id = ?", ref.ReferredID).
			Count(&purchases).Error; err != nil {
			log.Printf("[ReferralSweep] DB error counting purchases for %s: %v", ref.ReferredID, err)
			continue
		}
		if purchases == 0 {
			continue
		}

		// Credit before flipping: if the flip fails the next sweep retries it,
		// and the dedup key keeps the credit from landing twice.
		key := "referral:" + ref.ReferredID
		if err := s.CreditPoints(ref.ReferrerID, ReferralBonusPoints, models.PointsReasonReferralBonus, &key); err != nil {
			log.Printf("[ReferralSweep] Failed to credit referrer %s for %s: %v", ref.ReferrerID, ref.ReferredID, err)
			continue
		}

		now := time.Now()
		res := s.DB.Model(&models.Referral{}).
			Where("id = ? AND status = ?", ref.ID, models.ReferralStatusPending).
			Updates(map[string]interface{}{"status": models.ReferralStatusVerified, "verified_at": now})
		if res.Error != nil {
			log.Printf("[ReferralSweep] Failed to verify referral %s: %v", ref.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue // another instance won the flip
		}
		log.Printf("Referral verified: referrer=%s referred=%s", ref.ReferrerID, ref.ReferredID)
	}
}

// --- Handlers ---

// GetPoints handles GET /rewards/points.
func (s *ReferralService) GetPoints(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	balance, err := s.Balance(userID)
	if err != nil {
		log.Printf("DB Error computing points balance for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch points"})
	}

	var history []models.PointsHistory
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&history).Error; err != nil {
		log.Printf("DB Error fetching points history for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch points"})
	}

	return c.JSON(fiber.Map{"balance": balance, "history": history})
}

// GetReferral handles GET /rewards/referral.
func (s *ReferralService) GetReferral(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	rc, err := s.GetOrCreateCode(userID)
	if err != nil {
		log.Printf("DB Error resolving referral code for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch referral info"})
	}

	stats, err := s.Stats(userID)
	if err != nil {
		log.Printf("DB Error computing referral stats for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch referral info"})
	}

	return c.JSON(fiber.Map{
		"code":  rc.Code,
		"stats": stats,
		"link":  fmt.Sprintf("%s?ref=%s", s.LinkBase, rc.Code),
	})
}

// GenerateReferralCode handles POST /rewards/referral/generate.
func (s *ReferralService) GenerateReferralCode(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	rc, err := s.GetOrCreateCode(userID)
	if err != nil {
		log.Printf("DB Error generating referral code for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate referral code"})
	}
	return c.JSON(fiber.Map{"referralCode": rc.Code})
}

// TrackReferralEndpoint handles POST /rewards/track. The referral code rides
// in the request payload — crediting never depends on client-persisted state.
func (s *ReferralService) TrackReferralEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ReferralCode *string `json:"referralCode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	code := ""
	if req.ReferralCode != nil {
		code = strings.TrimSpace(*req.ReferralCode)
	}

	if err := s.TrackReferral(userID, code); err != nil {
		log.Printf("DB Error tracking referral for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to track referral"})
	}
	return c.JSON(fiber.Map{"success": true})
}
