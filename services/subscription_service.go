// services/subscription_service.go
package services

import (
	"errors"
	"log"
	"time"

	"music-access-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionService struct {
	DB *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{DB: db}
}

// Subscribe handles POST /subscriptions. Quotas and duration come from the
// plan catalogue at creation time; later catalogue changes never touch
// existing rows.
func (s *SubscriptionService) Subscribe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		DJID string `json:"dj_id"`
		Plan string `json:"plan"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.DJID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dj_id is required"})
	}

	spec, ok := models.Plans[req.Plan]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown plan"})
	}

	sub := models.Subscription{
		ID:             uuid.NewString(),
		UserID:         userID,
		DJID:           req.DJID,
		Plan:           req.Plan,
		TrackQuota:     spec.TrackQuota,
		ZipQuota:       spec.ZipQuota,
		FanUploadQuota: spec.FanUploadQuota,
		ExpiresAt:      time.Now().AddDate(0, 0, spec.DurationDays),
	}
	if err := s.DB.Create(&sub).Error; err != nil {
		log.Printf("DB Error creating subscription for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create subscription"})
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetQuota handles GET /subscriptions/quota?dj_id=... — the snapshot callers
// use to tell "quota exhausted" apart from "no active subscription", since
// the resolver collapses both to a deny.
func (s *SubscriptionService) GetQuota(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	djID := c.Query("dj_id")
	if djID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dj_id is required"})
	}

	var sub models.Subscription
	err := s.DB.Where("user_id = ? AND dj_id = ?", userID, djID).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no subscription for this DJ"})
		}
		log.Printf("DB Error fetching subscription for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"plan":        sub.Plan,
		"track_quota": sub.TrackQuota,
		"tracks_used": sub.TracksUsed,
		"zip_quota":   sub.ZipQuota,
		"zips_used":   sub.ZipsUsed,
		"expires_at":  sub.ExpiresAt,
		"active":      sub.ExpiresAt.After(time.Now()),
	})
}
