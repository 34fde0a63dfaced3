// services/revenue_service.go
package services

import (
	"errors"
	"log"

	"music-access-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRevenueSharePct applies when a DJ has no monetization settings row
// or the lookup fails.
const DefaultRevenueSharePct = 80

// RevenueSplit divides a purchase amount between DJ and platform. Amounts are
// minor currency units (cents); DJAmountCents + PlatformAmountCents always
// equals the input total.
type RevenueSplit struct {
	DJAmountCents       int64 `json:"dj_amount_cents"`
	PlatformAmountCents int64 `json:"platform_amount_cents"`
	DJSharePct          int   `json:"dj_share_pct"`
}

type RevenueService struct {
	DB *gorm.DB
}

func NewRevenueService(db *gorm.DB) *RevenueService {
	return &RevenueService{DB: db}
}

// Split computes the DJ/platform division of totalCents. Lookup failures are
// logged and degrade to the default share — a purchase must never fail because
// the settings table was unreachable.
func (s *RevenueService) Split(djID string, totalCents int64) RevenueSplit {
	pct := DefaultRevenueSharePct

	var settings models.MonetizationSettings
	if err := s.DB.Where("dj_id = ?", djID).First(&settings).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("monetization settings lookup failed for dj %s: %v — falling back to %d%%", djID, err, DefaultRevenueSharePct)
		}
	} else if settings.RevenueSharePct >= 0 && settings.RevenueSharePct <= 100 {
		pct = settings.RevenueSharePct
	}

	djAmount := totalCents * int64(pct) / 100
	return RevenueSplit{
		DJAmountCents:       djAmount,
		PlatformAmountCents: totalCents - djAmount,
		DJSharePct:          pct,
	}
}

// --- DJ Handlers ---

// GetMonetizationSettings returns the caller's revenue share (DJ only).
func (s *RevenueService) GetMonetizationSettings(c *fiber.Ctx) error {
	djID := c.Locals("user_id").(string)

	var settings models.MonetizationSettings
	if err := s.DB.Where("dj_id = ?", djID).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"dj_id": djID, "revenue_share_pct": DefaultRevenueSharePct, "default": true})
		}
		log.Printf("DB Error fetching monetization settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(settings)
}

// UpdateMonetizationSettings sets the caller's revenue share (DJ only).
func (s *RevenueService) UpdateMonetizationSettings(c *fiber.Ctx) error {
	djID := c.Locals("user_id").(string)

	var req struct {
		RevenueSharePct *int `json:"revenue_share_pct"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.RevenueSharePct == nil || *req.RevenueSharePct < 0 || *req.RevenueSharePct > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "revenue_share_pct must be between 0 and 100"})
	}

	settings := models.MonetizationSettings{
		ID:              uuid.NewString(),
		DJID:            djID,
		RevenueSharePct: *req.RevenueSharePct,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dj_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"revenue_share_pct", "updated_at"}),
	}).Create(&settings).Error; err != nil {
		log.Printf("DB Error updating monetization settings for dj %s: %v", djID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settings"})
	}

	return c.JSON(fiber.Map{"dj_id": djID, "revenue_share_pct": *req.RevenueSharePct})
}
