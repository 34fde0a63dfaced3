// services/entitlement_service.go
package services

import (
	"errors"
	"log"
	"time"

	"music-access-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	ViaPurchase     = "purchase"
	ViaSubscription = "subscription"
)

// EntitlementDecision is the resolver's answer. Via is empty on deny.
type EntitlementDecision struct {
	Allowed bool   `json:"allowed"`
	Via     string `json:"via,omitempty"`
}

type EntitlementService struct {
	DB    *gorm.DB
	Quota *QuotaService
}

func NewEntitlementService(db *gorm.DB, quota *QuotaService) *EntitlementService {
	return &EntitlementService{DB: db, Quota: quota}
}

// Resolve decides whether userID may access the given content. A matching
// purchase always wins and never touches quota or expiry; otherwise the
// owning DJ's subscription is consulted and a grant charges the quota in the
// same step. Store errors propagate so callers fail closed.
func (s *EntitlementService) Resolve(userID, contentType, contentID string) (EntitlementDecision, error) {
	var purchase models.Purchase
	err := s.DB.Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		First(&purchase).Error
	if err == nil {
		return EntitlementDecision{Allowed: true, Via: ViaPurchase}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return EntitlementDecision{}, err
	}

	var content models.Content
	err = s.DB.Where("id = ? AND content_type = ?", contentID, contentType).First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EntitlementDecision{}, nil
		}
		return EntitlementDecision{}, err
	}

	var sub models.Subscription
	err = s.DB.Where("user_id = ? AND dj_id = ? AND expires_at > ?", userID, content.DJID, time.Now()).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EntitlementDecision{}, nil
		}
		return EntitlementDecision{}, err
	}

	result, err := s.Quota.TryConsume(sub.ID, contentType)
	if err != nil {
		return EntitlementDecision{}, err
	}
	if result != ConsumeOK {
		// Exhausted collapses to a plain deny; callers needing the
		// distinction inspect quota state via the subscriptions API.
		return EntitlementDecision{}, nil
	}
	return EntitlementDecision{Allowed: true, Via: ViaSubscription}, nil
}

// CheckEntitlement is the internal gateway-only endpoint other services call.
func (s *EntitlementService) CheckEntitlement(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	contentType := c.Query("content_type")
	contentID := c.Query("content_id")

	if userID == "" || contentID == "" || !models.ValidContentType(contentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id, content_id and a valid content_type are required"})
	}

	decision, err := s.Resolve(userID, contentType, contentID)
	if err != nil {
		log.Printf("DB Error resolving entitlement for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement check failed"})
	}
	return c.JSON(decision)
}
