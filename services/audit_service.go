// services/audit_service.go
package services

import (
	"encoding/json"
	"log"

	"music-access-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditService is the durable sink for suspicious-activity events. Detection
// (velocity/rate analysis) runs in the monitoring pipeline and pushes events
// through the internal ingest endpoint; the resolver and token service call
// LogSuspicious directly.
type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// LogSuspicious is fire-and-forget: a failed audit write is logged and dropped,
// never surfaced, so it can't block or fail the caller's primary operation.
func (s *AuditService) LogSuspicious(eventType, targetUserID string, metadata map[string]interface{}) {
	blob, err := json.Marshal(metadata)
	if err != nil {
		log.Printf("audit metadata marshal failed for %s: %v", eventType, err)
		blob = []byte("{}")
	}

	entry := models.AuditLogEntry{
		ID:           uuid.NewString(),
		Type:         eventType,
		TargetUserID: targetUserID,
		Metadata:     string(blob),
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		log.Printf("audit write failed (%s, user %s): %v — event dropped", eventType, targetUserID, err)
	}
}

// IngestSuspiciousEvent accepts pushed events from the external detector
// (gateway-only route).
func (s *AuditService) IngestSuspiciousEvent(c *fiber.Ctx) error {
	var req struct {
		Type         string                 `json:"type"`
		TargetUserID string                 `json:"target_user_id"`
		Metadata     map[string]interface{} `json:"metadata"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	switch req.Type {
	case models.AuditConcurrentDownloadLimit, models.AuditRapidDownloadPattern, models.AuditMultipleIPAccess:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unrecognized event type"})
	}

	s.LogSuspicious(req.Type, req.TargetUserID, req.Metadata)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}
