// services/download_service.go
package services

import (
	"errors"
	"log"
	"time"

	"music-access-system/models"
	"music-access-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTokenTTL bounds how stale an issuance-time entitlement decision can
// get: the token is the capability and consume does not re-check.
const DefaultTokenTTL = 15 * time.Minute

type DownloadService struct {
	DB           *gorm.DB
	Entitlements *EntitlementService
	Audit        *AuditService
	TokenTTL     time.Duration
}

func NewDownloadService(db *gorm.DB, entitlements *EntitlementService, audit *AuditService) *DownloadService {
	return &DownloadService{
		DB:           db,
		Entitlements: entitlements,
		Audit:        audit,
		TokenTTL:     DefaultTokenTTL,
	}
}

// IssueToken runs a fresh entitlement check — never trusts a prior decision,
// since entitlement can change between page view and download click — and
// mints a single-use token. allowed=false with nil error is a plain deny.
func (s *DownloadService) IssueToken(userID, contentID, contentType string) (*models.DownloadToken, bool, error) {
	decision, err := s.Entitlements.Resolve(userID, contentType, contentID)
	if err != nil {
		return nil, false, err
	}
	if !decision.Allowed {
		return nil, false, nil
	}

	token := &models.DownloadToken{
		Token:       uuid.NewString(),
		UserID:      userID,
		ContentID:   contentID,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(s.TokenTTL),
	}
	if err := s.DB.Create(token).Error; err != nil {
		return nil, false, err
	}
	return token, true, nil
}

// ConsumeToken atomically flips used false→true. A nil token with nil error
// means expired-or-used: the conditional update found no live row, so the
// request fails closed. Racing duplicate consumes settle at the store — only
// one update can win.
func (s *DownloadService) ConsumeToken(tokenValue string) (*models.DownloadToken, error) {
	res := s.DB.Model(&models.DownloadToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", tokenValue, false, time.Now()).
		Update("used", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		s.flagTokenReuse(tokenValue)
		return nil, nil
	}

	var token models.DownloadToken
	if err := s.DB.Where("token = ?", tokenValue).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// flagTokenReuse reports a consume attempt on an already-used token to the
// audit sink. Merely expired tokens are not suspicious.
func (s *DownloadService) flagTokenReuse(tokenValue string) {
	var token models.DownloadToken
	if err := s.DB.Where("token = ?", tokenValue).First(&token).Error; err != nil {
		return
	}
	if token.Used {
		s.Audit.LogSuspicious(models.AuditConcurrentDownloadLimit, token.UserID, map[string]interface{}{
			"token":      token.Token,
			"content_id": token.ContentID,
		})
	}
}

// --- Handlers ---

// RequestDownloadToken handles POST /download-token.
func (s *DownloadService) RequestDownloadToken(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ContentID   string `json:"content_id"`
		ContentType string `json:"content_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ContentID == "" || !models.ValidContentType(req.ContentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content_id and a valid content_type are required"})
	}

	token, allowed, err := s.IssueToken(userID, req.ContentID, req.ContentType)
	if err != nil {
		log.Printf("DB Error issuing download token for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue download token"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not entitled to this content"})
	}

	return c.JSON(fiber.Map{"token": token.Token, "expires_at": token.ExpiresAt})
}

// Download handles GET /download?token=... by exchanging the token for a
// presigned file URL. Delivery itself is the storage layer's problem.
func (s *DownloadService) Download(c *fiber.Ctx) error {
	tokenValue := c.Query("token")
	if tokenValue == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	token, err := s.ConsumeToken(tokenValue)
	if err != nil {
		log.Printf("DB Error consuming download token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to consume download token"})
	}
	if token == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "download token expired or already used"})
	}

	var content models.Content
	if err := s.DB.Where("id = ?", token.ContentID).First(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content no longer available"})
		}
		log.Printf("DB Error loading content %s for download: %v", token.ContentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	url, err := utils.PresignDownloadURL(c.Context(), content.FileKey, s.TokenTTL)
	if err != nil {
		log.Printf("Failed to presign download for content %s: %v", content.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to prepare download"})
	}

	return c.Redirect(url, fiber.StatusFound)
}
