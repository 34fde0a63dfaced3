// services/content_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"music-access-system/models"
	"music-access-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type ContentService struct {
	DB *gorm.DB

	titleCaser cases.Caser
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{
		DB:         db,
		titleCaser: cases.Title(language.English),
	}
}

// CreateContent handles POST /tracks (DJ only, multipart form).
// Fields: title, content_type, price_cents, file_key; optional artwork file.
func (s *ContentService) CreateContent(c *fiber.Ctx) error {
	djID := c.Locals("user_id").(string)

	title := strings.TrimSpace(c.FormValue("title"))
	contentType := c.FormValue("content_type")
	fileKey := c.FormValue("file_key")

	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if !models.ValidContentType(contentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content_type must be track or zip"})
	}

	priceCents := int64(0)
	if v := c.FormValue("price_cents"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid price_cents"})
		}
		priceCents = parsed
	}

	content := models.Content{
		ID:          uuid.NewString(),
		DJID:        djID,
		ContentType: contentType,
		Title:       s.titleCaser.String(strings.ToLower(title)),
		Slug:        slug.Make(title),
		FileKey:     fileKey,
		PriceCents:  priceCents,
		Status:      models.ContentStatusActive,
	}

	// Artwork is optional; upload failures shouldn't lose the record.
	if fileHeader, err := c.FormFile("artwork"); err == nil {
		key := fmt.Sprintf("artwork/%s-%s", content.ID, slug.Make(fileHeader.Filename))
		url, upErr := utils.UploadFileToR2(fileHeader, key)
		if upErr != nil {
			log.Printf("Artwork upload failed for content %s: %v", content.ID, upErr)
		} else {
			content.ArtworkURL = url
		}
	}

	if err := s.DB.Create(&content).Error; err != nil {
		log.Printf("DB Error creating content for dj %s: %v", djID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create content"})
	}

	return c.Status(fiber.StatusCreated).JSON(content)
}

// ListContent handles GET /tracks — public, active content only.
func (s *ContentService) ListContent(c *fiber.Ctx) error {
	query := s.DB.Where("status = ?", models.ContentStatusActive)

	if djID := c.Query("dj_id"); djID != "" {
		query = query.Where("dj_id = ?", djID)
	}
	if contentType := c.Query("content_type"); contentType != "" {
		if !models.ValidContentType(contentType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content_type must be track or zip"})
		}
		query = query.Where("content_type = ?", contentType)
	}

	var items []models.Content
	if err := query.Order("created_at DESC").Limit(100).Find(&items).Error; err != nil {
		log.Printf("DB Error listing content: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch content"})
	}
	return c.JSON(items)
}

// UpdateContentStatus handles PATCH /tracks/:id/status. Only the owning DJ may
// toggle; ownership itself is immutable.
func (s *ContentService) UpdateContentStatus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Status != models.ContentStatusActive && req.Status != models.ContentStatusInactive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be active or inactive"})
	}

	var content models.Content
	if err := s.DB.First(&content, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Content not found"})
		}
		log.Printf("DB Error fetching content %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if content.DJID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not the owner of this content"})
	}

	content.Status = req.Status
	if err := s.DB.Save(&content).Error; err != nil {
		log.Printf("DB Error updating content status %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update status"})
	}
	return c.JSON(content)
}

// RecordInteraction handles POST /tracks/:id/interactions. The interaction
// feed is what the external ranking service consumes; types are a closed set.
func (s *ContentService) RecordInteraction(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	contentID := c.Params("id")

	var req struct {
		Type models.InteractionType `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !req.Type.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unrecognized interaction type"})
	}

	interaction := models.Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContentID: contentID,
		Type:      req.Type,
	}
	if err := s.DB.Create(&interaction).Error; err != nil {
		log.Printf("DB Error recording interaction: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record interaction"})
	}
	return c.Status(fiber.StatusCreated).JSON(interaction)
}
