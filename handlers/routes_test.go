package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"music-access-system/models"
	"music-access-system/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Content{},
		&models.MonetizationSettings{},
		&models.Interaction{},
		&models.Purchase{},
		&models.Subscription{},
		&models.DownloadToken{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.PointsHistory{},
		&models.AuditLogEntry{},
	))

	quotaService := services.NewQuotaService(db)
	entitlementService := services.NewEntitlementService(db, quotaService)
	auditService := services.NewAuditService(db)
	downloadService := services.NewDownloadService(db, entitlementService, auditService)

	// Gateway auth is applied globally in main; route behavior is what's
	// under test here.
	app := fiber.New()
	SetupAccessRoutes(app, entitlementService, downloadService, auditService)
	SetupRewardsRoutes(app, services.NewReferralService(db))
	SetupContentRoutes(app, services.NewContentService(db), services.NewSubscriptionService(db), services.NewRevenueService(db))
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, target, userID string, roles string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func TestSecuredRoutesRequireUserContext(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, "GET", "/rewards/points", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-User-ID")

	status, _ = doJSON(t, app, "POST", "/download-token", "", "", fiber.Map{"content_id": "x", "content_type": "track"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// Catalogue browsing needs no user context.
	resp, err := app.Test(httptest.NewRequest("GET", "/tracks", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSubscribeAndQuotaSnapshot(t *testing.T) {
	app, _ := newTestApp(t)
	userID := uuid.NewString()
	djID := uuid.NewString()

	status, body := doJSON(t, app, "POST", "/subscriptions", userID, "", fiber.Map{"dj_id": djID, "plan": "basic"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "basic", body["plan"])

	status, body = doJSON(t, app, "GET", "/subscriptions/quota?dj_id="+djID, userID, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(5), body["track_quota"])
	assert.Equal(t, float64(0), body["tracks_used"])
	assert.Equal(t, true, body["active"])

	status, _ = doJSON(t, app, "POST", "/subscriptions", userID, "", fiber.Map{"dj_id": djID, "plan": "platinum"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestReferralFlowOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	referrer := uuid.NewString()
	referred := uuid.NewString()

	status, body := doJSON(t, app, "POST", "/rewards/referral/generate", referrer, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	code, _ := body["referralCode"].(string)
	require.NotEmpty(t, code)

	status, body = doJSON(t, app, "POST", "/rewards/track", referred, "", fiber.Map{"referralCode": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = doJSON(t, app, "GET", "/rewards/points", referred, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(services.SignupBonusPoints), body["balance"])

	status, body = doJSON(t, app, "GET", "/rewards/referral", referrer, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, code, body["code"])
	stats, _ := body["stats"].(map[string]interface{})
	require.NotNil(t, stats)
	assert.Equal(t, float64(1), stats["totalInvites"])
	assert.Equal(t, float64(0), stats["successfulReferrals"])
}

func TestDownloadTokenDeniedWithoutEntitlement(t *testing.T) {
	app, db := newTestApp(t)
	userID := uuid.NewString()

	content := models.Content{
		ID:          uuid.NewString(),
		DJID:        uuid.NewString(),
		ContentType: models.ContentTypeTrack,
		Title:       "Late Night Tape",
		Status:      models.ContentStatusActive,
	}
	require.NoError(t, db.Create(&content).Error)

	status, _ := doJSON(t, app, "POST", "/download-token", userID, "", fiber.Map{
		"content_id":   content.ID,
		"content_type": models.ContentTypeTrack,
	})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestMonetizationSettingsRequireDJRole(t *testing.T) {
	app, _ := newTestApp(t)
	userID := uuid.NewString()

	status, _ := doJSON(t, app, "PUT", "/monetization/settings", userID, "fan", fiber.Map{"revenue_share_pct": 70})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := doJSON(t, app, "PUT", "/monetization/settings", userID, "dj,fan", fiber.Map{"revenue_share_pct": 70})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(70), body["revenue_share_pct"])

	status, body = doJSON(t, app, "GET", "/monetization/settings", userID, "dj", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(70), body["revenue_share_pct"])
}

func TestEntitlementCheckEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	userID := uuid.NewString()

	content := models.Content{
		ID:          uuid.NewString(),
		DJID:        uuid.NewString(),
		ContentType: models.ContentTypeTrack,
		Title:       "Rooftop Set",
		Status:      models.ContentStatusActive,
	}
	require.NoError(t, db.Create(&content).Error)
	require.NoError(t, db.Create(&models.Purchase{
		ID:              uuid.NewString(),
		UserID:          userID,
		ContentType:     models.ContentTypeTrack,
		ContentID:       content.ID,
		ExternalOrderID: uuid.NewString(),
	}).Error)

	target := fmt.Sprintf("/internal/entitlement/check?user_id=%s&content_type=track&content_id=%s", userID, content.ID)
	status, body := doJSON(t, app, "GET", target, "", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "purchase", body["via"])
}
