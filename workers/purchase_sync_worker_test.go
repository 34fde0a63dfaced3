package workers

import (
	"fmt"
	"strings"
	"testing"

	"music-access-system/models"
	"music-access-system/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Content{},
		&models.MonetizationSettings{},
		&models.Purchase{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.PointsHistory{},
	))
	return db
}

func newTestClient(db *gorm.DB) *PurchaseSyncClient {
	return &PurchaseSyncClient{
		DB:        db,
		Revenue:   services.NewRevenueService(db),
		Referrals: services.NewReferralService(db),
	}
}

func TestRecordOrderIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	client := newTestClient(db)

	content := models.Content{
		ID:          uuid.NewString(),
		DJID:        uuid.NewString(),
		ContentType: models.ContentTypeTrack,
		Title:       "Basement Tapes",
		Status:      models.ContentStatusActive,
	}
	require.NoError(t, db.Create(&content).Error)

	order := CompletedOrder{
		OrderID:     uuid.NewString(),
		UserID:      uuid.NewString(),
		ContentID:   content.ID,
		ContentType: models.ContentTypeTrack,
		AmountCents: 500,
	}
	require.NoError(t, client.RecordOrder(order))
	require.NoError(t, client.RecordOrder(order)) // window replay

	var purchases int64
	require.NoError(t, db.Model(&models.Purchase{}).Where("external_order_id = ?", order.OrderID).Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)

	var points int64
	require.NoError(t, db.Model(&models.PointsHistory{}).Where("user_id = ?", order.UserID).Count(&points).Error)
	assert.Equal(t, int64(1), points)
}

func TestRecordBatchDropsPoisonOrders(t *testing.T) {
	db := newTestDB(t)
	client := newTestClient(db)

	content := models.Content{
		ID:          uuid.NewString(),
		DJID:        uuid.NewString(),
		ContentType: models.ContentTypeTrack,
		Title:       "Basement Tapes",
		Status:      models.ContentStatusActive,
	}
	require.NoError(t, db.Create(&content).Error)

	good := CompletedOrder{
		OrderID:     uuid.NewString(),
		UserID:      uuid.NewString(),
		ContentID:   content.ID,
		ContentType: models.ContentTypeTrack,
		AmountCents: 500,
	}
	// References a content row that does not exist and never will.
	poison := CompletedOrder{
		OrderID:     uuid.NewString(),
		UserID:      uuid.NewString(),
		ContentID:   uuid.NewString(),
		ContentType: models.ContentTypeTrack,
		AmountCents: 500,
	}
	batch := []CompletedOrder{good, poison}

	// The poison order holds the window open only until the retry cap.
	for attempt := 1; attempt < maxOrderAttempts; attempt++ {
		assert.Equal(t, 1, client.recordBatch(batch), "attempt %d", attempt)
	}
	assert.Zero(t, client.recordBatch(batch), "poison order is dropped at the cap, window may advance")

	// The good order landed exactly once despite all the replays.
	var purchases int64
	require.NoError(t, db.Model(&models.Purchase{}).Where("external_order_id = ?", good.OrderID).Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)

	require.NoError(t, db.Model(&models.Purchase{}).Where("external_order_id = ?", poison.OrderID).Count(&purchases).Error)
	assert.Zero(t, purchases)
}
