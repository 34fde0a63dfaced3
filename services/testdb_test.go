package services

import (
	"fmt"
	"strings"
	"testing"

	"music-access-system/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory database per test. TranslateError is
// on so unique-constraint violations surface as gorm.ErrDuplicatedKey, same
// as the postgres setup in main.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// busy_timeout makes concurrent writers queue instead of erroring, which
	// the racing-goroutine tests depend on.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", strings.ReplaceAll(t.Name(), "/", "_"))
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
	return db
}
