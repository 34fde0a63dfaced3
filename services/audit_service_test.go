package services

import (
	"testing"

	"music-access-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSuspiciousWritesEntry(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db)

	userID := uuid.NewString()
	svc.LogSuspicious(models.AuditMultipleIPAccess, userID, map[string]interface{}{
		"ips": []string{"10.0.0.1", "192.168.1.50"},
	})

	var entry models.AuditLogEntry
	require.NoError(t, db.Where("target_user_id = ?", userID).First(&entry).Error)
	assert.Equal(t, models.AuditMultipleIPAccess, entry.Type)
	assert.Contains(t, entry.Metadata, "10.0.0.1")
}

func TestLogSuspiciousNeverFailsTheCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db)

	// Kill the table: the write fails, the caller must not notice.
	require.NoError(t, db.Migrator().DropTable(&models.AuditLogEntry{}))

	assert.NotPanics(t, func() {
		svc.LogSuspicious(models.AuditRapidDownloadPattern, uuid.NewString(), nil)
	})
}
