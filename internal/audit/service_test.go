package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	require.NoError(t, db.AutoMigrate(&entities.AuditEvent{}))

	return NewService(auditRepo.NewRepository(db)), db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventCreate,
		Action:    "patient_create",
	}
	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "patient_create", saved.Action)
	assert.Equal(t, entities.AuditStatusSuccess, saved.Status)
}

func TestService_LogActivity(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogActivity(2, entities.AuditEventUpdate, "patient", 17, "Updated phone", map[string]string{"phone": "0100"})
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "patient_update").First(&event).Error)
	assert.Equal(t, "patient", event.EntityType)
	require.NotNil(t, event.EntityID)
	assert.Equal(t, uint(17), *event.EntityID)
	assert.Contains(t, string(event.Metadata), `"phone":"0100"`)
}

func TestService_LogPayment(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogPayment(1, 9, "INV-20260314-0001", decimal.NewFromInt(150), entities.PaymentMethodCash)
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventPayment).First(&event).Error)
	assert.Equal(t, "Payment of 150.00 on INV-20260314-0001", event.Description)
	assert.Contains(t, string(event.Metadata), `"method":"cash"`)
}

func TestService_LogDelete(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("soft delete", func(t *testing.T) {
		svc.LogDelete(1, "patient", 42, "Ahmed Ali", false)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "patient_delete").First(&event).Error)
		assert.Equal(t, entities.AuditEventDelete, event.EventType)
		require.NotNil(t, event.EntityID)
		assert.Equal(t, uint(42), *event.EntityID)
	})

	t.Run("permanent delete", func(t *testing.T) {
		svc.LogDelete(1, "patient", 43, "Mai Ali", true)
		svc.Wait()

		var count int64
		db.Model(&entities.AuditEvent{}).Where("action = ?", "patient_delete_permanent").Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "192.168.1.1", "Mozilla/5.0", true)
	svc.LogAuth(0, "login_failed", "10.0.0.1", "curl/8.0", false)
	svc.Wait()

	var ok, failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login").First(&ok).Error)
	assert.Equal(t, entities.AuditStatusSuccess, ok.Status)
	assert.Equal(t, "192.168.1.1", ok.IPAddress)

	require.NoError(t, db.Where("action = ?", "login_failed").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
}

func TestService_LogBackup(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogBackup(1, "backup_create", "Backup_20260314_020000.db", nil)
	svc.LogBackup(1, "backup_restore", "broken.db", errors.New("integrity check failed"))
	svc.Wait()

	var failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "backup_restore").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMsg, "integrity check failed")
}

func TestService_Events(t *testing.T) {
	svc, _ := setupTestService(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Log(&entities.AuditEvent{UserID: 1, EventType: entities.AuditEventCreate, Action: "visit_create"}))
	}
	require.NoError(t, svc.Log(&entities.AuditEvent{UserID: 2, EventType: entities.AuditEventSettings, Action: "clinic_profile_update"}))

	events, total, err := svc.Events(auditRepo.Filter{UserID: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 3)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	require.NoError(t, db.Create(&entities.AuditEvent{
		EventType: entities.AuditEventCreate, Action: "old", Status: entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&entities.AuditEvent{
		EventType: entities.AuditEventCreate, Action: "new", Status: entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}).Error)

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []entities.AuditEvent
	db.Find(&remaining)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Action)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, truncate(tc.input, tc.maxLen))
	}
}
