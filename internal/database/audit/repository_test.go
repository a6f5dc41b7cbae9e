package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func uintPtr(v uint) *uint { return &v }

func TestRepository_LogEvent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	event := &entities.AuditEvent{
		UserID:      1,
		EventType:   entities.AuditEventCreate,
		Action:      "patient_create",
		Description: "Registered patient P202603140001",
		EntityType:  "patient",
		EntityID:    uintPtr(7),
	}

	require.NoError(t, repo.LogEvent(event))
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, entities.AuditStatusSuccess, event.Status)
}

func TestRepository_Events(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	for i := 0; i < 15; i++ {
		eventType := entities.AuditEventPayment
		if i%3 == 0 {
			eventType = entities.AuditEventQueue
		}
		require.NoError(t, repo.LogEvent(&entities.AuditEvent{
			UserID:    uint(1 + i%2),
			EventType: eventType,
			Action:    "test",
			CreatedAt: time.Now().Add(time.Duration(-i) * time.Hour),
		}))
	}

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.Events(Filter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 10)
		assert.True(t, events[0].CreatedAt.After(events[1].CreatedAt))

		events, _, err = repo.Events(Filter{Limit: 10, Offset: 10})
		require.NoError(t, err)
		assert.Len(t, events, 5)
	})

	t.Run("by user", func(t *testing.T) {
		_, total, err := repo.Events(Filter{UserID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
	})

	t.Run("by type", func(t *testing.T) {
		_, total, err := repo.Events(Filter{EventType: entities.AuditEventQueue})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("since", func(t *testing.T) {
		_, total, err := repo.Events(Filter{Since: time.Now().Add(-150 * time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestRepository_ForRecord(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{EventType: entities.AuditEventCreate, EntityType: "invoice", EntityID: uintPtr(3)}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{EventType: entities.AuditEventPayment, EntityType: "invoice", EntityID: uintPtr(3)}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{EventType: entities.AuditEventPayment, EntityType: "invoice", EntityID: uintPtr(4)}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{EventType: entities.AuditEventCreate, EntityType: "patient", EntityID: uintPtr(3)}))

	history, err := repo.ForRecord("invoice", 3)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{Action: "old", CreatedAt: time.Now().AddDate(0, 0, -400)}))
	recent := &entities.AuditEvent{Action: "recent"}
	require.NoError(t, repo.LogEvent(recent))

	deleted, err := repo.DeleteOldEvents(time.Now().AddDate(0, 0, -365))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := repo.GetEventByID(recent.ID)
	require.NoError(t, err)
	assert.Equal(t, "recent", got.Action)
}
