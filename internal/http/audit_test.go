package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditrepo "github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/entities"
)

type mockAuditReader struct {
	lastFilter auditrepo.Filter
	events     []entities.AuditEvent
	err        error
}

func (m *mockAuditReader) Events(f auditrepo.Filter) ([]entities.AuditEvent, int64, error) {
	m.lastFilter = f
	return m.events, int64(len(m.events)), m.err
}

func (m *mockAuditReader) ForRecord(entityType string, id uint) ([]entities.AuditEvent, error) {
	m.lastFilter = auditrepo.Filter{EntityType: entityType, EntityID: id}
	return m.events, m.err
}

func serveAudit(reader AuditReader, target string) *httptest.ResponseRecorder {
	router := gin.New()
	ac := NewAuditController(reader)
	router.GET("/api/audit", ac.Events)
	router.GET("/api/audit/:entity/:id", ac.ForRecord)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestAuditEvents_Filters(t *testing.T) {
	reader := &mockAuditReader{events: []entities.AuditEvent{{ID: 1, Action: "payment"}}}

	w := serveAudit(reader, "/api/audit?user_id=3&type=payment&entity=invoice&entity_id=9&since=2026-01-01&limit=10&offset=20")

	require.Equal(t, http.StatusOK, w.Code)
	f := reader.lastFilter
	assert.Equal(t, uint(3), f.UserID)
	assert.Equal(t, entities.AuditEventPayment, f.EventType)
	assert.Equal(t, "invoice", f.EntityType)
	assert.Equal(t, uint(9), f.EntityID)
	assert.Equal(t, 2026, f.Since.Year())
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)

	page := decode[PaginatedResponse](t, w)
	assert.Equal(t, int64(1), page.Total)
}

func TestAuditEvents_BadInput(t *testing.T) {
	reader := &mockAuditReader{}

	assert.Equal(t, http.StatusBadRequest, serveAudit(reader, "/api/audit?user_id=x").Code)
	assert.Equal(t, http.StatusBadRequest, serveAudit(reader, "/api/audit?since=yesterday").Code)
}

func TestAuditEvents_StoreErrorIsHidden(t *testing.T) {
	reader := &mockAuditReader{err: errors.New("database is locked")}

	w := serveAudit(reader, "/api/audit")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "locked")
}

func TestAuditForRecord(t *testing.T) {
	reader := &mockAuditReader{}

	w := serveAudit(reader, "/api/audit/patient/12")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Equal(t, "patient", reader.lastFilter.EntityType)
	assert.Equal(t, uint(12), reader.lastFilter.EntityID)
}

type mockTaskQueue struct {
	status backlite.TaskStatus
}

func (m *mockTaskQueue) Add(...backlite.Task) *backlite.TaskAddOp { return nil }

func (m *mockTaskQueue) Status(context.Context, string) (backlite.TaskStatus, error) {
	return m.status, nil
}

func TestTasksController(t *testing.T) {
	queue := &mockTaskQueue{status: backlite.TaskStatusRunning}
	tc := NewTasksController(queue)
	router := gin.New()
	router.GET("/api/tasks/types", tc.ListTaskTypes)
	router.GET("/api/tasks/:id", tc.GetTaskStatus)
	router.POST("/api/tasks/:type/run", tc.RunTask)

	t.Run("types", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/types", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "backup_database")
		assert.Contains(t, w.Body.String(), "inventory_alerts")
	})

	t.Run("status", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/abc", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"running"`)
	})

	t.Run("unknown task", func(t *testing.T) {
		queue.status = backlite.TaskStatusNotFound
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown type is rejected before enqueueing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/reindex_books/run", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
