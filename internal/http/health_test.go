package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicmgr/clinic/internal/database"
)

func setupHealthTestDB(t *testing.T) *database.Database {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func getHealth(t *testing.T, controller *HealthController) (int, HealthResponse) {
	t.Helper()
	router := gin.New()
	router.GET("/health", controller.Status)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database is connected", func(t *testing.T) {
		db := setupHealthTestDB(t)

		code, response := getHealth(t, NewHealthController(db, "1.0.0"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("returns unhealthy when database is nil", func(t *testing.T) {
		gin.SetMode(gin.TestMode)

		code, response := getHealth(t, NewHealthController(nil, "1.0.0"))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db := setupHealthTestDB(t)
		require.NoError(t, db.Close())

		code, response := getHealth(t, NewHealthController(db, "1.0.0"))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error:")
	})

	t.Run("failing extra check degrades but stays available", func(t *testing.T) {
		db := setupHealthTestDB(t)
		controller := NewHealthController(db, "1.0.0").
			AddCheck("backups", func(context.Context) error { return errors.New("directory not writable") }).
			AddCheck("documents", func(context.Context) error { return nil })

		code, response := getHealth(t, controller)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", response.Status)
		assert.Equal(t, "error: directory not writable", response.Checks["backups"])
		assert.Equal(t, "ok", response.Checks["documents"])
	})
}

func TestHealthController_Ping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", NewHealthController(nil, "").Ping)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
