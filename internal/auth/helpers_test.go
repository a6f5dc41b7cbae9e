package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/database/users"
	"github.com/clinicmgr/clinic/internal/entities"
)

const testPassword = "clinic-pass-1"

func testAuthConfig() config.Auth {
	return config.Auth{
		Mode:             config.AuthModeLocal,
		SessionLifetime:  12 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 3,
		LockoutDuration:  time.Minute,
	}
}

// setupTestDB opens a file-backed database so every pooled connection sees
// the same schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T, cfg config.Auth) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewService(users.NewRepository(db), cfg), db
}

func mustCreateUser(t *testing.T, svc *Service, username string, role entities.UserRole) *entities.User {
	t.Helper()
	user, err := svc.CreateUser(NewUser{Username: username, Password: testPassword, FullName: username, Role: role})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func newSessionManager(t *testing.T, db *gorm.DB, cfg config.Auth) *SessionManager {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}
	sm, err := NewSessionManager(sqlDB, cfg)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func doJSON(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func init() {
	gin.SetMode(gin.TestMode)
}
