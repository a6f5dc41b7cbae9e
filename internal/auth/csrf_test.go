package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/entities"
)

var testCSRFSecret = []byte("0123456789abcdef0123456789abcdef")

func newCSRFRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(CSRFMiddleware(testCSRFSecret, false, svc))
	router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c)})
	})
	router.POST("/api/patients", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestCSRFMiddleware(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())
	router := newCSRFRouter(svc)

	t.Run("POST without token is rejected", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/patients", `{}`, nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
		if w.Header().Get("Content-Type") != "application/json" {
			t.Errorf("content type = %s", w.Header().Get("Content-Type"))
		}
	})

	t.Run("token from GET allows POST", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET status = %d", w.Code)
		}

		var body struct {
			Token string `json:"csrf_token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Token == "" {
			t.Fatalf("no token in body: %s", w.Body.String())
		}

		req := httptest.NewRequest(http.MethodPost, "/api/patients", nil)
		for _, cookie := range w.Result().Cookies() {
			req.AddCookie(cookie)
		}
		req.Header.Set(CSRFTokenHeader, body.Token)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("POST status = %d, want 201", w.Code)
		}
	})

	t.Run("valid bearer skips check", func(t *testing.T) {
		user := mustCreateUser(t, svc, "script", entities.UserRoleAccountant)
		token, err := svc.GenerateToken(user.ID)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}

		w := doJSON(router, http.MethodPost, "/api/patients", `{}`, map[string]string{"Authorization": "Bearer " + token})
		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", w.Code)
		}
	})

	t.Run("invalid bearer does not skip check", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/patients", `{}`, map[string]string{"Authorization": "Bearer forged"})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
