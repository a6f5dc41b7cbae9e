package auth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 3, WindowDuration: time.Minute, LockoutDuration: time.Minute})
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if allowed, _ := rl.Allow("10.0.0.1", "nurse"); !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		rl.RecordFailure("10.0.0.1", "nurse")
	}

	locked, retry := rl.RecordFailure("10.0.0.1", "Nurse ")
	if !locked || retry != time.Minute {
		t.Fatalf("third failure: locked=%v retry=%v", locked, retry)
	}
	if allowed, _ := rl.Allow("10.0.0.1", "nurse"); allowed {
		t.Error("locked key should be refused")
	}

	if allowed, _ := rl.Allow("10.0.0.2", "nurse"); !allowed {
		t.Error("other IP should be independent")
	}
	if allowed, _ := rl.Allow("10.0.0.1", "doctor"); !allowed {
		t.Error("other username should be independent")
	}
}

func TestRateLimiter_SuccessResets(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 2})
	defer rl.Stop()

	rl.RecordFailure("ip", "user")
	rl.RecordSuccess("ip", "user")
	rl.RecordFailure("ip", "user")

	if allowed, _ := rl.Allow("ip", "user"); !allowed {
		t.Error("success should reset the counter")
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimitConfig())
	rl.Stop()
	rl.Stop()
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware(), StrictTransportSecurityMiddleware())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	want := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing on HTTPS")
	}
}
