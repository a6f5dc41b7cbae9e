package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/entities"
)

type recordedAuth struct {
	userID  uint
	action  string
	success bool
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []recordedAuth
}

func (f *fakeAuditor) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedAuth{userID, action, success})
}

type authHarness struct {
	router  *gin.Engine
	svc     *Service
	auditor *fakeAuditor
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	cfg := testAuthConfig()
	svc, db := newTestService(t, cfg)
	sm := newSessionManager(t, db, cfg)
	auditor := &fakeAuditor{}

	ctrl := NewAuthController(svc, sm, auditor, cfg)
	t.Cleanup(ctrl.Stop)

	router := gin.New()
	router.Use(sm.LoadSave())
	router.Use(NewMiddleware(svc, sm, cfg).Handler())
	ctrl.RegisterRoutes(router.Group("/api/auth"))

	return &authHarness{router: router, svc: svc, auditor: auditor}
}

func (h *authHarness) do(method, path, body string, cookie *http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "clinic_session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", w.Code)
	return nil
}

func TestAuthController_SetupFlow(t *testing.T) {
	h := newAuthHarness(t)

	w := h.do(http.MethodGet, "/api/auth/status", "", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"setup_done":false`) {
		t.Fatalf("status before setup: %d %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodPost, "/api/auth/setup", `{"username":"owner","password":"`+testPassword+`","full_name":"Clinic Owner"}`, nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("setup status = %d, body %s", w.Code, w.Body.String())
	}
	cookie := sessionCookie(t, w)

	w = h.do(http.MethodGet, "/api/auth/me", "", cookie, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"role":"admin"`) {
		t.Errorf("me after setup: %d %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodPost, "/api/auth/setup", `{"username":"intruder","password":"`+testPassword+`"}`, nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second setup status = %d, want 409", w.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/setup", `{"username":"x","password":"`+testPassword+`"}`, nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("setup after completion should conflict before validating, got %d", w.Code)
	}
}

func TestAuthController_SetupValidation(t *testing.T) {
	h := newAuthHarness(t)

	w := h.do(http.MethodPost, "/api/auth/setup", `{"username":"owner","password":"short"}`, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want 400", w.Code)
	}
}

func TestAuthController_LoginLogout(t *testing.T) {
	h := newAuthHarness(t)
	mustCreateUser(t, h.svc, "reception", entities.UserRoleReceptionist)

	w := h.do(http.MethodPost, "/api/auth/login", `{"username":"reception","password":"wrong-password"}`, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/login", `{"username":"reception"}`, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing password status = %d", w.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/login", `{"username":"reception","password":"`+testPassword+`"}`, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("login response leaks password fields")
	}
	cookie := sessionCookie(t, w)

	w = h.do(http.MethodGet, "/api/auth/me", "", cookie, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"username":"reception"`) {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodPost, "/api/auth/logout", "", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	w = h.do(http.MethodGet, "/api/auth/me", "", cookie, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want 401", w.Code)
	}

	h.auditor.mu.Lock()
	defer h.auditor.mu.Unlock()
	want := []struct {
		action  string
		success bool
	}{{"login", false}, {"login", true}, {"logout", true}}
	if len(h.auditor.events) != len(want) {
		t.Fatalf("audit events = %+v", h.auditor.events)
	}
	for i, ev := range want {
		if h.auditor.events[i].action != ev.action || h.auditor.events[i].success != ev.success {
			t.Errorf("event %d = %+v, want %+v", i, h.auditor.events[i], ev)
		}
	}
}

func TestAuthController_RateLimit(t *testing.T) {
	h := newAuthHarness(t)
	mustCreateUser(t, h.svc, "nurse", entities.UserRoleNurse)

	for i := 0; i < 3; i++ {
		h.do(http.MethodPost, "/api/auth/login", `{"username":"nurse","password":"wrong-password"}`, nil, nil)
	}

	w := h.do(http.MethodPost, "/api/auth/login", `{"username":"nurse","password":"`+testPassword+`"}`, nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestAuthController_TokenFlow(t *testing.T) {
	h := newAuthHarness(t)
	mustCreateUser(t, h.svc, "accounts", entities.UserRoleAccountant)

	w := h.do(http.MethodPost, "/api/auth/login", `{"username":"accounts","password":"`+testPassword+`"}`, nil, nil)
	cookie := sessionCookie(t, w)

	w = h.do(http.MethodPost, "/api/auth/token", "", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d", w.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("token body = %s", w.Body.String())
	}

	bearer := map[string]string{"Authorization": "Bearer " + body.Token}
	w = h.do(http.MethodGet, "/api/auth/me", "", nil, bearer)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"auth_type":"bearer"`) {
		t.Fatalf("me with bearer: %d %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodDelete, "/api/auth/token", "", nil, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", w.Code)
	}

	w = h.do(http.MethodGet, "/api/auth/me", "", nil, bearer)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", w.Code)
	}
}

func TestAuthController_ChangePassword(t *testing.T) {
	h := newAuthHarness(t)
	mustCreateUser(t, h.svc, "doctor", entities.UserRoleDoctor)

	w := h.do(http.MethodPost, "/api/auth/login", `{"username":"doctor","password":"`+testPassword+`"}`, nil, nil)
	cookie := sessionCookie(t, w)

	w = h.do(http.MethodPost, "/api/auth/password", `{"current_password":"wrong-password","new_password":"another-pass-2"}`, cookie, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password status = %d, want 401", w.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/password", `{"current_password":"`+testPassword+`","new_password":"tiny"}`, cookie, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short new password status = %d, want 400", w.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/password", `{"current_password":"`+testPassword+`","new_password":"another-pass-2"}`, cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("change status = %d body %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodPost, "/api/auth/login", `{"username":"doctor","password":"another-pass-2"}`, nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("login with new password status = %d", w.Code)
	}
}

func TestAuthController_MeInNoneMode(t *testing.T) {
	cfg := config.Auth{Mode: config.AuthModeNone}
	svc := NewService(nil, cfg)
	ctrl := NewAuthController(svc, nil, nil, cfg)
	defer ctrl.Stop()

	router := gin.New()
	router.Use(NewMiddleware(svc, nil, cfg).Handler())
	ctrl.RegisterRoutes(router.Group("/api/auth"))

	w := doJSON(router, http.MethodGet, "/api/auth/me", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mode":"none"`) {
		t.Errorf("me in none mode: %d %s", w.Code, w.Body.String())
	}
}
