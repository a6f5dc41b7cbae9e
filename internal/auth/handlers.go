package auth

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/config"
)

// Auditor records authentication events.
type Auditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// AuthController serves the /api/auth endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	auditor        Auditor
	config         config.Auth

	// setupMu serializes first-admin creation so two requests cannot both
	// pass the empty-table check.
	setupMu sync.Mutex
}

// NewAuthController creates the controller. sessionManager and auditor may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, auditor Auditor, cfg config.Auth) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		auditor:        auditor,
		config:         cfg,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// RegisterRoutes mounts the endpoints on an /api/auth group.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/status", ac.Status)
	group.POST("/login", ac.Login)
	group.POST("/logout", ac.Logout)
	group.POST("/setup", ac.Setup)
	group.GET("/me", ac.Me)
	group.POST("/password", ac.ChangePassword)
	group.POST("/token", ac.GenerateToken)
	group.DELETE("/token", ac.RevokeToken)
}

// Stop releases the rate limiter's cleanup goroutine.
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Status reports the auth mode and whether first-run setup is pending.
func (ac *AuthController) Status(c *gin.Context) {
	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		log.Error().Err(err).Msg("failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":        ac.service.GetAuthMode(),
		"setup_done":  hasUsers,
		"csrf_token":  GetCSRFToken(c),
		"auth_needed": ac.service.IsAuthEnabled(),
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	clientIP := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Username); !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.String(),
		})
		return
	}

	user, err := ac.service.Authenticate(req.Username, req.Password)
	if err != nil {
		ac.rateLimiter.RecordFailure(clientIP, req.Username)
		ac.logAuth(0, "login", c, false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "account is locked, try again later"})
		case errors.Is(err, ErrAccountInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "account is deactivated"})
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		default:
			log.Error().Err(err).Msg("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, req.Username)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Error().Err(err).Msg("failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}

	ac.logAuth(user.ID, "login", c, true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (ac *AuthController) Logout(c *gin.Context) {
	userID := GetUserID(c)
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	if userID != 0 {
		ac.logAuth(userID, "logout", c, true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Setup creates the first administrator account and logs it in.
func (ac *AuthController) Setup(c *gin.Context) {
	var req NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ac.setupMu.Lock()
	user, err := ac.service.SetupAdmin(req)
	ac.setupMu.Unlock()

	if err != nil {
		status, msg := UserErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("setup failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, user)
	}

	ac.logAuth(user.ID, "setup", c, true)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Me returns the current user. In mode none there is no stored user.
func (ac *AuthController) Me(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		if ac.service.IsAuthEnabled() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": nil, "mode": config.AuthModeNone})
		return
	}

	user, err := ac.service.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"auth_type":  GetAuthType(c),
		"csrf_token": GetCSRFToken(c),
	})
}

func (ac *AuthController) ChangePassword(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password are required"})
		return
	}

	if err := ac.service.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		ac.logAuth(userID, "password_change", c, false)
		if errors.Is(err, ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
			return
		}
		status, msg := UserErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	ac.logAuth(userID, "password_change", c, true)
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// GenerateToken issues a bearer token. The plaintext is returned only here.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := ac.service.GenerateToken(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	ac.logAuth(userID, "token_create", c, true)
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "store this token securely, it will not be shown again",
	})
}

func (ac *AuthController) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := ac.service.RevokeToken(userID); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("failed to revoke token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	ac.logAuth(userID, "token_revoke", c, true)
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

func (ac *AuthController) logAuth(userID uint, action string, c *gin.Context, success bool) {
	if ac.auditor != nil {
		ac.auditor.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
	}
}

// UserErrorStatus maps account validation errors to an HTTP status and message.
func UserErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSetupComplete), errors.Is(err, ErrUserExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
