package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/entities"
)

// AccountService creates accounts and resets passwords; the auth service
// owns hashing.
type AccountService interface {
	CreateUser(in auth.NewUser) (*entities.User, error)
	SetPassword(userID uint, newPassword string) error
}

// UsersController manages staff accounts. Every route is admin only.
type UsersController struct {
	store    UserStore
	accounts AccountService
	activity ActivityLogger
}

func NewUsersController(store UserStore, accounts AccountService, activity ActivityLogger) *UsersController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &UsersController{store: store, accounts: accounts, activity: activity}
}

func respondAccountError(c *gin.Context, err error, context string) {
	status, msg := auth.UserErrorStatus(err)
	if status == http.StatusInternalServerError {
		respondStoreError(c, err, context)
		return
	}
	respondError(c, status, msg)
}

// List returns staff, active only unless ?all=true, optionally by ?role=.
// GET /api/users
func (uc *UsersController) List(c *gin.Context) {
	var (
		list []entities.User
		err  error
	)
	if role := entities.UserRole(c.Query("role")); role != "" {
		if !role.Valid() {
			respondBadRequest(c, "unknown role")
			return
		}
		list, err = uc.store.ByRole(role)
	} else {
		list, err = uc.store.List(c.Query("all") != "true")
	}
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Create adds a staff account.
// POST /api/users
func (uc *UsersController) Create(c *gin.Context) {
	var req auth.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid user")
		return
	}
	user, err := uc.accounts.CreateUser(req)
	if err != nil {
		respondAccountError(c, err, "create user")
		return
	}
	uc.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "user", user.ID, "created user "+user.Username, gin.H{"role": user.Role})
	respondCreated(c, user)
}

// GET /api/users/:id
func (uc *UsersController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := uc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

type userUpdateRequest struct {
	FullName    string            `json:"full_name"`
	Role        entities.UserRole `json:"role" binding:"required"`
	Phone       string            `json:"phone"`
	Email       string            `json:"email"`
	Salary      decimal.Decimal   `json:"salary"`
	HireDate    string            `json:"hire_date"`
	Permissions datatypes.JSON    `json:"permissions"`
}

// Update edits profile fields and role. Username and password are separate.
// PUT /api/users/:id
func (uc *UsersController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "role is required")
		return
	}
	if req.Salary.IsNegative() {
		respondBadRequest(c, "salary must not be negative")
		return
	}

	user, err := uc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "load user")
		return
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.Phone = strings.TrimSpace(req.Phone)
	user.Email = strings.TrimSpace(req.Email)
	user.Salary = req.Salary
	user.Permissions = req.Permissions
	user.HireDate = nil
	if req.HireDate != "" {
		hired, err := time.Parse(entities.DayLayout, req.HireDate)
		if err != nil {
			respondBadRequest(c, "hire_date must be YYYY-MM-DD")
			return
		}
		user.HireDate = &hired
	}

	if err := uc.store.Update(user); err != nil {
		respondStoreError(c, err, "update user")
		return
	}
	uc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "user", id, "updated user "+user.Username, gin.H{"role": user.Role})
	c.JSON(http.StatusOK, user)
}

// Deactivate blocks login and revokes the API token. Admins cannot lock
// themselves out.
// POST /api/users/:id/deactivate
func (uc *UsersController) Deactivate(c *gin.Context) {
	uc.setActive(c, false)
}

// POST /api/users/:id/activate
func (uc *UsersController) Activate(c *gin.Context) {
	uc.setActive(c, true)
}

func (uc *UsersController) setActive(c *gin.Context, active bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !active && id == GetUserID(c) {
		respondError(c, http.StatusConflict, "you cannot deactivate your own account")
		return
	}
	if err := uc.store.SetActive(id, active); err != nil {
		respondStoreError(c, err, "change user status")
		return
	}

	verb := "deactivated"
	if active {
		verb = "activated"
	}
	uc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "user", id, "user "+verb, nil)
	respondSuccess(c, "user "+verb)
}

type passwordResetRequest struct {
	Password string `json:"password" binding:"required"`
}

// ResetPassword sets a new password without the old one.
// POST /api/users/:id/password
func (uc *UsersController) ResetPassword(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "password is required")
		return
	}
	if err := uc.accounts.SetPassword(id, req.Password); err != nil {
		respondAccountError(c, err, "reset password")
		return
	}
	uc.activity.LogActivity(GetUserID(c), entities.AuditEventAuth, "user", id, "password reset by administrator", nil)
	respondSuccess(c, "password updated")
}

// UsernameAvailable answers ?username=&except_id= for the account form.
// GET /api/users/username-available
func (uc *UsersController) UsernameAvailable(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		respondBadRequest(c, "username is required")
		return
	}
	var except uint
	if id, ok := parseOptionalQueryID(c, "except_id"); !ok {
		return
	} else if id != nil {
		except = *id
	}

	available, err := uc.store.UsernameAvailable(username, except)
	if err != nil {
		respondInternalError(c, err, "check username")
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "available": available})
}
