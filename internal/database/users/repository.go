// Package users provides database operations for staff accounts.
//
// Password hashing and token generation live in the auth package; this
// package only stores the resulting hashes.
package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrUsernameRequired = errors.New("username is required")
	ErrInvalidRole      = errors.New("invalid role")
)

var profileColumns = []string{
	"full_name", "role", "phone", "email", "salary", "hire_date",
	"permissions", "profile_image_path",
}

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user. PasswordHash must already be set by the caller.
func (r *Repository) Create(user *entities.User) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" {
		return ErrUsernameRequired
	}
	if !user.Role.Valid() {
		return ErrInvalidRole
	}

	available, err := r.UsernameAvailable(user.Username, 0)
	if err != nil {
		return err
	}
	if !available {
		return ErrUsernameTaken
	}

	user.IsActive = true
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

// GetByUsername matches case-insensitively.
func (r *Repository) GetByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

// GetByTokenHash finds the user owning a hashed API token.
func (r *Repository) GetByTokenHash(hash string) (*entities.User, error) {
	var user entities.User
	if err := r.db.Where("token_hash = ?", hash).First(&user).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

// List returns users ordered by full name.
func (r *Repository) List(activeOnly bool) ([]entities.User, error) {
	var users []entities.User
	q := r.db.Order("full_name ASC, username ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repository) ByRole(role entities.UserRole) ([]entities.User, error) {
	var users []entities.User
	err := r.db.Where("role = ? AND is_active = ?", role, true).
		Order("full_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Update saves profile fields. Username, password and login state are
// changed through their own methods.
func (r *Repository) Update(user *entities.User) error {
	if !user.Role.Valid() {
		return ErrInvalidRole
	}
	result := r.db.Model(&entities.User{ID: user.ID}).Select(profileColumns).Updates(user)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetActive enables or disables login for a user. Deactivation also
// revokes the API token.
func (r *Repository) SetActive(id uint, active bool) error {
	updates := map[string]any{"is_active": active}
	if !active {
		updates["token_hash"] = nil
		updates["token_created_at"] = nil
	}
	return r.updateColumns(id, updates)
}

// UsernameAvailable reports whether username is unused by any user other
// than exceptID.
func (r *Repository) UsernameAvailable(username string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.User{}).
		Where("LOWER(username) = LOWER(?) AND id <> ?", strings.TrimSpace(username), exceptID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *Repository) UpdatePassword(id uint, hash string) error {
	return r.updateColumns(id, map[string]any{"password_hash": hash})
}

// RecordLogin stamps a successful login and clears lockout state.
func (r *Repository) RecordLogin(id uint, at time.Time) error {
	return r.updateColumns(id, map[string]any{
		"last_login_at":      at,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
}

// RecordFailedLogin increments the failure counter and, when lockUntil is
// non-nil, locks the account until that time. It returns the new count.
func (r *Repository) RecordFailedLogin(id uint, lockUntil *time.Time) (int, error) {
	var count int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"failed_login_count": gorm.Expr("failed_login_count + 1")}
		if lockUntil != nil {
			updates["locked_until"] = *lockUntil
		}
		result := tx.Model(&entities.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Model(&entities.User{}).Where("id = ?", id).
			Select("failed_login_count").Scan(&count).Error
	})
	return count, err
}

// SetTokenHash stores a new API token hash, replacing any previous one.
func (r *Repository) SetTokenHash(id uint, hash string, createdAt time.Time) error {
	return r.updateColumns(id, map[string]any{
		"token_hash":       hash,
		"token_created_at": createdAt,
	})
}

func (r *Repository) ClearTokenHash(id uint) error {
	return r.updateColumns(id, map[string]any{
		"token_hash":       nil,
		"token_created_at": nil,
	})
}

func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}

func (r *Repository) updateColumns(id uint, updates map[string]any) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
