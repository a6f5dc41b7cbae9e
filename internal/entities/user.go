package entities

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleDoctor       UserRole = "doctor"
	UserRoleReceptionist UserRole = "receptionist"
	UserRoleNurse        UserRole = "nurse"
	UserRoleAccountant   UserRole = "accountant"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleDoctor, UserRoleReceptionist, UserRoleNurse, UserRoleAccountant:
		return true
	}
	return false
}

// User is a staff account. Deactivated users cannot log in but remain
// referenced by visits, payments and audit rows.
type User struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Username         string          `gorm:"uniqueIndex;size:64" json:"username"`
	PasswordHash     string          `gorm:"size:255" json:"-"`
	FullName         string          `gorm:"size:200" json:"full_name"`
	Role             UserRole        `gorm:"index;size:20" json:"role"`
	Phone            string          `gorm:"size:30" json:"phone,omitempty"`
	Email            string          `gorm:"size:255" json:"email,omitempty"`
	Salary           decimal.Decimal `gorm:"type:decimal(12,2)" json:"salary"`
	HireDate         *time.Time      `json:"hire_date,omitempty"`
	Permissions      datatypes.JSON  `json:"permissions,omitempty"`
	ProfileImagePath string          `gorm:"size:1024" json:"profile_image_path,omitempty"`
	IsActive         bool            `gorm:"index" json:"is_active"`
	FailedLoginCount int             `json:"-"`
	LockedUntil      *time.Time      `json:"-"`
	LastLoginAt      *time.Time      `json:"last_login_at,omitempty"`
	TokenHash        *string         `gorm:"uniqueIndex;size:64" json:"-"`
	TokenCreatedAt   *time.Time      `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
