package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/database/users"
	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrAuthRequired     = errors.New("authentication required")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrAccountInactive  = errors.New("account is deactivated")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters: letters, digits, dot, underscore or hyphen")
	ErrEmailInvalid     = errors.New("invalid email format")
	ErrSetupComplete    = errors.New("an administrator already exists")
)

// UserRepository is the user storage the service needs.
type UserRepository interface {
	Create(user *entities.User) error
	GetByID(id uint) (*entities.User, error)
	GetByUsername(username string) (*entities.User, error)
	GetByTokenHash(hash string) (*entities.User, error)
	UpdatePassword(id uint, hash string) error
	RecordLogin(id uint, at time.Time) error
	RecordFailedLogin(id uint, lockUntil *time.Time) (int, error)
	SetTokenHash(id uint, hash string, createdAt time.Time) error
	ClearTokenHash(id uint) error
	Count() (int64, error)
}

// NewUser is the input for creating a staff account.
type NewUser struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	FullName string            `json:"full_name"`
	Role     entities.UserRole `json:"role"`
	Phone    string            `json:"phone"`
	Email    string            `json:"email"`
}

// Service handles authentication and staff credentials.
type Service struct {
	users  UserRepository
	config config.Auth
	now    func() time.Time
}

func NewService(repo UserRepository, cfg config.Auth) *Service {
	return &Service{
		users:  repo,
		config: cfg,
		now:    time.Now,
	}
}

// CreateUser validates input, hashes the password and stores the account.
func (s *Service) CreateUser(in NewUser) (*entities.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if in.Password == "" {
		return nil, ErrPasswordRequired
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 limit is 254
	if email != "" && (len(email) > 254 || !emailPattern.MatchString(email)) {
		return nil, ErrEmailInvalid
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	passwordHash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		Phone:        strings.TrimSpace(in.Phone),
		Email:        email,
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// SetupAdmin creates the first administrator. It fails once any user exists.
func (s *Service) SetupAdmin(in NewUser) (*entities.User, error) {
	hasUsers, err := s.HasUsers()
	if err != nil {
		return nil, err
	}
	if hasUsers {
		return nil, ErrSetupComplete
	}
	in.Role = entities.UserRoleAdmin
	return s.CreateUser(in)
}

// Authenticate validates credentials and returns the user.
// Accounts lock for LockoutDuration after MaxLoginAttempts consecutive failures.
func (s *Service) Authenticate(username, password string) (*entities.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(user, now)
		return nil, err
	}

	if err := s.users.RecordLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	return user, nil
}

func (s *Service) recordFailedLogin(user *entities.User, now time.Time) {
	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var lockUntil *time.Time
	if user.FailedLoginCount+1 >= maxAttempts {
		lockoutDuration := s.config.LockoutDuration
		if lockoutDuration == 0 {
			lockoutDuration = 30 * time.Minute
		}
		t := now.Add(lockoutDuration)
		lockUntil = &t
	}

	count, err := s.users.RecordFailedLogin(user.ID, lockUntil)
	if err == nil {
		user.FailedLoginCount = count
		user.LockedUntil = lockUntil
	}
}

func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ValidateToken checks a plaintext token and returns the associated active user.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByTokenHash(HashToken(token))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if s.now().Sub(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}

	return user, nil
}

// GenerateToken creates a new API token for a user, replacing any previous one.
// The plaintext is returned once; only its hash is stored.
func (s *Service) GenerateToken(userID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.users.SetTokenHash(userID, hash, s.now()); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return plaintext, nil
}

func (s *Service) RevokeToken(userID uint) error {
	if err := s.users.ClearTokenHash(userID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}
	return s.SetPassword(userID, newPassword)
}

// SetPassword replaces a password without checking the old one (admin reset).
func (s *Service) SetPassword(userID uint, newPassword string) error {
	hash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(userID, hash); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Service) HasUsers() (bool, error) {
	count, err := s.users.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsAuthEnabled returns true if authentication is required.
func (s *Service) IsAuthEnabled() bool {
	return s.config.Mode == config.AuthModeLocal
}

func (s *Service) GetAuthMode() config.AuthMode {
	return s.config.Mode
}
