package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/database/users"
	"github.com/clinicmgr/clinic/internal/entities"
)

func TestService_CreateUser(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())

	tests := []struct {
		name    string
		in      NewUser
		wantErr error
	}{
		{
			name: "doctor",
			in:   NewUser{Username: "dr.hadi", Password: testPassword, FullName: "Dr Hadi", Role: entities.UserRoleDoctor},
		},
		{
			name: "receptionist with email",
			in:   NewUser{Username: "front_desk", Password: testPassword, Role: entities.UserRoleReceptionist, Email: "desk@clinic.example"},
		},
		{
			name:    "missing username",
			in:      NewUser{Password: testPassword, Role: entities.UserRoleNurse},
			wantErr: ErrUsernameRequired,
		},
		{
			name:    "missing password",
			in:      NewUser{Username: "nurse1", Role: entities.UserRoleNurse},
			wantErr: ErrPasswordRequired,
		},
		{
			name:    "username with spaces",
			in:      NewUser{Username: "bad name", Password: testPassword, Role: entities.UserRoleNurse},
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "invalid email",
			in:      NewUser{Username: "acct", Password: testPassword, Role: entities.UserRoleAccountant, Email: "nope"},
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "unknown role",
			in:      NewUser{Username: "viewer", Password: testPassword, Role: "viewer"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "short password",
			in:      NewUser{Username: "shorty", Password: "1234", Role: entities.UserRoleNurse},
			wantErr: ErrPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.CreateUser(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateUser() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if user.ID == 0 {
				t.Error("expected user ID to be set")
			}
			if user.PasswordHash == tt.in.Password {
				t.Error("password stored in plaintext")
			}
			if !user.IsActive {
				t.Error("new user should be active")
			}
		})
	}
}

func TestService_CreateUser_Duplicate(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())
	mustCreateUser(t, svc, "reception", entities.UserRoleReceptionist)

	_, err := svc.CreateUser(NewUser{Username: "Reception", Password: testPassword, Role: entities.UserRoleNurse})
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("CreateUser() duplicate error = %v, want ErrUserExists", err)
	}
}

func TestService_SetupAdmin(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())

	admin, err := svc.SetupAdmin(NewUser{Username: "owner", Password: testPassword, Role: entities.UserRoleNurse})
	if err != nil {
		t.Fatalf("SetupAdmin() error = %v", err)
	}
	if admin.Role != entities.UserRoleAdmin {
		t.Errorf("role = %s, want admin", admin.Role)
	}

	_, err = svc.SetupAdmin(NewUser{Username: "second", Password: testPassword})
	if !errors.Is(err, ErrSetupComplete) {
		t.Errorf("second SetupAdmin() error = %v, want ErrSetupComplete", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	t.Run("success resets state", func(t *testing.T) {
		svc, _ := newTestService(t, testAuthConfig())
		mustCreateUser(t, svc, "doctor", entities.UserRoleDoctor)

		if _, err := svc.Authenticate("doctor", "wrong-password"); !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("wrong password error = %v", err)
		}

		user, err := svc.Authenticate("DOCTOR", testPassword)
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if user.LastLoginAt == nil {
			t.Error("LastLoginAt not set")
		}

		stored, _ := svc.GetUserByID(user.ID)
		if stored.FailedLoginCount != 0 {
			t.Errorf("FailedLoginCount = %d, want 0", stored.FailedLoginCount)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newTestService(t, testAuthConfig())
		if _, err := svc.Authenticate("ghost", testPassword); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("lockout after max attempts", func(t *testing.T) {
		svc, _ := newTestService(t, testAuthConfig())
		mustCreateUser(t, svc, "nurse", entities.UserRoleNurse)

		for i := 0; i < 3; i++ {
			_, _ = svc.Authenticate("nurse", "wrong-password")
		}

		if _, err := svc.Authenticate("nurse", testPassword); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("error = %v, want ErrAccountLocked", err)
		}

		// After the lockout window the correct password works again.
		svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		if _, err := svc.Authenticate("nurse", testPassword); err != nil {
			t.Errorf("after lockout error = %v", err)
		}
	})

	t.Run("deactivated user", func(t *testing.T) {
		svc, db := newTestService(t, testAuthConfig())
		user := mustCreateUser(t, svc, "former", entities.UserRoleNurse)
		if err := users.NewRepository(db).SetActive(user.ID, false); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}

		if _, err := svc.Authenticate("former", testPassword); !errors.Is(err, ErrAccountInactive) {
			t.Errorf("error = %v, want ErrAccountInactive", err)
		}
	})
}

func TestService_TokenOperations(t *testing.T) {
	cfg := testAuthConfig()
	cfg.TokenExpiry = time.Hour
	svc, _ := newTestService(t, cfg)
	user := mustCreateUser(t, svc, "accounts", entities.UserRoleAccountant)

	token, err := svc.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	got, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ValidateToken() user = %d, want %d", got.ID, user.ID)
	}

	if _, err := svc.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bogus token error = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.ValidateToken(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty token error = %v, want ErrInvalidToken", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token error = %v, want ErrTokenExpired", err)
	}
	svc.now = time.Now

	if err := svc.RevokeToken(user.ID); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token error = %v, want ErrInvalidToken", err)
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())
	user := mustCreateUser(t, svc, "doctor", entities.UserRoleDoctor)

	if err := svc.ChangePassword(user.ID, "wrong-password", "new-password-1"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong current password error = %v", err)
	}
	if err := svc.ChangePassword(user.ID, testPassword, "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short new password error = %v", err)
	}
	if err := svc.ChangePassword(user.ID, testPassword, "new-password-1"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Authenticate("doctor", testPassword); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := svc.Authenticate("doctor", "new-password-1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestService_SetPassword_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())
	if err := svc.SetPassword(999, "new-password-1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("SetPassword() error = %v, want ErrUserNotFound", err)
	}
}

func TestService_HasUsers(t *testing.T) {
	svc, _ := newTestService(t, testAuthConfig())

	has, err := svc.HasUsers()
	if err != nil || has {
		t.Fatalf("HasUsers() = %v, %v; want false, nil", has, err)
	}

	mustCreateUser(t, svc, "admin", entities.UserRoleAdmin)
	if has, _ := svc.HasUsers(); !has {
		t.Error("HasUsers() = false after creating a user")
	}
}

func TestService_IsAuthEnabled(t *testing.T) {
	if NewService(nil, config.Auth{Mode: config.AuthModeNone}).IsAuthEnabled() {
		t.Error("mode none reports auth enabled")
	}
	if !NewService(nil, config.Auth{Mode: config.AuthModeLocal}).IsAuthEnabled() {
		t.Error("mode local reports auth disabled")
	}
}
