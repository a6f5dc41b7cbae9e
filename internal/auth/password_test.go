package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid password", password: "validpassword123"},
		{name: "too short", password: "short", wantErr: ErrPasswordTooShort},
		{name: "minimum length", password: "12345678"},
		{name: "one below minimum", password: "1234567", wantErr: ErrPasswordTooShort},
		{name: "too long", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
		{name: "maximum length", password: strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, bcrypt.MinCost)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HashPassword() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && hash == "" {
				t.Error("HashPassword() returned empty hash")
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if err := CheckPassword(testPassword, hash); err != nil {
		t.Errorf("CheckPassword() with correct password = %v", err)
	}
	if err := CheckPassword("wrong-password", hash); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("CheckPassword() with wrong password = %v, want ErrInvalidPassword", err)
	}
	if err := CheckPassword(testPassword, "not-a-hash"); err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Errorf("CheckPassword() with malformed hash = %v, want a non-mismatch error", err)
	}
}

func TestGenerateAPIToken(t *testing.T) {
	plain1, hash1, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken() error = %v", err)
	}
	plain2, _, _ := GenerateAPIToken()

	if len(plain1) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(plain1))
	}
	if plain1 == plain2 {
		t.Error("two generated tokens are equal")
	}
	if hash1 != HashToken(plain1) {
		t.Error("returned hash does not match HashToken(plaintext)")
	}
	if hash1 == plain1 {
		t.Error("hash equals plaintext")
	}
}

func TestGenerateSessionSecret(t *testing.T) {
	secret, err := GenerateSessionSecret()
	if err != nil {
		t.Fatalf("GenerateSessionSecret() error = %v", err)
	}
	if len(secret) != 64 {
		t.Errorf("secret length = %d, want 64", len(secret))
	}
}
