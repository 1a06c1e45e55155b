package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	userID, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if userID != "admin" {
		t.Errorf("user ID = %q, want admin", userID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	if _, err := ValidateToken(token, "other-secret"); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken("admin", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Fatal("expected validation to fail for an expired token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestLoadConfigFromEnvHashesPlaintextPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "letmein")

	cfg := LoadConfigFromEnv()
	if cfg.AdminPasswordHash == "letmein" {
		t.Fatal("plaintext password was not hashed")
	}
	if !CheckPassword("letmein", cfg.AdminPasswordHash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", cfg.AdminPasswordHash) {
		t.Error("wrong password accepted")
	}
}

func TestLoadConfigFromEnvKeepsBcryptHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	t.Setenv("ADMIN_PASSWORD", hash)

	cfg := LoadConfigFromEnv()
	if cfg.AdminPasswordHash != hash {
		t.Errorf("hash was rewritten: got %q, want %q", cfg.AdminPasswordHash, hash)
	}
	if !CheckPassword("hunter2", cfg.AdminPasswordHash) {
		t.Error("correct password rejected")
	}
}
