package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signTestToken はテスト用のIDトークンを生成する。
// DecodeIDTokenは署名を検証しないため、鍵は任意で良い。
func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestDecodeIDToken_ValidToken(t *testing.T) {
	now := time.Now()
	raw := signTestToken(t, jwt.MapClaims{
		"sub":            "u1",
		"user_id":        "u1",
		"email":          "buyer@example.com",
		"email_verified": true,
		"name":           "Buyer",
		"picture":        "https://example.com/avatar.png",
		"exp":            now.Add(time.Hour).Unix(),
	})

	account, err := DecodeIDToken(raw, now)
	if err != nil {
		t.Fatalf("DecodeIDToken returned error: %v", err)
	}
	if account.ID != "u1" {
		t.Errorf("ID = %q, want u1", account.ID)
	}
	if account.Email != "buyer@example.com" {
		t.Errorf("Email = %q, want buyer@example.com", account.Email)
	}
	if !account.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
	if account.DisplayName != "Buyer" {
		t.Errorf("DisplayName = %q, want Buyer", account.DisplayName)
	}
}

func TestDecodeIDToken_FallsBackToSubject(t *testing.T) {
	now := time.Now()
	raw := signTestToken(t, jwt.MapClaims{
		"sub":   "subject-id",
		"email": "buyer@example.com",
		"exp":   now.Add(time.Hour).Unix(),
	})

	account, err := DecodeIDToken(raw, now)
	if err != nil {
		t.Fatalf("DecodeIDToken returned error: %v", err)
	}
	if account.ID != "subject-id" {
		t.Errorf("ID = %q, user_id欠落時はsubへフォールバックすること", account.ID)
	}
}

func TestDecodeIDToken_ExpiredToken(t *testing.T) {
	now := time.Now()
	raw := signTestToken(t, jwt.MapClaims{
		"sub":   "u1",
		"email": "buyer@example.com",
		"exp":   now.Add(-time.Minute).Unix(),
	})

	if _, err := DecodeIDToken(raw, now); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}

func TestDecodeIDToken_MissingEmail(t *testing.T) {
	now := time.Now()
	raw := signTestToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": now.Add(time.Hour).Unix(),
	})

	if _, err := DecodeIDToken(raw, now); err == nil {
		t.Fatal("expected error for token without email, got nil")
	}
}

func TestDecodeIDToken_MalformedToken(t *testing.T) {
	if _, err := DecodeIDToken("not-a-jwt", time.Now()); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
	if _, err := DecodeIDToken(strings.Repeat("a.", 3), time.Now()); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}
