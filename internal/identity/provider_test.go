package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/craftsy/internal/model"
)

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestRESTProvider_SignUp_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts:signUp" {
			t.Errorf("パス = %s, want /accounts:signUp", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != "new@example.com" {
			t.Errorf("email = %v, want new@example.com", req["email"])
		}
		if req["returnSecureToken"] != true {
			t.Errorf("returnSecureToken = %v, want true", req["returnSecureToken"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"localId": "u2",
			"email":   "new@example.com",
			"idToken": "token-2",
		})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	result, err := p.SignUp(context.Background(), "new@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if result.Account.ID != "u2" {
		t.Errorf("ID = %q, want u2", result.Account.ID)
	}
	if result.IDToken != "token-2" {
		t.Errorf("IDToken = %q, want token-2", result.IDToken)
	}
	if result.Account.EmailVerified {
		t.Error("EmailVerified = true, 作成直後は未確認であること")
	}
}

func TestRESTProvider_SignUp_EmailExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "EMAIL_EXISTS"},
		})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	_, err := p.SignUp(context.Background(), "taken@example.com", "password123")
	if err == nil {
		t.Fatal("expected error for existing email, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestRESTProvider_UpdateProfile(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts:update" {
			t.Errorf("パス = %s, want /accounts:update", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	err := p.UpdateProfile(context.Background(), "token-2", "Crafts Seller", "https://images.example.com/avatar.jpg")
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if received["idToken"] != "token-2" {
		t.Errorf("idToken = %v, want token-2", received["idToken"])
	}
	if received["displayName"] != "Crafts Seller" {
		t.Errorf("displayName = %v, want Crafts Seller", received["displayName"])
	}
	if received["photoUrl"] != "https://images.example.com/avatar.jpg" {
		t.Errorf("photoUrl = %v", received["photoUrl"])
	}
}

func TestRESTProvider_SignInWithPassword_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("APIキー = %q, want test-key", r.URL.Query().Get("key"))
		}
		switch r.URL.Path {
		case "/accounts:signInWithPassword":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["email"] != "buyer@example.com" {
				t.Errorf("email = %v, want buyer@example.com", req["email"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"localId": "u1",
				"email":   "buyer@example.com",
				"idToken": "token-1",
			})
		case "/accounts:lookup":
			json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{
					"localId":       "u1",
					"email":         "buyer@example.com",
					"displayName":   "Buyer",
					"emailVerified": true,
				}},
			})
		default:
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	result, err := p.SignInWithPassword(context.Background(), "buyer@example.com", "password123")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if result.IDToken != "token-1" {
		t.Errorf("IDToken = %q, want token-1", result.IDToken)
	}
	if !result.Account.EmailVerified {
		t.Error("EmailVerified = false, lookupの結果が反映されること")
	}
}

func TestRESTProvider_SignInWithPassword_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "INVALID_PASSWORD"},
		})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	_, err := p.SignInWithPassword(context.Background(), "buyer@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error for invalid credentials, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("err = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestRESTProvider_SendPasswordResetEmail(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts:sendOobCode" {
			t.Errorf("パス = %s, want /accounts:sendOobCode", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{"email": "buyer@example.com"})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	if err := p.SendPasswordResetEmail(context.Background(), "buyer@example.com"); err != nil {
		t.Fatalf("SendPasswordResetEmail returned error: %v", err)
	}
	if received["requestType"] != "PASSWORD_RESET" {
		t.Errorf("requestType = %v, want PASSWORD_RESET", received["requestType"])
	}
}

func TestRESTProvider_SendVerificationEmail(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	p := NewRESTProvider(server.URL, "test-key", newTestLogger())

	if err := p.SendVerificationEmail(context.Background(), "token-1"); err != nil {
		t.Fatalf("SendVerificationEmail returned error: %v", err)
	}
	if received["requestType"] != "VERIFY_EMAIL" {
		t.Errorf("requestType = %v, want VERIFY_EMAIL", received["requestType"])
	}
	if received["idToken"] != "token-1" {
		t.Errorf("idToken = %v, want token-1", received["idToken"])
	}
}
