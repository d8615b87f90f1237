// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/craftsy/internal/middleware"
	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規アカウントを作成し確認メールを送信する。セッションは発行しない。
	Register(ctx context.Context, input session.RegisterInput) (*model.Account, error)
	// SignInWithPassword はメール+パスワードでサインインしセッションを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.SessionRecord, error)
	// SignInWithIDToken はOAuthポップアップが取得したIDトークンでサインインする。
	SignInWithIDToken(ctx context.Context, idToken string) (*model.SessionRecord, error)
	// SignOut はセッションを破棄する。
	SignOut(ctx context.Context, sessionID string) error
	// RequestVerificationEmail はメールアドレス確認メールの送信を依頼する。
	RequestVerificationEmail(ctx context.Context, email, password string) error
	// RequestPasswordReset はパスワードリセットメールの送信を依頼する。
	RequestPasswordReset(ctx context.Context, email string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン・サインアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest は新規登録リクエストのボディ。
type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// passwordSignInRequest はパスワードサインインリクエストのボディ。
type passwordSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenSignInRequest はIDトークンサインインリクエストのボディ。
type tokenSignInRequest struct {
	IDToken string `json:"idToken"`
}

// emailRequest はメールアドレスのみを持つリクエストのボディ。
type emailRequest struct {
	Email string `json:"email"`
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
}

// Register は新規アカウント登録を処理する。
// 確認メール送信後もセッションは発行されないため、Cookieは設定しない。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	account, err := h.service.Register(r.Context(), session.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAccountResponse(*account))
}

// PasswordSignIn はメール+パスワードのサインインを処理する。
// POST /auth/login
func (h *AuthHandler) PasswordSignIn(w http.ResponseWriter, r *http.Request) {
	var req passwordSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, record.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(record.Account))
}

// TokenSignIn はIDトークンによるサインインを処理する。
// POST /auth/login/token
func (h *AuthHandler) TokenSignIn(w http.ResponseWriter, r *http.Request) {
	var req tokenSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.IDToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("IDトークンが空です"))
		return
	}

	record, err := h.service.SignInWithIDToken(r.Context(), req.IDToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, record.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(record.Account))
}

// SignOut はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if signOutErr := h.service.SignOut(r.Context(), cookie.Value); signOutErr != nil {
			slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
			// サインアウトに失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッションのアカウント情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session.State != model.SessionAuthenticated {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionRequiredError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(*session.Account))
}

// RequestVerification はメールアドレス確認メールの送信を処理する。
// POST /auth/verification
func (h *AuthHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req passwordSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.RequestVerificationEmail(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// RequestPasswordReset はパスワードリセットメールの送信を処理する。
// POST /auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// toAccountResponse はmodel.AccountからAPIレスポンスに変換する。
func toAccountResponse(account model.Account) accountResponse {
	return accountResponse{
		ID:            account.ID,
		Email:         account.Email,
		DisplayName:   account.DisplayName,
		PhotoURL:      account.PhotoURL,
		EmailVerified: account.EmailVerified,
	}
}

// writeInvalidRequestBody はJSONボディ解析失敗のエラーレスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
