package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	// csrfCookieName はダブルサブミット用トークンを保持するCookie名。
	// フロントエンドがJavaScriptから読み取るため、HttpOnlyにはしない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName は状態変更リクエストでトークンを送るヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// csrfCookieMaxAge はトークンCookieの有効期間（秒）。
	csrfCookieMaxAge = 86400
)

// CSRFConfig はCSRF防御まわりのCookie属性設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF検証ミドルウェアを返す。
// GET/HEAD/OPTIONSは検証対象外とし、トークンCookie未発行なら発行だけ行う。
// それ以外のメソッドはCookieとヘッダーのトークン一致を要求し、不一致は403で拒否する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutatesState(r.Method) {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					issueCSRFCookie(w, config)
				}
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil {
				rejectCSRF(w, r, "cookie token missing")
				return
			}
			sent := r.Header.Get(csrfHeaderName)
			if sent == "" {
				rejectCSRF(w, r, "header token missing")
				return
			}
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(sent)) != 1 {
				rejectCSRF(w, r, "token mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はトークン配布エンドポイントのハンドラーを返す。
// Cookieに既存トークンがあればそれを、なければ新規発行したものをJSONで返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = newCSRFToken()
			if err != nil {
				slog.Error("CSRFトークンの生成に失敗", slog.String("error", err.Error()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, csrfCookie(token, config))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"token": token}); err != nil {
			slog.Error("CSRFトークンレスポンスの書き込みに失敗", slog.String("error", err.Error()))
		}
	})
}

// mutatesState はCSRF検証を必要とするメソッドかどうかを返す。
func mutatesState(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// issueCSRFCookie は新規トークンを生成してCookieに設定する。
// 生成に失敗した場合はログのみ残す（安全側メソッドの処理は継続させる）。
func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) {
	token, err := newCSRFToken()
	if err != nil {
		slog.Error("CSRFトークンの生成に失敗", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, csrfCookie(token, config))
}

// csrfCookie はトークンCookieを組み立てる。ミドルウェアと配布エンドポイントで共用する。
func csrfCookie(token string, config CSRFConfig) *http.Cookie {
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		Secure:   config.CookieSecure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
}

func rejectCSRF(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("CSRF検証に失敗",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	http.Error(w, "CSRF token validation failed", http.StatusForbidden)
}

// newCSRFToken は256ビットの乱数を16進文字列にしたトークンを返す。
func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
