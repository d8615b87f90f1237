// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// SessionResolver はCookieのセッションIDからセッションレコードを解決する
// 最小インターフェース。session.Storeの部分集合。
type SessionResolver interface {
	Find(id string) *model.SessionRecord
}

// NewSessionContextMiddleware はHTTP Only Cookieからセッションを解決し、
// 3状態のセッション値をリクエストコンテキストに注入するミドルウェアを返す。
//
// このミドルウェア自体はリクエストを拒否しない（入場判定はゲート側で行う）。
// Cookieが無い・レコードが無効な場合は未認証セッションとして注入する。
func NewSessionContextMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				ctx := ContextWithSession(r.Context(), model.UnauthenticatedSession())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 2. セッションレコードの解決（期限切れはnil）
			record := resolver.Find(cookie.Value)
			if record == nil {
				ctx := ContextWithSession(r.Context(), model.UnauthenticatedSession())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 3. 認証済みセッションをコンテキストに注入
			ctx := ContextWithSession(r.Context(), model.AuthenticatedSession(&record.Account))
			ctx = context.WithValue(ctx, sessionIDContextKey, record.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewGateMiddleware は入場ポリシーに基づくゲートミドルウェアを返す。
// SessionContextMiddlewareの後に配置すること。
//
// 判定結果の扱い:
//   - 許可: 後続のハンドラーへ進む
//   - リダイレクト: 401とリダイレクト先を返す（クライアントがログインへ誘導する）
//   - 保留: セッション状態が未確定。503とRetry-Afterを返す
func NewGateMiddleware(gate *session.Gate, policy session.Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())

			decision, target := gate.Require(s, policy)
			switch decision {
			case session.DecisionAllow:
				next.ServeHTTP(w, r)
			case session.DecisionDefer:
				w.Header().Set("Retry-After", "1")
				WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code:     "SESSION_PENDING",
					Message:  "セッション状態を確認しています。",
					Category: "auth",
					Action:   "しばらく待ってから再度お試しください。",
				})
			default:
				w.Header().Set("X-Redirect-To", target)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionRequiredError())
			}
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// SessionContextMiddlewareを通過していないコンテキストでは保留状態を返す。
func SessionFromContext(ctx context.Context) model.Session {
	if s, ok := ctx.Value(sessionContextKey).(model.Session); ok {
		return s
	}
	return model.PendingSession()
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
// 認証済みリクエストでのみ値が存在する。
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDContextKey).(string); ok {
		return id
	}
	return ""
}
