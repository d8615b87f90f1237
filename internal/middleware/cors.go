package middleware

import "net/http"

// corsAllowedMethods はAPIが受け付ける全メソッド。
const corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

// NewCORSMiddleware は単一オリジン向けのCORSミドルウェアを返す。
// Cookieを送受信するためAllow-Credentialsを有効にし、
// その制約上オリジンにワイルドカードは使えない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", "86400")

			// プリフライトはここで完結させる
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
