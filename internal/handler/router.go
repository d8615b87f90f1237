package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/craftsy/internal/middleware"
	"github.com/hitoshi/craftsy/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	Gate              *session.Gate
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 商品・出品
	Catalog        CatalogInterface
	ListingService ListingServiceInterface
	ListingMetrics ListingMetrics

	// 注文
	OrderWorkflow OrderWorkflowInterface
	OrderMetrics  OrderMetrics

	// 画像
	ImageUploader ImageUploader

	// プッシュ配信
	Notifications NotificationSubscriber
	Sessions      SessionSubscriber
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → SessionContext → Logging → RateLimit(General)
//
// 入場ポリシー付きルート（注文管理・出品）はGateMiddlewareを追加で通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	productHandler := NewProductHandler(deps.Catalog, deps.ListingService, deps.ListingMetrics)
	orderHandler := NewOrderHandler(deps.OrderWorkflow, deps.Catalog, deps.OrderMetrics)
	imageHandler := NewImageHandler(deps.ImageUploader)
	streamHandler := NewStreamHandler(deps.Notifications, deps.Sessions, deps.Gate)

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSessionContextMiddleware(deps.SessionResolver))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.PasswordSignIn)
		r.Post("/login/token", authHandler.TokenSignIn)
		r.Post("/logout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
		r.Post("/verification", authHandler.RequestVerification)
		r.Post("/password-reset", authHandler.RequestPasswordReset)
		r.Get("/session/stream", streamHandler.Sessions)
	})

	// CSRFトークン発行
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 公開ルート（商品カタログ） ---
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", productHandler.List)
		r.Get("/categories", productHandler.Categories)
		r.Get("/{slug}", productHandler.Get)

		// POST /api/products - 出品（入場ポリシー + CSRF + 出品専用レート制限）
		r.With(
			middleware.NewGateMiddleware(deps.Gate, session.PolicyAnySession),
			csrf,
			deps.RateLimiter.ListingMiddleware(),
		).Post("/", productHandler.Create)
	})

	// 通知ストリーム
	r.Get("/api/notifications/stream", streamHandler.Notifications)

	// --- 入場ポリシー付きルート（注文管理） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGateMiddleware(deps.Gate, session.PolicyAnySession))

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.With(csrf).Post("/", orderHandler.Place)

			r.Route("/{id}", func(r chi.Router) {
				r.With(csrf).Post("/delete-request", orderHandler.RequestDelete)
				r.With(csrf).Post("/delete-cancel", orderHandler.CancelDelete)
				r.With(csrf).Delete("/", orderHandler.ConfirmDelete)
			})
		})

		// 画像アップロード（出品フォームから使用）
		r.With(csrf).Post("/api/images", imageHandler.Upload)
	})

	// ヘルスチェック
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
