// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/craftsy/internal/backend"
	"github.com/hitoshi/craftsy/internal/catalog"
	"github.com/hitoshi/craftsy/internal/config"
	"github.com/hitoshi/craftsy/internal/handler"
	"github.com/hitoshi/craftsy/internal/identity"
	"github.com/hitoshi/craftsy/internal/imagehost"
	"github.com/hitoshi/craftsy/internal/listing"
	"github.com/hitoshi/craftsy/internal/logger"
	"github.com/hitoshi/craftsy/internal/metrics"
	"github.com/hitoshi/craftsy/internal/middleware"
	"github.com/hitoshi/craftsy/internal/notify"
	"github.com/hitoshi/craftsy/internal/order"
	"github.com/hitoshi/craftsy/internal/security"
	"github.com/hitoshi/craftsy/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_base_url", cfg.BackendBaseURL),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. リモートクライアントの初期化
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, slog.Default())
	backendClient.SetMetrics(collector)

	identityProvider := identity.NewRESTProvider(cfg.IdentityAPIURL, cfg.IdentityAPIKey, slog.Default())

	imageClient := imagehost.NewClient(
		cfg.ImageHostURL, cfg.ImageHostAPIKey, cfg.ImageMaxSize,
		cfg.BackendTimeout, slog.Default(),
	)

	// 3. セキュリティサービスの初期化
	imageGuard := security.NewImageURLGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 4. セッション層の初期化
	identityHub := identity.NewHub()
	sessionStore := session.NewStore(time.Duration(cfg.SessionMaxAge) * time.Second)
	gate := session.NewGate(identityHub)
	defer gate.Close()

	authService := session.NewService(
		identityProvider, sessionStore, identityHub, backendClient, slog.Default(),
	)

	// 5. ドメインサービスの初期化
	notifyHub := notify.NewHub(slog.Default())

	catalogStore := catalog.NewStore(backendClient, notifyHub, slog.Default())
	catalogStore.SetMetrics(collector)

	listingService := listing.NewService(
		backendClient, imageGuard, sanitizer, notifyHub, slog.Default(),
	)

	orderWorkflow := order.NewWorkflow(backendClient, notifyHub, slog.Default())

	// 6. レート制限の初期化（設定はreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ListingRate = rate.Limit(float64(cfg.RateLimitListing) / 60.0)
	rateLimiterCfg.ListingBurst = cfg.RateLimitListing

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		SessionResolver:   sessionStore,
		Gate:              gate,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Catalog:        catalogStore,
		ListingService: listingService,
		ListingMetrics: collector,

		OrderWorkflow: orderWorkflow,
		OrderMetrics:  collector,

		ImageUploader: imageClient,

		Notifications: notifyHub,
		Sessions:      identityHub,
	}

	router := handler.NewRouter(deps)

	// /metricsはAPIミドルウェアチェーンの外に置く
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
