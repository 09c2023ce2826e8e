// Package app はアプリケーションの起動とワイヤリングを提供する。
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

	"github.com/hitoshi/prisfeed/internal/access"
	"github.com/hitoshi/prisfeed/internal/billing"
	"github.com/hitoshi/prisfeed/internal/config"
	"github.com/hitoshi/prisfeed/internal/database"
	"github.com/hitoshi/prisfeed/internal/feed"
	"github.com/hitoshi/prisfeed/internal/feedcache"
	"github.com/hitoshi/prisfeed/internal/handler"
	"github.com/hitoshi/prisfeed/internal/logger"
	"github.com/hitoshi/prisfeed/internal/metrics"
	"github.com/hitoshi/prisfeed/internal/middleware"
	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
	"github.com/hitoshi/prisfeed/internal/security"
	"github.com/hitoshi/prisfeed/internal/settings"
	"github.com/hitoshi/prisfeed/internal/shopify"
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	// Admin APIのホストはshopパラメータ由来のため、外向き呼び出しは
	// すべてSSRF防止クライアントを使用する
	shopifyClient := shopify.NewClient(
		ssrfGuard.NewSafeClient(cfg.FetchTimeout),
		slog.Default(),
		cfg.AdminAPIVersion,
		rate.NewLimiter(rate.Limit(cfg.ShopifyRate), cfg.ShopifyBurst),
		collector,
	)

	renderer := feed.NewRenderer(sanitizer, model.ParseVariantMode(cfg.VariantMode))
	cache := feedcache.New(cfg.CacheTTL)

	feedService := feed.NewService(
		sessionRepo, shopifyClient, cache, renderer,
		slog.Default(), collector, cfg.GenerateTimeout,
	)

	gate := access.NewGate(settingsRepo, cfg.FallbackFeedSecret)

	// ヘルスチェックはフィードを実生成するため、生成タイムアウトに揃える
	settingsService := settings.NewService(
		settingsRepo, sessionRepo,
		ssrfGuard.NewSafeClient(cfg.GenerateTimeout),
		slog.Default(), cfg.BaseURL, cfg.DefaultTag,
	)

	var billingChecker billing.Checker = billing.DisabledChecker{}
	if cfg.BillingEnabled {
		billingChecker = billing.NewShopifyChecker(
			ssrfGuard.NewSafeClient(cfg.FetchTimeout),
			slog.Default(), cfg.AdminAPIVersion,
		)
	}

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitFeedPerMin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Sessions:    sessionRepo,
		Billing:     billingChecker,

		FeedService: feedService,
		AccessGate:  gate,
		Validator:   ssrfGuard,
		DefaultTag:  cfg.DefaultTag,

		SettingsService: settingsService,

		ShopifyAPISecret: cfg.ShopifyAPISecret,
		SettingsRepo:     settingsRepo,

		Metrics:  collector,
		Gatherer: registry,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 4 * time.Minute, // コールドキャッシュのフィード生成はページ数に比例して長引く
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

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
