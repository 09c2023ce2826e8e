package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/prisfeed/internal/billing"
	"github.com/hitoshi/prisfeed/internal/metrics"
	"github.com/hitoshi/prisfeed/internal/middleware"
	"github.com/hitoshi/prisfeed/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	Sessions    repository.SessionRepository
	Billing     billing.Checker

	// 公開フィード
	FeedService FeedServiceInterface
	AccessGate  AccessGate
	Validator   ShopValidator
	DefaultTag  string

	// 設定API
	SettingsService SettingsServiceInterface

	// Webhook
	ShopifyAPISecret string
	SettingsRepo     repository.SettingsRepository

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// ヘルスチェック
	DB *sql.DB
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → Recovery → Logging
//
// 公開フィードはさらにショップ単位のレート制限、設定APIは
// AdminAuth → Billing を通過する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	feedHandler := NewFeedHandler(deps.FeedService, deps.AccessGate, deps.Validator, deps.Logger, deps.Metrics, deps.DefaultTag)
	settingsHandler := NewSettingsHandler(deps.SettingsService, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.ShopifyAPISecret, deps.SettingsRepo, deps.Logger)

	// --- 公開フィード ---
	r.With(deps.RateLimiter.FeedMiddleware()).Get("/public/prisjakt.xml", feedHandler.ServeFeed)

	// --- 設定API ---
	// ミドルウェアスタック: AdminAuth → Billing
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAdminAuthMiddleware(deps.Sessions))
		r.Use(middleware.NewBillingMiddleware(deps.Billing, deps.Logger))

		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.GetSettings)
			r.Post("/rotate", settingsHandler.RotateSecret)
			r.Get("/health", settingsHandler.GetHealth)
		})
	})

	// --- Webhook（GDPR必須） ---
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/customers/data_request", webhookHandler.CustomersDataRequest)
		r.Post("/customers/redact", webhookHandler.CustomersRedact)
		r.Post("/shop/redact", webhookHandler.ShopRedact)
	})

	// --- 運用エンドポイント ---
	r.Get("/health", newHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func newHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "ok"}
		statusCode := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				resp.Status = "degraded"
				resp.Database = "unreachable"
				statusCode = http.StatusServiceUnavailable
			}
		} else {
			resp.Database = "not configured"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(resp)
	}
}
