package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/prisfeed/internal/billing"
	"github.com/hitoshi/prisfeed/internal/metrics"
	"github.com/hitoshi/prisfeed/internal/middleware"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		FeedRate:        rate.Limit(100),
		FeedBurst:       100,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimiter: rl,
		Sessions:    &staticSessionRepo{shop: "example.myshopify.com", token: "shpat_token"},
		Billing:     billing.DisabledChecker{},

		FeedService: &fakeFeedService{xml: "<rss/>"},
		AccessGate:  &fakeGate{},
		Validator:   &fakeValidator{},
		DefaultTag:  "prisjakt",

		SettingsService: &fakeSettingsService{secret: "secret-40"},

		ShopifyAPISecret: "test-api-secret",
		SettingsRepo:     &fakeSettingsRepo{settings: nil},

		Metrics:  collector,
		Gatherer: registry,
	})
}

func TestRouterPublicFeed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/public/prisjakt.xml?shop=example.myshopify.com&sig=s", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("公開フィードが配信されるべきです: got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("セキュリティヘッダーが付与されるべきです: got %q", got)
	}
}

func TestRouterPublicFeedMissingShop(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/public/prisjakt.xml", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("shop欠落は400になるはずです: got %d", rec.Code)
	}
}

func TestRouterSettingsRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings?shop=example.myshopify.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("認証なしの設定APIは401になるはずです: got %d", rec.Code)
	}
}

func TestRouterSettingsAuthorized(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings?shop=example.myshopify.com", nil)
	req.Header.Set("Authorization", "Bearer shpat_token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("認証済みの設定APIは200になるはずです: got %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouterWebhookRejectsUnsigned(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/customers/redact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("署名なしWebhookは401になるはずです: got %d", rec.Code)
	}
}

func TestRouterHealthWithoutDB(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("DB未設定のヘルスチェックは200になるはずです: got %d", rec.Code)
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("メトリクスエンドポイントが公開されるべきです: got %d", rec.Code)
	}
}
