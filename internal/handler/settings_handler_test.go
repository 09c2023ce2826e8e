package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/prisfeed/internal/middleware"
	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
	"github.com/hitoshi/prisfeed/internal/settings"
)

// fakeSettingsService はテスト用の設定サービス。
type fakeSettingsService struct {
	secret    string
	rotated   string
	report    *settings.HealthReport
	ensureErr error
}

func (f *fakeSettingsService) EnsureSecret(ctx context.Context, shop string) (*model.ShopSettings, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	return &model.ShopSettings{Shop: shop, FeedSecret: f.secret}, nil
}

func (f *fakeSettingsService) Rotate(ctx context.Context, shop string) (string, error) {
	return f.rotated, nil
}

func (f *fakeSettingsService) FeedURLs(shop, secret string) settings.FeedURLs {
	return settings.FeedURLs{
		Tagged: "https://feed.example.com/public/prisjakt.xml?shop=" + shop + "&sig=" + secret,
		All:    "https://feed.example.com/public/prisjakt.xml?shop=" + shop + "&sig=" + secret + "&tag=all",
	}
}

func (f *fakeSettingsService) Health(ctx context.Context, shop string) (*settings.HealthReport, error) {
	return f.report, nil
}

// authedRequest は認証ミドルウェア通過後の状態を再現したリクエストを生成する。
func authedRequest(method, target, shop string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	mw := middleware.NewAdminAuthMiddleware(&staticSessionRepo{shop: shop, token: "shpat_token"})

	var out *http.Request
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { out = r })

	req.Header.Set("Authorization", "Bearer shpat_token")
	mw(capture).ServeHTTP(httptest.NewRecorder(), req)
	return out
}

// staticSessionRepo は固定トークンを返すテスト用のセッションリポジトリ。
type staticSessionRepo struct {
	shop  string
	token string
}

var _ repository.SessionRepository = (*staticSessionRepo)(nil)

func (s *staticSessionRepo) FindOfflineToken(ctx context.Context, shop string) (string, error) {
	if shop == s.shop {
		return s.token, nil
	}
	return "", nil
}

func TestGetSettings(t *testing.T) {
	svc := &fakeSettingsService{secret: "secret-40"}
	h := NewSettingsHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := authedRequest(http.MethodGet, "/api/settings?shop=example.myshopify.com", "example.myshopify.com")
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", rec.Code)
	}

	var resp struct {
		Shop      string `json:"shop"`
		TaggedURL string `json:"tagged_url"`
		AllURL    string `json:"all_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.Shop != "example.myshopify.com" {
		t.Errorf("shopが一致しません: got %q", resp.Shop)
	}
	if resp.TaggedURL == "" || resp.AllURL == "" {
		t.Error("2本のフィードURLが返るべきです")
	}
}

func TestGetSettingsUnauthenticatedContext(t *testing.T) {
	h := NewSettingsHandler(&fakeSettingsService{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// 認証ミドルウェアを通過していないリクエスト
	req := httptest.NewRequest(http.MethodGet, "/api/settings?shop=example.myshopify.com", nil)
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("認証情報のないコンテキストは401になるはずです: got %d", rec.Code)
	}
}

func TestGetSettingsServiceError(t *testing.T) {
	svc := &fakeSettingsService{ensureErr: errors.New("connection refused")}
	h := NewSettingsHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := authedRequest(http.MethodGet, "/api/settings?shop=example.myshopify.com", "example.myshopify.com")
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("サービス障害は500になるはずです: got %d", rec.Code)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("エラーレスポンスのパースに失敗しました: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("統一エラーフォーマットで返るべきです: got %q", body.Code)
	}
}

func TestRotateSecret(t *testing.T) {
	svc := &fakeSettingsService{rotated: "new-secret-40"}
	h := NewSettingsHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := authedRequest(http.MethodPost, "/api/settings/rotate?shop=example.myshopify.com", "example.myshopify.com")
	rec := httptest.NewRecorder()
	h.RotateSecret(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", rec.Code)
	}

	var resp struct {
		TaggedURL string `json:"tagged_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if want := "sig=new-secret-40"; !strings.Contains(resp.TaggedURL, want) {
		t.Errorf("新しいシークレットでURLが構築されるべきです: got %q", resp.TaggedURL)
	}
}

func TestGetHealth(t *testing.T) {
	svc := &fakeSettingsService{report: &settings.HealthReport{
		Shop:            "example.myshopify.com",
		HasOfflineToken: true,
		Tagged:          settings.FeedStatus{OK: true, StatusCode: 200, ItemCount: 5},
		All:             settings.FeedStatus{OK: true, StatusCode: 200, ItemCount: 12},
	}}
	h := NewSettingsHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := authedRequest(http.MethodGet, "/api/settings/health?shop=example.myshopify.com", "example.myshopify.com")
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", rec.Code)
	}

	var report settings.HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("レポートのパースに失敗しました: %v", err)
	}
	if !report.HasOfflineToken || report.All.ItemCount != 12 {
		t.Errorf("レポート内容が一致しません: %+v", report)
	}
}
