// Package settings はショップごとのフィード設定管理を提供する。
// シークレットの初期発行とローテーション、フィードURLの組み立て、
// フィード配信のヘルスチェックを含む。
package settings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/prisfeed/internal/access"
	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
)

// FeedURLs はショップに発行済みのフィードURLの組。
type FeedURLs struct {
	Tagged string `json:"tagged_url"`
	All    string `json:"all_url"`
}

// FeedStatus は1本のフィードURLに対するヘルスチェック結果。
type FeedStatus struct {
	URL        string `json:"url"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	ItemCount  int    `json:"item_count"`
	Error      string `json:"error,omitempty"`
}

// HealthReport はショップのフィード配信状態の総合レポート。
type HealthReport struct {
	Shop            string     `json:"shop"`
	HasOfflineToken bool       `json:"has_offline_token"`
	Tagged          FeedStatus `json:"tagged"`
	All             FeedStatus `json:"all"`
}

// Service はショップ設定の管理サービス。
// ヘルスチェックでは自サービスの公開フィードURLを実際に取得し、
// フィードとしてパース可能かを検証する。
type Service struct {
	settings   repository.SettingsRepository
	sessions   repository.SessionRepository
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	defaultTag string
}

// NewService はServiceの新しいインスタンスを生成する。
// baseURLは本サービス自身の公開ベースURL、httpClientはヘルスチェックの
// 取得に使用するクライアント（SSRF対策済みを想定）。
func NewService(
	settings repository.SettingsRepository,
	sessions repository.SessionRepository,
	httpClient *http.Client,
	logger *slog.Logger,
	baseURL string,
	defaultTag string,
) *Service {
	return &Service{
		settings:   settings,
		sessions:   sessions,
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTag: defaultTag,
	}
}

// EnsureSecret はショップの署名シークレットを取得する。
// 設定行が存在しない場合は新しいシークレットを発行して保存する。
func (s *Service) EnsureSecret(ctx context.Context, shop string) (*model.ShopSettings, error) {
	existing, err := s.settings.FindByShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("ショップ設定の取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	secret, err := access.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("シークレットの生成に失敗しました: %w", err)
	}

	now := time.Now()
	created := &model.ShopSettings{
		ID:         uuid.NewString(),
		Shop:       shop,
		FeedSecret: secret,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.settings.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("ショップ設定の作成に失敗しました: %w", err)
	}

	s.logger.Info("フィードシークレットを発行しました", slog.String("shop", shop))

	return created, nil
}

// Rotate はショップの署名シークレットを新しい値に置き換える。
// 旧シークレットで構築されたURLは即座に無効となる。
func (s *Service) Rotate(ctx context.Context, shop string) (string, error) {
	secret, err := access.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("シークレットの生成に失敗しました: %w", err)
	}

	if err := s.settings.UpsertSecret(ctx, shop, secret); err != nil {
		return "", fmt.Errorf("シークレットの更新に失敗しました: %w", err)
	}

	s.logger.Info("フィードシークレットをローテーションしました", slog.String("shop", shop))

	return secret, nil
}

// FeedURLs はショップの2本のフィードURL（タグ限定と全商品）を組み立てる。
func (s *Service) FeedURLs(shop, secret string) FeedURLs {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("sig", secret)

	tagged := s.baseURL + "/public/prisjakt.xml?" + q.Encode()

	q.Set("tag", "all")
	all := s.baseURL + "/public/prisjakt.xml?" + q.Encode()

	return FeedURLs{Tagged: tagged, All: all}
}

// Health はショップのフィード配信状態を検査する。
// オフライントークンの有無を確認した上で、両フィードURLを
// debugパラメータ付き（キャッシュをバイパスし実生成を検証）で取得し、
// レスポンスがフィードとしてパース可能かを確認する。
func (s *Service) Health(ctx context.Context, shop string) (*HealthReport, error) {
	settings, err := s.EnsureSecret(ctx, shop)
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.FindOfflineToken(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("オフライントークンの確認に失敗しました: %w", err)
	}

	urls := s.FeedURLs(shop, settings.FeedSecret)

	report := &HealthReport{
		Shop:            shop,
		HasOfflineToken: token != "",
		Tagged:          s.checkFeed(ctx, urls.Tagged),
		All:             s.checkFeed(ctx, urls.All),
	}

	return report, nil
}

// checkFeed は1本のフィードURLを取得してパースを試みる。
func (s *Service) checkFeed(ctx context.Context, feedURL string) FeedStatus {
	status := FeedStatus{URL: feedURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL+"&debug=1", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	status.StatusCode = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	if resp.StatusCode != http.StatusOK {
		status.Error = strings.TrimSpace(string(body))
		return status
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		status.Error = fmt.Sprintf("フィードのパースに失敗しました: %v", err)
		return status
	}

	status.OK = true
	status.ItemCount = len(parsed.Items)
	return status
}
