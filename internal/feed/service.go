package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
)

// CatalogClient はShopify Admin APIからのカタログ取得インターフェース。
// テスト時にモックに差し替え可能。
type CatalogClient interface {
	FetchAllProducts(ctx context.Context, shop, token string) ([]model.Product, error)
	FetchInventoryLevels(ctx context.Context, shop, token string, ids []int64) (map[int64]int, error)
}

// FeedCache はレンダリング済みフィードのキャッシュインターフェース。
type FeedCache interface {
	Get(shop, mode string) (string, bool)
	Put(shop, mode, xml string)
}

// MetricsRecorder はフィード生成のメトリクス記録インターフェース。nilを許容する。
type MetricsRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordGenerateLatency(duration time.Duration)
	RecordProductsSelected(count int)
}

// Service はフィード生成パイプラインを統括する。
// キャッシュ確認 → トークン取得 → 商品全件取得 → 選択フィルタ →
// 在庫バッチ取得 → XMLレンダリング → キャッシュ保存の順に実行する。
// 同一キーの同時再生成はsingleflightで1回に集約する。
type Service struct {
	sessions        repository.SessionRepository
	catalog         CatalogClient
	cache           FeedCache
	renderer        *Renderer
	logger          *slog.Logger
	metrics         MetricsRecorder
	generateTimeout time.Duration
	group           singleflight.Group
}

// NewService はServiceの新しいインスタンスを生成する。
// generateTimeoutが0の場合、生成全体のタイムアウトは適用されない。
// metricsはnilを許容する。
func NewService(
	sessions repository.SessionRepository,
	catalog CatalogClient,
	cache FeedCache,
	renderer *Renderer,
	logger *slog.Logger,
	metrics MetricsRecorder,
	generateTimeout time.Duration,
) *Service {
	return &Service{
		sessions:        sessions,
		catalog:         catalog,
		cache:           cache,
		renderer:        renderer,
		logger:          logger,
		metrics:         metrics,
		generateTimeout: generateTimeout,
	}
}

// Feed は指定ショップ・モードのフィードXMLを返す。
// bypassCacheが真の場合（ヘルスチェック用）はキャッシュの読み書きを
// 一切行わず、常に再生成する。
// キャッシュミス時の再生成は(shop, モード, base)単位で集約され、
// 同時到着したリクエストは同一の結果を受け取る。
// エラー時に部分的なフィードがキャッシュされることはない。
func (s *Service) Feed(ctx context.Context, shop string, mode model.FilterMode, base string, bypassCache bool) (string, error) {
	if bypassCache {
		return s.generate(ctx, shop, mode, base)
	}

	if xml, ok := s.cache.Get(shop, mode.CacheKey()); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return xml, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	// キャッシュキーにはbaseを含めないが（リファレンス挙動の維持）、
	// 集約キーには含め、異なるbaseのリクエストが他者のリンクを受け取らないようにする。
	flightKey := shop + "|" + mode.CacheKey() + "|" + base

	v, err, _ := s.group.Do(flightKey, func() (any, error) {
		xml, err := s.generate(ctx, shop, mode, base)
		if err != nil {
			return nil, err
		}
		s.cache.Put(shop, mode.CacheKey(), xml)
		return xml, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// generate はフィードを無条件に再生成する。キャッシュには触れない。
func (s *Service) generate(ctx context.Context, shop string, mode model.FilterMode, base string) (string, error) {
	start := time.Now()

	if s.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
		defer cancel()
	}

	token, err := s.sessions.FindOfflineToken(ctx, shop)
	if err != nil {
		return "", fmt.Errorf("オフライントークンの取得に失敗しました: %w", err)
	}
	if token == "" {
		return "", model.NewNoOfflineTokenError(shop)
	}

	products, err := s.catalog.FetchAllProducts(ctx, shop, token)
	if err != nil {
		return "", model.NewUpstreamError(err.Error())
	}

	selected := Select(products, mode)

	ids := s.renderer.InventoryItemIDs(selected)
	levels, err := s.catalog.FetchInventoryLevels(ctx, shop, token, ids)
	if err != nil {
		return "", model.NewUpstreamError(err.Error())
	}

	xml := s.renderer.Render(shop, base, selected, levels)

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordGenerateLatency(duration)
		s.metrics.RecordProductsSelected(len(selected))
	}

	s.logger.Info("フィードの生成が完了しました",
		slog.String("shop", shop),
		slog.String("mode", mode.CacheKey()),
		slog.Int("products_total", len(products)),
		slog.Int("products_selected", len(selected)),
		slog.Int("inventory_items", len(ids)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return xml, nil
}
