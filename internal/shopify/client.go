// Package shopify はShopify Admin REST APIのクライアントを提供する。
// カーソルページネーションによる商品一覧の全件取得と、
// 在庫レベルのバッチ取得を含む。
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hitoshi/prisfeed/internal/model"
)

const (
	// pageSize は商品一覧取得の1ページあたりの最大件数（Admin APIの上限）。
	pageSize = 250
	// maxIDsPerRequest は在庫レベル取得1リクエストあたりの最大ID数（Admin APIの上限）。
	maxIDsPerRequest = 50
	// productFields は商品一覧取得で要求するフィールド。
	productFields = "id,title,body_html,product_type,vendor,tags,images,variants,handle,status,published_at"
)

// UpstreamRecorder はAdmin API呼び出しのメトリクス記録インターフェース。
// nilの場合は記録しない。
type UpstreamRecorder interface {
	RecordUpstreamRequest(endpoint string, statusCode int)
}

// Client はShopify Admin REST APIのクライアント。
// すべての呼び出しは共有レートリミッターで間隔制御される
// （Admin RESTのリーキーバケットはおよそ2リクエスト/秒）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiVersion string
	limiter    *rate.Limiter
	metrics    UpstreamRecorder
	baseURL    string // テスト用にエンドポイントを差し替え可能（空の場合は https://{shop}）
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsはnilを許容する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiVersion string, limiter *rate.Limiter, metrics UpstreamRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiVersion: apiVersion,
		limiter:    limiter,
		metrics:    metrics,
	}
}

// shopBase はショップのAdmin APIベースURLを返す。
func (c *Client) shopBase(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

// productsResponse は商品一覧APIのレスポンスボディ。
type productsResponse struct {
	Products []model.Product `json:"products"`
}

// inventoryLevel は在庫レベルAPIの1エントリ。
// availableは在庫未追跡の場合にnullになる。
type inventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       *int  `json:"available"`
}

// inventoryLevelsResponse は在庫レベルAPIのレスポンスボディ。
type inventoryLevelsResponse struct {
	InventoryLevels []inventoryLevel `json:"inventory_levels"`
}

// FetchAllProducts は商品一覧をカーソルページネーションで全件取得する。
// 各ページのLinkヘッダーからrel="next"のURLを辿り、無くなるまで続行する。
// いずれかのページが非200を返した場合は全体を中断し、部分結果は破棄する。
// 取得順序は上流の返却順を保持する。
func (c *Client) FetchAllProducts(ctx context.Context, shop, token string) ([]model.Product, error) {
	pageURL := fmt.Sprintf("%s/admin/api/%s/products.json?limit=%d&fields=%s",
		c.shopBase(shop), c.apiVersion, pageSize, productFields)

	var all []model.Product
	var pages int

	for pageURL != "" {
		var page productsResponse
		nextURL, err := c.getJSON(ctx, pageURL, token, "products", &page)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Products...)
		pages++
		pageURL = nextURL
	}

	c.logger.Info("商品一覧の取得が完了しました",
		slog.String("shop", shop),
		slog.Int("pages", pages),
		slog.Int("products", len(all)),
	)

	return all, nil
}

// FetchInventoryLevels は在庫レベルを最大50 IDずつバッチ取得し、
// inventory_item_idごとに全ロケーションの在庫数を合算したマップを返す。
// availableがnullのエントリは0として扱う。
// いずれかのバッチが失敗した場合は全体を中断する。
func (c *Client) FetchInventoryLevels(ctx context.Context, shop, token string, ids []int64) (map[int64]int, error) {
	levels := make(map[int64]int, len(ids))

	for i := 0; i < len(ids); i += maxIDsPerRequest {
		end := i + maxIDsPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		idStrs := make([]string, len(chunk))
		for j, id := range chunk {
			idStrs[j] = strconv.FormatInt(id, 10)
		}

		reqURL := fmt.Sprintf("%s/admin/api/%s/inventory_levels.json?inventory_item_ids=%s",
			c.shopBase(shop), c.apiVersion, strings.Join(idStrs, ","))

		var page inventoryLevelsResponse
		if _, err := c.getJSON(ctx, reqURL, token, "inventory_levels", &page); err != nil {
			return nil, err
		}

		for _, lvl := range page.InventoryLevels {
			available := 0
			if lvl.Available != nil {
				available = *lvl.Available
			}
			levels[lvl.InventoryItemID] += available
		}
	}

	return levels, nil
}

// getJSON はレート制御付きでGETリクエストを実行し、JSONレスポンスをデコードする。
// 戻り値のnextURLはLinkヘッダーのrel="next"のURL（存在しない場合は空文字列）。
func (c *Client) getJSON(ctx context.Context, reqURL, token, endpoint string, out any) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Admin APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordUpstreamRequest(endpoint, 0)
		}
		return "", err
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(endpoint, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Admin APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("Shopify %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return parseNextLink(resp.Header.Get("Link")), nil
}

// parseNextLink はLinkヘッダーからrel="next"のURLを抽出する。
// 見つからない場合は空文字列を返す。
// ヘッダーの形式: <https://...?page_info=xxx>; rel="previous", <https://...?page_info=yyy>; rel="next"
func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}
