// Package billing はショップの課金状態の確認を提供する。
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Checker はショップに有効な課金が存在するかを判定するインターフェース。
type Checker interface {
	// HasActivePayment は指定ショップに有効な定期課金が存在するかを返す。
	// 確認に失敗した場合はエラーを返す（呼び出し側はフェイルクローズで扱う）。
	HasActivePayment(ctx context.Context, shop, token string) (bool, error)
}

// DisabledChecker は課金確認を行わず常に許可するChecker。
// 開発環境および課金機能を無効化した運用で使用する。
type DisabledChecker struct{}

// HasActivePayment は常にtrueを返す。
func (DisabledChecker) HasActivePayment(ctx context.Context, shop, token string) (bool, error) {
	return true, nil
}

// ShopifyChecker はShopify Admin APIの定期課金一覧から課金状態を確認するChecker。
type ShopifyChecker struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiVersion string
	baseURL    string // テスト用にエンドポイントを差し替え可能（空の場合は https://{shop}）
}

// NewShopifyChecker はShopifyCheckerの新しいインスタンスを生成する。
func NewShopifyChecker(httpClient *http.Client, logger *slog.Logger, apiVersion string) *ShopifyChecker {
	return &ShopifyChecker{
		httpClient: httpClient,
		logger:     logger,
		apiVersion: apiVersion,
	}
}

// recurringCharge は定期課金APIの1エントリ。
type recurringCharge struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// chargesResponse は定期課金一覧APIのレスポンスボディ。
type chargesResponse struct {
	RecurringApplicationCharges []recurringCharge `json:"recurring_application_charges"`
}

// HasActivePayment は定期課金一覧を取得し、statusがactiveの課金が
// 1件以上存在するかを返す。
func (c *ShopifyChecker) HasActivePayment(ctx context.Context, shop, token string) (bool, error) {
	base := c.baseURL
	if base == "" {
		base = "https://" + shop
	}
	reqURL := fmt.Sprintf("%s/admin/api/%s/recurring_application_charges.json", base, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("課金状態の確認に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("課金APIがエラーステータスを返しました",
			slog.String("shop", shop),
			slog.Int("http_status", resp.StatusCode),
		)
		return false, fmt.Errorf("Shopify %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var charges chargesResponse
	if err := json.Unmarshal(body, &charges); err != nil {
		return false, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	for _, charge := range charges.RecurringApplicationCharges {
		if charge.Status == "active" {
			return true, nil
		}
	}
	return false, nil
}
