// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 設定APIのJSONレスポンスに使用する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, billing, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingShop         = "MISSING_SHOP"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNoOfflineToken      = "NO_OFFLINE_TOKEN"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
	ErrCodeBillingRequired     = "BILLING_REQUIRED"
	ErrCodeSettingsUnavailable = "SETTINGS_UNAVAILABLE"
)

// NewMissingShopError は必須パラメータshop欠落のエラーを生成する。
func NewMissingShopError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingShop,
		Message:  "shopパラメータが指定されていません。",
		Category: "validation",
		Action:   "フィードURLにshopパラメータが含まれているか確認してください。",
	}
}

// NewUnauthorizedError は署名不一致のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "フィード署名が一致しません。",
		Category: "auth",
		Action:   "設定画面から最新のフィードURLを取得し直してください。",
	}
}

// NewNoOfflineTokenError はオフライントークン未保存のエラーを生成する。
func NewNoOfflineTokenError(shop string) *APIError {
	return &APIError{
		Code:     ErrCodeNoOfflineToken,
		Message:  fmt.Sprintf("ショップのオフライントークンが見つかりません: %s", shop),
		Category: "upstream",
		Action:   "アプリを再インストールしてアクセス権を付与し直してください。",
	}
}

// NewUpstreamError はShopify API呼び出し失敗のエラーを生成する。
func NewUpstreamError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("Shopify APIの呼び出しに失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewBillingRequiredError は課金未契約のエラーを生成する。
func NewBillingRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeBillingRequired,
		Message:  "有効なサブスクリプションがありません。",
		Category: "billing",
		Action:   "アプリの課金プランを有効化してください。",
	}
}

// NewSettingsUnavailableError は設定ストア障害のエラーを生成する。
func NewSettingsUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSettingsUnavailable,
		Message:  fmt.Sprintf("ショップ設定の読み書きに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
