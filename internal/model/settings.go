// Package model はドメインモデルを定義する。
package model

import "time"

// ShopSettings はショップごとの設定レコードを表す。
// フィードURLに埋め込む署名シークレットを1ショップにつき1つ保持する。
type ShopSettings struct {
	ID         string
	Shop       string
	FeedSecret string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session はShopifyプラットフォームが保存したオフラインセッションを表す。
// フィード生成時のAdmin API呼び出しに使用するアクセストークンの読み取り専用ビュー。
type Session struct {
	ID          string
	Shop        string
	AccessToken string
	CreatedAt   time.Time
}
