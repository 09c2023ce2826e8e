// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/prisfeed/internal/model"
)

// SettingsRepository はショップ設定（署名シークレット）の永続化インターフェース。
type SettingsRepository interface {
	// FindByShop は指定ショップの設定を取得する。見つからない場合はnilを返す。
	FindByShop(ctx context.Context, shop string) (*model.ShopSettings, error)

	// Create はショップ設定を新規作成する。
	Create(ctx context.Context, settings *model.ShopSettings) error

	// UpsertSecret はショップの署名シークレットをアトミックに置き換える。
	// 設定レコードが存在しない場合は新規作成する。
	UpsertSecret(ctx context.Context, shop, secret string) error

	// DeleteByShop は指定ショップの設定を削除する。冪等。
	DeleteByShop(ctx context.Context, shop string) error
}

// SessionRepository はShopifyオフラインセッションの読み取りインターフェース。
// セッションの書き込みはプラットフォーム側の責務であり、本サービスは参照のみ行う。
type SessionRepository interface {
	// FindOfflineToken は指定ショップのオフラインアクセストークンを取得する。
	// セッション行が存在しない、またはトークンが空の場合は空文字列を返す。
	FindOfflineToken(ctx context.Context, shop string) (string, error)
}
