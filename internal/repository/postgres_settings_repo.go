package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/prisfeed/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したショップ設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// FindByShop は指定ショップの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresSettingsRepo) FindByShop(ctx context.Context, shop string) (*model.ShopSettings, error) {
	settings := &model.ShopSettings{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, shop, feed_secret, created_at, updated_at
		 FROM shop_settings WHERE shop = $1`,
		shop,
	).Scan(
		&settings.ID, &settings.Shop, &settings.FeedSecret,
		&settings.CreatedAt, &settings.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ショップ設定の取得に失敗しました: %w", err)
	}

	return settings, nil
}

// Create はショップ設定を新規作成する。
// IDが未設定の場合は新しいUUIDを割り当てる。
func (r *PostgresSettingsRepo) Create(ctx context.Context, settings *model.ShopSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shop_settings (id, shop, feed_secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		settings.ID, settings.Shop, settings.FeedSecret,
		settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ショップ設定の作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByShop は指定ショップの設定を削除する。
// 行が存在しない場合もエラーにはしない（冪等）。
func (r *PostgresSettingsRepo) DeleteByShop(ctx context.Context, shop string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM shop_settings WHERE shop = $1`,
		shop,
	)
	if err != nil {
		return fmt.Errorf("ショップ設定の削除に失敗しました: %w", err)
	}
	return nil
}

// UpsertSecret はショップの署名シークレットをアトミックに置き換える。
// 設定レコードが存在しない場合は新規作成する。
func (r *PostgresSettingsRepo) UpsertSecret(ctx context.Context, shop, secret string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shop_settings (id, shop, feed_secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (shop)
		 DO UPDATE SET feed_secret = EXCLUDED.feed_secret, updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), shop, secret, now,
	)
	if err != nil {
		return fmt.Errorf("署名シークレットの更新に失敗しました: %w", err)
	}
	return nil
}
