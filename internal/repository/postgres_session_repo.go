package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSessionRepo はPostgreSQLに保存されたShopifyセッションの読み取りリポジトリ。
// プラットフォームのセッションストレージはオフラインセッションを
// "offline_<ショップドメイン>" というIDで保存する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindOfflineToken は指定ショップのオフラインアクセストークンを取得する。
// セッション行が存在しない、またはトークンが空の場合は空文字列を返す。
func (r *PostgresSessionRepo) FindOfflineToken(ctx context.Context, shop string) (string, error) {
	var token sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT access_token FROM sessions WHERE id = $1`,
		"offline_"+shop,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("オフラインセッションの取得に失敗しました: %w", err)
	}

	if !token.Valid {
		return "", nil
	}
	return token.String, nil
}
