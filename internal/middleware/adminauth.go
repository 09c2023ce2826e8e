package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
)

type contextKey string

const (
	shopContextKey  contextKey = "shop"
	tokenContextKey contextKey = "token"
)

// ErrShopNotInContext はコンテキストにショップ情報が存在しない場合のエラー。
var ErrShopNotInContext = errors.New("コンテキストにショップ情報がありません")

// ShopFromContext はリクエストコンテキストから認証済みショップドメインを取得する。
func ShopFromContext(ctx context.Context) (string, error) {
	shop, ok := ctx.Value(shopContextKey).(string)
	if !ok || shop == "" {
		return "", ErrShopNotInContext
	}
	return shop, nil
}

// TokenFromContext はリクエストコンテキストから認証に使用された
// オフラインアクセストークンを取得する。
func TokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(tokenContextKey).(string)
	if !ok || token == "" {
		return "", ErrShopNotInContext
	}
	return token, nil
}

// NewAdminAuthMiddleware は設定APIの認証ミドルウェアを返す。
// shopクエリパラメータとAuthorization: Bearerヘッダーを要求し、
// ベアラートークンをショップの保存済みオフラインアクセストークンと
// 一定時間比較で照合する。成功時はショップとトークンをコンテキストに格納する。
func NewAdminAuthMiddleware(sessions repository.SessionRepository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := r.URL.Query().Get("shop")
			if shop == "" {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingShopError())
				return
			}

			auth := r.Header.Get("Authorization")
			bearer, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || bearer == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			stored, err := sessions.FindOfflineToken(r.Context(), shop)
			if err != nil {
				WriteInternalServerError(w)
				return
			}
			if stored == "" || subtle.ConstantTimeCompare([]byte(bearer), []byte(stored)) != 1 {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), shopContextKey, shop)
			ctx = context.WithValue(ctx, tokenContextKey, stored)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
