package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/prisfeed/internal/billing"
	"github.com/hitoshi/prisfeed/internal/model"
)

// NewBillingMiddleware は設定APIの課金確認ミドルウェアを返す。
// AdminAuthMiddlewareの後に配置する。課金状態の確認に失敗した場合も
// アクセスを拒否する（フェイルクローズ）。
func NewBillingMiddleware(checker billing.Checker, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop, err := ShopFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			token, err := TokenFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			active, err := checker.HasActivePayment(r.Context(), shop, token)
			if err != nil {
				logger.Error("課金状態の確認に失敗しました",
					slog.String("shop", shop),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusPaymentRequired, model.NewBillingRequiredError())
				return
			}
			if !active {
				WriteErrorResponse(w, http.StatusPaymentRequired, model.NewBillingRequiredError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
