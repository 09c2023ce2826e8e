package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/prisfeed/internal/middleware"
	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/settings"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	// EnsureSecret はショップのシークレットを取得し、未発行なら発行する。
	EnsureSecret(ctx context.Context, shop string) (*model.ShopSettings, error)
	// Rotate はショップのシークレットを新しい値に置き換える。
	Rotate(ctx context.Context, shop string) (string, error)
	// FeedURLs はショップのフィードURLを組み立てる。
	FeedURLs(shop, secret string) settings.FeedURLs
	// Health はショップのフィード配信状態を検査する。
	Health(ctx context.Context, shop string) (*settings.HealthReport, error)
}

// SettingsHandler はショップ設定APIのHTTPハンドラー。
// AdminAuthMiddlewareの後段に配置される前提で、コンテキストから
// 認証済みショップを取得する。
type SettingsHandler struct {
	service SettingsServiceInterface
	logger  *slog.Logger
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

// settingsResponse は設定取得APIのレスポンス。
type settingsResponse struct {
	Shop      string `json:"shop"`
	TaggedURL string `json:"tagged_url"`
	AllURL    string `json:"all_url"`
}

// GetSettings はショップのフィードURL一式を返す。
// 初回アクセス時はシークレットを発行する。
// GET /api/settings?shop={shop}
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	shop, err := middleware.ShopFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	s, err := h.service.EnsureSecret(r.Context(), shop)
	if err != nil {
		h.handleServiceError(w, shop, err)
		return
	}

	urls := h.service.FeedURLs(shop, s.FeedSecret)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsResponse{
		Shop:      shop,
		TaggedURL: urls.Tagged,
		AllURL:    urls.All,
	})
}

// RotateSecret はシークレットをローテーションし、新しいフィードURLを返す。
// 旧URLは即座に無効となる。
// POST /api/settings/rotate?shop={shop}
func (h *SettingsHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	shop, err := middleware.ShopFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	secret, err := h.service.Rotate(r.Context(), shop)
	if err != nil {
		h.handleServiceError(w, shop, err)
		return
	}

	urls := h.service.FeedURLs(shop, secret)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsResponse{
		Shop:      shop,
		TaggedURL: urls.Tagged,
		AllURL:    urls.All,
	})
}

// GetHealth はフィード配信のヘルスチェック結果を返す。
// 両フィードURLを実際に取得・パースして検証するため、応答に時間がかかる。
// GET /api/settings/health?shop={shop}
func (h *SettingsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	shop, err := middleware.ShopFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	report, err := h.service.Health(r.Context(), shop)
	if err != nil {
		h.handleServiceError(w, shop, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
func (h *SettingsHandler) handleServiceError(w http.ResponseWriter, shop string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	h.logger.Error("設定APIの処理に失敗しました",
		slog.String("shop", shop),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingShop:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeBillingRequired:
		return http.StatusPaymentRequired
	case model.ErrCodeNoOfflineToken, model.ErrCodeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
