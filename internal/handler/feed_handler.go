// Package handler はHTTPエンドポイントのハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/prisfeed/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// Feed は指定ショップ・フィルタモードのフィードXMLを返す。
	Feed(ctx context.Context, shop string, mode model.FilterMode, base string, bypassCache bool) (string, error)
}

// AccessGate はフィードアクセスの認可インターフェース。
type AccessGate interface {
	// Verify はショップと署名パラメータの組を検証する。
	Verify(ctx context.Context, shop, sig string) error
}

// ShopValidator はショップドメインの形式検証インターフェース。
type ShopValidator interface {
	// ValidateShopDomain はショップドメインが外部アクセスに安全かを検証する。
	ValidateShopDomain(shop string) error
}

// FeedRequestRecorder はフィードリクエスト結果のメトリクス記録インターフェース。nilを許容する。
type FeedRequestRecorder interface {
	RecordFeedRequest(statusCode int)
}

// FeedHandler は公開フィード配信のHTTPハンドラー。
// フィードリーダー向けのエンドポイントのため、エラーはJSONではなく
// プレーンテキストで返す。
type FeedHandler struct {
	service    FeedServiceInterface
	gate       AccessGate
	validator  ShopValidator
	logger     *slog.Logger
	metrics    FeedRequestRecorder
	defaultTag string
}

// NewFeedHandler はFeedHandlerを生成する。
// metricsはnilを許容する。
func NewFeedHandler(service FeedServiceInterface, gate AccessGate, validator ShopValidator, logger *slog.Logger, metrics FeedRequestRecorder, defaultTag string) *FeedHandler {
	return &FeedHandler{
		service:    service,
		gate:       gate,
		validator:  validator,
		logger:     logger,
		metrics:    metrics,
		defaultTag: defaultTag,
	}
}

// ServeFeed は公開フィードを配信する。
// GET /public/prisjakt.xml?shop={shop}&sig={sig}[&tag=all][&base={url}][&debug=1]
//
// レスポンス:
//   - 200: application/xml; charset=utf-8 のフィード本体
//   - 400: "Missing shop"（shop欠落）または"Invalid shop"（形式不正）
//   - 401: "Unauthorized"（署名不一致）
//   - 500: "Error: {理由}"（トークン欠落・上流障害など）
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	sig := q.Get("sig")

	if err := h.gate.Verify(r.Context(), shop, sig); err != nil {
		h.writeFeedError(w, shop, err)
		return
	}

	if err := h.validator.ValidateShopDomain(shop); err != nil {
		h.logger.Warn("不正なショップドメインを拒否しました",
			slog.String("shop", shop),
			slog.String("error", err.Error()),
		)
		h.writePlainText(w, http.StatusBadRequest, "Invalid shop")
		return
	}

	mode := model.ParseFilterMode(q.Get("tag"), h.defaultTag)

	base := strings.TrimRight(q.Get("base"), "/")
	if base == "" {
		base = "https://" + shop
	}

	bypassCache := q.Get("debug") == "1"

	xml, err := h.service.Feed(r.Context(), shop, mode, base, bypassCache)
	if err != nil {
		h.writeFeedError(w, shop, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml))

	if h.metrics != nil {
		h.metrics.RecordFeedRequest(http.StatusOK)
	}
}

// writeFeedError はエラーをプレーンテキストのHTTPレスポンスに変換する。
func (h *FeedHandler) writeFeedError(w http.ResponseWriter, shop string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeMissingShop:
			h.writePlainText(w, http.StatusBadRequest, "Missing shop")
			return
		case model.ErrCodeUnauthorized:
			h.writePlainText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	h.logger.Error("フィード配信に失敗しました",
		slog.String("shop", shop),
		slog.String("error", err.Error()),
	)
	h.writePlainText(w, http.StatusInternalServerError, "Error: "+err.Error())
}

// writePlainText はプレーンテキストレスポンスを書き込み、メトリクスを記録する。
func (h *FeedHandler) writePlainText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(body))

	if h.metrics != nil {
		h.metrics.RecordFeedRequest(statusCode)
	}
}
