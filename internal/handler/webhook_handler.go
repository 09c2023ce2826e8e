package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/prisfeed/internal/repository"
	"github.com/hitoshi/prisfeed/internal/security"
)

// WebhookHandler はShopifyのGDPR必須Webhookを処理するハンドラー。
// すべてのリクエストはHMAC署名の検証を通過する必要がある。
type WebhookHandler struct {
	apiSecret string
	settings  repository.SettingsRepository
	logger    *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
// apiSecretはHMAC検証に使用するShopifyアプリのAPIシークレット。
func NewWebhookHandler(apiSecret string, settings repository.SettingsRepository, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		apiSecret: apiSecret,
		settings:  settings,
		logger:    logger,
	}
}

// webhookPayload はGDPR Webhookの共通ペイロード（必要なフィールドのみ）。
type webhookPayload struct {
	ShopDomain string `json:"shop_domain"`
}

// verify はHMAC署名を検証し、ボディとショップドメインを返す。
// 検証失敗時はレスポンスを書き込み、ok=falseを返す。
func (h *WebhookHandler) verify(w http.ResponseWriter, r *http.Request) (webhookPayload, bool) {
	var payload webhookPayload

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return payload, false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return payload, false
	}

	headerHMAC := r.Header.Get("X-Shopify-Hmac-Sha256")
	if !security.VerifyWebhookHMAC(body, headerHMAC, h.apiSecret) {
		h.logger.Warn("Webhook署名の検証に失敗しました",
			slog.String("topic", r.Header.Get("X-Shopify-Topic")),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return payload, false
	}

	// ペイロードが不正でも署名が正しければ受理する（Shopify側の再送を防ぐ）
	json.Unmarshal(body, &payload)

	return payload, true
}

// CustomersDataRequest は顧客データ開示要求のWebhookを処理する。
// 本サービスは顧客データを保持しないため、受理のみ行う。
// POST /webhooks/customers/data_request
func (h *WebhookHandler) CustomersDataRequest(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.verify(w, r)
	if !ok {
		return
	}

	h.logger.Info("顧客データ開示要求を受理しました", slog.String("shop", payload.ShopDomain))
	writeOK(w)
}

// CustomersRedact は顧客データ削除要求のWebhookを処理する。
// 本サービスは顧客データを保持しないため、受理のみ行う。
// POST /webhooks/customers/redact
func (h *WebhookHandler) CustomersRedact(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.verify(w, r)
	if !ok {
		return
	}

	h.logger.Info("顧客データ削除要求を受理しました", slog.String("shop", payload.ShopDomain))
	writeOK(w)
}

// ShopRedact はショップデータ削除要求のWebhookを処理する。
// 保持しているショップ設定（フィードシークレット）を削除する。
// POST /webhooks/shop/redact
func (h *WebhookHandler) ShopRedact(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.verify(w, r)
	if !ok {
		return
	}

	if payload.ShopDomain != "" {
		if err := h.settings.DeleteByShop(r.Context(), payload.ShopDomain); err != nil {
			h.logger.Error("ショップ設定の削除に失敗しました",
				slog.String("shop", payload.ShopDomain),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	h.logger.Info("ショップデータ削除要求を処理しました", slog.String("shop", payload.ShopDomain))
	writeOK(w)
}

// writeOK はWebhook受理のプレーンテキストレスポンスを書き込む。
func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
