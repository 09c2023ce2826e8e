package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyWebhookHMAC はShopify Webhookの署名を検証する。
// X-Shopify-Hmac-Sha256ヘッダーの値（base64エンコードされたHMAC-SHA256）を
// リクエスト生ボディとアプリシークレットから計算したダイジェストと
// タイミング攻撃耐性のある比較で照合する。
func VerifyWebhookHMAC(rawBody []byte, headerHMAC, secret string) bool {
	if headerHMAC == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(digest), []byte(headerHMAC))
}
