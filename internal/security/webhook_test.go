package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookHMAC(t *testing.T) {
	body := []byte(`{"shop_domain":"example.myshopify.com"}`)

	if !VerifyWebhookHMAC(body, sign(body, "secret"), "secret") {
		t.Error("正しい署名は検証を通過すべきです")
	}
	if VerifyWebhookHMAC(body, sign(body, "other"), "secret") {
		t.Error("別のシークレットで計算された署名は拒否されるべきです")
	}
	if VerifyWebhookHMAC([]byte("tampered"), sign(body, "secret"), "secret") {
		t.Error("改ざんされたボディは拒否されるべきです")
	}
}

func TestVerifyWebhookHMACEmptyInputs(t *testing.T) {
	body := []byte("{}")

	if VerifyWebhookHMAC(body, "", "secret") {
		t.Error("署名ヘッダーが空の場合は拒否されるべきです")
	}
	if VerifyWebhookHMAC(body, sign(body, ""), "") {
		t.Error("シークレットが空の場合は拒否されるべきです")
	}
}

func TestValidateShopDomain(t *testing.T) {
	guard := NewSSRFGuard()

	valid := []string{
		"example.myshopify.com",
		"butik.example.se",
	}
	for _, shop := range valid {
		if err := guard.ValidateShopDomain(shop); err != nil {
			t.Errorf("正当なショップドメイン%qが拒否されました: %v", shop, err)
		}
	}

	invalid := []string{
		"",
		"localhost",
		"127.0.0.1",
		"169.254.169.254",
		"10.0.0.5",
		"example.com/path",
		"example.com?x=1",
		"user@example.com",
		"example.com:8080",
	}
	for _, shop := range invalid {
		if err := guard.ValidateShopDomain(shop); err == nil {
			t.Errorf("危険なショップドメイン%qが許可されました", shop)
		}
	}
}

func TestSanitizeRemovesScript(t *testing.T) {
	s := NewDescriptionSanitizer()

	got := s.Sanitize(`<p>Bra produkt</p><script>alert(1)</script>`)
	if got != "<p>Bra produkt</p>" {
		t.Errorf("scriptタグが除去されるべきです: got %q", got)
	}
}

func TestSanitizeKeepsAllowedTags(t *testing.T) {
	s := NewDescriptionSanitizer()

	input := "<p>text</p><ul><li>a</li></ul><strong>b</strong>"
	if got := s.Sanitize(input); got != input {
		t.Errorf("許可タグは保持されるべきです: got %q", got)
	}
}

func TestSanitizeRemovesEventAttributes(t *testing.T) {
	s := NewDescriptionSanitizer()

	got := s.Sanitize(`<p onclick="alert(1)">text</p>`)
	if got != "<p>text</p>" {
		t.Errorf("on*イベント属性が除去されるべきです: got %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewDescriptionSanitizer()

	input := `<p>Varm & skön <img src="https://cdn.example.com/a.jpg" alt="bild"></p>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("サニタイズは冪等であるべきです: once=%q twice=%q", once, twice)
	}
}
