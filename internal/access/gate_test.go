package access

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/prisfeed/internal/model"
)

// fakeSettingsRepo はテスト用の設定リポジトリ。
type fakeSettingsRepo struct {
	settings map[string]*model.ShopSettings
	err      error
}

func (f *fakeSettingsRepo) FindByShop(ctx context.Context, shop string) (*model.ShopSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings[shop], nil
}

func (f *fakeSettingsRepo) Create(ctx context.Context, s *model.ShopSettings) error {
	f.settings[s.Shop] = s
	return nil
}

func (f *fakeSettingsRepo) UpsertSecret(ctx context.Context, shop, secret string) error {
	f.settings[shop] = &model.ShopSettings{Shop: shop, FeedSecret: secret}
	return nil
}

func (f *fakeSettingsRepo) DeleteByShop(ctx context.Context, shop string) error {
	delete(f.settings, shop)
	return nil
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返るべきです: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("エラーコードが一致しません: got %q, want %q", apiErr.Code, wantCode)
	}
}

func TestVerifyMissingShop(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*model.ShopSettings{}}
	gate := NewGate(repo, "")

	err := gate.Verify(context.Background(), "", "any-sig")
	if err == nil {
		t.Fatal("shop欠落の場合はエラーになるはずです")
	}
	assertAPIErrorCode(t, err, model.ErrCodeMissingShop)
}

func TestVerifyWithShopSecret(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*model.ShopSettings{
		"example.myshopify.com": {Shop: "example.myshopify.com", FeedSecret: "shop-secret-40chars"},
	}}
	gate := NewGate(repo, "fallback-secret")

	if err := gate.Verify(context.Background(), "example.myshopify.com", "shop-secret-40chars"); err != nil {
		t.Errorf("正しい署名で認可されるべきです: %v", err)
	}

	// 設定行が存在する場合、フォールバックシークレットは無効
	err := gate.Verify(context.Background(), "example.myshopify.com", "fallback-secret")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestVerifyFallbackSecret(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*model.ShopSettings{}}
	gate := NewGate(repo, "fallback-secret")

	// 設定行が存在しない場合のみフォールバックが適用される
	if err := gate.Verify(context.Background(), "example.myshopify.com", "fallback-secret"); err != nil {
		t.Errorf("フォールバックシークレットで認可されるべきです: %v", err)
	}

	err := gate.Verify(context.Background(), "example.myshopify.com", "wrong")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestVerifyNoSecretAvailable(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*model.ShopSettings{}}
	gate := NewGate(repo, "")

	// 照合対象が存在しない場合は空署名でも拒否
	err := gate.Verify(context.Background(), "example.myshopify.com", "")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestVerifySettingsStoreFailure(t *testing.T) {
	repo := &fakeSettingsRepo{err: errors.New("connection refused")}
	gate := NewGate(repo, "fallback-secret")

	// ストア障害時に認可をスキップしてはいけない
	err := gate.Verify(context.Background(), "example.myshopify.com", "fallback-secret")
	assertAPIErrorCode(t, err, model.ErrCodeSettingsUnavailable)
}

func TestVerifyRotationInvalidatesOldSignature(t *testing.T) {
	repo := &fakeSettingsRepo{settings: map[string]*model.ShopSettings{
		"example.myshopify.com": {Shop: "example.myshopify.com", FeedSecret: "old-secret"},
	}}
	gate := NewGate(repo, "")

	if err := gate.Verify(context.Background(), "example.myshopify.com", "old-secret"); err != nil {
		t.Fatalf("ローテーション前の署名は有効であるべきです: %v", err)
	}

	repo.UpsertSecret(context.Background(), "example.myshopify.com", "new-secret")

	err := gate.Verify(context.Background(), "example.myshopify.com", "old-secret")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)

	if err := gate.Verify(context.Background(), "example.myshopify.com", "new-secret"); err != nil {
		t.Errorf("ローテーション後の署名は有効であるべきです: %v", err)
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 10; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("シークレット生成に失敗しました: %v", err)
		}
		if len(secret) != 40 {
			t.Errorf("シークレットは40文字であるべきです: got %d", len(secret))
		}
		for _, r := range secret {
			if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				t.Errorf("シークレットは英数字のみで構成されるべきです: %q", secret)
				break
			}
		}
		if seen[secret] {
			t.Error("シークレットが重複しています")
		}
		seen[secret] = true
	}
}
