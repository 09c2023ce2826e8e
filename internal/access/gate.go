// Package access はフィードURLの能力ベース認可を提供する。
// フィードURLに埋め込まれた署名パラメータをショップごとのシークレットと
// 照合し、一致する場合のみ配信を許可する。
package access

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"

	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/repository"
)

// secretLength は生成するシークレットの文字数。
const secretLength = 40

// secretAlphabet はシークレットに使用する文字集合（英数字のみ、URLセーフ）。
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Gate はフィードアクセスの認可を判定する。
// ショップ設定が未登録の場合のみ、環境変数由来のフォールバック
// シークレット（レガシー運用）を適用する。
type Gate struct {
	settings       repository.SettingsRepository
	fallbackSecret string
}

// NewGate はGateの新しいインスタンスを生成する。
// fallbackSecretが空の場合、フォールバック認可は無効となる。
func NewGate(settings repository.SettingsRepository, fallbackSecret string) *Gate {
	return &Gate{
		settings:       settings,
		fallbackSecret: fallbackSecret,
	}
}

// Verify はショップと署名パラメータの組を検証する。
// shopが空の場合は設定参照前にMISSING_SHOPエラーを返す。
// 設定ストアへの問い合わせに失敗した場合はSETTINGS_UNAVAILABLEエラーを
// 返す（認可のスキップはしない）。
// 設定行が存在する場合はそのシークレットのみが有効であり、
// フォールバックシークレットは適用されない。
// 比較は一定時間比較で行う。
func (g *Gate) Verify(ctx context.Context, shop, sig string) error {
	if shop == "" {
		return model.NewMissingShopError()
	}

	settings, err := g.settings.FindByShop(ctx, shop)
	if err != nil {
		return model.NewSettingsUnavailableError(err.Error())
	}

	expected := g.fallbackSecret
	if settings != nil {
		expected = settings.FeedSecret
	}

	if expected == "" || sig == "" {
		return model.NewUnauthorizedError()
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return model.NewUnauthorizedError()
	}

	return nil
}

// GenerateSecret は暗号論的乱数による40文字の英数字シークレットを生成する。
func GenerateSecret() (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	buf := make([]byte, secretLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}
