package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	FeedRate        rate.Limit    // 公開フィード取得のレート（req/sec）
	FeedBurst       int           // 公開フィード取得のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig は指定されたreq/minからデフォルト設定を構築する。
func DefaultRateLimiterConfig(feedPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		FeedRate:        rate.Limit(float64(feedPerMin) / 60.0),
		FeedBurst:       feedPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// shopLimiter はショップごとのレートリミッターとアクセス時刻を保持する。
type shopLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter は公開フィードエンドポイントのショップ単位レート制限を管理する。
// フィードリーダーの過剰なポーリングからAdmin APIクォータを保護する。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.RWMutex
	limiters map[string]*shopLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*shopLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// FeedMiddleware は公開フィード取得のレート制限ミドルウェアを返す。
// 制限キーはshopクエリパラメータ。shopが空のリクエストは制限せず
// 後段のハンドラーに委ねる（ハンドラーが400を返す）。
func (rl *RateLimiter) FeedMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := r.URL.Query().Get("shop")
			if shop == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getOrCreateLimiter(shop)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.FeedRate)
				slog.Warn("rate limit exceeded",
					slog.String("shop", shop),
					slog.String("limit_type", "feed"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// getOrCreateLimiter はショップのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(shop string) *rate.Limiter {
	rl.mu.RLock()
	sl, exists := rl.limiters[shop]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		sl.lastAccess = time.Now()
		rl.mu.Unlock()
		return sl.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ダブルチェック
	if sl, exists := rl.limiters[shop]; exists {
		sl.lastAccess = time.Now()
		return sl.limiter
	}

	limiter := rate.NewLimiter(rl.config.FeedRate, rl.config.FeedBurst)
	rl.limiters[shop] = &shopLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.mu.Lock()
	for shop, sl := range rl.limiters {
		if now.Sub(sl.lastAccess) > ttl {
			delete(rl.limiters, shop)
		}
	}
	rl.mu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
// 公開フィードはプレーンテキストを返すエンドポイントのため、ボディもテキスト。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte("Too Many Requests"))
}
