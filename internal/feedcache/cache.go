// Package feedcache はレンダリング済みフィードの短命インプロセスキャッシュを提供する。
package feedcache

import (
	"sync"
	"time"
)

// entry は1件のキャッシュエントリ。丸ごと置換され、部分更新されることはない。
type entry struct {
	xml       string
	expiresAt time.Time
}

// Cache は(ショップ, フィルタモード)をキーとするTTL付きキャッシュ。
// 有効期限は読み取り時に遅延評価され、期限切れエントリは不在として扱う
// （バックグラウンドの掃除処理は持たない）。
// 容量上限はなく、ショップ×モードの組み合わせ数に比例して成長する。
// 並行アクセスに対して安全。
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time // テスト用に差し替え可能
}

// New は指定TTLのCacheを生成する。
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// key はキャッシュキーを構築する。
func key(shop, mode string) string {
	return shop + "|" + mode
}

// Get はキャッシュされたフィードを返す。
// エントリが存在しない、または期限切れの場合はok=falseを返す。
// 期限切れエントリはこの時点で削除される（遅延削除）。
func (c *Cache) Get(shop, mode string) (string, bool) {
	k := key(shop, mode)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, k)
		return "", false
	}
	return e.xml, true
}

// Put はフィードをキャッシュに保存する。既存エントリは丸ごと置換される。
// 有効期限は挿入時刻 + TTL。
func (c *Cache) Put(shop, mode, xml string) {
	k := key(shop, mode)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[k] = entry{
		xml:       xml,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
