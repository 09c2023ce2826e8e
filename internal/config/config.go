package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Shopify
	ShopifyAPISecret string // Webhook HMAC検証に使用するアプリシークレット
	AdminAPIVersion  string
	ShopifyRate      float64 // Admin API呼び出しレート（req/sec）
	ShopifyBurst     int

	// Feed
	FallbackFeedSecret string // ショップ設定が存在しない場合のレガシー互換シークレット（未設定可）
	DefaultTag         string
	VariantMode        string // expand または single
	CacheTTL           time.Duration
	FetchTimeout       time.Duration
	GenerateTimeout    time.Duration

	// Rate Limit
	RateLimitFeedPerMin int // 公開フィードのショップごとレート制限（req/min）

	// Billing
	BillingEnabled bool

	// Server
	ServerPort string
	BaseURL    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ShopifyAPISecret = os.Getenv("SHOPIFY_API_SECRET")
	if cfg.ShopifyAPISecret == "" {
		missing = append(missing, "SHOPIFY_API_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AdminAPIVersion = getEnvString("ADMIN_API_VERSION", "2025-04")
	cfg.ShopifyRate = getEnvFloat("SHOPIFY_RATE", 2.0)
	cfg.ShopifyBurst = getEnvInt("SHOPIFY_BURST", 4)
	cfg.FallbackFeedSecret = getEnvString("FEED_SECRET", "")
	cfg.DefaultTag = getEnvString("DEFAULT_TAG", "prisjakt")
	cfg.VariantMode = getEnvString("FEED_VARIANT_MODE", "expand")
	cfg.CacheTTL = getEnvDuration("FEED_CACHE_TTL", 5*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.GenerateTimeout = getEnvDuration("GENERATE_TIMEOUT", 3*time.Minute)
	cfg.RateLimitFeedPerMin = getEnvInt("RATE_LIMIT_FEED", 60)
	cfg.BillingEnabled = getEnvBool("BILLING_ENABLED", true)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
