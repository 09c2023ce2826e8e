// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordFeedRequest(statusCode int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordGenerateLatency(duration time.Duration)
	RecordProductsSelected(count int)
	RecordUpstreamRequest(endpoint string, statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedRequests     *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	generateLatency  prometheus.Histogram
	productsSelected prometheus.Histogram
	upstreamRequests *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prisfeed_feed_requests_total",
			Help: "フィードリクエストのHTTPステータスコード別合計数",
		}, []string{"status_code"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prisfeed_cache_hits_total",
			Help: "フィードキャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prisfeed_cache_misses_total",
			Help: "フィードキャッシュミスの合計数",
		}),
		generateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prisfeed_generate_latency_seconds",
			Help:    "フィード生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		productsSelected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prisfeed_products_selected",
			Help:    "1回の生成で選択された商品数",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prisfeed_upstream_requests_total",
			Help: "Shopify Admin APIリクエストのエンドポイント・ステータス別合計数",
		}, []string{"endpoint", "status_code"}),
	}

	reg.MustRegister(
		c.feedRequests,
		c.cacheHits,
		c.cacheMisses,
		c.generateLatency,
		c.productsSelected,
		c.upstreamRequests,
	)

	return c
}

// RecordFeedRequest はフィードリクエストの結果ステータスを記録する。
func (c *Collector) RecordFeedRequest(statusCode int) {
	c.feedRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordGenerateLatency はフィード生成のレイテンシを記録する。
func (c *Collector) RecordGenerateLatency(duration time.Duration) {
	c.generateLatency.Observe(duration.Seconds())
}

// RecordProductsSelected は選択された商品数を記録する。
func (c *Collector) RecordProductsSelected(count int) {
	c.productsSelected.Observe(float64(count))
}

// RecordUpstreamRequest はAdmin APIリクエストの結果を記録する。
func (c *Collector) RecordUpstreamRequest(endpoint string, statusCode int) {
	c.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
