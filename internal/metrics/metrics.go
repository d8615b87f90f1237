// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreCollector はメトリクス収集のインターフェース。
// ハンドラー・サービス層から利用する。
type StoreCollector interface {
	RecordCatalogFetch(duration time.Duration)
	RecordCatalogFetchFailure(reason string)
	RecordOrderPlaced()
	RecordOrderDeleted()
	RecordListingCreated()
	RecordSlugConflict()
	RecordUpstreamStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	catalogFetchLatency prometheus.Histogram
	catalogFetchFail    *prometheus.CounterVec
	ordersPlaced        prometheus.Counter
	ordersDeleted       prometheus.Counter
	listingsCreated     prometheus.Counter
	slugConflicts       prometheus.Counter
	upstreamStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		catalogFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "craftsy_catalog_fetch_latency_seconds",
			Help:    "商品カタログ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		catalogFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craftsy_catalog_fetch_fail_total",
			Help: "商品カタログ取得失敗の合計数",
		}, []string{"reason"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craftsy_orders_placed_total",
			Help: "注文確定の合計数",
		}),
		ordersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craftsy_orders_deleted_total",
			Help: "注文削除の合計数",
		}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craftsy_listings_created_total",
			Help: "商品出品の合計数",
		}),
		slugConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craftsy_slug_conflicts_total",
			Help: "スラッグ重複により拒否された出品の合計数",
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craftsy_upstream_status_total",
			Help: "ストアAPIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.catalogFetchLatency,
		c.catalogFetchFail,
		c.ordersPlaced,
		c.ordersDeleted,
		c.listingsCreated,
		c.slugConflicts,
		c.upstreamStatus,
	)

	return c
}

// RecordCatalogFetch はカタログ取得のレイテンシを記録する。
func (c *Collector) RecordCatalogFetch(duration time.Duration) {
	c.catalogFetchLatency.Observe(duration.Seconds())
}

// RecordCatalogFetchFailure はカタログ取得失敗を理由別に記録する。
func (c *Collector) RecordCatalogFetchFailure(reason string) {
	c.catalogFetchFail.WithLabelValues(reason).Inc()
}

// RecordOrderPlaced は注文確定を記録する。
func (c *Collector) RecordOrderPlaced() {
	c.ordersPlaced.Inc()
}

// RecordOrderDeleted は注文削除を記録する。
func (c *Collector) RecordOrderDeleted() {
	c.ordersDeleted.Inc()
}

// RecordListingCreated は出品成功を記録する。
func (c *Collector) RecordListingCreated() {
	c.listingsCreated.Inc()
}

// RecordSlugConflict はスラッグ重複による出品拒否を記録する。
func (c *Collector) RecordSlugConflict() {
	c.slugConflicts.Inc()
}

// RecordUpstreamStatus はストアAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
