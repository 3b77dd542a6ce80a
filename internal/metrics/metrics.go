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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordGraphStored()
	RecordGraphReused()
	RecordParseFailure()
	RecordFetchFailure(reason string)
	RecordViewCreated()
	RecordInvalidPayload()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	graphStored    prometheus.Counter
	graphReused    prometheus.Counter
	parseFail      prometheus.Counter
	fetchFail      *prometheus.CounterVec
	viewCreated    prometheus.Counter
	invalidPayload prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		graphStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bruplint_graph_stored_total",
			Help: "新規保存されたグラフの合計数",
		}),
		graphReused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bruplint_graph_reused_total",
			Help: "重複排除により再利用されたグラフの合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bruplint_turtle_parse_fail_total",
			Help: "Turtleパース失敗の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bruplint_source_fetch_fail_total",
			Help: "グラフURL取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		viewCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bruplint_view_created_total",
			Help: "作成されたビューの合計数",
		}),
		invalidPayload: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bruplint_invalid_payload_total",
			Help: "Bru/Brl構造検証に失敗したリクエストの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bruplint_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bruplint_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.graphStored,
		c.graphReused,
		c.parseFail,
		c.fetchFail,
		c.viewCreated,
		c.invalidPayload,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordGraphStored は新規グラフの保存を記録する。
func (c *Collector) RecordGraphStored() {
	c.graphStored.Inc()
}

// RecordGraphReused は重複排除によるグラフ再利用を記録する。
func (c *Collector) RecordGraphReused() {
	c.graphReused.Inc()
}

// RecordParseFailure はTurtleパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordFetchFailure はグラフURL取得失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordViewCreated はビュー作成を記録する。
func (c *Collector) RecordViewCreated() {
	c.viewCreated.Inc()
}

// RecordInvalidPayload は構造検証失敗を記録する。
func (c *Collector) RecordInvalidPayload() {
	c.invalidPayload.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
