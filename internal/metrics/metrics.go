// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/upstream"
)

// Collector はPrometheusメトリクスを収集する実装。
// upstream.Recorderとmiddleware.StatusRecorderの両方を満たす。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	tokenExchange    *prometheus.CounterVec
	forcedSignOuts   prometheus.Counter
	sessionsCleaned  prometheus.Counter
}

var (
	_ upstream.Recorder         = (*Collector)(nil)
	_ middleware.StatusRecorder = (*Collector)(nil)
)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabegoro_http_status_total",
			Help: "HTTPメソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabegoro_upstream_requests_total",
			Help: "上流API呼び出しの操作・ステータスコード別の合計数",
		}, []string{"op", "status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabegoro_upstream_latency_seconds",
			Help:    "上流API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabegoro_token_exchange_total",
			Help: "トークン交換の結果別の合計数",
		}, []string{"outcome"}),
		forcedSignOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabegoro_forced_sign_out_total",
			Help: "上流API拒否による強制サインアウトの合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabegoro_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.upstreamRequests,
		c.upstreamLatency,
		c.tokenExchange,
		c.forcedSignOuts,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(method string, status int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordUpstreamRequest は上流API呼び出しの結果を記録する。
// statusが0の場合はネットワークエラーを表す。
func (c *Collector) RecordUpstreamRequest(op string, status int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordTokenExchange はトークン交換の結果を記録する。
// outcomeは "issued" または "failed"。
func (c *Collector) RecordTokenExchange(outcome string) {
	c.tokenExchange.WithLabelValues(outcome).Inc()
}

// RecordForcedSignOut は強制サインアウトの発生を記録する。
func (c *Collector) RecordForcedSignOut() {
	c.forcedSignOuts.Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
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
