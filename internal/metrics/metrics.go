// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// プロフィール解決の結果ラベル。
const (
	ResolutionFound    = "found"
	ResolutionCreated  = "created"
	ResolutionFallback = "fallback"
)

// 認証操作の結果ラベル。
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeUnexpected = "unexpected"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・セッション管理・ミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignIn(outcome string)
	RecordSignUp(outcome string)
	RecordProfileResolution(outcome string)
	RecordGuardDecision(page string, allowed bool)
	SetActiveWorkspaces(count int)
	RecordHTTPStatus(statusCode int)
	RecordImportLatency(duration time.Duration)
	RecordJobsImported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIn           *prometheus.CounterVec
	signUp           *prometheus.CounterVec
	profileResolve   *prometheus.CounterVec
	guardDecision    *prometheus.CounterVec
	activeWorkspaces prometheus.Gauge
	httpStatus       *prometheus.CounterVec
	importLatency    prometheus.Histogram
	jobsImported     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_sign_in_total",
			Help: "サインイン試行の結果別件数",
		}, []string{"outcome"}),
		signUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_sign_up_total",
			Help: "サインアップ試行の結果別件数",
		}, []string{"outcome"}),
		profileResolve: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_profile_resolution_total",
			Help: "プロフィール解決の結果別件数",
		}, []string{"outcome"}),
		guardDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_guard_decision_total",
			Help: "ページガードの判定件数",
		}, []string{"page", "decision"}),
		activeWorkspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobboard_active_workspaces",
			Help: "保持中のクライアントワークスペース数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobboard_feed_import_latency_seconds",
			Help:    "求人フィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		jobsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobboard_jobs_imported_total",
			Help: "フィードから取り込んだ求人の合計数",
		}),
	}

	reg.MustRegister(
		c.signIn,
		c.signUp,
		c.profileResolve,
		c.guardDecision,
		c.activeWorkspaces,
		c.httpStatus,
		c.importLatency,
		c.jobsImported,
	)

	return c
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(outcome string) {
	c.signIn.WithLabelValues(outcome).Inc()
}

// RecordSignUp はサインアップの結果を記録する。
func (c *Collector) RecordSignUp(outcome string) {
	c.signUp.WithLabelValues(outcome).Inc()
}

// RecordProfileResolution はプロフィール解決の結果を記録する。
func (c *Collector) RecordProfileResolution(outcome string) {
	c.profileResolve.WithLabelValues(outcome).Inc()
}

// RecordGuardDecision はページガードの判定を記録する。
func (c *Collector) RecordGuardDecision(page string, allowed bool) {
	decision := "redirect"
	if allowed {
		decision = "allow"
	}
	c.guardDecision.WithLabelValues(page, decision).Inc()
}

// SetActiveWorkspaces は保持中のワークスペース数を設定する。
func (c *Collector) SetActiveWorkspaces(count int) {
	c.activeWorkspaces.Set(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordImportLatency はフィード取り込みのレイテンシを記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordJobsImported は取り込んだ求人数を記録する。
func (c *Collector) RecordJobsImported(count int) {
	c.jobsImported.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordSignIn(string) {}

func (Nop) RecordSignUp(string) {}

func (Nop) RecordProfileResolution(string) {}

func (Nop) RecordGuardDecision(string, bool) {}

func (Nop) SetActiveWorkspaces(int) {}

func (Nop) RecordHTTPStatus(int) {}

func (Nop) RecordImportLatency(time.Duration) {}

func (Nop) RecordJobsImported(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
