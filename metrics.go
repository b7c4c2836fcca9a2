package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ===============================
// 运行指标（Prometheus textfile）
// ===============================

// HarnessMetrics 测量过程自身的计数与耗时
type HarnessMetrics struct {
	registry    *prometheus.Registry
	navigations *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	contexts    prometheus.Counter
	cells       *prometheus.CounterVec
}

// NewHarnessMetrics 使用独立 registry，避免污染全局默认注册表
func NewHarnessMetrics() *HarnessMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &HarnessMetrics{
		registry: reg,
		navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framework_bench_navigations_total",
				Help: "Total number of browser navigations issued",
			},
			[]string{"cache_mode", "kind"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framework_bench_run_duration_seconds",
				Help:    "Wall-clock duration of one timed measurement run",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"cache_mode"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framework_bench_failures_total",
				Help: "Total number of failed runs or warm-ups",
			},
			[]string{"stage"},
		),
		contexts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "framework_bench_browser_contexts_total",
				Help: "Total number of browsing contexts created",
			},
		),
		cells: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framework_bench_cells_total",
				Help: "Total number of completed measurement cells",
			},
			[]string{"framework", "page", "cache_mode"},
		),
	}
}

// RecordNavigation 记录一次导航
func (m *HarnessMetrics) RecordNavigation(mode CacheMode, kind string) {
	m.navigations.WithLabelValues(string(mode), kind).Inc()
}

// RecordRun 记录一次计时运行的耗时
func (m *HarnessMetrics) RecordRun(mode CacheMode, d time.Duration) {
	m.runDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// RecordFailure 记录失败
func (m *HarnessMetrics) RecordFailure(stage string) {
	m.failures.WithLabelValues(stage).Inc()
}

// RecordContext 记录新建的浏览上下文
func (m *HarnessMetrics) RecordContext() {
	m.contexts.Inc()
}

// RecordCell 记录完成的测量单元
func (m *HarnessMetrics) RecordCell(framework string, page PageKind, mode CacheMode) {
	m.cells.WithLabelValues(framework, string(page), string(mode)).Inc()
}

// WriteTextfile 以 node_exporter textfile 格式写出
func (m *HarnessMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
