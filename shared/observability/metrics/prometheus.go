// Package metrics provides Prometheus-compatible metrics collection.
package metrics

import (
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// MetricName turns arbitrary service and component names into a valid
// Prometheus metric prefix.
func MetricName(parts ...string) string {
	var cleaned []string
	for _, p := range parts {
		p = strings.Trim(invalidNameChars.ReplaceAllString(p, "_"), "_")
		if p != "" {
			cleaned = append(cleaned, strings.ToLower(p))
		}
	}
	name := strings.Join(cleaned, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "m_" + name
	}
	return name
}

// PrometheusMetrics implements types.Metrics. Metric names are
//
//	{prefix}_processed_total      counter   [status, type]
//	{prefix}_errors_total         counter   [error_type, operation]
//	{prefix}_duration_seconds     histogram [operation]
//	{prefix}_file_size_bytes      histogram [file_type]
//	{prefix}_in_progress          gauge     [operation]
type PrometheusMetrics struct {
	prefix string

	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	fileSizeBytes   *prometheus.HistogramVec
	inProgress      *prometheus.GaugeVec
}

// Bulk exports can take many minutes, so the top buckets stretch past the
// Lambda timeout.
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 450, 900}

// 1KB .. 1GB
var sizeBuckets = prometheus.ExponentialBuckets(1024, 10, 7)

// New registers the collectors under prefix on reg, or on
// prometheus.DefaultRegisterer when reg is nil. A duplicate prefix on the
// same registry panics.
func New(prefix string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	prefix = MetricName(prefix)
	factory := promauto.With(reg)
	name := func(suffix string) string { return prefix + "_" + suffix }

	return &PrometheusMetrics{
		prefix: prefix,
		processedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("processed_total"),
			Help: "Items processed, by outcome.",
		}, []string{"status", "type"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("errors_total"),
			Help: "Failures, by error type.",
		}, []string{"error_type", "operation"}),
		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("duration_seconds"),
			Help:    "Operation duration.",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		fileSizeBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("file_size_bytes"),
			Help:    "Size of stored artifacts.",
			Buckets: sizeBuckets,
		}, []string{"file_type"}),
		inProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: name("in_progress"),
			Help: "Operations currently running.",
		}, []string{"operation"}),
	}
}

// Prefix returns the sanitised metric prefix.
func (m *PrometheusMetrics) Prefix() string { return m.prefix }

func (m *PrometheusMetrics) RecordSuccess(op string) {
	m.processedTotal.WithLabelValues("success", op).Inc()
}

// RecordError counts op as processed with status="error" and adds it to
// errors_total under errorType.
func (m *PrometheusMetrics) RecordError(op, errorType string) {
	m.processedTotal.WithLabelValues("error", op).Inc()
	m.errorsTotal.WithLabelValues(errorType, op).Inc()
}

func (m *PrometheusMetrics) RecordDuration(op string, seconds float64) {
	m.durationSeconds.WithLabelValues(op).Observe(seconds)
}

func (m *PrometheusMetrics) RecordFileSize(op string, bytes int64) {
	m.fileSizeBytes.WithLabelValues(op).Observe(float64(bytes))
}

func (m *PrometheusMetrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}
