package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

var (
	HTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	AnalysisDurationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 5, 30}
	CompoundCountBuckets    = []float64{0, 1, 2, 5, 10, 20, 50}
)

// AppMetrics is the set of service-level metrics.  It satisfies the
// analysis service's Metrics port.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	AnalysesTotal    CounterVec
	AnalysisDuration HistogramVec
	CompoundsFound   HistogramVec
	CacheLookups     CounterVec

	EventsConsumed   CounterVec
	ReprocessedTotal CounterVec

	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// NewAppMetrics registers every application metric on collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "HTTP requests served", "method", "route", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", HTTPDurationBuckets, "method", "route"),
		HTTPActiveRequests:  c.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method"),

		AnalysesTotal:    c.RegisterCounter("analyses_total", "Completed paper analyses", "recommendation"),
		AnalysisDuration: c.RegisterHistogram("analysis_duration_seconds", "Wall time of one paper analysis", AnalysisDurationBuckets, "recommendation"),
		CompoundsFound:   c.RegisterHistogram("analysis_compounds", "Distinct compounds per analysis", CompoundCountBuckets),
		CacheLookups:     c.RegisterCounter("analysis_cache_lookups_total", "Analysis cache lookups", "result"),

		EventsConsumed:   c.RegisterCounter("events_consumed_total", "Bus events handled by the worker", "topic", "status"),
		ReprocessedTotal: c.RegisterCounter("reprocessed_papers_total", "Papers picked up by the reprocess job", "status"),

		HealthCheckStatus: c.RegisterGauge("health_check_status", "Component health (1=up, 0=down)", "component"),
		ErrorsTotal:       c.RegisterCounter("errors_total", "Errors by component", "component", "error_type"),
	}
}

func (m *AppMetrics) RecordAnalysis(level pharma.RecommendationLevel, durationSeconds float64, compounds int) {
	m.AnalysesTotal.WithLabelValues(string(level)).Inc()
	m.AnalysisDuration.WithLabelValues(string(level)).Observe(durationSeconds)
	m.CompoundsFound.WithLabelValues().Observe(float64(compounds))
}

func (m *AppMetrics) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *AppMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *AppMetrics) RecordEvent(topic string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsConsumed.WithLabelValues(topic, status).Inc()
}

func (m *AppMetrics) RecordReprocess(status pharma.ProcessingStatus, n int) {
	m.ReprocessedTotal.WithLabelValues(string(status)).Add(float64(n))
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func (m *AppMetrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
