package common

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// ExtractionMetrics records telemetry for the extraction engine.  Every
// extractor reports through it so the backing implementation (Prometheus,
// in-memory, noop) can be swapped without touching extraction code.
type ExtractionMetrics interface {
	// RecordExtraction records one extractor run over one document.
	RecordExtraction(ctx context.Context, extractor string, recordCount int, durationMs float64)

	// RecordTaggerFallback records a switch from the entity tagger to the lexicon.
	RecordTaggerFallback(ctx context.Context, reason string)

	// RecordBatch records one batch run.
	RecordBatch(ctx context.Context, total, failed int, durationMs float64)
}

// Extractor names used as metric labels.
const (
	ExtractorCompound    = "compound"
	ExtractorTrial       = "trial"
	ExtractorInteraction = "interaction"
)

// Fallback reasons used as metric labels.
const (
	FallbackNoTagger   = "no_tagger"
	FallbackInitFailed = "init_failed"
	FallbackTagError   = "tag_error"
)

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsNamespace = "cureanalytics"

var defaultLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

type prometheusExtractionMetrics struct {
	extractions *prometheus.CounterVec
	records     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	fallbacks   *prometheus.CounterVec
	batchItems  *prometheus.CounterVec
	batchTime   prometheus.Histogram
}

// NewPrometheusExtractionMetrics registers the extraction collectors with
// registerer.  Collectors that are already registered are reused.
func NewPrometheusExtractionMetrics(registerer prometheus.Registerer) (ExtractionMetrics, error) {
	m := &prometheusExtractionMetrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Extractor runs by extractor.",
		}, []string{"extractor"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "extraction",
			Name:      "records_total",
			Help:      "Records emitted by extractor.",
		}, []string{"extractor"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "extraction",
			Name:      "duration_ms",
			Help:      "Extractor latency in milliseconds.",
			Buckets:   defaultLatencyBuckets,
		}, []string{"extractor"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "extraction",
			Name:      "tagger_fallbacks_total",
			Help:      "Switches from the entity tagger to the lexicon by reason.",
		}, []string{"reason"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items by outcome.",
		}, []string{"outcome"}),
		batchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "batch",
			Name:      "duration_ms",
			Help:      "Batch wall-clock time in milliseconds.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 30000},
		}),
	}

	var err error
	if m.extractions, err = registerOrReuse(registerer, m.extractions); err != nil {
		return nil, err
	}
	if m.records, err = registerOrReuse(registerer, m.records); err != nil {
		return nil, err
	}
	if m.latency, err = registerOrReuse(registerer, m.latency); err != nil {
		return nil, err
	}
	if m.fallbacks, err = registerOrReuse(registerer, m.fallbacks); err != nil {
		return nil, err
	}
	if m.batchItems, err = registerOrReuse(registerer, m.batchItems); err != nil {
		return nil, err
	}
	if m.batchTime, err = registerOrReuse(registerer, m.batchTime); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

func (m *prometheusExtractionMetrics) RecordExtraction(_ context.Context, extractor string, n int, durationMs float64) {
	m.extractions.WithLabelValues(extractor).Inc()
	m.records.WithLabelValues(extractor).Add(float64(n))
	m.latency.WithLabelValues(extractor).Observe(durationMs)
}

func (m *prometheusExtractionMetrics) RecordTaggerFallback(_ context.Context, reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *prometheusExtractionMetrics) RecordBatch(_ context.Context, total, failed int, durationMs float64) {
	m.batchItems.WithLabelValues("success").Add(float64(total - failed))
	m.batchItems.WithLabelValues("failed").Add(float64(failed))
	m.batchTime.Observe(durationMs)
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopExtractionMetrics struct{}

// NewNoopExtractionMetrics returns metrics that record nothing.
func NewNoopExtractionMetrics() ExtractionMetrics { return noopExtractionMetrics{} }

func (noopExtractionMetrics) RecordExtraction(context.Context, string, int, float64) {}
func (noopExtractionMetrics) RecordTaggerFallback(context.Context, string)           {}
func (noopExtractionMetrics) RecordBatch(context.Context, int, int, float64)         {}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// InMemoryExtractionMetrics keeps counters in memory so tests can assert on them.
type InMemoryExtractionMetrics struct {
	mu        sync.Mutex
	runs      map[string]int
	records   map[string]int
	fallbacks map[string]int
	batches   int
	failed    int
}

// NewInMemoryExtractionMetrics returns an empty in-memory recorder.
func NewInMemoryExtractionMetrics() *InMemoryExtractionMetrics {
	return &InMemoryExtractionMetrics{
		runs:      make(map[string]int),
		records:   make(map[string]int),
		fallbacks: make(map[string]int),
	}
}

func (m *InMemoryExtractionMetrics) RecordExtraction(_ context.Context, extractor string, n int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[extractor]++
	m.records[extractor] += n
}

func (m *InMemoryExtractionMetrics) RecordTaggerFallback(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[reason]++
}

func (m *InMemoryExtractionMetrics) RecordBatch(_ context.Context, _, failed int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.failed += failed
}

// Runs returns how many times extractor ran.
func (m *InMemoryExtractionMetrics) Runs(extractor string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[extractor]
}

// Records returns the total records extractor emitted.
func (m *InMemoryExtractionMetrics) Records(extractor string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[extractor]
}

// Fallbacks returns how many fallbacks were recorded for reason.
func (m *InMemoryExtractionMetrics) Fallbacks(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbacks[reason]
}

// Batches returns the number of batches and the total failed items.
func (m *InMemoryExtractionMetrics) Batches() (batches, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches, m.failed
}
