package common

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExtractionMetrics_Records(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusExtractionMetrics(registry)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordExtraction(ctx, ExtractorCompound, 3, 1.5)
	m.RecordExtraction(ctx, ExtractorCompound, 2, 0.5)
	m.RecordTaggerFallback(ctx, FallbackTagError)

	pm := m.(*prometheusExtractionMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.extractions.WithLabelValues(ExtractorCompound)))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.records.WithLabelValues(ExtractorCompound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.fallbacks.WithLabelValues(FallbackTagError)))
}

func TestPrometheusExtractionMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewPrometheusExtractionMetrics(registry)
	require.NoError(t, err)
	second, err := NewPrometheusExtractionMetrics(registry)
	require.NoError(t, err)

	first.RecordTaggerFallback(context.Background(), FallbackNoTagger)
	second.RecordTaggerFallback(context.Background(), FallbackNoTagger)

	pm := second.(*prometheusExtractionMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.fallbacks.WithLabelValues(FallbackNoTagger)))
}

func TestInMemoryExtractionMetrics(t *testing.T) {
	m := NewInMemoryExtractionMetrics()
	ctx := context.Background()
	m.RecordExtraction(ctx, ExtractorTrial, 2, 1)
	m.RecordExtraction(ctx, ExtractorTrial, 0, 1)
	m.RecordTaggerFallback(ctx, FallbackInitFailed)
	m.RecordBatch(ctx, 4, 1, 10)

	assert.Equal(t, 2, m.Runs(ExtractorTrial))
	assert.Equal(t, 2, m.Records(ExtractorTrial))
	assert.Equal(t, 0, m.Runs(ExtractorInteraction))
	assert.Equal(t, 1, m.Fallbacks(FallbackInitFailed))
	b, f := m.Batches()
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, f)
}

func TestNoopExtractionMetrics_NoPanic(t *testing.T) {
	m := NewNoopExtractionMetrics()
	assert.NotPanics(t, func() {
		m.RecordExtraction(context.Background(), ExtractorCompound, 1, 1)
		m.RecordTaggerFallback(context.Background(), FallbackNoTagger)
		m.RecordBatch(context.Background(), 1, 0, 1)
	})
}
