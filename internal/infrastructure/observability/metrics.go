package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the counters emitted by the extraction and retrieval
// pipeline. A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	ExtractionCount         metric.Int64Counter
	ClassificationFallbacks metric.Int64Counter
	RetrievalCount          metric.Int64Counter
	IndexRefreshCount       metric.Int64Counter
	CacheHitCount           metric.Int64Counter
	CacheMissCount          metric.Int64Counter
}

// InitMetrics creates pipeline metrics on the global meter provider
func InitMetrics() (*PipelineMetrics, error) {
	return NewPipelineMetrics(otel.Meter(instrumentationName))
}

// NewPipelineMetrics creates pipeline metrics on the given meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	extractionCount, err := meter.Int64Counter(
		"pipeline.extraction.count",
		metric.WithDescription("Number of completed extractions by source"),
	)
	if err != nil {
		return nil, err
	}

	classificationFallbacks, err := meter.Int64Counter(
		"pipeline.classification.fallback.count",
		metric.WithDescription("Number of query classifications that used the conservative fallback"),
	)
	if err != nil {
		return nil, err
	}

	retrievalCount, err := meter.Int64Counter(
		"pipeline.retrieval.count",
		metric.WithDescription("Number of retrievals by resolution path"),
	)
	if err != nil {
		return nil, err
	}

	indexRefreshCount, err := meter.Int64Counter(
		"pipeline.index.refresh.count",
		metric.WithDescription("Number of embedding index refreshes by outcome"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		ExtractionCount:         extractionCount,
		ClassificationFallbacks: classificationFallbacks,
		RetrievalCount:          retrievalCount,
		IndexRefreshCount:       indexRefreshCount,
		CacheHitCount:           cacheHitCount,
		CacheMissCount:          cacheMissCount,
	}, nil
}

// RecordExtraction counts an extraction by source (hybrid or pattern_only)
func (m *PipelineMetrics) RecordExtraction(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ExtractionCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordClassificationFallback counts a fallback classification and why it happened
func (m *PipelineMetrics) RecordClassificationFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ClassificationFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRetrieval counts a retrieval by path and terminal status
func (m *PipelineMetrics) RecordRetrieval(ctx context.Context, path, status string) {
	if m == nil {
		return
	}
	m.RetrievalCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("status", status),
	))
}

// RecordIndexRefresh counts an index refresh by outcome (updated, unchanged, failed)
func (m *PipelineMetrics) RecordIndexRefresh(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.IndexRefreshCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCacheHit records a cache hit
func (m *PipelineMetrics) RecordCacheHit(ctx context.Context, keyspace string) {
	if m == nil {
		return
	}
	m.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.keyspace", keyspace)))
}

// RecordCacheMiss records a cache miss
func (m *PipelineMetrics) RecordCacheMiss(ctx context.Context, keyspace string) {
	if m == nil {
		return
	}
	m.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.keyspace", keyspace)))
}
