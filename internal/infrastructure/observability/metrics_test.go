package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestPipelineMetrics_Record(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordExtraction(ctx, "hybrid")
	m.RecordExtraction(ctx, "pattern_only")
	m.RecordClassificationFallback(ctx, "unavailable")
	m.RecordRetrieval(ctx, "keyword_validated", "matched")
	m.RecordIndexRefresh(ctx, "unchanged")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(2), sumFor(t, rm, "pipeline.extraction.count"))
	assert.Equal(t, int64(1), sumFor(t, rm, "pipeline.classification.fallback.count"))
	assert.Equal(t, int64(1), sumFor(t, rm, "pipeline.retrieval.count"))
	assert.Equal(t, int64(1), sumFor(t, rm, "pipeline.index.refresh.count"))
}

func TestPipelineMetrics_NilIsNoop(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordExtraction(context.Background(), "hybrid")
		m.RecordRetrieval(context.Background(), "population", "population")
		m.RecordCacheMiss(context.Background(), "query_class")
	})
}
