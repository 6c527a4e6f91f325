package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/adapters/search"
	"github.com/zatekoja/clinicalcore/internal/application/services"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/pkg/config"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("INDEX_BACKEND", "memory")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestConfigMapping_Defaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, utils.DefaultVitalBounds(), VitalBounds(cfg.Pipeline))
	assert.Equal(t, services.DefaultRetrieverConfig(), RetrieverConfig(cfg.Pipeline))
	assert.Equal(t, services.DefaultExtractionConfig(), ExtractionConfig(cfg.Pipeline))
}

func TestIndex_MemoryBackend(t *testing.T) {
	cfg := defaultConfig(t)

	index, err := Index(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &search.ChromemEmbeddingAdapter{}, index)
}

func TestIndex_PostgresRequiresConnection(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Index.Backend = config.IndexBackendPostgres

	_, err := Index(context.Background(), cfg, nil)

	assert.Error(t, err)
}

func TestIndex_UnknownBackend(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Index.Backend = "faiss"

	_, err := Index(context.Background(), cfg, nil)

	assert.Error(t, err)
}

func TestGenerative_WithoutKey(t *testing.T) {
	assert.Nil(t, Generative(defaultConfig(t)))
}

func TestTermDictionary_MissingFileIsEmpty(t *testing.T) {
	assert.Equal(t, 0, TermDictionary("/nonexistent/terms.json").Len())
	assert.Equal(t, 0, TermDictionary("").Len())
}

func TestPipeline_WithoutGenerativeService(t *testing.T) {
	cfg := defaultConfig(t)
	ctx := context.Background()

	extractor := Extractor(cfg, nil, nil)
	result, err := extractor.Extract(ctx, "BP 140/90, denies fever, has headache")
	require.NoError(t, err)
	assert.Equal(t, entities.ExtractionSourcePatternOnly, result.Source)

	classifier := Classifier(cfg, nil, nil, nil)
	verdict := classifier.Classify(ctx, "patients with hypertension")
	assert.True(t, verdict.Fallback)
	assert.Equal(t, entities.QueryTypeConditionSpecific, verdict.Type)
}
