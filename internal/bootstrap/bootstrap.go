// Package bootstrap wires configuration, clients and adapters into the
// extraction and retrieval services shared by the command binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/adapters/cache"
	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/adapters/search"
	"github.com/zatekoja/clinicalcore/internal/application/services"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/openai"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	"github.com/zatekoja/clinicalcore/pkg/config"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

// VitalBounds maps the configured vital ranges
func VitalBounds(p config.PipelineConfig) utils.VitalBounds {
	return utils.VitalBounds{
		SystolicMax:     p.SystolicMax,
		DiastolicMax:    p.DiastolicMax,
		HeartRateMin:    p.HeartRateMin,
		HeartRateMax:    p.HeartRateMax,
		TemperatureMinF: p.TemperatureMinF,
		TemperatureMaxF: p.TemperatureMaxF,
		WeightMinKg:     p.WeightMinKg,
		WeightMaxKg:     p.WeightMaxKg,
		HeightMinCm:     p.HeightMinCm,
		HeightMaxCm:     p.HeightMaxCm,
	}
}

// ExtractionConfig maps the pipeline settings used by the merge step
func ExtractionConfig(p config.PipelineConfig) services.ExtractionConfig {
	return services.ExtractionConfig{
		PatternOnlyConfidence: p.PatternOnlyConfidence,
		Bounds:                VitalBounds(p),
	}
}

// RetrieverConfig maps the pipeline settings used by retrieval
func RetrieverConfig(p config.PipelineConfig) services.RetrieverConfig {
	return services.RetrieverConfig{
		HighConfidenceThreshold: p.HighConfidenceThreshold,
		InteractiveTopK:         p.InteractiveTopK,
		ReportTopK:              p.ReportTopK,
		HistoryDepth:            p.HistoryDepth,
	}
}

// Telemetry initializes logging, OpenTelemetry when enabled, and the
// pipeline metrics. The returned shutdown func is never nil.
func Telemetry(ctx context.Context, cfg *config.Config) (*observability.PipelineMetrics, func(), error) {
	observability.InitLogger(cfg.App.ServiceName, cfg.App.Env, cfg.App.LogLevel)

	shutdown := func() {}
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		otelShutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			shutdown = func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := otelShutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		shutdown()
		return nil, func() {}, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return metrics, shutdown, nil
}

// Generative returns the OpenAI client, or nil when no API key is
// configured. Callers treat nil as "pattern-only extraction and
// conservative classification".
func Generative(cfg *config.Config) *openai.Client {
	client, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Warn().Err(err).Msg("OpenAI client unavailable, generative passes disabled")
		return nil
	}
	return client
}

// Index opens the configured embedding index backend. pg is only needed for
// the postgres backend.
func Index(ctx context.Context, cfg *config.Config, pg *postgres.Client) (repositories.EmbeddingIndexRepository, error) {
	switch cfg.Index.Backend {
	case config.IndexBackendPostgres:
		if pg == nil {
			return nil, fmt.Errorf("postgres index backend requires a database connection")
		}
		if err := database.EnsureEmbeddingSchema(ctx, pg, cfg.OpenAI.EmbeddingDimensions); err != nil {
			return nil, err
		}
		return database.NewEmbeddingAdapter(pg), nil

	case config.IndexBackendTypesense:
		ts, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			return nil, err
		}
		if err := ts.InitSchema(ctx, cfg.Index.Collection, cfg.OpenAI.EmbeddingDimensions); err != nil {
			return nil, err
		}
		return search.NewTypesenseEmbeddingAdapter(ts, cfg.Index.Collection), nil

	case config.IndexBackendMemory:
		return search.NewChromemEmbeddingAdapter(cfg.Index.MemoryPath, cfg.Index.Collection)
	}
	return nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
}

// TermDictionary loads the synonym dictionary, falling back to an empty one
func TermDictionary(path string) *services.TermDictionary {
	if path == "" {
		return services.NewTermDictionary(nil)
	}
	dict, err := services.LoadTermDictionary(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Term dictionary unavailable, keyword expansion disabled")
		return services.NewTermDictionary(nil)
	}
	log.Debug().Int("terms", dict.Len()).Msg("Term dictionary loaded")
	return dict
}

// Extractor builds the extraction pipeline. A nil generator yields
// pattern-only extraction.
func Extractor(cfg *config.Config, generator *openai.Client, metrics *observability.PipelineMetrics) *services.ExtractionService {
	var schema *services.SchemaExtractor
	if generator != nil {
		schema = services.NewSchemaExtractor(generator)
	}
	return services.NewExtractionService(services.NewPatternExtractor(), schema, ExtractionConfig(cfg.Pipeline), metrics)
}

// Classifier builds the query classifier and attaches the Redis verdict
// cache when rc is available.
func Classifier(cfg *config.Config, generator *openai.Client, rc *redis.Client, metrics *observability.PipelineMetrics) *services.QueryClassifier {
	classifier := services.NewQueryClassifier(generative(generator), metrics)
	if rc != nil && cfg.Pipeline.ClassificationCacheTTL > 0 {
		classifier.SetCache(cache.NewRedisAdapter(rc), cfg.Pipeline.ClassificationCacheTTL)
	}
	return classifier
}

// Retriever builds the evidence retriever over the given index and patients
func Retriever(cfg *config.Config, classifier services.Classifier, generator *openai.Client, index repositories.EmbeddingIndexRepository, patients repositories.PatientRepository, metrics *observability.PipelineMetrics) *services.EvidenceRetriever {
	keywords := services.NewKeywordMatcher(TermDictionary(cfg.Pipeline.TermDictionaryPath))
	return services.NewEvidenceRetriever(classifier, embedding(generator), index, patients, keywords, RetrieverConfig(cfg.Pipeline), metrics)
}

// IndexMaintainer builds the embedding index service
func IndexMaintainer(cfg *config.Config, generator *openai.Client, index repositories.EmbeddingIndexRepository, patients repositories.PatientRepository, metrics *observability.PipelineMetrics) *services.EmbeddingIndexService {
	return services.NewEmbeddingIndexService(patients, index, embedding(generator), cfg.Pipeline.HistoryDepth, metrics)
}

// a nil *openai.Client must become a nil interface, not a typed nil
func generative(c *openai.Client) providers.GenerativeProvider {
	if c == nil {
		return nil
	}
	return c
}

func embedding(c *openai.Client) providers.EmbeddingProvider {
	if c == nil {
		return nil
	}
	return c
}
