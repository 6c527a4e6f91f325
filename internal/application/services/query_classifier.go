package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

const (
	classificationCachePrefix     = "query_class:"
	classificationTemperature     = 0.0
	classificationMaxOutputTokens = 200
)

// QueryClassifier decides whether a request covers the whole population or a
// clinical subset. It never fails: any problem yields the conservative
// condition-specific/low verdict.
type QueryClassifier struct {
	generator providers.GenerativeProvider
	cache     providers.CacheProvider
	cacheTTL  time.Duration
	metrics   *observability.PipelineMetrics
}

// NewQueryClassifier creates a new query classifier
func NewQueryClassifier(generator providers.GenerativeProvider, metrics *observability.PipelineMetrics) *QueryClassifier {
	return &QueryClassifier{
		generator: generator,
		metrics:   metrics,
	}
}

// SetCache enables caching of successful verdicts
func (c *QueryClassifier) SetCache(cache providers.CacheProvider, ttl time.Duration) {
	c.cache = cache
	c.cacheTTL = ttl
}

type classificationAnswer struct {
	Type       string          `json:"type"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// Classify returns the verdict for query
func (c *QueryClassifier) Classify(ctx context.Context, query string) entities.ClassificationResult {
	logger := observability.LoggerFromContext(ctx)

	normalized := utils.NormalizeText(query)
	if normalized == "" {
		c.metrics.RecordClassificationFallback(ctx, "empty_query")
		return entities.FallbackClassification("empty query")
	}

	cacheKey := classificationCachePrefix + normalized
	if cached, ok := c.fromCache(ctx, cacheKey); ok {
		return cached
	}

	if c.generator == nil {
		c.metrics.RecordClassificationFallback(ctx, "unavailable")
		return entities.FallbackClassification("classifier unavailable")
	}

	raw, err := c.generator.GenerateJSON(ctx, providers.GenerationRequest{
		Name:            "query_classification",
		SystemPrompt:    classificationSystemPrompt,
		UserPrompt:      buildClassificationUserPrompt(query),
		Schema:          classificationSchema(),
		Temperature:     classificationTemperature,
		MaxOutputTokens: classificationMaxOutputTokens,
	})
	if err != nil {
		reason := "unavailable"
		if apperrors.IsType(err, apperrors.ErrorTypeMalformedResponse) {
			reason = "malformed"
		}
		logger.Warn().Err(err).Msg("query classification failed, using conservative fallback")
		c.metrics.RecordClassificationFallback(ctx, reason)
		return entities.FallbackClassification("classifier " + reason)
	}

	result, ok := parseClassification(raw)
	if !ok {
		logger.Warn().Msg("query classification answer unusable, using conservative fallback")
		c.metrics.RecordClassificationFallback(ctx, "malformed")
		return entities.FallbackClassification("classifier answer unusable")
	}

	c.toCache(ctx, cacheKey, result)
	return result
}

func parseClassification(raw []byte) (entities.ClassificationResult, bool) {
	var answer classificationAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return entities.ClassificationResult{}, false
	}

	result := entities.ClassificationResult{
		Type:       normalizeQueryType(answer.Type),
		Confidence: normalizeConfidence(answer.Confidence),
		Reasoning:  strings.TrimSpace(answer.Reasoning),
	}
	if !result.Valid() {
		return entities.ClassificationResult{}, false
	}
	return result, true
}

func normalizeQueryType(t string) entities.QueryType {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer("_", "-", " ", "-").Replace(t)
	switch t {
	case "population", "population-wide":
		return entities.QueryTypePopulation
	case "condition-specific", "condition":
		return entities.QueryTypeConditionSpecific
	}
	return entities.QueryType(t)
}

// normalizeConfidence accepts the requested labels and, from models that
// ignore the schema, a numeric score.
func normalizeConfidence(raw json.RawMessage) entities.ClassificationConfidence {
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return entities.ClassificationConfidence(strings.ToLower(strings.TrimSpace(label)))
	}
	var score float64
	if err := json.Unmarshal(raw, &score); err == nil {
		switch {
		case score >= 0.8:
			return entities.ClassificationConfidenceHigh
		case score >= 0.5:
			return entities.ClassificationConfidenceMedium
		case score >= 0:
			return entities.ClassificationConfidenceLow
		}
	}
	return ""
}

func (c *QueryClassifier) fromCache(ctx context.Context, key string) (entities.ClassificationResult, bool) {
	if c.cache == nil {
		return entities.ClassificationResult{}, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil || len(data) == 0 {
		c.metrics.RecordCacheMiss(ctx, classificationCachePrefix)
		return entities.ClassificationResult{}, false
	}
	var cached entities.ClassificationResult
	if err := json.Unmarshal(data, &cached); err != nil || !cached.Valid() || cached.Fallback {
		c.metrics.RecordCacheMiss(ctx, classificationCachePrefix)
		return entities.ClassificationResult{}, false
	}
	c.metrics.RecordCacheHit(ctx, classificationCachePrefix)
	return cached, true
}

func (c *QueryClassifier) toCache(ctx context.Context, key string, result entities.ClassificationResult) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to cache query classification")
	}
}
