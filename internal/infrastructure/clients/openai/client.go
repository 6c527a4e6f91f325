package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/pkg/config"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	maxErrorBodyBytes     = 512
)

// Client talks to the OpenAI HTTP API. It implements
// providers.GenerativeProvider and providers.EmbeddingProvider.
type Client struct {
	apiKey         string
	model          string
	embeddingModel string
	dimensions     int
	baseURL        string
	httpClient     *http.Client
	limiter        *tokenBucket
	breaker        *gobreaker.CircuitBreaker
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		apiKey:         cfg.APIKey,
		model:          model,
		embeddingModel: embeddingModel,
		dimensions:     cfg.EmbeddingDimensions,
		baseURL:        baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
		breaker: newBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
	}, nil
}

// newBreaker opens after failures consecutive failed calls, so callers get
// an immediate SERVICE_UNAVAILABLE and take their degraded path instead of
// waiting on a dead backend.
func newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("OpenAI circuit breaker state changed")
		},
	})
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

type embeddingEnvelope struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// GenerateJSON sends a prompt to the responses endpoint and returns the first
// JSON object in the model's answer.
func (c *Client) GenerateJSON(ctx context.Context, req providers.GenerationRequest) (json.RawMessage, error) {
	format := map[string]interface{}{"type": "json_object"}
	if req.Schema != nil {
		name := req.Name
		if name == "" {
			name = "answer"
		}
		format = map[string]interface{}{
			"type":   "json_schema",
			"name":   name,
			"schema": req.Schema,
			"strict": false,
		}
	}

	input := make([]map[string]string, 0, 2)
	if req.SystemPrompt != "" {
		input = append(input, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	input = append(input, map[string]string{"role": "user", "content": req.UserPrompt})

	payload := map[string]interface{}{
		"model":       c.model,
		"input":       input,
		"temperature": req.Temperature,
		"text":        map[string]interface{}{"format": format},
	}
	if req.MaxOutputTokens > 0 {
		payload["max_output_tokens"] = req.MaxOutputTokens
	}

	body, err := c.post(ctx, "/responses", c.model, payload)
	if err != nil {
		return nil, err
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.NewMalformedResponseError("failed to decode openai response", err)
	}

	var text string
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				text = content.Text
				break
			}
		}
		if text != "" {
			break
		}
	}
	if text == "" {
		return nil, apperrors.NewMalformedResponseError("openai response missing output text", nil)
	}

	object, ok := utils.ExtractJSONObject(utils.StripCodeFences(text))
	if !ok || !json.Valid([]byte(object)) {
		return nil, apperrors.NewMalformedResponseError("openai response contained no JSON object", nil)
	}
	return json.RawMessage(object), nil
}

// Embed returns the embedding vector for text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("text to embed is empty")
	}

	payload := map[string]interface{}{
		"model": c.embeddingModel,
		"input": text,
	}
	if c.dimensions > 0 {
		payload["dimensions"] = c.dimensions
	}

	body, err := c.post(ctx, "/embeddings", c.embeddingModel, payload)
	if err != nil {
		return nil, err
	}

	var envelope embeddingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.NewMalformedResponseError("failed to decode embedding response", err)
	}
	if len(envelope.Data) == 0 || len(envelope.Data[0].Embedding) == 0 {
		return nil, apperrors.NewMalformedResponseError("embedding response contained no vector", nil)
	}
	return envelope.Data[0].Embedding, nil
}

// post sends one rate-limited request through the circuit breaker and
// returns the response body of a 2xx answer.
func (c *Client) post(ctx context.Context, path, model string, payload interface{}) ([]byte, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, model, path, 0, 0, err)
			return nil, err
		}
		recordOpenAIRateLimitWait(ctx, model, time.Since(waitStart))
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode openai request", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, path, model, reqBody)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewServiceUnavailableError("openai circuit open", err)
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewServiceUnavailableError("openai request failed", err)
	}
	return result.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, path, model string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordOpenAIMetric(ctx, model, path, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		recordOpenAIMetric(ctx, model, path, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, truncate(body, maxErrorBodyBytes))
		recordOpenAIMetric(ctx, model, path, resp.StatusCode, time.Since(start), statusErr)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apperrors.NewServiceUnavailableError("openai unavailable", statusErr)
		}
		return nil, apperrors.NewExternalError("openai rejected the request", statusErr)
	}

	recordOpenAIMetric(ctx, model, path, resp.StatusCode, time.Since(start), nil)
	return body, nil
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return strings.TrimSpace(string(body))
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	openaiMetricsOnce sync.Once
	openaiMetrics     *openAIMetrics
)

func ensureOpenAIMetrics() *openAIMetrics {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/zatekoja/clinicalcore/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		openaiMetrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return openaiMetrics
}

func recordOpenAIMetric(ctx context.Context, model, endpoint string, statusCode int, duration time.Duration, err error) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
		attribute.String("ai.endpoint", endpoint),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordOpenAIRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
