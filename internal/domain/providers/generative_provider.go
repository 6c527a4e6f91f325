package providers

import (
	"context"
	"encoding/json"
)

// GenerationRequest is a single prompt for a generative language model
type GenerationRequest struct {
	// Name identifies the schema in provider requests and metrics.
	Name         string
	SystemPrompt string
	UserPrompt   string
	// Schema, when set, is the JSON schema the answer must follow.
	Schema          map[string]interface{}
	Temperature     float64
	MaxOutputTokens int
}

// GenerativeProvider turns a prompt into a JSON object.
//
// Implementations return the first JSON object found in the model output.
// Unreachable backends yield SERVICE_UNAVAILABLE errors; output with no JSON
// object yields MALFORMED_RESPONSE.
type GenerativeProvider interface {
	GenerateJSON(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
}

// EmbeddingProvider turns text into a dense vector
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
