package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/clinicalcore/pkg/config"
	"github.com/zatekoja/clinicalcore/pkg/retry"
)

const (
	// PatientEmbeddingsCollection is the default collection for patient vectors
	PatientEmbeddingsCollection = "patient_embeddings"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// PatientEmbeddingSchema describes a collection holding one document per
// patient: the canonical content, its embedding and the refresh time.
func PatientEmbeddingSchema(name string, dimensions int) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{
				Name: "patient_id",
				Type: "string",
			},
			{
				Name:  "content",
				Type:  "string",
				Index: pointer.False(),
			},
			{
				Name:   "embedding",
				Type:   "float[]",
				NumDim: pointer.Int(dimensions),
			},
			{
				Name: "last_updated",
				Type: "int64",
			},
		},
		DefaultSortingField: pointer.String("last_updated"),
	}
}

// InitSchema ensures the patient embedding collection exists
func (c *Client) InitSchema(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}

	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == collection {
			log.Debug().Str("collection", collection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, PatientEmbeddingSchema(collection, dimensions)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", collection).Int("dimensions", dimensions).Msg("Created Typesense collection")
	return nil
}

// DropCollection deletes a collection, used by a full reindex with reset
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if _, err := c.client.Collection(collection).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// NewClientFromTypesense wraps an already configured Typesense client
// without a health check
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}
