package typesense

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/pkg/config"
)

func TestPatientEmbeddingSchema(t *testing.T) {
	schema := PatientEmbeddingSchema("patients_test", 1536)

	assert.Equal(t, "patients_test", schema.Name)
	require.Len(t, schema.Fields, 4)

	var embedding bool
	for _, f := range schema.Fields {
		if f.Name == "embedding" {
			embedding = true
			assert.Equal(t, "float[]", f.Type)
			require.NotNil(t, f.NumDim)
			assert.Equal(t, 1536, *f.NumDim)
		}
	}
	assert.True(t, embedding)
	assert.Equal(t, "last_updated", *schema.DefaultSortingField)
}

func TestClient_Integration(t *testing.T) {
	url := os.Getenv("TYPESENSE_TEST_URL")
	if url == "" {
		t.Skip("TYPESENSE_TEST_URL not set")
	}

	client, err := NewClient(&config.TypesenseConfig{URL: url, APIKey: os.Getenv("TYPESENSE_TEST_API_KEY")})
	require.NoError(t, err)

	ctx := context.Background()
	collection := "patient_embeddings_it"
	require.NoError(t, client.InitSchema(ctx, collection, 3))
	// second call is a no-op
	require.NoError(t, client.InitSchema(ctx, collection, 3))
	assert.NoError(t, client.DropCollection(ctx, collection))

	assert.Error(t, client.InitSchema(ctx, collection, 0))
}
