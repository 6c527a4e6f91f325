package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

func TestEmbeddingAdapter_Get(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)
	updated := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM "patient_embeddings" WHERE \("patient_id" = 'p1'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "content", "embedding", "last_updated"}).
			AddRow("p1", "Patient: Ada Lovelace", "[0.5,-0.25,1]", updated))

	record, err := adapter.Get(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Patient: Ada Lovelace", record.Content)
	assert.Equal(t, []float32{0.5, -0.25, 1}, record.Vector)
	assert.Equal(t, updated, record.LastUpdated)
}

func TestEmbeddingAdapter_GetNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	mock.ExpectQuery(`FROM "patient_embeddings"`).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "content", "embedding", "last_updated"}))

	_, err := adapter.Get(context.Background(), "p1")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestEmbeddingAdapter_Upsert(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	mock.ExpectExec(`INSERT INTO "patient_embeddings" .* ON CONFLICT \(patient_id\) DO UPDATE SET`).
		WithArgs("Patient: Ada Lovelace", "[0.1,0.2]", sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Upsert(context.Background(), &entities.PatientEmbeddingRecord{
		PatientID:   "p1",
		Content:     "Patient: Ada Lovelace",
		Vector:      []float32{0.1, 0.2},
		LastUpdated: time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingAdapter_UpsertRequiresPatient(t *testing.T) {
	client, _ := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	err := adapter.Upsert(context.Background(), &entities.PatientEmbeddingRecord{})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestEmbeddingAdapter_Search(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	mock.ExpectQuery(`1 - \(embedding <=> \$1\).*FROM "patient_embeddings" ORDER BY embedding <=> \$2 ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "content", "similarity"}).
			AddRow("a", "Patient: Ada", 0.91).
			AddRow("b", "Patient: Bob", 0.42))

	matches, err := adapter.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].PatientID)
	assert.InDelta(t, 0.91, matches[0].Similarity, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingAdapter_SearchEmptyVector(t *testing.T) {
	client, _ := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	matches, err := adapter.Search(context.Background(), nil, 5)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmbeddingAdapter_Delete(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEmbeddingAdapter(client)

	mock.ExpectExec(`DELETE FROM "patient_embeddings" WHERE \("patient_id" = 'p1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureEmbeddingSchema(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS patient_embeddings .*embedding vector\(1536\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS patient_embeddings_embedding_idx .*vector_cosine_ops`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, database.EnsureEmbeddingSchema(context.Background(), client, 1536))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, database.EnsureEmbeddingSchema(context.Background(), client, 0))
}
