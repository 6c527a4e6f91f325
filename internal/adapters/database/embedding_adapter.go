package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/pgvector/pgvector-go"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

const embeddingTable = "patient_embeddings"

// EmbeddingAdapter implements EmbeddingIndexRepository on a pgvector table
type EmbeddingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmbeddingAdapter creates a new pgvector embedding adapter
func NewEmbeddingAdapter(client *postgres.Client) repositories.EmbeddingIndexRepository {
	return newEmbeddingAdapter(client)
}

func newEmbeddingAdapter(client *postgres.Client) *EmbeddingAdapter {
	return &EmbeddingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// EnsureEmbeddingSchema creates the vector extension, the embedding table and
// its cosine index when they are missing
func EnsureEmbeddingSchema(ctx context.Context, client *postgres.Client, dimensions int) error {
	if dimensions <= 0 {
		return apperrors.NewValidationError("embedding dimensions must be positive")
	}
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			patient_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`, embeddingTable, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, embeddingTable, embeddingTable),
	}
	for _, stmt := range statements {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError("failed to prepare embedding schema", err)
		}
	}
	return nil
}

// Get retrieves a patient's embedding record
func (a *EmbeddingAdapter) Get(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error) {
	query, args, err := a.db.Select("patient_id", "content", "embedding", "last_updated").
		From(embeddingTable).
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var (
		record entities.PatientEmbeddingRecord
		vector pgvector.Vector
	)
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&record.PatientID, &record.Content, &vector, &record.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("embedding for patient %s not found", patientID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get embedding", err)
	}
	record.Vector = vector.Slice()
	return &record, nil
}

// Upsert inserts or replaces a patient's embedding record
func (a *EmbeddingAdapter) Upsert(ctx context.Context, record *entities.PatientEmbeddingRecord) error {
	if record == nil || record.PatientID == "" {
		return apperrors.NewValidationError("embedding record requires a patient id")
	}

	query, args, err := a.db.Insert(embeddingTable).
		Prepared(true).
		Rows(goqu.Record{
			"patient_id":   record.PatientID,
			"content":      record.Content,
			"embedding":    pgvector.NewVector(record.Vector),
			"last_updated": record.LastUpdated,
		}).
		OnConflict(goqu.DoUpdate("patient_id", goqu.Record{
			"content":      goqu.I("excluded.content"),
			"embedding":    goqu.I("excluded.embedding"),
			"last_updated": goqu.I("excluded.last_updated"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert embedding", err)
	}
	return nil
}

// Search returns the topK records nearest to vector by cosine distance
func (a *EmbeddingAdapter) Search(ctx context.Context, vector []float32, topK int) ([]entities.EmbeddingMatch, error) {
	if topK <= 0 || len(vector) == 0 {
		return []entities.EmbeddingMatch{}, nil
	}
	v := pgvector.NewVector(vector)

	query, args, err := a.db.Select(
		"patient_id",
		"content",
		goqu.L("1 - (embedding <=> ?)", v).As("similarity"),
	).
		From(embeddingTable).
		Prepared(true).
		Order(goqu.L("embedding <=> ?", v).Asc()).
		Limit(uint(topK)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewServiceUnavailableError("embedding search failed", err)
	}
	defer rows.Close()

	matches := make([]entities.EmbeddingMatch, 0, topK)
	for rows.Next() {
		var m entities.EmbeddingMatch
		if err := rows.Scan(&m.PatientID, &m.Content, &m.Similarity); err != nil {
			return nil, apperrors.NewInternalError("failed to scan embedding match", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate embedding matches", err)
	}
	return matches, nil
}

// Delete removes a patient's embedding record
func (a *EmbeddingAdapter) Delete(ctx context.Context, patientID string) error {
	query, args, err := a.db.Delete(embeddingTable).
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete embedding", err)
	}
	return nil
}
