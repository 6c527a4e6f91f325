package repositories

import (
	"context"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

// EmbeddingIndexRepository stores one embedding record per patient.
// Records are only ever upserted or deleted whole.
type EmbeddingIndexRepository interface {
	// Get retrieves a patient's record; NOT_FOUND when the patient is not indexed
	Get(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error)

	// Upsert inserts or replaces a patient's record
	Upsert(ctx context.Context, record *entities.PatientEmbeddingRecord) error

	// Search returns at most topK records ordered by descending cosine similarity
	Search(ctx context.Context, vector []float32, topK int) ([]entities.EmbeddingMatch, error)

	// Delete removes a patient's record; deleting an absent record is not an error
	Delete(ctx context.Context, patientID string) error
}
