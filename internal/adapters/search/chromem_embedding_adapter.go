package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

const lastUpdatedKey = "last_updated"

var errNoEmbeddingFunc = errors.New("patient embeddings are computed by the index maintainer")

// ChromemEmbeddingAdapter keeps patient embeddings in an in-process chromem
// collection, optionally persisted to disk
type ChromemEmbeddingAdapter struct {
	mu         sync.RWMutex
	collection *chromem.Collection
}

var _ repositories.EmbeddingIndexRepository = (*ChromemEmbeddingAdapter)(nil)

// NewChromemEmbeddingAdapter opens the collection. An empty path keeps the
// index in memory only.
func NewChromemEmbeddingAdapter(path, collection string) (*ChromemEmbeddingAdapter, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else if db, err = chromem.NewPersistentDB(path, true); err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", path, err)
	}

	if collection == "" {
		collection = "patient_embeddings"
	}
	// vectors always arrive precomputed; the embedding func only guards misuse
	col, err := db.GetOrCreateCollection(collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem collection %s: %w", collection, err)
	}
	return &ChromemEmbeddingAdapter{collection: col}, nil
}

// Get retrieves a patient's embedding record
func (a *ChromemEmbeddingAdapter) Get(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	doc, err := a.collection.GetByID(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("embedding for patient %s not found", patientID))
	}

	record := &entities.PatientEmbeddingRecord{
		PatientID: doc.ID,
		Content:   doc.Content,
		Vector:    doc.Embedding,
	}
	if ts, ok := doc.Metadata[lastUpdatedKey]; ok {
		record.LastUpdated, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return record, nil
}

// Upsert inserts or replaces a patient's embedding record
func (a *ChromemEmbeddingAdapter) Upsert(ctx context.Context, record *entities.PatientEmbeddingRecord) error {
	if record == nil || record.PatientID == "" {
		return apperrors.NewValidationError("embedding record requires a patient id")
	}
	if len(record.Vector) == 0 {
		return apperrors.NewValidationError("embedding record requires a vector")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc := chromem.Document{
		ID:        record.PatientID,
		Content:   record.Content,
		Embedding: append([]float32(nil), record.Vector...),
		Metadata: map[string]string{
			lastUpdatedKey: record.LastUpdated.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := a.collection.AddDocument(ctx, doc); err != nil {
		return apperrors.NewInternalError("failed to store embedding", err)
	}
	return nil
}

// Search returns the topK records nearest to vector by cosine similarity
func (a *ChromemEmbeddingAdapter) Search(ctx context.Context, vector []float32, topK int) ([]entities.EmbeddingMatch, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := a.collection.Count()
	if topK <= 0 || len(vector) == 0 || count == 0 {
		return []entities.EmbeddingMatch{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := a.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("embedding search failed", err)
	}

	matches := make([]entities.EmbeddingMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, entities.EmbeddingMatch{
			PatientID:  r.ID,
			Content:    r.Content,
			Similarity: float64(r.Similarity),
		})
	}
	return matches, nil
}

// Delete removes a patient's embedding record
func (a *ChromemEmbeddingAdapter) Delete(ctx context.Context, patientID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.collection.GetByID(ctx, patientID); err != nil {
		return nil
	}
	if err := a.collection.Delete(ctx, nil, nil, patientID); err != nil {
		return apperrors.NewInternalError("failed to delete embedding", err)
	}
	return nil
}
