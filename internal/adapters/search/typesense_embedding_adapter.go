package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	tsclient "github.com/zatekoja/clinicalcore/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

// TypesenseEmbeddingAdapter stores patient embeddings in a Typesense
// collection and searches them with a vector query
type TypesenseEmbeddingAdapter struct {
	client     *tsclient.Client
	collection string
}

var _ repositories.EmbeddingIndexRepository = (*TypesenseEmbeddingAdapter)(nil)

// NewTypesenseEmbeddingAdapter creates a new Typesense embedding adapter
func NewTypesenseEmbeddingAdapter(client *tsclient.Client, collection string) *TypesenseEmbeddingAdapter {
	if collection == "" {
		collection = tsclient.PatientEmbeddingsCollection
	}
	return &TypesenseEmbeddingAdapter{client: client, collection: collection}
}

// Get retrieves a patient's embedding record
func (a *TypesenseEmbeddingAdapter) Get(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error) {
	doc, err := a.client.Client().Collection(a.collection).Document(patientID).Retrieve(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("embedding for patient %s not found", patientID))
		}
		return nil, apperrors.NewServiceUnavailableError("failed to retrieve embedding", err)
	}
	return recordFromDocument(doc)
}

// Upsert inserts or replaces a patient's embedding record
func (a *TypesenseEmbeddingAdapter) Upsert(ctx context.Context, record *entities.PatientEmbeddingRecord) error {
	if record == nil || record.PatientID == "" {
		return apperrors.NewValidationError("embedding record requires a patient id")
	}
	document := map[string]interface{}{
		"id":           record.PatientID,
		"patient_id":   record.PatientID,
		"content":      record.Content,
		"embedding":    record.Vector,
		"last_updated": record.LastUpdated.Unix(),
	}
	if _, err := a.client.Client().Collection(a.collection).Documents().Upsert(ctx, document); err != nil {
		return apperrors.NewServiceUnavailableError("failed to index embedding", err)
	}
	return nil
}

// Search returns the topK nearest records. Typesense reports cosine
// distance, which is converted back to similarity.
func (a *TypesenseEmbeddingAdapter) Search(ctx context.Context, vector []float32, topK int) ([]entities.EmbeddingMatch, error) {
	if topK <= 0 || len(vector) == 0 {
		return []entities.EmbeddingMatch{}, nil
	}

	params := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		VectorQuery:   pointer.String(vectorQuery(vector, topK)),
		PerPage:       pointer.Int(topK),
		ExcludeFields: pointer.String("embedding"),
	}

	result, err := a.client.Client().Collection(a.collection).Documents().Search(ctx, params)
	if err != nil {
		return nil, apperrors.NewServiceUnavailableError("embedding search failed", err)
	}

	matches := make([]entities.EmbeddingMatch, 0, topK)
	if result.Hits == nil {
		return matches, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		match := entities.EmbeddingMatch{
			PatientID: stringField(doc, "patient_id"),
			Content:   stringField(doc, "content"),
		}
		if match.PatientID == "" {
			match.PatientID = stringField(doc, "id")
		}
		if hit.VectorDistance != nil {
			match.Similarity = 1 - float64(*hit.VectorDistance)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Delete removes a patient's embedding record
func (a *TypesenseEmbeddingAdapter) Delete(ctx context.Context, patientID string) error {
	_, err := a.client.Client().Collection(a.collection).Document(patientID).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return apperrors.NewServiceUnavailableError("failed to delete embedding", err)
	}
	return nil
}

func vectorQuery(vector []float32, k int) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("embedding:([%s], k:%d)", strings.Join(parts, ","), k)
}

func isNotFound(err error) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}

func recordFromDocument(doc map[string]interface{}) (*entities.PatientEmbeddingRecord, error) {
	record := &entities.PatientEmbeddingRecord{
		PatientID: stringField(doc, "patient_id"),
		Content:   stringField(doc, "content"),
	}
	if record.PatientID == "" {
		record.PatientID = stringField(doc, "id")
	}

	if raw, ok := doc["embedding"].([]interface{}); ok {
		record.Vector = make([]float32, 0, len(raw))
		for _, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return nil, apperrors.NewMalformedResponseError("embedding contains a non-numeric value", nil)
			}
			record.Vector = append(record.Vector, float32(f))
		}
	}

	switch ts := doc["last_updated"].(type) {
	case float64:
		record.LastUpdated = time.Unix(int64(ts), 0).UTC()
	case int64:
		record.LastUpdated = time.Unix(ts, 0).UTC()
	}
	return record, nil
}

func stringField(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}
