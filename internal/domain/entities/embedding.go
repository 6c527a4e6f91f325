package entities

import "time"

// PatientEmbeddingRecord is a patient's canonical text and its vector. Only
// the index maintainer writes these.
type PatientEmbeddingRecord struct {
	PatientID   string    `json:"patient_id" db:"patient_id"`
	Content     string    `json:"content" db:"content"`
	Vector      []float32 `json:"-" db:"embedding"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// EmbeddingMatch is one nearest-neighbour hit from the embedding index
type EmbeddingMatch struct {
	PatientID  string  `json:"patient_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// IndexRefreshOutcome reports what a refresh did
type IndexRefreshOutcome string

const (
	IndexRefreshUpdated   IndexRefreshOutcome = "updated"
	IndexRefreshUnchanged IndexRefreshOutcome = "unchanged"
	IndexRefreshRemoved   IndexRefreshOutcome = "removed"
	IndexRefreshFailed    IndexRefreshOutcome = "failed"
)

// IndexRefreshSummary aggregates a bulk refresh
type IndexRefreshSummary struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}
