package evaluation

import (
	"time"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

// GoldenQuery represents a labeled retrieval request with expected outcomes.
type GoldenQuery struct {
	ID           string                 `json:"id"`
	Query        string                 `json:"query"`
	Mode         entities.RetrievalMode `json:"mode"`
	ExpectedType entities.QueryType     `json:"expected_type"`

	// ExpectedStatus is optional; when empty it is derived from the other
	// expectations.
	ExpectedStatus     entities.RetrievalStatus `json:"expected_status,omitempty"`
	ExpectedPatientIDs []string                 `json:"expected_patient_ids"`
	Difficulty         string                   `json:"difficulty"` // easy, medium, hard
}

// WantStatus returns the terminal state the query should reach
func (q GoldenQuery) WantStatus() entities.RetrievalStatus {
	switch {
	case q.ExpectedStatus != "":
		return q.ExpectedStatus
	case q.ExpectedType == entities.QueryTypePopulation:
		return entities.RetrievalStatusPopulation
	case len(q.ExpectedPatientIDs) == 0:
		return entities.RetrievalStatusNoEvidence
	default:
		return entities.RetrievalStatusMatched
	}
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID       string
	Query         string
	ExpectedType  entities.QueryType
	ActualType    entities.QueryType
	Status        entities.RetrievalStatus
	Path          entities.RetrievalPath
	TypeCorrect   bool
	StatusCorrect bool
	Scored        bool // false when the query has no expected patients
	RecallAtK     float64
	MRRAtK        float64
	PrecisionAtK  float64
	ResultCount   int
	RetrievedIDs  []string
	Latency       time.Duration
	Err           string `json:",omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	K                      int
	TotalQueries           int
	FailedQueries          int
	ScoredQueries          int
	AvgRecallAtK           float64
	AvgMRRAtK              float64
	AvgPrecisionAtK        float64
	ClassificationAccuracy float64
	StatusAccuracy         float64
	AvgLatency             time.Duration
	QueriesWithHits        int // queries that returned at least 1 result
	ByType                 map[entities.QueryType]*TypeSummary
	ByPath                 map[entities.RetrievalPath]int
	Results                []EvalResult
}

// TypeSummary holds metrics grouped by expected query type.
type TypeSummary struct {
	Count        int
	Scored       int
	Correct      int
	AvgRecallAtK float64
	AvgMRRAtK    float64
}
