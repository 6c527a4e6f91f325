package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query entities.RetrievalQuery) (*entities.RetrievalOutcome, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RetrievalOutcome), args.Error(1)
}

func outcome(status entities.RetrievalStatus, path entities.RetrievalPath, qt entities.QueryType, ids ...string) *entities.RetrievalOutcome {
	o := &entities.RetrievalOutcome{
		Status:         status,
		Path:           path,
		Classification: entities.ClassificationResult{Type: qt, Confidence: entities.ClassificationConfidenceHigh},
		Results:        []entities.RetrievalResult{},
	}
	for _, id := range ids {
		o.Results = append(o.Results, entities.RetrievalResult{PatientID: id})
	}
	return o
}

func TestRunner_Run(t *testing.T) {
	retriever := new(MockRetriever)
	queries := []GoldenQuery{
		{ID: "q1", Query: "patients with hypertension", ExpectedType: entities.QueryTypeConditionSpecific, ExpectedPatientIDs: []string{"p1", "p2"}},
		{ID: "q2", Query: "all patients", ExpectedType: entities.QueryTypePopulation},
		{ID: "q3", Query: "patients with gout", ExpectedType: entities.QueryTypeConditionSpecific},
	}

	retriever.On("Retrieve", mock.Anything, entities.RetrievalQuery{Text: "patients with hypertension", TopK: 5, Mode: entities.RetrievalModeReport}).
		Return(outcome(entities.RetrievalStatusMatched, entities.RetrievalPathKeywordValidated, entities.QueryTypeConditionSpecific, "p9", "p1"), nil)
	retriever.On("Retrieve", mock.Anything, mock.MatchedBy(func(q entities.RetrievalQuery) bool { return q.Text == "all patients" })).
		Return(outcome(entities.RetrievalStatusPopulation, entities.RetrievalPathPopulation, entities.QueryTypePopulation, "p1", "p2", "p9"), nil)
	retriever.On("Retrieve", mock.Anything, mock.MatchedBy(func(q entities.RetrievalQuery) bool { return q.Text == "patients with gout" })).
		Return(outcome(entities.RetrievalStatusNoEvidence, entities.RetrievalPathKeywordFallback, entities.QueryTypeConditionSpecific), nil)

	summary, err := NewRunner(retriever, 5).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 0, summary.FailedQueries)
	assert.Equal(t, 1, summary.ScoredQueries)
	assert.InDelta(t, 0.5, summary.AvgRecallAtK, 1e-9)
	assert.InDelta(t, 0.5, summary.AvgMRRAtK, 1e-9)
	assert.InDelta(t, 0.5, summary.AvgPrecisionAtK, 1e-9)
	assert.InDelta(t, 1.0, summary.ClassificationAccuracy, 1e-9)
	assert.InDelta(t, 1.0, summary.StatusAccuracy, 1e-9)
	assert.Equal(t, 2, summary.QueriesWithHits)
	assert.Equal(t, 1, summary.ByPath[entities.RetrievalPathPopulation])
	assert.Equal(t, 2, summary.ByType[entities.QueryTypeConditionSpecific].Count)
	assert.Len(t, summary.Results, 3)
	assert.Equal(t, []string{"p9", "p1"}, summary.Results[0].RetrievedIDs)
	retriever.AssertExpectations(t)
}

func TestRunner_RecordsFailures(t *testing.T) {
	retriever := new(MockRetriever)
	retriever.On("Retrieve", mock.Anything, mock.Anything).Return(nil, errors.New("index offline")).Once()
	retriever.On("Retrieve", mock.Anything, mock.Anything).
		Return(outcome(entities.RetrievalStatusMatched, entities.RetrievalPathSemanticTrusted, entities.QueryTypePopulation, "p1"), nil).Once()

	queries := []GoldenQuery{
		{ID: "q1", Query: "asthma", ExpectedType: entities.QueryTypeConditionSpecific, ExpectedPatientIDs: []string{"p1"}},
		{ID: "q2", Query: "diabetes", ExpectedType: entities.QueryTypeConditionSpecific, ExpectedPatientIDs: []string{"p1"}},
	}

	summary, err := NewRunner(retriever, 0).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, DefaultK, summary.K)
	assert.Equal(t, 1, summary.FailedQueries)
	assert.Equal(t, "index offline", summary.Results[0].Err)
	assert.InDelta(t, 1.0, summary.AvgRecallAtK, 1e-9)
	assert.InDelta(t, 0.0, summary.ClassificationAccuracy, 1e-9)
	assert.False(t, summary.Results[1].TypeCorrect)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(new(MockRetriever), 5).Run(ctx, []GoldenQuery{{ID: "q1", Query: "x"}})

	assert.ErrorIs(t, err, context.Canceled)
}
