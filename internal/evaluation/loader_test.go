package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

func TestLoadGoldenQueries_ValidFile(t *testing.T) {
	content := `[
		{"id": "q1", "query": "patients with hypertension", "mode": "report", "expected_type": "condition-specific", "expected_patient_ids": ["p1", "p3"], "difficulty": "easy"},
		{"id": "q2", "query": "summarize all patients", "expected_type": "population", "expected_patient_ids": [], "difficulty": "easy"}
	]`
	path := writeTempFile(t, content)

	queries, err := LoadGoldenQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "q1", queries[0].ID)
	assert.Equal(t, entities.RetrievalModeReport, queries[0].Mode)
	assert.Equal(t, entities.QueryTypeConditionSpecific, queries[0].ExpectedType)
	assert.Equal(t, []string{"p1", "p3"}, queries[0].ExpectedPatientIDs)
	assert.Equal(t, entities.QueryTypePopulation, queries[1].ExpectedType)
}

func TestLoadGoldenQueries_Errors(t *testing.T) {
	_, err := LoadGoldenQueries("/nonexistent/path.json")
	assert.Error(t, err)

	_, err = LoadGoldenQueries(writeTempFile(t, `not valid json`))
	assert.Error(t, err)
}

func TestLoadGoldenQueries_EmptyArray(t *testing.T) {
	queries, err := LoadGoldenQueries(writeTempFile(t, `[]`))

	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestLoadGoldenQueries_ShippedSet(t *testing.T) {
	queries, err := LoadGoldenQueries(filepath.Join("..", "..", "config", "golden_queries.json"))
	require.NoError(t, err)

	assert.NotEmpty(t, queries)
	assert.NoError(t, ValidateGoldenQueries(queries))
}

func TestGoldenQuery_WantStatus(t *testing.T) {
	tests := []struct {
		name  string
		query GoldenQuery
		want  entities.RetrievalStatus
	}{
		{"population", GoldenQuery{ExpectedType: entities.QueryTypePopulation}, entities.RetrievalStatusPopulation},
		{"matched", GoldenQuery{ExpectedType: entities.QueryTypeConditionSpecific, ExpectedPatientIDs: []string{"p1"}}, entities.RetrievalStatusMatched},
		{"no evidence", GoldenQuery{ExpectedType: entities.QueryTypeConditionSpecific}, entities.RetrievalStatusNoEvidence},
		{"explicit", GoldenQuery{ExpectedType: entities.QueryTypePopulation, ExpectedStatus: entities.RetrievalStatusMatched}, entities.RetrievalStatusMatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.WantStatus())
		})
	}
}

func TestValidateGoldenQueries(t *testing.T) {
	valid := GoldenQuery{ID: "q1", Query: "hypertension", ExpectedType: entities.QueryTypeConditionSpecific, ExpectedPatientIDs: []string{"p1"}, Difficulty: "easy"}

	tests := []struct {
		name    string
		mutate  func(q *GoldenQuery)
		wantErr bool
	}{
		{"valid", func(q *GoldenQuery) {}, false},
		{"missing id", func(q *GoldenQuery) { q.ID = "" }, true},
		{"missing query", func(q *GoldenQuery) { q.Query = "" }, true},
		{"invalid type", func(q *GoldenQuery) { q.ExpectedType = "bad" }, true},
		{"invalid mode", func(q *GoldenQuery) { q.Mode = "batch" }, true},
		{"invalid status", func(q *GoldenQuery) { q.ExpectedStatus = "partial" }, true},
		{"invalid difficulty", func(q *GoldenQuery) { q.Difficulty = "impossible" }, true},
		{"no evidence with patients", func(q *GoldenQuery) { q.ExpectedStatus = entities.RetrievalStatusNoEvidence }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := ValidateGoldenQueries([]GoldenQuery{q})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateGoldenQueries_DuplicateIDs(t *testing.T) {
	queries := []GoldenQuery{
		{ID: "q1", Query: "diabetes", ExpectedType: entities.QueryTypeConditionSpecific, Difficulty: "easy"},
		{ID: "q1", Query: "asthma", ExpectedType: entities.QueryTypeConditionSpecific, Difficulty: "easy"},
	}

	assert.Error(t, ValidateGoldenQueries(queries))
}

func TestValidateGoldenQueries_ReportsEveryProblem(t *testing.T) {
	queries := []GoldenQuery{
		{ID: "q1", ExpectedType: entities.QueryTypeConditionSpecific, Difficulty: "easy"},
		{ID: "q2", Query: "asthma", ExpectedType: "unknown", Difficulty: "easy"},
	}

	err := ValidateGoldenQueries(queries)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "q1: missing query text")
	assert.Contains(t, err.Error(), `q2: expected_type "unknown"`)
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
