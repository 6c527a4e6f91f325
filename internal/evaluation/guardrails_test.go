package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardrails_Pass(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinRecallAtK: 0.8, MinMRRAtK: 0.5, MinClassificationAccuracy: 0.9})

	summary := &EvalSummary{K: 10, ScoredQueries: 3, AvgRecallAtK: 0.9, AvgMRRAtK: 0.75, ClassificationAccuracy: 1}

	assert.Empty(t, g.Check(summary))
	assert.True(t, g.Passed(summary))
}

func TestGuardrails_ReportsEveryViolation(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinRecallAtK: 0.8, MinMRRAtK: 0.5, MinClassificationAccuracy: 0.9, MaxFailedQueries: 1})

	summary := &EvalSummary{K: 10, ScoredQueries: 3, AvgRecallAtK: 0.5, AvgMRRAtK: 0.25, ClassificationAccuracy: 0.5, FailedQueries: 2}

	violations := g.Check(summary)
	assert.Len(t, violations, 4)
	assert.Contains(t, violations[0], "recall@10")
	assert.False(t, g.Passed(summary))
}

func TestGuardrails_UnscoredRunSkipsRankingChecks(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinRecallAtK: 0.8, MinMRRAtK: 0.5})

	assert.True(t, g.Passed(&EvalSummary{K: 10}))
	assert.False(t, g.Passed(nil))
}
