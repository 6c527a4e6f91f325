package evaluation

import "fmt"

// GuardrailConfig sets the minimum quality an evaluation run must reach.
// Zero values disable the corresponding check.
type GuardrailConfig struct {
	MinRecallAtK              float64
	MinMRRAtK                 float64
	MinClassificationAccuracy float64
	MaxFailedQueries          int
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxFailedQueries < 0 {
		config.MaxFailedQueries = 0
	}
	return &Guardrails{config: config}
}

// Check returns one message per violated threshold
func (g *Guardrails) Check(s *EvalSummary) []string {
	var violations []string
	if s == nil {
		return []string{"no evaluation summary"}
	}
	if s.ScoredQueries > 0 && s.AvgRecallAtK < g.config.MinRecallAtK {
		violations = append(violations, fmt.Sprintf("recall@%d %.3f below %.3f", s.K, s.AvgRecallAtK, g.config.MinRecallAtK))
	}
	if s.ScoredQueries > 0 && s.AvgMRRAtK < g.config.MinMRRAtK {
		violations = append(violations, fmt.Sprintf("mrr@%d %.3f below %.3f", s.K, s.AvgMRRAtK, g.config.MinMRRAtK))
	}
	if s.ClassificationAccuracy < g.config.MinClassificationAccuracy {
		violations = append(violations, fmt.Sprintf("classification accuracy %.3f below %.3f", s.ClassificationAccuracy, g.config.MinClassificationAccuracy))
	}
	if s.FailedQueries > g.config.MaxFailedQueries {
		violations = append(violations, fmt.Sprintf("%d failed queries, at most %d allowed", s.FailedQueries, g.config.MaxFailedQueries))
	}
	return violations
}

// Passed reports whether the summary clears every threshold
func (g *Guardrails) Passed(s *EvalSummary) bool {
	return len(g.Check(s)) == 0
}
