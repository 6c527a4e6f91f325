package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
)

// DefaultK is the cutoff used when the runner is created without one
const DefaultK = 10

// Retriever is the retrieval surface under evaluation
type Retriever interface {
	Retrieve(ctx context.Context, query entities.RetrievalQuery) (*entities.RetrievalOutcome, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	retriever Retriever
	k         int
}

func NewRunner(retriever Retriever, k int) *Runner {
	if k <= 0 {
		k = DefaultK
	}
	return &Runner{retriever: retriever, k: k}
}

// Run evaluates every query in order. A failing query is recorded and
// counted, never fatal.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		K:            r.k,
		TotalQueries: len(queries),
		ByType:       make(map[entities.QueryType]*TypeSummary),
		ByPath:       make(map[entities.RetrievalPath]int),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := r.evaluate(ctx, gq)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, gq GoldenQuery) EvalResult {
	mode := gq.Mode
	if mode == "" {
		mode = entities.RetrievalModeReport
	}
	query := entities.RetrievalQuery{Text: gq.Query, TopK: r.k, Mode: mode}
	ctx = observability.ContextWithFields(ctx, map[string]string{"golden_query": gq.ID})

	start := time.Now()
	outcome, err := r.retriever.Retrieve(ctx, query)
	result := EvalResult{
		QueryID:      gq.ID,
		Query:        gq.Query,
		ExpectedType: gq.ExpectedType,
		Latency:      time.Since(start),
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Golden query failed")
		result.Err = err.Error()
		return result
	}

	ids := outcome.PatientIDs()
	result.ActualType = outcome.Classification.Type
	result.Status = outcome.Status
	result.Path = outcome.Path
	result.TypeCorrect = result.ActualType == gq.ExpectedType
	result.StatusCorrect = outcome.Status == gq.WantStatus()
	result.ResultCount = len(ids)
	result.RetrievedIDs = ids

	if len(gq.ExpectedPatientIDs) > 0 {
		result.Scored = true
		result.RecallAtK = RecallAtK(gq.ExpectedPatientIDs, ids, r.k)
		result.MRRAtK = MRRAtK(gq.ExpectedPatientIDs, ids, r.k)
		result.PrecisionAtK = PrecisionAtK(gq.ExpectedPatientIDs, ids, r.k)
	}
	return result
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgLatency += res.Latency
	if res.Err != "" {
		s.FailedQueries++
		return
	}

	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}
	if res.TypeCorrect {
		s.ClassificationAccuracy++
	}
	if res.StatusCorrect {
		s.StatusAccuracy++
	}
	s.ByPath[res.Path]++

	if _, ok := s.ByType[res.ExpectedType]; !ok {
		s.ByType[res.ExpectedType] = &TypeSummary{}
	}
	ts := s.ByType[res.ExpectedType]
	ts.Count++
	if res.TypeCorrect {
		ts.Correct++
	}

	if !res.Scored {
		return
	}
	s.ScoredQueries++
	s.AvgRecallAtK += res.RecallAtK
	s.AvgMRRAtK += res.MRRAtK
	s.AvgPrecisionAtK += res.PrecisionAtK
	ts.Scored++
	ts.AvgRecallAtK += res.RecallAtK
	ts.AvgMRRAtK += res.MRRAtK
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}
	if answered := s.TotalQueries - s.FailedQueries; answered > 0 {
		n := float64(answered)
		s.ClassificationAccuracy /= n
		s.StatusAccuracy /= n
	}
	if s.ScoredQueries > 0 {
		n := float64(s.ScoredQueries)
		s.AvgRecallAtK /= n
		s.AvgMRRAtK /= n
		s.AvgPrecisionAtK /= n
	}

	for _, ts := range s.ByType {
		if ts.Scored > 0 {
			n := float64(ts.Scored)
			ts.AvgRecallAtK /= n
			ts.AvgMRRAtK /= n
		}
	}
}
