package services

import (
	"context"
	"strings"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

const (
	snippetLength  = 240
	nameMatchScore = 1.0
)

// Classifier decides whether a query is population-wide
type Classifier interface {
	Classify(ctx context.Context, query string) entities.ClassificationResult
}

// RetrieverConfig tunes retrieval
type RetrieverConfig struct {
	// HighConfidenceThreshold is the mean similarity above which semantic
	// hits are trusted without keyword validation.
	HighConfidenceThreshold float64
	InteractiveTopK         int
	ReportTopK              int
	HistoryDepth            int
}

// DefaultRetrieverConfig returns the standard retrieval settings
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		HighConfidenceThreshold: 0.7,
		InteractiveTopK:         5,
		ReportTopK:              20,
		HistoryDepth:            5,
	}
}

// EvidenceRetriever selects the patients relevant to a free-text request.
// It only reads: the index and patient records are never modified.
type EvidenceRetriever struct {
	classifier Classifier
	embedder   providers.EmbeddingProvider
	index      repositories.EmbeddingIndexRepository
	patients   repositories.PatientRepository
	keywords   *KeywordMatcher
	cfg        RetrieverConfig
	metrics    *observability.PipelineMetrics
}

// NewEvidenceRetriever creates a new evidence retriever
func NewEvidenceRetriever(
	classifier Classifier,
	embedder providers.EmbeddingProvider,
	index repositories.EmbeddingIndexRepository,
	patients repositories.PatientRepository,
	keywords *KeywordMatcher,
	cfg RetrieverConfig,
	metrics *observability.PipelineMetrics,
) *EvidenceRetriever {
	if keywords == nil {
		keywords = NewKeywordMatcher(nil)
	}
	return &EvidenceRetriever{
		classifier: classifier,
		embedder:   embedder,
		index:      index,
		patients:   patients,
		keywords:   keywords,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// retrieval carries the state of one Retrieve call
type retrieval struct {
	query    entities.RetrievalQuery
	pool     map[string]*entities.PatientProfile
	order    []*entities.PatientProfile
	keywords []string
	outcome  *entities.RetrievalOutcome
}

// Retrieve runs classification, semantic search, the confidence gate,
// keyword validation, name resolution and the keyword fallback, in that
// order.
func (r *EvidenceRetriever) Retrieve(ctx context.Context, query entities.RetrievalQuery) (*entities.RetrievalOutcome, error) {
	logger := observability.LoggerFromContext(ctx)

	query.Text = strings.TrimSpace(query.Text)
	if query.Text == "" && query.TargetPatientID == "" {
		return nil, apperrors.NewValidationError("query text is required")
	}
	if query.Mode == "" {
		query.Mode = entities.RetrievalModeInteractive
	}
	if query.Mode != entities.RetrievalModeInteractive && query.Mode != entities.RetrievalModeReport {
		return nil, apperrors.NewValidationError("unknown retrieval mode: " + string(query.Mode))
	}
	if query.TopK <= 0 {
		query.TopK = r.cfg.InteractiveTopK
		if query.Mode == entities.RetrievalModeReport {
			query.TopK = r.cfg.ReportTopK
		}
	}

	profiles, err := r.patients.ListProfiles(ctx, r.cfg.HistoryDepth)
	if err != nil {
		return nil, err
	}

	st := &retrieval{
		query: query,
		pool:  make(map[string]*entities.PatientProfile, len(profiles)),
		order: profiles,
		outcome: &entities.RetrievalOutcome{
			Results: []entities.RetrievalResult{},
		},
	}
	for _, p := range profiles {
		st.pool[p.ID()] = p
	}

	st.outcome.Classification = r.classify(ctx, query.Text)
	if st.outcome.Classification.Type == entities.QueryTypePopulation && query.TargetPatientID == "" {
		r.population(st)
		r.finish(ctx, st)
		return st.outcome, nil
	}

	r.semantic(ctx, st)
	r.resolveName(ctx, st)
	if len(st.outcome.Results) == 0 {
		r.keywordFallback(st)
	}

	st.outcome.Results = dedupeResults(st.outcome.Results)
	if len(st.outcome.Results) == 0 {
		st.outcome.Status = entities.RetrievalStatusNoEvidence
	} else {
		st.outcome.Status = entities.RetrievalStatusMatched
	}

	r.finish(ctx, st)
	logger.Debug().
		Str("path", string(st.outcome.Path)).
		Str("status", string(st.outcome.Status)).
		Int("results", len(st.outcome.Results)).
		Float64("mean_similarity", st.outcome.MeanSimilarity).
		Msg("retrieval complete")
	return st.outcome, nil
}

func (r *EvidenceRetriever) classify(ctx context.Context, text string) entities.ClassificationResult {
	if r.classifier == nil || text == "" {
		return entities.FallbackClassification("no classifier")
	}
	return r.classifier.Classify(ctx, text)
}

func (r *EvidenceRetriever) population(st *retrieval) {
	st.outcome.Status = entities.RetrievalStatusPopulation
	st.outcome.Path = entities.RetrievalPathPopulation
	for _, p := range st.order {
		st.outcome.Results = append(st.outcome.Results, entities.RetrievalResult{
			PatientID:      p.ID(),
			ContentSnippet: r.snippet(p),
		})
	}
	st.outcome.Results = dedupeResults(st.outcome.Results)
}

// semantic runs the vector search and the confidence gate. Search failures
// leave the result set empty so the keyword fallback takes over.
func (r *EvidenceRetriever) semantic(ctx context.Context, st *retrieval) {
	logger := observability.LoggerFromContext(ctx)

	matches, err := r.search(ctx, st.query.Text, st.query.TopK)
	if err != nil {
		logger.Warn().Err(err).Msg("semantic search unavailable, falling back to keyword matching")
		return
	}

	var (
		inPool []entities.EmbeddingMatch
		total  float64
	)
	for _, m := range matches {
		if _, ok := st.pool[m.PatientID]; !ok {
			continue
		}
		inPool = append(inPool, m)
		total += m.Similarity
	}
	if len(inPool) == 0 {
		return
	}
	st.outcome.MeanSimilarity = total / float64(len(inPool))

	if st.outcome.MeanSimilarity > r.cfg.HighConfidenceThreshold {
		st.outcome.Path = entities.RetrievalPathSemanticTrusted
		st.outcome.Results = toResults(inPool)
		return
	}

	keywords := r.queryKeywords(st)
	if len(keywords) == 0 {
		logger.Debug().Float64("mean_similarity", st.outcome.MeanSimilarity).Msg("no query keywords, keeping unvalidated semantic hits")
		st.outcome.Path = entities.RetrievalPathSemanticUnvalidated
		st.outcome.Results = toResults(inPool)
		return
	}

	expanded := utils.ExpandKeywords(keywords)
	var validated []entities.EmbeddingMatch
	for _, m := range inPool {
		if matchesExpanded(st.pool[m.PatientID], expanded) {
			validated = append(validated, m)
		}
	}
	st.outcome.Path = entities.RetrievalPathKeywordValidated
	st.outcome.Results = toResults(validated)
}

func (r *EvidenceRetriever) search(ctx context.Context, text string, topK int) ([]entities.EmbeddingMatch, error) {
	if text == "" {
		return nil, nil
	}
	if r.embedder == nil || r.index == nil {
		return nil, apperrors.NewServiceUnavailableError("semantic search is not configured", nil)
	}
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.index.Search(ctx, vector, topK)
}

// resolveName puts an explicitly targeted or named patient first. Only
// interactive requests resolve names from the text.
func (r *EvidenceRetriever) resolveName(ctx context.Context, st *retrieval) {
	var target *entities.PatientProfile
	switch {
	case st.query.TargetPatientID != "":
		target = st.pool[st.query.TargetPatientID]
		if target == nil {
			observability.LoggerFromContext(ctx).Warn().Msg("target patient is not in the population")
		}
	case st.query.Mode == entities.RetrievalModeInteractive:
		target = matchPatientName(st.query.Text, st.order)
	}
	if target == nil {
		return
	}

	resolved := entities.RetrievalResult{
		PatientID:       target.ID(),
		SimilarityScore: nameMatchScore,
	}
	if record, err := r.indexRecord(ctx, target.ID()); err == nil {
		resolved.ContentSnippet = utils.Snippet(record.Content, snippetLength)
	} else {
		resolved.ContentSnippet = r.snippet(target)
	}

	results := []entities.RetrievalResult{resolved}
	for _, res := range st.outcome.Results {
		if res.PatientID != resolved.PatientID {
			results = append(results, res)
		}
	}
	st.outcome.Results = results
	st.outcome.Path = entities.RetrievalPathNameMatch
}

func (r *EvidenceRetriever) indexRecord(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error) {
	if r.index == nil {
		return nil, apperrors.NewNotFoundError("no index configured")
	}
	return r.index.Get(ctx, patientID)
}

// keywordFallback filters the whole population when nothing else matched
func (r *EvidenceRetriever) keywordFallback(st *retrieval) {
	keywords := r.queryKeywords(st)
	matched := r.keywords.Filter(st.order, keywords)
	if len(matched) > st.query.TopK {
		matched = matched[:st.query.TopK]
	}
	st.outcome.Path = entities.RetrievalPathKeywordFallback
	st.outcome.Results = make([]entities.RetrievalResult, 0, len(matched))
	for _, p := range matched {
		st.outcome.Results = append(st.outcome.Results, entities.RetrievalResult{
			PatientID:      p.ID(),
			ContentSnippet: r.snippet(p),
		})
	}
}

func (r *EvidenceRetriever) queryKeywords(st *retrieval) []string {
	if st.keywords == nil {
		st.keywords = r.keywords.Keywords(st.query.Text)
		st.outcome.Keywords = st.keywords
	}
	return st.keywords
}

func (r *EvidenceRetriever) snippet(p *entities.PatientProfile) string {
	return utils.Snippet(BuildPatientContent(p, r.cfg.HistoryDepth), snippetLength)
}

func (r *EvidenceRetriever) finish(ctx context.Context, st *retrieval) {
	r.metrics.RecordRetrieval(ctx, string(st.outcome.Path), string(st.outcome.Status))
}

func toResults(matches []entities.EmbeddingMatch) []entities.RetrievalResult {
	out := make([]entities.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, entities.RetrievalResult{
			PatientID:       m.PatientID,
			SimilarityScore: m.Similarity,
			ContentSnippet:  utils.Snippet(m.Content, snippetLength),
		})
	}
	return out
}

// dedupeResults keeps the first occurrence of each patient
func dedupeResults(results []entities.RetrievalResult) []entities.RetrievalResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]entities.RetrievalResult, 0, len(results))
	for _, res := range results {
		if _, ok := seen[res.PatientID]; ok {
			continue
		}
		seen[res.PatientID] = struct{}{}
		out = append(out, res)
	}
	return out
}

// matchPatientName finds the patient named in text: an exact full-name
// match first, otherwise first and last name each within one edit of
// consecutive query words. Ambiguous fuzzy matches resolve to nobody.
func matchPatientName(text string, profiles []*entities.PatientProfile) *entities.PatientProfile {
	normalized := " " + strings.Join(utils.Tokenize(text), " ") + " "
	for _, p := range profiles {
		name := strings.Join(utils.Tokenize(p.Patient.FullName()), " ")
		if len(strings.Fields(name)) < 2 {
			continue
		}
		if strings.Contains(normalized, " "+name+" ") {
			return p
		}
	}

	words := utils.Tokenize(text)
	var found *entities.PatientProfile
	for _, p := range profiles {
		name := utils.Tokenize(p.Patient.FullName())
		if len(name) < 2 || !fuzzyNameIn(name, words) {
			continue
		}
		if found != nil {
			return nil
		}
		found = p
	}
	return found
}

func fuzzyNameIn(name, words []string) bool {
	for i := 0; i+len(name) <= len(words); i++ {
		ok := true
		for j, part := range name {
			if !utils.WithinEditDistance(part, words[i+j], 1) || len([]rune(part)) < 3 {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
