package entities

// RetrievalMode selects retrieval defaults for the caller
type RetrievalMode string

const (
	// RetrievalModeInteractive serves chat-style lookups: small result sets and
	// patient-name resolution.
	RetrievalModeInteractive RetrievalMode = "interactive"
	// RetrievalModeReport serves report generation: larger result sets, no
	// name resolution.
	RetrievalModeReport RetrievalMode = "report"
)

// RetrievalStatus is the terminal state of a retrieval
type RetrievalStatus string

const (
	RetrievalStatusPopulation RetrievalStatus = "population"
	RetrievalStatusMatched    RetrievalStatus = "matched"
	RetrievalStatusNoEvidence RetrievalStatus = "no_evidence"
)

// RetrievalPath records how the final patient set was decided
type RetrievalPath string

const (
	RetrievalPathPopulation       RetrievalPath = "population"
	RetrievalPathSemanticTrusted  RetrievalPath = "semantic_trusted"
	RetrievalPathKeywordValidated RetrievalPath = "keyword_validated"
	RetrievalPathKeywordFallback  RetrievalPath = "keyword_fallback"
	RetrievalPathNameMatch        RetrievalPath = "name_match"

	// RetrievalPathSemanticUnvalidated marks below-threshold semantic hits
	// kept because the query left no keywords to validate them against.
	RetrievalPathSemanticUnvalidated RetrievalPath = "semantic_unvalidated"
)

// RetrievalQuery is a free-text request for relevant patients
type RetrievalQuery struct {
	Text string        `json:"text"`
	TopK int           `json:"top_k"`
	Mode RetrievalMode `json:"mode"`
	// TargetPatientID pins a specific patient, as if resolved by name.
	TargetPatientID string `json:"target_patient_id,omitempty"`
}

// RetrievalResult is one relevant patient
type RetrievalResult struct {
	PatientID       string  `json:"patient_id"`
	SimilarityScore float64 `json:"similarity_score"`
	ContentSnippet  string  `json:"content_snippet"`
}

// RetrievalOutcome is the ordered, deduplicated relevant-patient set plus the
// decisions that produced it.
type RetrievalOutcome struct {
	Status         RetrievalStatus      `json:"status"`
	Path           RetrievalPath        `json:"path"`
	Classification ClassificationResult `json:"classification"`
	MeanSimilarity float64              `json:"mean_similarity"`
	Keywords       []string             `json:"keywords,omitempty"`
	Results        []RetrievalResult    `json:"results"`
}

// PatientIDs returns the result ids in order
func (o *RetrievalOutcome) PatientIDs() []string {
	ids := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		ids = append(ids, r.PatientID)
	}
	return ids
}
