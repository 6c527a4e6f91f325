package entities

// QueryType distinguishes population-wide requests from condition-specific ones
type QueryType string

const (
	QueryTypePopulation        QueryType = "population"
	QueryTypeConditionSpecific QueryType = "condition-specific"
)

func (t QueryType) Valid() bool {
	return t == QueryTypePopulation || t == QueryTypeConditionSpecific
}

// ClassificationConfidence is the classifier's coarse certainty
type ClassificationConfidence string

const (
	ClassificationConfidenceHigh   ClassificationConfidence = "high"
	ClassificationConfidenceMedium ClassificationConfidence = "medium"
	ClassificationConfidenceLow    ClassificationConfidence = "low"
)

// ClassificationResult is the verdict on a free-text retrieval query
type ClassificationResult struct {
	Type       QueryType                `json:"type"`
	Confidence ClassificationConfidence `json:"confidence"`
	Reasoning  string                   `json:"reasoning"`
	// Fallback is set when the verdict came from the conservative default
	// rather than the generative classifier.
	Fallback bool `json:"fallback"`
}

// Valid reports whether both enumerations hold known values
func (c ClassificationResult) Valid() bool {
	if !c.Type.Valid() {
		return false
	}
	switch c.Confidence {
	case ClassificationConfidenceHigh, ClassificationConfidenceMedium, ClassificationConfidenceLow:
		return true
	}
	return false
}

// FallbackClassification is the conservative verdict used whenever the
// classifier cannot produce a usable answer.
func FallbackClassification(reason string) ClassificationResult {
	return ClassificationResult{
		Type:       QueryTypeConditionSpecific,
		Confidence: ClassificationConfidenceLow,
		Reasoning:  reason,
		Fallback:   true,
	}
}
