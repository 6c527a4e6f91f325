package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

const (
	extractionTemperature     = 0.1
	extractionMaxOutputTokens = 1200
)

// SchemaExtractor is the generative extraction pass. It asks the model for a
// fixed JSON schema, primed with few-shot exemplars.
type SchemaExtractor struct {
	generator providers.GenerativeProvider
}

// NewSchemaExtractor creates a new schema extractor
func NewSchemaExtractor(generator providers.GenerativeProvider) *SchemaExtractor {
	return &SchemaExtractor{generator: generator}
}

// Extract returns the parsed structure, or an error when the service is
// unavailable or its answer does not fit the schema.
func (s *SchemaExtractor) Extract(ctx context.Context, transcript string) (*entities.SchemaExtraction, error) {
	if s == nil || s.generator == nil {
		return nil, apperrors.NewServiceUnavailableError("no generative provider configured", nil)
	}

	raw, err := s.generator.GenerateJSON(ctx, providers.GenerationRequest{
		Name:            "clinical_extraction",
		SystemPrompt:    extractionSystemPrompt,
		UserPrompt:      buildExtractionUserPrompt(transcript),
		Schema:          extractionSchema(),
		Temperature:     extractionTemperature,
		MaxOutputTokens: extractionMaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}

	var parsed entities.SchemaExtraction
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.NewMalformedResponseError("extraction answer does not match schema", err)
	}
	sanitizeSchemaExtraction(&parsed)
	return &parsed, nil
}

func sanitizeSchemaExtraction(p *entities.SchemaExtraction) {
	mi := &p.MedicalInfo
	mi.ChiefComplaint = strings.TrimSpace(mi.ChiefComplaint)
	mi.TreatmentPlan = strings.TrimSpace(mi.TreatmentPlan)
	mi.Symptoms = cleanList(mi.Symptoms)
	mi.Allergies = cleanList(mi.Allergies)
	mi.MedicalHistory = cleanList(mi.MedicalHistory)
	mi.Diagnosis = cleanList(mi.Diagnosis)

	meds := make([]entities.Medication, 0, len(mi.CurrentMedications))
	for _, m := range mi.CurrentMedications {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		if m.Name == "" {
			continue
		}
		meds = append(meds, m)
	}
	mi.CurrentMedications = meds

	nf := &p.NegationFlags
	nf.NegatedSymptoms = cleanList(nf.NegatedSymptoms)
	nf.NegatedMedications = cleanList(nf.NegatedMedications)
	nf.NegatedAllergies = cleanList(nf.NegatedAllergies)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
