package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

// ExtractionConfig tunes the merge step
type ExtractionConfig struct {
	PatternOnlyConfidence float64
	Bounds                utils.VitalBounds
}

// DefaultExtractionConfig returns the standard merge settings
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		PatternOnlyConfidence: 0.7,
		Bounds:                utils.DefaultVitalBounds(),
	}
}

// ExtractionService runs both extraction passes and merges them into one
// validated ExtractionResult.
type ExtractionService struct {
	patterns *PatternExtractor
	schema   *SchemaExtractor
	cfg      ExtractionConfig
	metrics  *observability.PipelineMetrics
}

// NewExtractionService creates a new extraction service. schema may be nil,
// in which case every extraction is pattern-only.
func NewExtractionService(patterns *PatternExtractor, schema *SchemaExtractor, cfg ExtractionConfig, metrics *observability.PipelineMetrics) *ExtractionService {
	if patterns == nil {
		patterns = NewPatternExtractor()
	}
	return &ExtractionService{
		patterns: patterns,
		schema:   schema,
		cfg:      cfg,
		metrics:  metrics,
	}
}

// Extract turns a transcript into an ExtractionResult. The pattern and
// schema passes run concurrently. An unavailable or malformed schema pass
// degrades to a pattern-only result; the call fails only when neither pass
// produced anything.
func (s *ExtractionService) Extract(ctx context.Context, transcript string) (*entities.ExtractionResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.NewValidationError("transcript is empty")
	}

	logger := observability.LoggerFromContext(ctx)

	var (
		matches   entities.PatternMatches
		schema    *entities.SchemaExtraction
		schemaErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches = s.patterns.Extract(transcript)
		return nil
	})
	g.Go(func() error {
		// Failures here degrade the result instead of cancelling the group.
		schema, schemaErr = s.schema.Extract(gctx, transcript)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if schemaErr != nil {
		logger.Warn().Err(schemaErr).Msg("schema extraction unavailable, falling back to pattern-only result")
		schema = nil
	}
	if schemaEmpty(schema) && matches.Empty() {
		return nil, apperrors.NewExtractionFailedError("no extraction pass produced usable output", schemaErr)
	}

	result := s.merge(matches, schema)
	s.metrics.RecordExtraction(ctx, string(result.Source))
	logger.Debug().
		Str("source", string(result.Source)).
		Float64("confidence", result.Confidence).
		Int("audit_entries", len(result.Audit)).
		Msg("extraction merged")

	return result, nil
}

// Merge combines a pattern pass and an optional schema pass. Exposed for
// callers that run the passes themselves.
func (s *ExtractionService) Merge(matches entities.PatternMatches, schema *entities.SchemaExtraction) *entities.ExtractionResult {
	return s.merge(matches, schema)
}

func (s *ExtractionService) merge(matches entities.PatternMatches, schema *entities.SchemaExtraction) *entities.ExtractionResult {
	if matches == nil {
		matches = entities.NewPatternMatches()
	}
	m := &merger{bounds: s.cfg.Bounds}

	result := &entities.ExtractionResult{
		Source:     entities.ExtractionSourcePatternOnly,
		Confidence: clamp01(s.cfg.PatternOnlyConfidence),
	}
	if schema != nil {
		result.Source = entities.ExtractionSourceHybrid
		result.Confidence = clamp01(schema.Confidence)
	}

	var sv entities.SchemaVitals
	var sm entities.MedicalInfo
	var sn entities.NegationFlags
	if schema != nil {
		sv, sm, sn = schema.VitalSigns, schema.MedicalInfo, schema.NegationFlags
	}

	result.VitalSigns = m.vitals(sv, matches)

	info := entities.MedicalInfo{
		ChiefComplaint: firstNonEmpty(sm.ChiefComplaint, first(matches[entities.PatternChiefComplaint])),
		Symptoms:       utils.UniqueTerms(preferList(sm.Symptoms, matches[entities.PatternSymptoms])),
		Allergies:      utils.UniqueTerms(preferList(sm.Allergies, matches[entities.PatternAllergies])),
		MedicalHistory: utils.UniqueTerms(preferList(sm.MedicalHistory, matches[entities.PatternMedicalHistory])),
		Diagnosis:      utils.UniqueTerms(preferList(sm.Diagnosis, matches[entities.PatternDiagnosis])),
		TreatmentPlan:  sm.TreatmentPlan,
	}
	if len(sm.CurrentMedications) > 0 {
		info.CurrentMedications = normalizeMedications(sm.CurrentMedications)
	} else {
		for _, raw := range matches[entities.PatternMedications] {
			if med := ParseMedication(raw); med.Name != "" {
				info.CurrentMedications = append(info.CurrentMedications, med)
			}
		}
	}

	negations := entities.NegationFlags{
		NegatedSymptoms:    utils.UniqueTerms(append(append([]string{}, sn.NegatedSymptoms...), matches[entities.PatternNegatedSymptoms]...)),
		NegatedMedications: utils.UniqueTerms(append(append([]string{}, sn.NegatedMedications...), matches[entities.PatternNegatedMedications]...)),
		NegatedAllergies:   utils.UniqueTerms(append(append([]string{}, sn.NegatedAllergies...), matches[entities.PatternNegatedAllergies]...)),
	}

	m.resolveNegations(&info, negations)

	result.MedicalInfo = ensureLists(info)
	result.NegationFlags = ensureNegationLists(negations)
	result.Audit = m.audit
	return result
}

func schemaEmpty(s *entities.SchemaExtraction) bool {
	if s == nil {
		return true
	}
	v := s.VitalSigns
	return v.BloodPressure == nil && v.HeartRate == nil && v.Temperature == nil &&
		v.Weight == nil && v.Height == nil && s.MedicalInfo.Empty() && s.NegationFlags.Empty()
}

// merger carries the audit trail through one merge
type merger struct {
	bounds utils.VitalBounds
	audit  []entities.AuditEntry
}

func (m *merger) reject(field, reason string) {
	for _, a := range m.audit {
		if a.Field == field && a.Reason == reason && a.Term == "" {
			return
		}
	}
	m.audit = append(m.audit, entities.AuditEntry{Field: field, Reason: reason})
}

func (m *merger) suppress(field, term string) {
	m.audit = append(m.audit, entities.AuditEntry{Field: field, Reason: entities.AuditReasonNegated, Term: term})
}

// vitals picks, per field, the first candidate that survives range
// validation: the schema value, then each pattern match.
func (m *merger) vitals(sv entities.SchemaVitals, matches entities.PatternMatches) entities.VitalSigns {
	var out entities.VitalSigns

	bpCandidates := matches[entities.PatternBloodPressure]
	if sv.BloodPressure != nil && strings.TrimSpace(*sv.BloodPressure) != "" {
		bpCandidates = append([]string{*sv.BloodPressure}, bpCandidates...)
	}
	for _, raw := range bpCandidates {
		sys, dia, ok := utils.ParseBloodPressure(raw)
		if !ok {
			m.reject(entities.PatternBloodPressure, entities.AuditReasonUnparseable)
			continue
		}
		if !m.bounds.ValidBloodPressure(sys, dia) {
			m.reject(entities.PatternBloodPressure, entities.AuditReasonOutOfRange)
			continue
		}
		out.BloodPressure = &entities.BloodPressure{Systolic: sys, Diastolic: dia}
		break
	}

	var hrCandidates []float64
	if sv.HeartRate != nil {
		hrCandidates = append(hrCandidates, *sv.HeartRate)
	}
	for _, raw := range matches[entities.PatternHeartRate] {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			hrCandidates = append(hrCandidates, v)
		} else {
			m.reject(entities.PatternHeartRate, entities.AuditReasonUnparseable)
		}
	}
	for _, v := range hrCandidates {
		bpm := int(math.Round(v))
		if !m.bounds.ValidHeartRate(bpm) {
			m.reject(entities.PatternHeartRate, entities.AuditReasonOutOfRange)
			continue
		}
		out.HeartRate = &bpm
		break
	}

	for _, c := range m.measurements(entities.PatternTemperature, sv.Temperature, sv.TemperatureUnit, matches) {
		celsius := utils.TemperatureToCelsius(c.value, c.unit)
		if !m.bounds.ValidTemperatureC(celsius) {
			m.reject(entities.PatternTemperature, entities.AuditReasonOutOfRange)
			continue
		}
		out.TemperatureC = &celsius
		break
	}

	for _, c := range m.measurements(entities.PatternWeight, sv.Weight, sv.WeightUnit, matches) {
		kg := utils.WeightToKg(c.value, c.unit)
		if !m.bounds.ValidWeightKg(kg) {
			m.reject(entities.PatternWeight, entities.AuditReasonOutOfRange)
			continue
		}
		out.WeightKg = &kg
		break
	}

	for _, c := range m.measurements(entities.PatternHeight, sv.Height, sv.HeightUnit, matches) {
		cm := utils.HeightToCm(c.value, c.unit)
		if !m.bounds.ValidHeightCm(cm) {
			m.reject(entities.PatternHeight, entities.AuditReasonOutOfRange)
			continue
		}
		out.HeightCm = &cm
		break
	}

	return out
}

type measurement struct {
	value float64
	unit  string
}

func (m *merger) measurements(field string, schemaValue *float64, schemaUnit string, matches entities.PatternMatches) []measurement {
	var out []measurement
	if schemaValue != nil {
		out = append(out, measurement{value: *schemaValue, unit: schemaUnit})
	}
	for _, raw := range matches[field] {
		v, unit, ok := utils.ParseMeasurement(raw)
		if !ok {
			m.reject(field, entities.AuditReasonUnparseable)
			continue
		}
		out = append(out, measurement{value: v, unit: unit})
	}
	return out
}

// resolveNegations removes every positive finding that matches a negated
// one and records the removal.
func (m *merger) resolveNegations(info *entities.MedicalInfo, negations entities.NegationFlags) {
	info.Symptoms = m.filterTerms(entities.PatternSymptoms, info.Symptoms, negations.NegatedSymptoms)
	info.Allergies = m.filterTerms(entities.PatternAllergies, info.Allergies, negations.NegatedAllergies)

	if info.ChiefComplaint != "" && matchesAny(info.ChiefComplaint, negations.NegatedSymptoms) {
		m.suppress(entities.PatternChiefComplaint, info.ChiefComplaint)
		info.ChiefComplaint = ""
	}

	kept := make([]entities.Medication, 0, len(info.CurrentMedications))
	for _, med := range info.CurrentMedications {
		negated := false
		for _, n := range negations.NegatedMedications {
			if NearEqualMedication(med.Name, n) {
				negated = true
				break
			}
		}
		if negated {
			m.suppress(entities.PatternMedications, med.Name)
			continue
		}
		kept = append(kept, med)
	}
	info.CurrentMedications = kept
}

func (m *merger) filterTerms(field string, positives, negated []string) []string {
	kept := make([]string, 0, len(positives))
	for _, p := range positives {
		if matchesAny(p, negated) {
			m.suppress(field, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func matchesAny(term string, candidates []string) bool {
	for _, c := range candidates {
		if utils.NearEqual(term, c) {
			return true
		}
	}
	return false
}

func normalizeMedications(meds []entities.Medication) []entities.Medication {
	out := make([]entities.Medication, 0, len(meds))
	seen := make(map[string]struct{}, len(meds))
	for _, med := range meds {
		// The model sometimes folds dosage into the name.
		if med.Dosage == "" && med.Frequency == "" {
			med = ParseMedication(med.Name)
		}
		key := MedicationKey(med.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, med)
	}
	return out
}

func preferList(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ensureLists(info entities.MedicalInfo) entities.MedicalInfo {
	if info.Symptoms == nil {
		info.Symptoms = []string{}
	}
	if info.CurrentMedications == nil {
		info.CurrentMedications = []entities.Medication{}
	}
	if info.Allergies == nil {
		info.Allergies = []string{}
	}
	if info.MedicalHistory == nil {
		info.MedicalHistory = []string{}
	}
	if info.Diagnosis == nil {
		info.Diagnosis = []string{}
	}
	return info
}

func ensureNegationLists(n entities.NegationFlags) entities.NegationFlags {
	if n.NegatedSymptoms == nil {
		n.NegatedSymptoms = []string{}
	}
	if n.NegatedMedications == nil {
		n.NegatedMedications = []string{}
	}
	if n.NegatedAllergies == nil {
		n.NegatedAllergies = []string{}
	}
	return n
}
