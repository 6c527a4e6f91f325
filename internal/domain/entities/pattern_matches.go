package entities

// Pattern fields emitted by the rule-based extraction pass
const (
	PatternBloodPressure      = "blood_pressure"
	PatternHeartRate          = "heart_rate"
	PatternTemperature        = "temperature"
	PatternWeight             = "weight"
	PatternHeight             = "height"
	PatternMedications        = "medications"
	PatternAllergies          = "allergies"
	PatternSymptoms           = "symptoms"
	PatternMedicalHistory     = "medical_history"
	PatternDiagnosis          = "diagnosis"
	PatternChiefComplaint     = "chief_complaint"
	PatternNegatedSymptoms    = "negated_symptoms"
	PatternNegatedMedications = "negated_medications"
	PatternNegatedAllergies   = "negated_allergies"
)

// PatternFields lists every field the pattern pass reports, in output order
var PatternFields = []string{
	PatternBloodPressure,
	PatternHeartRate,
	PatternTemperature,
	PatternWeight,
	PatternHeight,
	PatternMedications,
	PatternAllergies,
	PatternSymptoms,
	PatternMedicalHistory,
	PatternDiagnosis,
	PatternChiefComplaint,
	PatternNegatedSymptoms,
	PatternNegatedMedications,
	PatternNegatedAllergies,
}

// PatternMatches maps each pattern field to its raw matches. Every field in
// PatternFields is present; fields that never matched hold an empty slice.
type PatternMatches map[string][]string

// NewPatternMatches returns a PatternMatches with every field initialised
func NewPatternMatches() PatternMatches {
	m := make(PatternMatches, len(PatternFields))
	for _, f := range PatternFields {
		m[f] = []string{}
	}
	return m
}

// First returns the first raw match for field
func (m PatternMatches) First(field string) (string, bool) {
	values := m[field]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Empty reports whether no field matched anything
func (m PatternMatches) Empty() bool {
	for _, values := range m {
		if len(values) > 0 {
			return false
		}
	}
	return true
}
