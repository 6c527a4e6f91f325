package entities

import "fmt"

// ExtractionSource records which passes contributed to an ExtractionResult
type ExtractionSource string

const (
	ExtractionSourceHybrid      ExtractionSource = "hybrid"
	ExtractionSourcePatternOnly ExtractionSource = "pattern_only"
)

// BloodPressure is a validated systolic/diastolic pair in mmHg
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// String formats the pair as "140/90"
func (bp BloodPressure) String() string {
	return fmt.Sprintf("%d/%d", bp.Systolic, bp.Diastolic)
}

// VitalSigns holds normalized vitals. A nil field was absent or rejected.
type VitalSigns struct {
	BloodPressure *BloodPressure `json:"blood_pressure"`
	HeartRate     *int           `json:"heart_rate"`
	TemperatureC  *float64       `json:"temperature_c"`
	WeightKg      *float64       `json:"weight_kg"`
	HeightCm      *float64       `json:"height_cm"`
}

// Empty reports whether no vital sign survived validation
func (v VitalSigns) Empty() bool {
	return v.BloodPressure == nil && v.HeartRate == nil && v.TemperatureC == nil &&
		v.WeightKg == nil && v.HeightCm == nil
}

// Medication is a medication mention. Dosage and Frequency stay empty unless
// they were stated.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// MedicalInfo holds the clinical narrative fields of an extraction
type MedicalInfo struct {
	ChiefComplaint     string       `json:"chief_complaint"`
	Symptoms           []string     `json:"symptoms"`
	CurrentMedications []Medication `json:"current_medications"`
	Allergies          []string     `json:"allergies"`
	MedicalHistory     []string     `json:"medical_history"`
	Diagnosis          []string     `json:"diagnosis"`
	TreatmentPlan      string       `json:"treatment_plan"`
}

// Empty reports whether no narrative field carries a value
func (m MedicalInfo) Empty() bool {
	return m.ChiefComplaint == "" && len(m.Symptoms) == 0 && len(m.CurrentMedications) == 0 &&
		len(m.Allergies) == 0 && len(m.MedicalHistory) == 0 && len(m.Diagnosis) == 0 &&
		m.TreatmentPlan == ""
}

// NegationFlags lists findings the speaker explicitly ruled out
type NegationFlags struct {
	NegatedSymptoms    []string `json:"negated_symptoms"`
	NegatedMedications []string `json:"negated_medications"`
	NegatedAllergies   []string `json:"negated_allergies"`
}

// Empty reports whether no negation was recorded
func (n NegationFlags) Empty() bool {
	return len(n.NegatedSymptoms) == 0 && len(n.NegatedMedications) == 0 && len(n.NegatedAllergies) == 0
}

// Audit reasons
const (
	AuditReasonOutOfRange  = "out_of_range"
	AuditReasonUnparseable = "unparseable"
	AuditReasonNegated     = "negated"
)

// AuditEntry records a value the merger dropped. Rejected vitals carry no
// value so the implausible reading never reaches the output.
type AuditEntry struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Term   string `json:"term,omitempty"`
}

// ExtractionResult is the merged, validated output of both extraction passes
type ExtractionResult struct {
	VitalSigns    VitalSigns       `json:"vital_signs"`
	MedicalInfo   MedicalInfo      `json:"medical_info"`
	NegationFlags NegationFlags    `json:"negation_flags"`
	Confidence    float64          `json:"confidence"`
	Source        ExtractionSource `json:"source"`
	Audit         []AuditEntry     `json:"audit,omitempty"`
}

// SchemaVitals is the vitals block of the generative pass, before unit
// normalization and range validation.
type SchemaVitals struct {
	BloodPressure   *string  `json:"blood_pressure"`
	HeartRate       *float64 `json:"heart_rate"`
	Temperature     *float64 `json:"temperature"`
	TemperatureUnit string   `json:"temperature_unit"`
	Weight          *float64 `json:"weight"`
	WeightUnit      string   `json:"weight_unit"`
	Height          *float64 `json:"height"`
	HeightUnit      string   `json:"height_unit"`
}

// SchemaExtraction is the structure the generative pass is asked to return
type SchemaExtraction struct {
	VitalSigns    SchemaVitals  `json:"vital_signs"`
	MedicalInfo   MedicalInfo   `json:"medical_info"`
	NegationFlags NegationFlags `json:"negation_flags"`
	Confidence    float64       `json:"confidence"`
}
