package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/application/services"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

const hybridAnswer = `{
  "vital_signs": {"blood_pressure": "150/95", "heart_rate": 88, "temperature": null, "temperature_unit": "", "weight": null, "weight_unit": "", "height": null, "height_unit": ""},
  "medical_info": {
    "chief_complaint": "headache",
    "symptoms": ["headache", "chest pain"],
    "current_medications": [{"name": "lisinopril", "dosage": "10 mg", "frequency": "daily"}, {"name": "aspirin", "dosage": "", "frequency": ""}],
    "allergies": [],
    "medical_history": ["hypertension"],
    "diagnosis": ["uncontrolled hypertension"],
    "treatment_plan": "increase lisinopril"
  },
  "negation_flags": {"negated_symptoms": ["chest pain"], "negated_medications": ["aspirin"], "negated_allergies": []},
  "confidence": 0.92
}`

func newExtractionService(gen *MockGenerativeProvider) *services.ExtractionService {
	var schema *services.SchemaExtractor
	if gen != nil {
		schema = services.NewSchemaExtractor(gen)
	}
	return services.NewExtractionService(services.NewPatternExtractor(), schema, services.DefaultExtractionConfig(), nil)
}

func TestExtractionService_HybridMerge(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).
		Return(hybridAnswer, nil).Once()

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(),
		"Patient denies chest pain but has a headache. BP 150/95. Taking lisinopril 10 mg daily. Stopped aspirin.")
	require.NoError(t, err)

	assert.Equal(t, entities.ExtractionSourceHybrid, result.Source)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	require.NotNil(t, result.VitalSigns.BloodPressure)
	assert.Equal(t, "150/95", result.VitalSigns.BloodPressure.String())
	require.NotNil(t, result.VitalSigns.HeartRate)
	assert.Equal(t, 88, *result.VitalSigns.HeartRate)

	assert.Equal(t, []string{"headache"}, result.MedicalInfo.Symptoms)
	assert.Contains(t, result.NegationFlags.NegatedSymptoms, "chest pain")
	require.Len(t, result.MedicalInfo.CurrentMedications, 1)
	assert.Equal(t, entities.Medication{Name: "lisinopril", Dosage: "10 mg", Frequency: "daily"}, result.MedicalInfo.CurrentMedications[0])
	assert.Contains(t, result.Audit, entities.AuditEntry{Field: entities.PatternSymptoms, Reason: entities.AuditReasonNegated, Term: "chest pain"})
	assert.Contains(t, result.Audit, entities.AuditEntry{Field: entities.PatternMedications, Reason: entities.AuditReasonNegated, Term: "aspirin"})

	gen.AssertExpectations(t)
}

func TestExtractionService_NegatedSymptomNeverPositive(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewServiceUnavailableError("down", nil))

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "denies fever, has headache")
	require.NoError(t, err)

	assert.Equal(t, []string{"headache"}, result.MedicalInfo.Symptoms)
	assert.Equal(t, []string{"fever"}, result.NegationFlags.NegatedSymptoms)
}

func TestExtractionService_SchemaNegationOverridesPatternPositive(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(`{
		"vital_signs": {},
		"medical_info": {"symptoms": []},
		"negation_flags": {"negated_symptoms": ["headache"]},
		"confidence": 0.8
	}`, nil)

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "Patient has headache.")
	require.NoError(t, err)

	assert.Empty(t, result.MedicalInfo.Symptoms)
	assert.Equal(t, []string{"headache"}, result.NegationFlags.NegatedSymptoms)
}

func TestExtractionService_PatternOnlyKeepsSymptomAfterNegation(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "Patient has no fever but has headache.")
	require.NoError(t, err)

	assert.Equal(t, entities.ExtractionSourcePatternOnly, result.Source)
	assert.Equal(t, []string{"headache"}, result.MedicalInfo.Symptoms)
	assert.Equal(t, []string{"fever"}, result.NegationFlags.NegatedSymptoms)
}

func TestExtractionService_PatternOnlyWhenServiceUnavailable(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewServiceUnavailableError("down", errors.New("connection refused")))

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "BP 140/90, HR 72.")
	require.NoError(t, err)

	assert.Equal(t, entities.ExtractionSourcePatternOnly, result.Source)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	require.NotNil(t, result.VitalSigns.BloodPressure)
	assert.Equal(t, "140/90", result.VitalSigns.BloodPressure.String())
	require.NotNil(t, result.VitalSigns.HeartRate)
	assert.Equal(t, 72, *result.VitalSigns.HeartRate)
}

func TestExtractionService_MalformedAnswerDegrades(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(`{"vital_signs": "oops"}`, nil)

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "BP 120/80")
	require.NoError(t, err)

	assert.Equal(t, entities.ExtractionSourcePatternOnly, result.Source)
}

func TestExtractionService_NoSchemaExtractor(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "Pulse 64")
	require.NoError(t, err)

	assert.Equal(t, entities.ExtractionSourcePatternOnly, result.Source)
	require.NotNil(t, result.VitalSigns.HeartRate)
	assert.Equal(t, 64, *result.VitalSigns.HeartRate)
}

func TestExtractionService_ImplausibleBloodPressureRejected(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "BP 400/250")
	require.NoError(t, err)

	assert.Nil(t, result.VitalSigns.BloodPressure)
	assert.Contains(t, result.Audit, entities.AuditEntry{Field: entities.PatternBloodPressure, Reason: entities.AuditReasonOutOfRange})

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "400/250")
	assert.NotContains(t, string(out), "400")
}

func TestExtractionService_SchemaValueFallsBackToPattern(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(`{
		"vital_signs": {"blood_pressure": "400/250", "heart_rate": 300},
		"medical_info": {},
		"negation_flags": {},
		"confidence": 0.6
	}`, nil)

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "BP 130/85, pulse 70")
	require.NoError(t, err)

	require.NotNil(t, result.VitalSigns.BloodPressure)
	assert.Equal(t, "130/85", result.VitalSigns.BloodPressure.String())
	require.NotNil(t, result.VitalSigns.HeartRate)
	assert.Equal(t, 70, *result.VitalSigns.HeartRate)
}

func TestExtractionService_UnitNormalization(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "Temp 98.6 F. Weight 220 lbs.")
	require.NoError(t, err)

	require.NotNil(t, result.VitalSigns.TemperatureC)
	assert.InDelta(t, 37.0, *result.VitalSigns.TemperatureC, 0.05)
	require.NotNil(t, result.VitalSigns.WeightKg)
	assert.InDelta(t, 99.8, *result.VitalSigns.WeightKg, 0.05)
}

func TestExtractionService_TemperatureOutOfBandRejected(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "Temp 120 F")
	require.NoError(t, err)

	assert.Nil(t, result.VitalSigns.TemperatureC)
	assert.Contains(t, result.Audit, entities.AuditEntry{Field: entities.PatternTemperature, Reason: entities.AuditReasonOutOfRange})
}

func TestExtractionService_FailsWhenNothingUsable(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewServiceUnavailableError("down", nil))

	svc := newExtractionService(gen)
	result, err := svc.Extract(context.Background(), "hello there")

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtractionFailed))
}

func TestExtractionService_EmptyTranscript(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "   ")

	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestExtractionService_CancelledContext(t *testing.T) {
	gen := new(MockGenerativeProvider)
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return(nil, context.Canceled).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newExtractionService(gen)
	result, err := svc.Extract(ctx, "BP 120/80")

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtractionService_ListsNeverNil(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "HR 80")
	require.NoError(t, err)

	assert.NotNil(t, result.MedicalInfo.Symptoms)
	assert.NotNil(t, result.MedicalInfo.CurrentMedications)
	assert.NotNil(t, result.MedicalInfo.Allergies)
	assert.NotNil(t, result.MedicalInfo.MedicalHistory)
	assert.NotNil(t, result.MedicalInfo.Diagnosis)
	assert.NotNil(t, result.NegationFlags.NegatedSymptoms)
	assert.NotNil(t, result.NegationFlags.NegatedMedications)
	assert.NotNil(t, result.NegationFlags.NegatedAllergies)
}

func TestExtractionService_NamedAllergyKept(t *testing.T) {
	svc := newExtractionService(nil)

	result, err := svc.Extract(context.Background(), "Allergic to penicillin.")
	require.NoError(t, err)

	assert.Equal(t, []string{"penicillin"}, result.MedicalInfo.Allergies)
}
