package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/clinicalcore/internal/application/services"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

func TestParseMedication(t *testing.T) {
	tests := []struct {
		raw  string
		want entities.Medication
	}{
		{"lisinopril 10 mg daily", entities.Medication{Name: "lisinopril", Dosage: "10 mg", Frequency: "daily"}},
		{"Metformin 500mg twice daily", entities.Medication{Name: "Metformin", Dosage: "500 mg", Frequency: "twice daily"}},
		{"taking aspirin", entities.Medication{Name: "aspirin"}},
		{"ibuprofen PRN", entities.Medication{Name: "ibuprofen", Frequency: "prn"}},
		{"insulin glargine 20 units at bedtime", entities.Medication{Name: "insulin glargine", Dosage: "20 units", Frequency: "at bedtime"}},
		{"10 mg", entities.Medication{Name: "10 mg"}},
		{"   ", entities.Medication{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, services.ParseMedication(tt.raw))
		})
	}
}

func TestNearEqualMedication(t *testing.T) {
	assert.True(t, services.NearEqualMedication("Metformin 500 mg", "metformin"))
	assert.True(t, services.NearEqualMedication("metformin er", "metformin"))
	assert.True(t, services.NearEqualMedication("lisinoprl", "lisinopril"))
	assert.False(t, services.NearEqualMedication("aspirin", "atenolol"))
	assert.False(t, services.NearEqualMedication("", "aspirin"))
}
