package entities

import (
	"strings"
	"time"
)

// Patient is the demographic record of a patient
type Patient struct {
	ID                 string       `json:"id" db:"id"`
	FirstName          string       `json:"first_name" db:"first_name"`
	LastName           string       `json:"last_name" db:"last_name"`
	DateOfBirth        time.Time    `json:"date_of_birth" db:"date_of_birth"`
	Sex                string       `json:"sex" db:"sex"`
	MedicalHistory     []string     `json:"medical_history" db:"-"`
	Allergies          []string     `json:"allergies" db:"-"`
	CurrentMedications []Medication `json:"current_medications" db:"-"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last"
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Visit is a single clinical encounter
type Visit struct {
	ID             string       `json:"id" db:"id"`
	PatientID      string       `json:"patient_id" db:"patient_id"`
	VisitDate      time.Time    `json:"visit_date" db:"visit_date"`
	ChiefComplaint string       `json:"chief_complaint" db:"chief_complaint"`
	Symptoms       []string     `json:"symptoms" db:"-"`
	Diagnosis      []string     `json:"diagnosis" db:"-"`
	TreatmentPlan  string       `json:"treatment_plan" db:"treatment_plan"`
	Medications    []Medication `json:"medications" db:"-"`
}

// VitalCheckup is a recorded set of vital signs
type VitalCheckup struct {
	ID           string    `json:"id" db:"id"`
	PatientID    string    `json:"patient_id" db:"patient_id"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
	Systolic     *int      `json:"systolic" db:"systolic"`
	Diastolic    *int      `json:"diastolic" db:"diastolic"`
	HeartRate    *int      `json:"heart_rate" db:"heart_rate"`
	TemperatureC *float64  `json:"temperature_c" db:"temperature_c"`
	WeightKg     *float64  `json:"weight_kg" db:"weight_kg"`
	HeightCm     *float64  `json:"height_cm" db:"height_cm"`
}

// PatientProfile is a patient with their most recent visits and vitals,
// newest first.
type PatientProfile struct {
	Patient Patient        `json:"patient"`
	Visits  []Visit        `json:"visits"`
	Vitals  []VitalCheckup `json:"vitals"`
}

// ID returns the patient id
func (p *PatientProfile) ID() string {
	return p.Patient.ID
}

// ClinicalTexts returns the fields keyword validation runs against:
// diagnoses, chief complaints, medical history, treatment plans and
// medications.
func (p *PatientProfile) ClinicalTexts() []string {
	var texts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			texts = append(texts, s)
		}
	}
	for _, h := range p.Patient.MedicalHistory {
		add(h)
	}
	for _, m := range p.Patient.CurrentMedications {
		add(m.Name)
	}
	for _, v := range p.Visits {
		for _, d := range v.Diagnosis {
			add(d)
		}
		add(v.ChiefComplaint)
		add(v.TreatmentPlan)
		for _, m := range v.Medications {
			add(m.Name)
		}
	}
	return texts
}
