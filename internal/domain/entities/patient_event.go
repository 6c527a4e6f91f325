package entities

import (
	"time"

	"github.com/google/uuid"
)

// PatientEventType represents the kind of change made to a patient record
type PatientEventType string

const (
	PatientEventTypeUpdated        PatientEventType = "patient_updated"
	PatientEventTypeVisitRecorded  PatientEventType = "visit_recorded"
	PatientEventTypeVitalsRecorded PatientEventType = "vitals_recorded"
	PatientEventTypeDeleted        PatientEventType = "patient_deleted"
)

// PatientEvent announces that a patient's indexed content may be stale
type PatientEvent struct {
	ID        string           `json:"id"`
	PatientID string           `json:"patient_id"`
	EventType PatientEventType `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewPatientEvent creates a new patient event
func NewPatientEvent(patientID string, eventType PatientEventType) *PatientEvent {
	return &PatientEvent{
		ID:        uuid.NewString(),
		PatientID: patientID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
