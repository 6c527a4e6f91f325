package repositories

import (
	"context"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

// PatientRepository reads the patient population. Writes belong to the
// record-keeping system, not this pipeline.
type PatientRepository interface {
	// GetProfile retrieves one patient with at most historyDepth visits and
	// vitals, newest first
	GetProfile(ctx context.Context, patientID string, historyDepth int) (*entities.PatientProfile, error)

	// ListProfiles retrieves every patient with at most historyDepth visits
	// and vitals each
	ListProfiles(ctx context.Context, historyDepth int) ([]*entities.PatientProfile, error)

	// ListIDs retrieves every patient id
	ListIDs(ctx context.Context) ([]string, error)
}
