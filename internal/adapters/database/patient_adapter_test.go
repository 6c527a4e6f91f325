package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

var (
	patientCols = []string{"id", "first_name", "last_name", "date_of_birth", "sex", "medical_history", "allergies", "current_medications", "created_at", "updated_at"}
	visitCols   = []string{"id", "patient_id", "visit_date", "chief_complaint", "symptoms", "diagnosis", "treatment_plan", "medications"}
	vitalCols   = []string{"id", "patient_id", "recorded_at", "systolic", "diastolic", "heart_rate", "temperature_c", "weight_kg", "height_cm"}
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewClientFromDB(db), mock
}

func TestPatientAdapter_GetProfile(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	dob := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM "patients" WHERE \("id" = 'p1'\)`).
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow(
			"p1", "Ada", "Lovelace", dob, "F", "{Hypertension,Diabetes}", nil,
			[]byte(`[{"name":"lisinopril","dosage":"10 mg","frequency":"daily"}]`), now, now,
		))
	mock.ExpectQuery(`FROM "visits".*"rn" <= 5`).
		WillReturnRows(sqlmock.NewRows(visitCols).
			AddRow("v2", "p1", now, "follow-up", "{}", "{hypertension}", "continue lisinopril", nil).
			AddRow("v1", "p1", now.AddDate(0, -2, 0), nil, "{headache}", "{migraine}", nil, []byte(`[{"name":"sumatriptan"}]`)))
	mock.ExpectQuery(`FROM "vital_checkups".*"rn" <= 5`).
		WillReturnRows(sqlmock.NewRows(vitalCols).
			AddRow("c1", "p1", now, 140, 90, 72, 37.0, nil, nil))

	profile, err := adapter.GetProfile(context.Background(), "p1", 5)
	require.NoError(t, err)

	assert.Equal(t, "p1", profile.ID())
	assert.Equal(t, dob, profile.Patient.DateOfBirth)
	assert.Equal(t, []string{"Hypertension", "Diabetes"}, profile.Patient.MedicalHistory)
	assert.Empty(t, profile.Patient.Allergies)
	require.Len(t, profile.Patient.CurrentMedications, 1)
	assert.Equal(t, "10 mg", profile.Patient.CurrentMedications[0].Dosage)

	require.Len(t, profile.Visits, 2)
	assert.Equal(t, "v2", profile.Visits[0].ID)
	assert.Equal(t, "continue lisinopril", profile.Visits[0].TreatmentPlan)
	assert.Equal(t, "", profile.Visits[1].ChiefComplaint)
	assert.Equal(t, "sumatriptan", profile.Visits[1].Medications[0].Name)

	require.Len(t, profile.Vitals, 1)
	assert.Equal(t, 140, *profile.Vitals[0].Systolic)
	assert.Equal(t, 37.0, *profile.Vitals[0].TemperatureC)
	assert.Nil(t, profile.Vitals[0].WeightKg)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientAdapter_GetProfileNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)

	mock.ExpectQuery(`FROM "patients"`).WillReturnRows(sqlmock.NewRows(patientCols))

	_, err := adapter.GetProfile(context.Background(), "missing", 5)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientAdapter_ListProfiles(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM "patients" ORDER BY "last_name" ASC`).
		WillReturnRows(sqlmock.NewRows(patientCols).
			AddRow("a", "Ada", "Lovelace", nil, nil, "{Hypertension}", nil, nil, now, now).
			AddRow("b", "Bob", "Marley", nil, nil, "{Migraine}", "{penicillin}", nil, now, now))
	mock.ExpectQuery(`FROM "visits" WHERE \("patient_id" IN \('a', 'b'\)\)`).
		WillReturnRows(sqlmock.NewRows(visitCols).
			AddRow("v1", "b", now, "headache", nil, "{migraine}", nil, nil))
	mock.ExpectQuery(`FROM "vital_checkups"`).
		WillReturnRows(sqlmock.NewRows(vitalCols))

	profiles, err := adapter.ListProfiles(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].ID())
	assert.Empty(t, profiles[0].Visits)
	assert.True(t, profiles[0].Patient.DateOfBirth.IsZero())
	assert.Equal(t, []string{"penicillin"}, profiles[1].Patient.Allergies)
	require.Len(t, profiles[1].Visits, 1)
	assert.Equal(t, []string{"migraine"}, profiles[1].Visits[0].Diagnosis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientAdapter_ListProfilesEmpty(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)

	mock.ExpectQuery(`FROM "patients"`).WillReturnRows(sqlmock.NewRows(patientCols))

	profiles, err := adapter.ListProfiles(context.Background(), 5)
	require.NoError(t, err)

	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientAdapter_ListProfilesDatabaseError(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)

	mock.ExpectQuery(`FROM "patients"`).WillReturnError(errors.New("connection reset"))

	_, err := adapter.ListProfiles(context.Background(), 5)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestPatientAdapter_ListIDs(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPatientAdapter(client)

	mock.ExpectQuery(`SELECT "id" FROM "patients" ORDER BY "id" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := adapter.ListIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids)
}
