package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

var patientColumns = []interface{}{
	"id", "first_name", "last_name", "date_of_birth", "sex",
	"medical_history", "allergies", "current_medications",
	"created_at", "updated_at",
}

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetProfile retrieves a patient with their most recent visits and vitals
func (a *PatientAdapter) GetProfile(ctx context.Context, patientID string, historyDepth int) (*entities.PatientProfile, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Ex{"id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", patientID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	profiles, err := a.attachHistory(ctx, []*entities.Patient{patient}, historyDepth)
	if err != nil {
		return nil, err
	}
	return profiles[0], nil
}

// ListProfiles retrieves every patient with their most recent visits and vitals
func (a *PatientAdapter) ListProfiles(ctx context.Context, historyDepth int) ([]*entities.PatientProfile, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Order(goqu.I("last_name").Asc(), goqu.I("first_name").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patients", err)
	}
	if len(patients) == 0 {
		return []*entities.PatientProfile{}, nil
	}

	return a.attachHistory(ctx, patients, historyDepth)
}

// ListIDs retrieves every patient id
func (a *PatientAdapter) ListIDs(ctx context.Context) ([]string, error) {
	query, args, err := a.db.Select("id").From("patients").Order(goqu.I("id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patient ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patient ids", err)
	}
	return ids, nil
}

func (a *PatientAdapter) attachHistory(ctx context.Context, patients []*entities.Patient, depth int) ([]*entities.PatientProfile, error) {
	ids := make([]string, len(patients))
	for i, p := range patients {
		ids[i] = p.ID
	}

	visits, err := a.loadVisits(ctx, ids, depth)
	if err != nil {
		return nil, err
	}
	vitals, err := a.loadVitals(ctx, ids, depth)
	if err != nil {
		return nil, err
	}

	profiles := make([]*entities.PatientProfile, len(patients))
	for i, p := range patients {
		profiles[i] = &entities.PatientProfile{
			Patient: *p,
			Visits:  visits[p.ID],
			Vitals:  vitals[p.ID],
		}
	}
	return profiles, nil
}

// latestPerPatient wraps a table in a window query keeping the depth newest
// rows per patient
func (a *PatientAdapter) latestPerPatient(table, timeColumn string, columns []interface{}, ids []string, depth int) *goqu.SelectDataset {
	rank := goqu.L(fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY patient_id ORDER BY %s DESC, id DESC)", timeColumn)).As("rn")
	inner := a.db.From(table).
		Select(append(append([]interface{}{}, columns...), rank)...).
		Where(goqu.Ex{"patient_id": ids})

	ds := a.db.From(inner.As("ranked")).Select(columns...)
	if depth > 0 {
		ds = ds.Where(goqu.C("rn").Lte(depth))
	}
	return ds.Order(goqu.C("patient_id").Asc(), goqu.C(timeColumn).Desc(), goqu.C("id").Desc())
}

func (a *PatientAdapter) loadVisits(ctx context.Context, ids []string, depth int) (map[string][]entities.Visit, error) {
	columns := []interface{}{
		"id", "patient_id", "visit_date", "chief_complaint", "symptoms",
		"diagnosis", "treatment_plan", "medications",
	}
	query, args, err := a.latestPerPatient("visits", "visit_date", columns, ids, depth).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build visits query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list visits", err)
	}
	defer rows.Close()

	out := make(map[string][]entities.Visit)
	for rows.Next() {
		var (
			v                    entities.Visit
			chiefComplaint, plan sql.NullString
			symptoms, diagnosis  pq.StringArray
			medications          []byte
		)
		if err := rows.Scan(&v.ID, &v.PatientID, &v.VisitDate, &chiefComplaint, &symptoms, &diagnosis, &plan, &medications); err != nil {
			return nil, apperrors.NewInternalError("failed to scan visit", err)
		}
		v.ChiefComplaint = chiefComplaint.String
		v.TreatmentPlan = plan.String
		v.Symptoms = []string(symptoms)
		v.Diagnosis = []string(diagnosis)
		if v.Medications, err = decodeMedications(medications); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("invalid medications on visit %s", v.ID), err)
		}
		out[v.PatientID] = append(out[v.PatientID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate visits", err)
	}
	return out, nil
}

func (a *PatientAdapter) loadVitals(ctx context.Context, ids []string, depth int) (map[string][]entities.VitalCheckup, error) {
	columns := []interface{}{
		"id", "patient_id", "recorded_at", "systolic", "diastolic",
		"heart_rate", "temperature_c", "weight_kg", "height_cm",
	}
	query, args, err := a.latestPerPatient("vital_checkups", "recorded_at", columns, ids, depth).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build vitals query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list vitals", err)
	}
	defer rows.Close()

	out := make(map[string][]entities.VitalCheckup)
	for rows.Next() {
		var (
			c                              entities.VitalCheckup
			systolic, diastolic, heartRate sql.NullInt64
			temperature, weight, height    sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.PatientID, &c.RecordedAt, &systolic, &diastolic, &heartRate, &temperature, &weight, &height); err != nil {
			return nil, apperrors.NewInternalError("failed to scan vitals", err)
		}
		c.Systolic = nullInt(systolic)
		c.Diastolic = nullInt(diastolic)
		c.HeartRate = nullInt(heartRate)
		c.TemperatureC = nullFloat(temperature)
		c.WeightKg = nullFloat(weight)
		c.HeightCm = nullFloat(height)
		out[c.PatientID] = append(out[c.PatientID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate vitals", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	var (
		p                  entities.Patient
		dob                sql.NullTime
		sex                sql.NullString
		history, allergies pq.StringArray
		medications        []byte
	)
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &dob, &sex, &history, &allergies, &medications, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.DateOfBirth = dob.Time
	p.Sex = sex.String
	p.MedicalHistory = []string(history)
	p.Allergies = []string(allergies)

	meds, err := decodeMedications(medications)
	if err != nil {
		return nil, fmt.Errorf("invalid current medications for patient %s: %w", p.ID, err)
	}
	p.CurrentMedications = meds
	return &p, nil
}

func decodeMedications(raw []byte) ([]entities.Medication, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meds []entities.Medication
	if err := json.Unmarshal(raw, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	value := int(v.Int64)
	return &value
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}
