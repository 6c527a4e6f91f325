package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/internal/domain/repositories"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

const defaultRefreshConcurrency = 4

// EmbeddingIndexService keeps the embedding index in step with the patient
// records. A patient is re-embedded only when their canonical text changed.
type EmbeddingIndexService struct {
	patients     repositories.PatientRepository
	index        repositories.EmbeddingIndexRepository
	embedder     providers.EmbeddingProvider
	historyDepth int
	concurrency  int
	metrics      *observability.PipelineMetrics
	now          func() time.Time
}

// NewEmbeddingIndexService creates a new embedding index service
func NewEmbeddingIndexService(
	patients repositories.PatientRepository,
	index repositories.EmbeddingIndexRepository,
	embedder providers.EmbeddingProvider,
	historyDepth int,
	metrics *observability.PipelineMetrics,
) *EmbeddingIndexService {
	if historyDepth <= 0 {
		historyDepth = 5
	}
	return &EmbeddingIndexService{
		patients:     patients,
		index:        index,
		embedder:     embedder,
		historyDepth: historyDepth,
		concurrency:  defaultRefreshConcurrency,
		metrics:      metrics,
		now:          time.Now,
	}
}

// SetConcurrency bounds the number of patients RefreshAll embeds at once
func (s *EmbeddingIndexService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Refresh reloads a patient and re-embeds them if their content changed.
// A patient that no longer exists is removed from the index.
func (s *EmbeddingIndexService) Refresh(ctx context.Context, patientID string) (entities.IndexRefreshOutcome, error) {
	if strings.TrimSpace(patientID) == "" {
		return entities.IndexRefreshFailed, apperrors.NewValidationError("patient id is required")
	}

	profile, err := s.patients.GetProfile(ctx, patientID, s.historyDepth)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			if err := s.Remove(ctx, patientID); err != nil {
				s.metrics.RecordIndexRefresh(ctx, string(entities.IndexRefreshFailed))
				return entities.IndexRefreshFailed, err
			}
			s.metrics.RecordIndexRefresh(ctx, string(entities.IndexRefreshRemoved))
			return entities.IndexRefreshRemoved, nil
		}
		s.metrics.RecordIndexRefresh(ctx, string(entities.IndexRefreshFailed))
		return entities.IndexRefreshFailed, err
	}

	return s.RefreshProfile(ctx, profile)
}

// RefreshProfile re-embeds an already loaded profile if its content changed
func (s *EmbeddingIndexService) RefreshProfile(ctx context.Context, profile *entities.PatientProfile) (entities.IndexRefreshOutcome, error) {
	outcome, err := s.refreshProfile(ctx, profile)
	s.metrics.RecordIndexRefresh(ctx, string(outcome))
	return outcome, err
}

func (s *EmbeddingIndexService) refreshProfile(ctx context.Context, profile *entities.PatientProfile) (entities.IndexRefreshOutcome, error) {
	logger := observability.LoggerFromContext(ctx)

	if profile == nil || profile.ID() == "" {
		return entities.IndexRefreshFailed, apperrors.NewValidationError("patient profile is required")
	}
	patientID := profile.ID()
	content := BuildPatientContent(profile, s.historyDepth)

	existing, err := s.index.Get(ctx, patientID)
	switch {
	case err == nil && existing != nil && existing.Content == content:
		logger.Debug().Str("patient_id", patientID).Msg("patient content unchanged, skipping embedding")
		return entities.IndexRefreshUnchanged, nil
	case err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		logger.Warn().Err(err).Str("patient_id", patientID).Msg("failed to read indexed content, re-embedding")
	}

	if s.embedder == nil {
		return entities.IndexRefreshFailed, apperrors.NewServiceUnavailableError("no embedding provider configured", nil)
	}
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewServiceUnavailableError("embedding request failed", err)
		}
		return entities.IndexRefreshFailed, err
	}
	if len(vector) == 0 {
		return entities.IndexRefreshFailed, apperrors.NewMalformedResponseError("embedding provider returned an empty vector", nil)
	}

	record := &entities.PatientEmbeddingRecord{
		PatientID:   patientID,
		Content:     content,
		Vector:      vector,
		LastUpdated: s.now().UTC(),
	}
	if err := s.index.Upsert(ctx, record); err != nil {
		return entities.IndexRefreshFailed, err
	}

	logger.Debug().Str("patient_id", patientID).Int("dimensions", len(vector)).Msg("patient embedding updated")
	return entities.IndexRefreshUpdated, nil
}

// Remove deletes a patient from the index
func (s *EmbeddingIndexService) Remove(ctx context.Context, patientID string) error {
	return s.index.Delete(ctx, patientID)
}

// RefreshAll refreshes every patient. Individual failures are counted, not
// returned; only a failure to list patients or a cancelled context aborts.
func (s *EmbeddingIndexService) RefreshAll(ctx context.Context) (*entities.IndexRefreshSummary, error) {
	logger := observability.LoggerFromContext(ctx)

	profiles, err := s.patients.ListProfiles(ctx, s.historyDepth)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		summary entities.IndexRefreshSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := s.RefreshProfile(gctx, profile)
			if err != nil {
				logger.Warn().Err(err).Str("patient_id", profile.ID()).Msg("failed to refresh patient embedding")
			}

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case entities.IndexRefreshUpdated:
				summary.Updated++
			case entities.IndexRefreshUnchanged:
				summary.Unchanged++
			default:
				summary.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &summary, err
	}
	if err := ctx.Err(); err != nil {
		return &summary, err
	}

	logger.Info().
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Msg("embedding index refresh complete")
	return &summary, nil
}

// BuildPatientContent renders the canonical text that is embedded for a
// patient: demographics, then at most depth visits and vital checkups,
// newest first. The output depends only on the record, so unchanged patients
// produce identical text.
func BuildPatientContent(profile *entities.PatientProfile, depth int) string {
	if profile == nil {
		return ""
	}
	p := profile.Patient

	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", p.FullName())
	if !p.DateOfBirth.IsZero() {
		fmt.Fprintf(&b, "Date of birth: %s\n", p.DateOfBirth.Format("2006-01-02"))
	}
	if p.Sex != "" {
		fmt.Fprintf(&b, "Sex: %s\n", p.Sex)
	}
	writeList(&b, "Medical history", p.MedicalHistory)
	writeList(&b, "Allergies", p.Allergies)
	writeList(&b, "Current medications", medicationStrings(p.CurrentMedications))

	visits := append([]entities.Visit(nil), profile.Visits...)
	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].VisitDate.Equal(visits[j].VisitDate) {
			return visits[i].ID > visits[j].ID
		}
		return visits[i].VisitDate.After(visits[j].VisitDate)
	})
	if depth > 0 && len(visits) > depth {
		visits = visits[:depth]
	}
	if len(visits) > 0 {
		b.WriteString("Recent visits:\n")
		for _, v := range visits {
			b.WriteString(formatVisit(v))
			b.WriteByte('\n')
		}
	}

	vitals := append([]entities.VitalCheckup(nil), profile.Vitals...)
	sort.SliceStable(vitals, func(i, j int) bool {
		if vitals[i].RecordedAt.Equal(vitals[j].RecordedAt) {
			return vitals[i].ID > vitals[j].ID
		}
		return vitals[i].RecordedAt.After(vitals[j].RecordedAt)
	})
	if depth > 0 && len(vitals) > depth {
		vitals = vitals[:depth]
	}
	if len(vitals) > 0 {
		b.WriteString("Recent vitals:\n")
		for _, v := range vitals {
			b.WriteString(formatVitals(v))
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, "; "))
}

func medicationStrings(meds []entities.Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		parts := []string{m.Name}
		if m.Dosage != "" {
			parts = append(parts, m.Dosage)
		}
		if m.Frequency != "" {
			parts = append(parts, m.Frequency)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

func formatVisit(v entities.Visit) string {
	var parts []string
	if v.ChiefComplaint != "" {
		parts = append(parts, "chief complaint: "+v.ChiefComplaint)
	}
	if len(v.Symptoms) > 0 {
		parts = append(parts, "symptoms: "+strings.Join(v.Symptoms, ", "))
	}
	if len(v.Diagnosis) > 0 {
		parts = append(parts, "diagnosis: "+strings.Join(v.Diagnosis, ", "))
	}
	if v.TreatmentPlan != "" {
		parts = append(parts, "treatment plan: "+v.TreatmentPlan)
	}
	if meds := medicationStrings(v.Medications); len(meds) > 0 {
		parts = append(parts, "medications: "+strings.Join(meds, ", "))
	}
	return fmt.Sprintf("- %s: %s", v.VisitDate.Format("2006-01-02"), strings.Join(parts, "; "))
}

func formatVitals(v entities.VitalCheckup) string {
	var parts []string
	if v.Systolic != nil && v.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("BP %d/%d", *v.Systolic, *v.Diastolic))
	}
	if v.HeartRate != nil {
		parts = append(parts, fmt.Sprintf("HR %d", *v.HeartRate))
	}
	if v.TemperatureC != nil {
		parts = append(parts, fmt.Sprintf("Temp %.1f C", *v.TemperatureC))
	}
	if v.WeightKg != nil {
		parts = append(parts, fmt.Sprintf("Weight %.1f kg", *v.WeightKg))
	}
	if v.HeightCm != nil {
		parts = append(parts, fmt.Sprintf("Height %.1f cm", *v.HeightCm))
	}
	return fmt.Sprintf("- %s: %s", v.RecordedAt.Format("2006-01-02"), strings.Join(parts, "; "))
}
