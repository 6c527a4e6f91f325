package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/adapters/events"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/observability"
	"github.com/zatekoja/clinicalcore/pkg/config"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		date_of_birth DATE,
		sex TEXT,
		medical_history TEXT[] NOT NULL DEFAULT '{}',
		allergies TEXT[] NOT NULL DEFAULT '{}',
		current_medications JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS visits (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		visit_date TIMESTAMPTZ NOT NULL,
		chief_complaint TEXT,
		symptoms TEXT[] NOT NULL DEFAULT '{}',
		diagnosis TEXT[] NOT NULL DEFAULT '{}',
		treatment_plan TEXT,
		medications JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS vital_checkups (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		recorded_at TIMESTAMPTZ NOT NULL,
		systolic INTEGER,
		diastolic INTEGER,
		heart_rate INTEGER,
		temperature_c DOUBLE PRECISION,
		weight_kg DOUBLE PRECISION,
		height_cm DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS visits_patient_date_idx ON visits (patient_id, visit_date DESC)`,
	`CREATE INDEX IF NOT EXISTS vital_checkups_patient_date_idx ON vital_checkups (patient_id, recorded_at DESC)`,
}

type seedVisit struct {
	daysAgo   int
	complaint string
	symptoms  []string
	diagnosis []string
	plan      string
	meds      []entities.Medication
}

type seedVitals struct {
	daysAgo             int
	systolic, diastolic int
	heartRate           int
	tempC, weightKg     float64
	heightCm            float64
}

type seedPatient struct {
	slug, first, last string
	dob               string
	sex               string
	history           []string
	allergies         []string
	meds              []entities.Medication
	visits            []seedVisit
	vitals            []seedVitals
}

func med(name, dosage, frequency string) entities.Medication {
	return entities.Medication{Name: name, Dosage: dosage, Frequency: frequency}
}

var patients = []seedPatient{
	{
		slug: "ada-lovelace", first: "Ada", last: "Lovelace", dob: "1962-12-10", sex: "female",
		history:   []string{"Hypertension", "Type 2 diabetes"},
		allergies: []string{"penicillin"},
		meds:      []entities.Medication{med("lisinopril", "10mg", "daily"), med("metformin", "500mg", "twice daily")},
		visits: []seedVisit{
			{daysAgo: 20, complaint: "Follow-up for blood pressure", symptoms: []string{"headache"}, diagnosis: []string{"Hypertension"}, plan: "Continue lisinopril, recheck in 3 months", meds: []entities.Medication{med("lisinopril", "10mg", "daily")}},
			{daysAgo: 120, complaint: "Routine diabetes review", symptoms: []string{"fatigue"}, diagnosis: []string{"Type 2 diabetes"}, plan: "HbA1c in 3 months"},
		},
		vitals: []seedVitals{{daysAgo: 20, systolic: 148, diastolic: 92, heartRate: 78, tempC: 36.8, weightKg: 71, heightCm: 165}},
	},
	{
		slug: "alan-turing", first: "Alan", last: "Turing", dob: "1978-06-23", sex: "male",
		history: []string{"Migraine"},
		meds:    []entities.Medication{med("sumatriptan", "50mg", "as needed")},
		visits: []seedVisit{
			{daysAgo: 35, complaint: "Recurring headaches", symptoms: []string{"headache", "photophobia", "nausea"}, diagnosis: []string{"Migraine"}, plan: "Sumatriptan at onset, keep a headache diary"},
		},
		vitals: []seedVitals{{daysAgo: 35, systolic: 122, diastolic: 80, heartRate: 70, tempC: 36.6, weightKg: 74, heightCm: 180}},
	},
	{
		slug: "grace-hopper", first: "Grace", last: "Hopper", dob: "1986-12-09", sex: "female",
		history:   []string{"Asthma"},
		allergies: []string{"dust mites"},
		meds:      []entities.Medication{med("albuterol inhaler", "2 puffs", "as needed")},
		visits: []seedVisit{
			{daysAgo: 10, complaint: "Wheezing at night", symptoms: []string{"wheezing", "cough"}, diagnosis: []string{"Asthma exacerbation"}, plan: "Add inhaled corticosteroid"},
		},
		vitals: []seedVitals{{daysAgo: 10, systolic: 118, diastolic: 76, heartRate: 88, tempC: 37.0, weightKg: 60, heightCm: 168}},
	},
	{
		slug: "marie-curie", first: "Marie", last: "Curie", dob: "1957-11-07", sex: "female",
		history: []string{"Hypertension", "Hyperlipidemia"},
		meds:    []entities.Medication{med("amlodipine", "5mg", "daily"), med("atorvastatin", "20mg", "nightly")},
		visits: []seedVisit{
			{daysAgo: 45, complaint: "Dizziness on standing", symptoms: []string{"dizziness"}, diagnosis: []string{"Hypertension"}, plan: "Reduce amlodipine, home BP monitoring"},
		},
		vitals: []seedVitals{{daysAgo: 45, systolic: 136, diastolic: 84, heartRate: 72, tempC: 36.7, weightKg: 58, heightCm: 160}},
	},
	{
		slug: "rosalind-franklin", first: "Rosalind", last: "Franklin", dob: "1970-07-25", sex: "female",
		history: []string{"Type 2 diabetes"},
		meds:    []entities.Medication{med("metformin", "1000mg", "twice daily"), med("insulin glargine", "20 units", "nightly")},
		visits: []seedVisit{
			{daysAgo: 15, complaint: "Elevated fasting glucose", symptoms: []string{"polyuria", "thirst"}, diagnosis: []string{"Type 2 diabetes"}, plan: "Start basal insulin"},
		},
		vitals: []seedVitals{{daysAgo: 15, systolic: 128, diastolic: 82, heartRate: 76, tempC: 36.9, weightKg: 82, heightCm: 170}},
	},
	{
		slug: "katherine-johnson", first: "Katherine", last: "Johnson", dob: "1948-08-26", sex: "female",
		history: []string{"Osteoarthritis"},
		meds:    []entities.Medication{med("ibuprofen", "400mg", "three times daily")},
		visits: []seedVisit{
			{daysAgo: 60, complaint: "Knee pain", symptoms: []string{"joint pain", "stiffness"}, diagnosis: []string{"Osteoarthritis of the knee"}, plan: "Physiotherapy referral"},
		},
		vitals: []seedVitals{{daysAgo: 60, systolic: 130, diastolic: 78, heartRate: 68, tempC: 36.5, weightKg: 66, heightCm: 157}},
	},
	{
		slug: "edsger-dijkstra", first: "Edsger", last: "Dijkstra", dob: "1950-05-11", sex: "male",
		history: []string{"Atrial fibrillation"},
		meds:    []entities.Medication{med("warfarin", "5mg", "daily")},
		visits: []seedVisit{
			{daysAgo: 25, complaint: "Palpitations", symptoms: []string{"palpitations"}, diagnosis: []string{"Atrial fibrillation"}, plan: "INR check, continue warfarin"},
		},
		vitals: []seedVitals{{daysAgo: 25, systolic: 126, diastolic: 80, heartRate: 104, tempC: 36.6, weightKg: 77, heightCm: 182}},
	},
	{
		slug: "barbara-liskov", first: "Barbara", last: "Liskov", dob: "1969-11-07", sex: "female",
		history: []string{"Depression"},
		meds:    []entities.Medication{med("sertraline", "50mg", "daily")},
		visits: []seedVisit{
			{daysAgo: 30, complaint: "Low mood", symptoms: []string{"insomnia", "low mood"}, diagnosis: []string{"Depression"}, plan: "Continue sertraline, CBT referral"},
		},
		vitals: []seedVitals{{daysAgo: 30, systolic: 116, diastolic: 74, heartRate: 66, tempC: 36.7, weightKg: 63, heightCm: 166}},
	},
}

// seedID derives a stable id so re-seeding replaces rows instead of
// duplicating them
func seedID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("clinicalcore:"+kind+":"+name)).String()
}

// textArray keeps empty lists as '{}' rather than NULL
func textArray(values []string) interface{} {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func main() {
	var (
		reset   bool
		publish bool
	)
	flag.BoolVar(&reset, "reset", os.Getenv("RESET_DB") == "true", "truncate patient tables before seeding")
	flag.BoolVar(&publish, "publish", true, "publish patient update events so a watching indexer re-embeds")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("clinicalcore-seed", cfg.App.Env, cfg.App.LogLevel)

	ctx := context.Background()
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	for _, stmt := range schema {
		if _, err := pgClient.DB().ExecContext(ctx, stmt); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare schema")
		}
	}

	if reset {
		log.Info().Msg("Truncating patient tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE vital_checkups, visits, patients CASCADE`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	db := goqu.New("postgres", pgClient.DB())
	now := time.Now().UTC()
	seeded := make([]string, 0, len(patients))
	for _, p := range patients {
		id, err := seedPatientRecords(ctx, db, p, now)
		if err != nil {
			log.Error().Err(err).Str("patient", p.slug).Msg("Failed to seed patient")
			continue
		}
		seeded = append(seeded, id)
	}
	log.Info().Int("patients", len(seeded)).Msg("Seeding completed")

	if publish {
		publishUpdates(ctx, cfg, seeded)
	}
}

func seedPatientRecords(ctx context.Context, db *goqu.Database, p seedPatient, now time.Time) (string, error) {
	id := seedID("patient", p.slug)
	dob, err := time.Parse("2006-01-02", p.dob)
	if err != nil {
		return "", fmt.Errorf("invalid date of birth %q: %w", p.dob, err)
	}
	meds, err := json.Marshal(p.meds)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	err = tx.Wrap(func() error {
		row := goqu.Record{
			"id":                  id,
			"first_name":          p.first,
			"last_name":           p.last,
			"date_of_birth":       dob,
			"sex":                 p.sex,
			"medical_history":     textArray(p.history),
			"allergies":           textArray(p.allergies),
			"current_medications": string(meds),
			"updated_at":          now,
		}
		if _, err := tx.Insert("patients").Prepared(true).Rows(row).
			OnConflict(goqu.DoUpdate("id", row)).Executor().ExecContext(ctx); err != nil {
			return fmt.Errorf("upsert patient: %w", err)
		}

		for _, table := range []string{"visits", "vital_checkups"} {
			if _, err := tx.Delete(table).Where(goqu.Ex{"patient_id": id}).Executor().ExecContext(ctx); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for i, v := range p.visits {
			visitMeds, err := json.Marshal(v.meds)
			if err != nil {
				return err
			}
			if _, err := tx.Insert("visits").Prepared(true).Rows(goqu.Record{
				"id":              seedID("visit", fmt.Sprintf("%s/%d", p.slug, i)),
				"patient_id":      id,
				"visit_date":      now.AddDate(0, 0, -v.daysAgo),
				"chief_complaint": v.complaint,
				"symptoms":        textArray(v.symptoms),
				"diagnosis":       textArray(v.diagnosis),
				"treatment_plan":  v.plan,
				"medications":     string(visitMeds),
			}).Executor().ExecContext(ctx); err != nil {
				return fmt.Errorf("insert visit: %w", err)
			}
		}

		for i, v := range p.vitals {
			if _, err := tx.Insert("vital_checkups").Prepared(true).Rows(goqu.Record{
				"id":            seedID("vitals", fmt.Sprintf("%s/%d", p.slug, i)),
				"patient_id":    id,
				"recorded_at":   now.AddDate(0, 0, -v.daysAgo),
				"systolic":      v.systolic,
				"diastolic":     v.diastolic,
				"heart_rate":    v.heartRate,
				"temperature_c": v.tempC,
				"weight_kg":     v.weightKg,
				"height_cm":     v.heightCm,
			}).Executor().ExecContext(ctx); err != nil {
				return fmt.Errorf("insert vitals: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func publishUpdates(ctx context.Context, cfg *config.Config, patientIDs []string) {
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, skipping patient update events")
		return
	}
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	defer bus.Close()

	for _, id := range patientIDs {
		event := entities.NewPatientEvent(id, entities.PatientEventTypeUpdated)
		if err := bus.Publish(ctx, providers.EventChannelPatientUpdates, event); err != nil {
			log.Warn().Err(err).Str("patient_id", id).Msg("Failed to publish patient update")
		}
	}
	log.Info().Int("events", len(patientIDs)).Msg("Published patient update events")
}
