package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

// LoadGoldenQueries reads a golden set: a JSON array of GoldenQuery objects.
// The result is not validated.
func LoadGoldenQueries(path string) ([]GoldenQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set %s: %w", path, err)
	}

	var queries []GoldenQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("golden set %s is not a JSON array of queries: %w", path, err)
	}
	return queries, nil
}

// ValidateGoldenQueries reports every malformed query in the set at once
func ValidateGoldenQueries(queries []GoldenQuery) error {
	var errs []error
	seen := make(map[string]int, len(queries))

	for i, q := range queries {
		if q.ID != "" {
			if first, dup := seen[q.ID]; dup {
				errs = append(errs, fmt.Errorf("query %q at index %d repeats the id used at index %d", q.ID, i, first))
				continue
			}
			seen[q.ID] = i
		}
		if err := validateGoldenQuery(q); err != nil {
			errs = append(errs, fmt.Errorf("query at index %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateGoldenQuery(q GoldenQuery) error {
	if q.ID == "" {
		return errors.New("missing id")
	}
	if q.Query == "" {
		return fmt.Errorf("%s: missing query text", q.ID)
	}

	if !q.ExpectedType.Valid() {
		return fmt.Errorf("%s: expected_type %q is neither population nor condition-specific", q.ID, q.ExpectedType)
	}
	if q.Mode != "" && q.Mode != entities.RetrievalModeInteractive && q.Mode != entities.RetrievalModeReport {
		return fmt.Errorf("%s: unknown mode %q", q.ID, q.Mode)
	}

	switch q.ExpectedStatus {
	case "", entities.RetrievalStatusPopulation, entities.RetrievalStatusMatched, entities.RetrievalStatusNoEvidence:
	default:
		return fmt.Errorf("%s: unknown expected_status %q", q.ID, q.ExpectedStatus)
	}
	if q.WantStatus() == entities.RetrievalStatusNoEvidence && len(q.ExpectedPatientIDs) > 0 {
		return fmt.Errorf("%s: expects no evidence but lists expected patients", q.ID)
	}

	switch q.Difficulty {
	case "easy", "medium", "hard":
		return nil
	}
	return fmt.Errorf("%s: difficulty %q must be easy, medium or hard", q.ID, q.Difficulty)
}
