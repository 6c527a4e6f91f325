package services_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

// MockGenerativeProvider is a mock implementation of providers.GenerativeProvider
type MockGenerativeProvider struct {
	mock.Mock
}

func (m *MockGenerativeProvider) GenerateJSON(ctx context.Context, req providers.GenerationRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	var raw json.RawMessage
	if v := args.Get(0); v != nil {
		switch t := v.(type) {
		case string:
			raw = json.RawMessage(t)
		case json.RawMessage:
			raw = t
		}
	}
	return raw, args.Error(1)
}

// MockEmbeddingProvider is a mock implementation of providers.EmbeddingProvider
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// fakeIndex is an in-memory embedding index. Search returns the scripted
// matches instead of computing similarities.
type fakeIndex struct {
	mu        sync.Mutex
	records   map[string]*entities.PatientEmbeddingRecord
	matches   []entities.EmbeddingMatch
	searchErr error
	lastTopK  int
	upserts   int
	deletes   []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]*entities.PatientEmbeddingRecord)}
}

func (f *fakeIndex) Get(ctx context.Context, patientID string) (*entities.PatientEmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[patientID]
	if !ok {
		return nil, apperrors.NewNotFoundError("embedding not found")
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, record *entities.PatientEmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records[record.PatientID] = &cp
	f.upserts++
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, topK int) ([]entities.EmbeddingMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTopK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.matches
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeIndex) Delete(ctx context.Context, patientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, patientID)
	f.deletes = append(f.deletes, patientID)
	return nil
}

// fakePatients is an in-memory patient repository
type fakePatients struct {
	mu       sync.Mutex
	profiles map[string]*entities.PatientProfile
	order    []string
	listErr  error
}

func newFakePatients(profiles ...*entities.PatientProfile) *fakePatients {
	f := &fakePatients{profiles: make(map[string]*entities.PatientProfile)}
	for _, p := range profiles {
		f.put(p)
	}
	return f
}

func (f *fakePatients) put(p *entities.PatientProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.ID()]; !ok {
		f.order = append(f.order, p.ID())
	}
	f.profiles[p.ID()] = p
}

func (f *fakePatients) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakePatients) GetProfile(ctx context.Context, patientID string, historyDepth int) (*entities.PatientProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[patientID]
	if !ok {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return p, nil
}

func (f *fakePatients) ListProfiles(ctx context.Context, historyDepth int) ([]*entities.PatientProfile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.PatientProfile, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.profiles[id])
	}
	return out, nil
}

func (f *fakePatients) ListIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := append([]string(nil), f.order...)
	sort.Strings(ids)
	return ids, nil
}

// fakeCache is an in-memory CacheProvider that, like the mock the rest of
// the suite uses, reports a miss as nil data
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// staticClassifier always returns the same verdict
type staticClassifier struct {
	result entities.ClassificationResult
	calls  int
}

func (s *staticClassifier) Classify(ctx context.Context, query string) entities.ClassificationResult {
	s.calls++
	return s.result
}

func conditionSpecific() *staticClassifier {
	return &staticClassifier{result: entities.ClassificationResult{
		Type:       entities.QueryTypeConditionSpecific,
		Confidence: entities.ClassificationConfidenceHigh,
	}}
}

func population() *staticClassifier {
	return &staticClassifier{result: entities.ClassificationResult{
		Type:       entities.QueryTypePopulation,
		Confidence: entities.ClassificationConfidenceHigh,
	}}
}

func profile(id, first, last string, history ...string) *entities.PatientProfile {
	return &entities.PatientProfile{
		Patient: entities.Patient{
			ID:             id,
			FirstName:      first,
			LastName:       last,
			MedicalHistory: history,
		},
	}
}
