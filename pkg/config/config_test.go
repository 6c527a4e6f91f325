package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	os.Setenv("TYPESENSE_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("TYPESENSE_URL")
		os.Unsetenv("TYPESENSE_API_KEY")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("TYPESENSE_URL")
	os.Unsetenv("TYPESENSE_API_KEY")
	os.Unsetenv("INDEX_BACKEND")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
	assert.Equal(t, IndexBackendPostgres, cfg.Index.Backend)

	p := cfg.Pipeline
	assert.Equal(t, 0.7, p.HighConfidenceThreshold)
	assert.Equal(t, 0.7, p.PatternOnlyConfidence)
	assert.Equal(t, 5, p.InteractiveTopK)
	assert.Equal(t, 20, p.ReportTopK)
	assert.Equal(t, 5, p.HistoryDepth)
	assert.Equal(t, 300, p.SystolicMax)
	assert.Equal(t, 200, p.DiastolicMax)
	assert.Equal(t, 30, p.HeartRateMin)
	assert.Equal(t, 250, p.HeartRateMax)
	assert.Equal(t, 90.0, p.TemperatureMinF)
	assert.Equal(t, 110.0, p.TemperatureMaxF)
	assert.Equal(t, time.Hour, p.ClassificationCacheTTL)

	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_PipelineOverrides(t *testing.T) {
	os.Setenv("PIPELINE_HIGH_CONFIDENCE_THRESHOLD", "0.8")
	os.Setenv("PIPELINE_CLASSIFICATION_CACHE_TTL", "15m")
	os.Setenv("INDEX_BACKEND", "Memory")
	defer func() {
		os.Unsetenv("PIPELINE_HIGH_CONFIDENCE_THRESHOLD")
		os.Unsetenv("PIPELINE_CLASSIFICATION_CACHE_TTL")
		os.Unsetenv("INDEX_BACKEND")
	}()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Pipeline.HighConfidenceThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.ClassificationCacheTTL)
	assert.Equal(t, IndexBackendMemory, cfg.Index.Backend)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	os.Setenv("INDEX_BACKEND", "elastic")
	defer os.Unsetenv("INDEX_BACKEND")

	_, err := Load()
	assert.Error(t, err)

	os.Setenv("INDEX_BACKEND", "postgres")
	os.Setenv("PIPELINE_HIGH_CONFIDENCE_THRESHOLD", "1.5")
	defer os.Unsetenv("PIPELINE_HIGH_CONFIDENCE_THRESHOLD")

	_, err = Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "clinical", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=clinical sslmode=disable", c.DatabaseDSN())
}
