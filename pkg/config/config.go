package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OpenAI    OpenAIConfig
	OTEL      OTELConfig
	Index     IndexConfig
	Pipeline  PipelineConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env         string
	ServiceName string
	LogLevel    string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
	Timeout             time.Duration
	RateLimitRPM        int
	RateLimitBurst      int
	// Consecutive failures before the circuit opens, and how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// IndexConfig selects the patient embedding index backend
type IndexConfig struct {
	Backend    string // postgres, typesense or memory
	Collection string
	MemoryPath string // chromem persistence directory; empty keeps it in memory
}

// PipelineConfig holds extraction and retrieval tuning
type PipelineConfig struct {
	HighConfidenceThreshold float64
	PatternOnlyConfidence   float64
	InteractiveTopK         int
	ReportTopK              int
	HistoryDepth            int
	ClassificationCacheTTL  time.Duration
	RefreshInterval         time.Duration
	TermDictionaryPath      string

	SystolicMax     int
	DiastolicMax    int
	HeartRateMin    int
	HeartRateMax    int
	TemperatureMinF float64
	TemperatureMaxF float64
	WeightMinKg     float64
	WeightMaxKg     float64
	HeightMinCm     float64
	HeightMaxCm     float64
}

// Index backends
const (
	IndexBackendPostgres  = "postgres"
	IndexBackendTypesense = "typesense"
	IndexBackendMemory    = "memory"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:         getEnv("ENV", "development"),
			ServiceName: getEnv("SERVICE_NAME", "clinicalcore"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "clinicalcore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			BaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			Timeout:             getEnvAsDuration("OPENAI_TIMEOUT", 20*time.Second),
			RateLimitRPM:        getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst:      getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			BreakerFailures:     uint32(getEnvAsInt("OPENAI_BREAKER_FAILURES", 5)),
			BreakerCooldown:     getEnvAsDuration("OPENAI_BREAKER_COOLDOWN", 30*time.Second),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinicalcore"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Index: IndexConfig{
			Backend:    strings.ToLower(getEnv("INDEX_BACKEND", IndexBackendPostgres)),
			Collection: getEnv("INDEX_COLLECTION", "patient_embeddings"),
			MemoryPath: getEnv("INDEX_MEMORY_PATH", ""),
		},
		Pipeline: PipelineConfig{
			HighConfidenceThreshold: getEnvAsFloat("PIPELINE_HIGH_CONFIDENCE_THRESHOLD", 0.7),
			PatternOnlyConfidence:   getEnvAsFloat("PIPELINE_PATTERN_ONLY_CONFIDENCE", 0.7),
			InteractiveTopK:         getEnvAsInt("PIPELINE_INTERACTIVE_TOP_K", 5),
			ReportTopK:              getEnvAsInt("PIPELINE_REPORT_TOP_K", 20),
			HistoryDepth:            getEnvAsInt("PIPELINE_HISTORY_DEPTH", 5),
			ClassificationCacheTTL:  getEnvAsDuration("PIPELINE_CLASSIFICATION_CACHE_TTL", time.Hour),
			RefreshInterval:         getEnvAsDuration("PIPELINE_REFRESH_INTERVAL", 0),
			TermDictionaryPath:      getEnv("PIPELINE_TERM_DICTIONARY_PATH", "config/medical_terms.json"),

			SystolicMax:     getEnvAsInt("VITALS_SYSTOLIC_MAX", 300),
			DiastolicMax:    getEnvAsInt("VITALS_DIASTOLIC_MAX", 200),
			HeartRateMin:    getEnvAsInt("VITALS_HEART_RATE_MIN", 30),
			HeartRateMax:    getEnvAsInt("VITALS_HEART_RATE_MAX", 250),
			TemperatureMinF: getEnvAsFloat("VITALS_TEMPERATURE_MIN_F", 90),
			TemperatureMaxF: getEnvAsFloat("VITALS_TEMPERATURE_MAX_F", 110),
			WeightMinKg:     getEnvAsFloat("VITALS_WEIGHT_MIN_KG", 1),
			WeightMaxKg:     getEnvAsFloat("VITALS_WEIGHT_MAX_KG", 500),
			HeightMinCm:     getEnvAsFloat("VITALS_HEIGHT_MIN_CM", 30),
			HeightMaxCm:     getEnvAsFloat("VITALS_HEIGHT_MAX_CM", 272),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case IndexBackendPostgres, IndexBackendTypesense, IndexBackendMemory:
	default:
		return fmt.Errorf("unsupported INDEX_BACKEND %q", c.Index.Backend)
	}
	p := c.Pipeline
	if p.HighConfidenceThreshold < 0 || p.HighConfidenceThreshold > 1 {
		return fmt.Errorf("PIPELINE_HIGH_CONFIDENCE_THRESHOLD must be within [0,1], got %v", p.HighConfidenceThreshold)
	}
	if p.PatternOnlyConfidence < 0 || p.PatternOnlyConfidence > 1 {
		return fmt.Errorf("PIPELINE_PATTERN_ONLY_CONFIDENCE must be within [0,1], got %v", p.PatternOnlyConfidence)
	}
	if p.InteractiveTopK <= 0 || p.ReportTopK <= 0 {
		return fmt.Errorf("retrieval top-k values must be positive")
	}
	if p.HistoryDepth <= 0 {
		return fmt.Errorf("PIPELINE_HISTORY_DEPTH must be positive")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
