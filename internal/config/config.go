package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Google Cloud
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Ingestion
	SampleRows       int `json:"sample_rows"`
	MaxBadRecords    int `json:"max_bad_records"`
	PollAttempts     int `json:"poll_attempts"`
	PollDelaySeconds int `json:"poll_delay_seconds"`

	// Cleaning
	EnableCleaning      bool     `json:"enable_cleaning"`
	CleaningStrategy    string   `json:"cleaning_strategy"` // "copy" | "in_place"
	CleaningOperations  []string `json:"cleaning_operations"`
	MinIssuePct         float64  `json:"min_issue_pct"`
	MaxIssuePct         float64  `json:"max_issue_pct"`
	DuplicateCeilingPct float64  `json:"duplicate_ceiling_pct"`
	NullRowCeilingPct   float64  `json:"null_row_ceiling_pct"`
	RowTolerancePct     float64  `json:"row_tolerance_pct"`

	// Training handoff
	TrainingWebhookURL   string `json:"training_webhook_url"`
	TrainingTargetColumn string `json:"training_target_column"`

	// Run ledger (Postgres); disabled when empty
	LedgerDSN string `json:"ledger_dsn"`

	// Elasticsearch quality-report sink
	ElasticsearchEnabled     bool   `json:"elasticsearch_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	QualityIndex             string `json:"quality_index"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		LogLevel:                 DefaultLogLevel,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               false,
		BigQueryLocation:         DefaultBigQueryLocation,
		SampleRows:               DefaultSampleRows,
		MaxBadRecords:            DefaultMaxBadRecords,
		PollAttempts:             DefaultPollAttempts,
		PollDelaySeconds:         DefaultPollDelaySeconds,
		EnableCleaning:           true,
		CleaningStrategy:         DefaultCleaningStrategy,
		CleaningOperations:       DefaultCleaningOperations,
		MinIssuePct:              DefaultMinIssuePct,
		MaxIssuePct:              DefaultMaxIssuePct,
		DuplicateCeilingPct:      DefaultDuplicateCeilingPct,
		NullRowCeilingPct:        DefaultNullRowCeilingPct,
		RowTolerancePct:          DefaultRowTolerancePct,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		QualityIndex:             DefaultQualityIndex,
	}

	// Load from JSON config file if specified
	if path := getEnv("INGEST_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("INGEST_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("INGEST_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("INGEST_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("INGEST_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("INGEST_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
		cfg.EnableAuth = true
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("BIGQUERY_LOCATION", ""); v != "" {
		cfg.BigQueryLocation = v
	}
	if v := getEnv("INGEST_SAMPLE_ROWS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleRows = n
		}
	}
	if v := getEnv("INGEST_POLL_ATTEMPTS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollAttempts = n
		}
	}
	if v := getEnv("INGEST_POLL_DELAY_SECONDS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollDelaySeconds = n
		}
	}
	if v := getEnv("INGEST_ENABLE_CLEANING", ""); v != "" {
		cfg.EnableCleaning = v == "true" || v == "1"
	}
	if v := getEnv("INGEST_CLEANING_STRATEGY", ""); v != "" {
		cfg.CleaningStrategy = v
	}
	if v := getEnv("INGEST_TRAINING_WEBHOOK_URL", ""); v != "" {
		cfg.TrainingWebhookURL = v
	}
	if v := getEnv("INGEST_TRAINING_TARGET_COLUMN", ""); v != "" {
		cfg.TrainingTargetColumn = v
	}
	if v := getEnv("INGEST_LEDGER_DSN", ""); v != "" {
		cfg.LedgerDSN = v
	}
	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("INGEST_QUALITY_INDEX", ""); v != "" {
		cfg.QualityIndex = v
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
