package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultEnvironment = "development"
	DefaultLogLevel    = "info"

	DefaultBigQueryLocation = "US"

	// Schema inference samples this many non-blank data rows.
	DefaultSampleRows = 100

	// Load jobs tolerate this many malformed rows before failing.
	DefaultMaxBadRecords = 1000

	// Bounded polling for dataset visibility and load verification.
	DefaultPollAttempts     = 5
	DefaultPollDelaySeconds = 30

	DefaultCleaningStrategy = "copy"

	// A column is cleaned only when its combined empty+whitespace rate
	// falls inside [min, max]. Above max the sparsity is assumed to be
	// legitimate and the column is left alone.
	DefaultMinIssuePct = 1.0
	DefaultMaxIssuePct = 50.0

	// Copy-based remediation applies DISTINCT / NULL-row filtering only
	// below these ceilings.
	DefaultDuplicateCeilingPct = 10.0
	DefaultNullRowCeilingPct   = 10.0

	// Post-cleaning row-count delta tolerated before restore kicks in.
	DefaultRowTolerancePct = 1.0

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3

	DefaultQualityIndex = "ingest-quality-reports"
)

var DefaultCleaningOperations = []string{"trim", "nullify_empty", "nullify_whitespace"}
