package models

import "time"

// ColumnStats is the per-column slice of a quality report. Percentages are
// normalized to the table's total row count.
type ColumnStats struct {
	NonNullPct     float64 `json:"non_null_pct"`
	EmptyPct       float64 `json:"empty_pct"`
	WhitespacePct  float64 `json:"whitespace_pct"`
	DistinctValues int64   `json:"distinct_values"`
	MinLength      int64   `json:"min_length"`
	MaxLength      int64   `json:"max_length"`
}

// IssuePct is the combined defect rate used by the cleaning decision rule.
func (s ColumnStats) IssuePct() float64 {
	return s.EmptyPct + s.WhitespacePct
}

// QualityReport summarizes per-column data quality for one loaded table.
// Computed fresh on each invocation, never cached across runs.
type QualityReport struct {
	TableRef   string                 `json:"table_ref"`
	TotalRows  int64                  `json:"total_rows"`
	Columns    map[string]ColumnStats `json:"columns"`
	AnalyzedAt time.Time              `json:"analyzed_at"`
}

// CleanOp is one remediation primitive. Ops compose in the declared order.
type CleanOp string

const (
	OpTrim              CleanOp = "TRIM"
	OpNullifyEmpty      CleanOp = "NULLIFY_EMPTY"
	OpNullifyWhitespace CleanOp = "NULLIFY_WHITESPACE"
)

// ColumnPlan is the cleaning decision for a single column.
type ColumnPlan struct {
	Column   string
	Ops      []CleanOp
	IssuePct float64
}

// CleaningPlan is the ordered set of column decisions derived from a
// quality report. An empty plan is a valid terminal state.
type CleaningPlan struct {
	TableRef string
	Columns  []ColumnPlan
}

// Empty reports whether no column needs remediation.
func (p CleaningPlan) Empty() bool { return len(p.Columns) == 0 }

// BackupRecord tracks the snapshot taken before a destructive mutation.
type BackupRecord struct {
	OriginalRef string
	BackupRef   string
	CreatedAt   time.Time
}

// IntegrityResult is the three-valued outcome of a schema integrity check.
// Unknown means the check itself could not run; callers decide policy.
type IntegrityResult int

const (
	IntegrityOK IntegrityResult = iota
	IntegrityMissingColumns
	IntegrityUnknown
)

func (r IntegrityResult) String() string {
	switch r {
	case IntegrityOK:
		return "ok"
	case IntegrityMissingColumns:
		return "missing_columns"
	default:
		return "unknown"
	}
}

// RunStatus is the terminal state of one pipeline invocation.
type RunStatus string

const (
	StatusLoaded     RunStatus = "loaded"      // loaded, validated, clean or cleaned
	StatusSkipped    RunStatus = "skipped"     // non-CSV payload
	StatusConflict   RunStatus = "conflict"    // CREATE against existing table
	StatusDegraded   RunStatus = "degraded"    // loaded but verification timed out
	StatusFailed     RunStatus = "failed"      // fatal error, see Kind
	StatusEmptyTable RunStatus = "empty_table" // load produced zero rows
)

// RunResult is the terminal summary of one invocation.
type RunResult struct {
	InvocationID string    `json:"invocation_id"`
	Status       RunStatus `json:"status"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	TableRef     string    `json:"table_ref,omitempty"`
	CleanedRef   string    `json:"cleaned_ref,omitempty"` // set by copy-based remediation
	RowsLoaded   int64     `json:"rows_loaded"`
	ColumnCount  int       `json:"column_count"`
	Cleaned      bool      `json:"cleaned"`
	Message      string    `json:"message,omitempty"`
}
