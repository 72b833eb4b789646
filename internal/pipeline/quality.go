package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

// Analyzer computes per-column quality statistics over a loaded table.
type Analyzer struct {
	store Store
}

func NewAnalyzer(store Store) *Analyzer {
	return &Analyzer{store: store}
}

// Analyze builds a quality report for tableRef. A zero-row table yields
// (nil, nil): analysis skipped, not an error. A single column's query
// failure leaves that column absent from the report.
func (a *Analyzer) Analyze(ctx context.Context, tableRef string, columns []string) (*models.QualityReport, error) {
	meta, err := a.store.TableMeta(ctx, tableRef)
	if err != nil {
		return nil, fmt.Errorf("get table %q: %w", tableRef, err)
	}
	if meta.NumRows == 0 {
		log.Warn().Str("table", tableRef).Msg("empty table, skipping quality analysis")
		return nil, nil
	}

	report := &models.QualityReport{
		TableRef:   tableRef,
		TotalRows:  meta.NumRows,
		Columns:    make(map[string]models.ColumnStats, len(columns)),
		AnalyzedAt: time.Now().UTC(),
	}

	for _, col := range columns {
		stats, err := a.analyzeColumn(ctx, tableRef, col)
		if err != nil {
			log.Error().Err(err).Str("column", col).Msg("column analysis failed")
			continue
		}
		report.Columns[col] = stats
	}
	return report, nil
}

func (a *Analyzer) analyzeColumn(ctx context.Context, tableRef, column string) (models.ColumnStats, error) {
	sql := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total_rows,
			COUNT(%[1]s) AS non_null_count,
			COUNTIF(TRIM(CAST(%[1]s AS STRING)) = '') AS empty_string_count,
			COUNTIF(REGEXP_CONTAINS(CAST(%[1]s AS STRING), r'^\s+$')) AS whitespace_only_count,
			APPROX_COUNT_DISTINCT(%[1]s) AS distinct_values,
			MIN(LENGTH(CAST(%[1]s AS STRING))) AS min_length,
			MAX(LENGTH(CAST(%[1]s AS STRING))) AS max_length
		FROM `+"`%[2]s`", quoteIdent(column), tableRef)

	rows, err := a.store.QueryRows(ctx, sql)
	if err != nil {
		return models.ColumnStats{}, err
	}
	if len(rows) == 0 {
		return models.ColumnStats{}, fmt.Errorf("no result row for column %q", column)
	}
	row := rows[0]

	total := asInt64(row["total_rows"])
	if total == 0 {
		return models.ColumnStats{}, fmt.Errorf("zero rows reported for column %q", column)
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	return models.ColumnStats{
		NonNullPct:     pct(asInt64(row["non_null_count"])),
		EmptyPct:       pct(asInt64(row["empty_string_count"])),
		WhitespacePct:  pct(asInt64(row["whitespace_only_count"])),
		DistinctValues: asInt64(row["distinct_values"]),
		MinLength:      asInt64(row["min_length"]),
		MaxLength:      asInt64(row["max_length"]),
	}, nil
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

// asInt64 normalizes the numeric types the query runner hands back.
// NULL aggregates (MIN over an all-null column) come through as nil.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
