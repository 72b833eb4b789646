package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

// Strategy selects how remediation is executed. Copy is preferred when
// a new table is an acceptable deliverable; in-place preserves table
// identity but is destructive and must be backup-gated by the caller.
type Strategy string

const (
	StrategyInPlace Strategy = "in_place"
	StrategyCopy    Strategy = "copy"
)

// OpToggles enables individual remediation primitives.
type OpToggles struct {
	Trim              bool
	NullifyEmpty      bool
	NullifyWhitespace bool
}

// Thresholds gate the per-column cleaning decision.
type Thresholds struct {
	MinIssuePct         float64
	MaxIssuePct         float64
	DuplicateCeilingPct float64
	NullRowCeilingPct   float64
	Ops                 OpToggles
}

// TogglesFromList converts the config operations list to toggles.
func TogglesFromList(ops []string) OpToggles {
	var t OpToggles
	for _, op := range ops {
		switch op {
		case "trim":
			t.Trim = true
		case "nullify_empty":
			t.NullifyEmpty = true
		case "nullify_whitespace":
			t.NullifyWhitespace = true
		}
	}
	return t
}

// BuildPlan derives the cleaning plan from a quality report. Columns
// whose issue rate falls outside [MinIssuePct, MaxIssuePct] are left
// alone: too few issues means nothing to fix, too many means the
// sparsity is probably legitimate. Bounds are inclusive. An empty plan
// is a valid terminal state.
func BuildPlan(report *models.QualityReport, columns []string, t Thresholds) models.CleaningPlan {
	plan := models.CleaningPlan{TableRef: report.TableRef}

	for _, col := range columns {
		stats, ok := report.Columns[col]
		if !ok {
			continue
		}
		issuePct := stats.IssuePct()
		if issuePct < t.MinIssuePct || issuePct > t.MaxIssuePct {
			continue
		}

		var ops []models.CleanOp
		if t.Ops.Trim {
			ops = append(ops, models.OpTrim)
		}
		if t.Ops.NullifyEmpty && stats.EmptyPct < t.MaxIssuePct {
			ops = append(ops, models.OpNullifyEmpty)
		}
		if t.Ops.NullifyWhitespace && stats.WhitespacePct < t.MaxIssuePct {
			ops = append(ops, models.OpNullifyWhitespace)
		}
		if len(ops) == 0 {
			continue
		}

		plan.Columns = append(plan.Columns, models.ColumnPlan{
			Column:   col,
			Ops:      ops,
			IssuePct: issuePct,
		})
	}
	return plan
}

// columnExpr nests the remediation primitives around the column in
// fixed order: trim, then nullify empty, then nullify whitespace.
func columnExpr(cp models.ColumnPlan) string {
	expr := quoteIdent(cp.Column)
	for _, op := range cp.Ops {
		switch op {
		case models.OpTrim:
			expr = fmt.Sprintf("TRIM(%s)", expr)
		case models.OpNullifyEmpty:
			expr = fmt.Sprintf("NULLIF(%s, '')", expr)
		case models.OpNullifyWhitespace:
			expr = fmt.Sprintf(`CASE WHEN REGEXP_CONTAINS(%s, r'^\s+$') THEN NULL ELSE %s END`, expr, expr)
		}
	}
	return expr
}

// Cleaner executes cleaning plans against the table store.
type Cleaner struct {
	store Store
	now   func() time.Time
}

func NewCleaner(store Store) *Cleaner {
	return &Cleaner{store: store, now: time.Now}
}

// CleanInPlace applies the whole plan as a single bulk UPDATE. The
// caller must hold a backup before calling; this component does not
// roll back on failure.
func (c *Cleaner) CleanInPlace(ctx context.Context, plan models.CleaningPlan) (int64, error) {
	if plan.Empty() {
		return 0, nil
	}

	clauses := make([]string, 0, len(plan.Columns))
	for _, cp := range plan.Columns {
		clauses = append(clauses, fmt.Sprintf("%s = %s", quoteIdent(cp.Column), columnExpr(cp)))
		log.Info().
			Str("column", cp.Column).
			Str("ops", joinOps(cp.Ops)).
			Float64("issue_pct", cp.IssuePct).
			Msg("cleaning column")
	}

	sql := fmt.Sprintf("UPDATE `%s`\nSET %s\nWHERE true", plan.TableRef, strings.Join(clauses, ", "))
	affected, err := c.store.Exec(ctx, sql)
	if err != nil {
		return 0, models.NewError(models.KindCleaningFailure, "cleaner", err)
	}

	log.Info().Int64("rows_affected", affected).Int("columns", len(plan.Columns)).Msg("cleaning complete")
	return affected, nil
}

// CopyOutcome describes what copy-based remediation actually did.
type CopyOutcome struct {
	DestRef         string
	DistinctApplied bool
	NullRowsDropped bool
	DuplicatePct    float64
	NullRowPct      float64
}

// CleanCopy writes a remediated copy of tableRef into a freshly named
// destination, leaving the original untouched. DISTINCT applies only
// when duplicates exist and their rate is under the ceiling; likewise
// the all-required-columns NOT NULL filter for null-bearing rows.
func (c *Cleaner) CleanCopy(ctx context.Context, tableRef string, requiredCols []string, totalRows int64, t Thresholds) (*CopyOutcome, error) {
	if totalRows == 0 {
		return nil, models.Errorf(models.KindCleaningFailure, "cleaner", "cannot copy-clean empty table %s", tableRef)
	}

	dupCount, err := c.duplicateCount(ctx, tableRef)
	if err != nil {
		return nil, models.NewError(models.KindCleaningFailure, "cleaner", err)
	}
	nullCount, err := c.nullRowCount(ctx, tableRef, requiredCols)
	if err != nil {
		return nil, models.NewError(models.KindCleaningFailure, "cleaner", err)
	}

	dupPct := float64(dupCount) / float64(totalRows) * 100
	nullPct := float64(nullCount) / float64(totalRows) * 100

	selectClause := "SELECT *"
	if dupCount > 0 && dupPct < t.DuplicateCeilingPct {
		selectClause = "SELECT DISTINCT *"
		log.Info().Float64("duplicate_pct", dupPct).Msg("removing duplicate rows")
	} else {
		log.Warn().Float64("duplicate_pct", dupPct).Msg("keeping duplicates (too many or none found)")
	}

	whereClause := ""
	if nullCount > 0 && nullPct < t.NullRowCeilingPct {
		conds := make([]string, len(requiredCols))
		for i, col := range requiredCols {
			conds[i] = quoteIdent(col) + " IS NOT NULL"
		}
		whereClause = " WHERE " + strings.Join(conds, " AND ")
		log.Info().Float64("null_row_pct", nullPct).Msg("removing rows with missing values")
	} else {
		log.Warn().Float64("null_row_pct", nullPct).Msg("keeping rows with missing values (too many or none found)")
	}

	destRef := fmt.Sprintf("%s_cleaned_%s", tableRef, c.now().UTC().Format("20060102_150405"))
	sql := fmt.Sprintf("%s FROM `%s`%s", selectClause, tableRef, whereClause)

	if err := c.store.QueryToTable(ctx, sql, destRef); err != nil {
		return nil, models.NewError(models.KindCleaningFailure, "cleaner", err)
	}

	log.Info().Str("dest", destRef).Msg("cleaned table created")
	return &CopyOutcome{
		DestRef:         destRef,
		DistinctApplied: dupCount > 0 && dupPct < t.DuplicateCeilingPct,
		NullRowsDropped: nullCount > 0 && nullPct < t.NullRowCeilingPct,
		DuplicatePct:    dupPct,
		NullRowPct:      nullPct,
	}, nil
}

func (c *Cleaner) duplicateCount(ctx context.Context, tableRef string) (int64, error) {
	sql := fmt.Sprintf("SELECT COUNT(*) - COUNT(DISTINCT TO_JSON_STRING(t)) AS dup_count FROM `%s` t", tableRef)
	rows, err := c.store.QueryRows(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("count duplicates: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count duplicates: empty result")
	}
	return asInt64(rows[0]["dup_count"]), nil
}

func (c *Cleaner) nullRowCount(ctx context.Context, tableRef string, requiredCols []string) (int64, error) {
	if len(requiredCols) == 0 {
		return 0, nil
	}
	conds := make([]string, len(requiredCols))
	for i, col := range requiredCols {
		conds[i] = quoteIdent(col) + " IS NULL"
	}
	sql := fmt.Sprintf("SELECT COUNT(*) AS na_count FROM `%s` WHERE %s", tableRef, strings.Join(conds, " OR "))
	rows, err := c.store.QueryRows(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("count null rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count null rows: empty result")
	}
	return asInt64(rows[0]["na_count"]), nil
}

func joinOps(ops []models.CleanOp) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, ",")
}
