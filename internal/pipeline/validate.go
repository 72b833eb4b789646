package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

// Validator confirms that remediation did not silently destroy data.
type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// RowCount returns the table's current row count, or 0 (logged) when
// the query fails.
func (v *Validator) RowCount(ctx context.Context, tableRef string) int64 {
	sql := fmt.Sprintf("SELECT COUNT(*) AS row_count FROM `%s`", tableRef)
	rows, err := v.store.QueryRows(ctx, sql)
	if err != nil || len(rows) == 0 {
		log.Warn().Err(err).Str("table", tableRef).Msg("could not get row count")
		return 0
	}
	return asInt64(rows[0]["row_count"])
}

// Validate fails only when the absolute row-count delta exceeds
// tolerancePct of the original count. A non-zero delta inside the
// tolerance is logged and accepted.
func (v *Validator) Validate(ctx context.Context, tableRef string, originalCount int64, tolerancePct float64) bool {
	current := v.RowCount(ctx, tableRef)
	delta := current - originalCount
	if delta == 0 {
		log.Info().Str("table", tableRef).Int64("rows", current).Msg("validation passed")
		return true
	}

	log.Warn().
		Str("table", tableRef).
		Int64("before", originalCount).
		Int64("after", current).
		Msg("row count changed")

	if originalCount == 0 {
		return false
	}
	changePct := math.Abs(float64(delta)) / float64(originalCount) * 100
	if changePct > tolerancePct {
		log.Error().
			Float64("change_pct", changePct).
			Float64("tolerance_pct", tolerancePct).
			Msg("row count change exceeds tolerance")
		return false
	}

	log.Info().Float64("change_pct", changePct).Msg("row count change within tolerance")
	return true
}

// ValidateIntegrity compares expected columns against the live schema.
// A check that cannot run reports IntegrityUnknown rather than silently
// passing; callers decide how permissive to be.
func (v *Validator) ValidateIntegrity(ctx context.Context, tableRef string, expectedColumns []string) models.IntegrityResult {
	meta, err := v.store.TableMeta(ctx, tableRef)
	if err != nil {
		log.Warn().Err(err).Str("table", tableRef).Msg("integrity check could not run")
		return models.IntegrityUnknown
	}

	live := make(map[string]bool, len(meta.Columns))
	for _, col := range meta.Columns {
		live[col] = true
	}

	var missing []string
	for _, col := range expectedColumns {
		if !live[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		log.Warn().Strs("missing_columns", missing).Str("table", tableRef).Msg("expected columns missing")
		return models.IntegrityMissingColumns
	}

	log.Info().Str("table", tableRef).Msg("integrity check passed")
	return models.IntegrityOK
}
