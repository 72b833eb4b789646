package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	columnNameRE = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	booleanRE    = regexp.MustCompile(`^(?i:true|false|yes|no|t|f|y|n|0|1)$`)
)

// NormalizeColumnName strips a raw CSV header to [A-Za-z0-9_], trims
// leading/trailing underscores, and lowercases.
func NormalizeColumnName(name string) string {
	cleaned := columnNameRE.ReplaceAllString(name, "_")
	return strings.ToLower(strings.Trim(cleaned, "_"))
}

// DetectColumnType classifies sampled values with ordered precedence:
// boolean, then integer, then float, then string. Integer requires that
// no literal contains a decimal point, so "0700" stays INT64 while a
// single "4.5" demotes the whole column to FLOAT64. A column whose
// sampled values are all empty is a string.
func DetectColumnType(values []string) models.FieldType {
	var nonNull []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		return models.TypeString
	}

	allBool := true
	for _, v := range nonNull {
		if !booleanRE.MatchString(v) {
			allBool = false
			break
		}
	}
	if allBool {
		return models.TypeBoolean
	}

	allInt := true
	for _, v := range nonNull {
		if strings.Contains(v, ".") {
			allInt = false
			break
		}
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
			break
		}
	}
	if allInt {
		return models.TypeInt64
	}

	allFloat := true
	for _, v := range nonNull {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
			break
		}
	}
	if allFloat {
		return models.TypeFloat64
	}

	return models.TypeString
}

// SampleCSV reads the header and up to sampleRows non-blank data rows.
func SampleCSV(r io.Reader, sampleRows int) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err = cr.Read()
	if err != nil {
		return nil, nil, err
	}

	for len(rows) < sampleRows {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		blank := true
		for _, field := range row {
			if strings.TrimSpace(field) != "" {
				blank = false
				break
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return header, rows, nil
}

// InferSchema classifies each header column from the sampled rows. The
// result is authoritative for the full-file load and never revisited.
func InferSchema(header []string, rows [][]string) (models.InferredSchema, error) {
	if len(rows) == 0 {
		return models.InferredSchema{}, models.Errorf(models.KindSchemaInference, "schema",
			"no data rows found in sample")
	}

	schema := models.InferredSchema{Columns: make([]models.ColumnSchema, 0, len(header))}
	for i, raw := range header {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if i < len(row) {
				values = append(values, row[i])
			}
		}

		name := NormalizeColumnName(raw)
		colType := DetectColumnType(values)
		schema.Columns = append(schema.Columns, models.ColumnSchema{Name: name, Type: colType})

		log.Info().Str("column", name).Str("type", string(colType)).Msg("detected column")
	}
	return schema, nil
}
