package pipeline

import (
	"strings"

	"github.com/cortexai/ingest/internal/models"
)

// IsCSV reports whether the triggering object carries a CSV payload.
// Anything else is skipped silently before parsing.
func IsCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// ParseObjectName decodes a trigger object name of the form
// {dataset}-{table}-{mode}__{original_file} into an IngestionRequest.
// Pure parse, no cloud calls; malformed names fail fast.
func ParseObjectName(bucket, name string) (*models.IngestionRequest, error) {
	meta, original, found := strings.Cut(name, "__")
	if !found || original == "" {
		return nil, models.Errorf(models.KindMalformedRequest, "router",
			"object name %q must match dataset-table-mode__file.csv", name)
	}

	tokens := strings.Split(meta, "-")
	if len(tokens) != 3 {
		return nil, models.Errorf(models.KindMalformedRequest, "router",
			"metadata segment %q must have exactly 3 tokens, got %d", meta, len(tokens))
	}
	for i, tok := range tokens {
		if tok == "" {
			return nil, models.Errorf(models.KindMalformedRequest, "router",
				"metadata segment %q has an empty token at position %d", meta, i)
		}
	}

	mode := models.WriteMode(strings.ToLower(tokens[2]))
	if mode != models.ModeCreate && mode != models.ModeAppend {
		return nil, models.Errorf(models.KindMalformedRequest, "router",
			"mode must be create or append, got %q", tokens[2])
	}

	return &models.IngestionRequest{
		DatasetID:  tokens[0],
		TableID:    tokens[1],
		Mode:       mode,
		SourcePath: original,
		Bucket:     bucket,
		Object:     name,
	}, nil
}
