package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/cortexai/ingest/internal/models"
)

// ErrNotFound is returned by Store methods when the dataset or table
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by CreateDataset when another invocation
// created the dataset first.
var ErrConflict = errors.New("already exists")

// TableMeta is the slice of table metadata the pipeline needs.
type TableMeta struct {
	NumRows int64
	Columns []string
}

// LoadSpec describes one load job submission.
type LoadSpec struct {
	SourceURI     string
	TableRef      string
	Schema        models.InferredSchema
	Mode          models.WriteMode
	MaxBadRecords int64
}

// Store is the tabular-store surface the pipeline depends on. The
// BigQuery service implements it; tests substitute doubles.
type Store interface {
	DatasetExists(ctx context.Context, datasetID string) (bool, error)
	CreateDataset(ctx context.Context, datasetID string) error
	TableMeta(ctx context.Context, tableRef string) (*TableMeta, error)
	RunLoad(ctx context.Context, spec LoadSpec) error
	QueryRows(ctx context.Context, sql string) ([]map[string]any, error)
	Exec(ctx context.Context, sql string) (int64, error)
	QueryToTable(ctx context.Context, sql, destRef string) error
	DeleteTable(ctx context.Context, tableRef string) error
}

// ObjectStore reads raw payload bytes from object storage.
type ObjectStore interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}
