package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/pipeline"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Compile-time check: the service satisfies the pipeline's store surface.
var _ pipeline.Store = (*BigQueryService)(nil)

// BigQueryService wraps the BigQuery SDK client behind the narrow
// surface the pipeline needs.
type BigQueryService struct {
	client    *bigquery.Client
	projectID string
	location  string
}

// NewBigQueryService creates a new BigQuery client
func NewBigQueryService(ctx context.Context, projectID, credentialsFile, location string) (*BigQueryService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}

	return &BigQueryService{
		client:    client,
		projectID: projectID,
		location:  location,
	}, nil
}

// Close releases the BigQuery client
func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// TestConnection verifies BigQuery connectivity
func (s *BigQueryService) TestConnection(ctx context.Context) error {
	q := s.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// DatasetExists reports whether the dataset is visible.
func (s *BigQueryService) DatasetExists(ctx context.Context, datasetID string) (bool, error) {
	_, err := s.client.Dataset(datasetID).Metadata(ctx)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get dataset %q: %w", datasetID, err)
	}
	return true, nil
}

// CreateDataset issues the create call. A 409 from a concurrent
// creation surfaces as pipeline.ErrConflict.
func (s *BigQueryService) CreateDataset(ctx context.Context, datasetID string) error {
	meta := &bigquery.DatasetMetadata{Location: s.location}
	err := s.client.Dataset(datasetID).Create(ctx, meta)
	if isConflict(err) {
		return pipeline.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create dataset %q: %w", datasetID, err)
	}
	return nil
}

// TableMeta returns row count and column names for a fully-qualified
// table reference, or pipeline.ErrNotFound.
func (s *BigQueryService) TableMeta(ctx context.Context, tableRef string) (*pipeline.TableMeta, error) {
	tbl, err := s.table(tableRef)
	if err != nil {
		return nil, err
	}
	meta, err := tbl.Metadata(ctx)
	if isNotFound(err) {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table %q: %w", tableRef, err)
	}

	cols := make([]string, len(meta.Schema))
	for i, f := range meta.Schema {
		cols[i] = f.Name
	}
	return &pipeline.TableMeta{
		NumRows: int64(meta.NumRows),
		Columns: cols,
	}, nil
}

// RunLoad submits a GCS load job with the explicit inferred schema and
// blocks until the job reaches a terminal state. Schema auto-detection
// stays off: the pipeline's own inference is authoritative.
func (s *BigQueryService) RunLoad(ctx context.Context, spec pipeline.LoadSpec) error {
	tbl, err := s.table(spec.TableRef)
	if err != nil {
		return err
	}

	gcsRef := bigquery.NewGCSReference(spec.SourceURI)
	gcsRef.SourceFormat = bigquery.CSV
	gcsRef.SkipLeadingRows = 1
	gcsRef.FieldDelimiter = ","
	gcsRef.AllowQuotedNewlines = true
	gcsRef.AllowJaggedRows = false
	gcsRef.IgnoreUnknownValues = false
	gcsRef.MaxBadRecords = spec.MaxBadRecords
	gcsRef.AutoDetect = false
	gcsRef.Schema = toBigQuerySchema(spec.Schema)

	loader := tbl.LoaderFrom(gcsRef)
	if spec.Mode == models.ModeCreate {
		loader.WriteDisposition = bigquery.WriteTruncate
	} else {
		loader.WriteDisposition = bigquery.WriteAppend
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("load job run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("load job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job failed: %w", err)
	}
	return nil
}

// QueryRows runs sql and materializes the full result.
func (s *BigQueryService) QueryRows(ctx context.Context, sql string) ([]map[string]any, error) {
	job, err := s.runQuery(ctx, sql)
	if err != nil {
		return nil, err
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	var rows []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}
	return rows, nil
}

// Exec runs a DML or DDL statement and returns affected rows when the
// job reports them.
func (s *BigQueryService) Exec(ctx context.Context, sql string) (int64, error) {
	job, err := s.runQuery(ctx, sql)
	if err != nil {
		return 0, err
	}
	if stats := job.LastStatus().Statistics; stats != nil {
		if qStats, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			return qStats.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

// QueryToTable runs sql with destRef as the destination table.
func (s *BigQueryService) QueryToTable(ctx context.Context, sql, destRef string) error {
	dst, err := s.table(destRef)
	if err != nil {
		return err
	}
	q := s.client.Query(sql)
	q.Dst = dst

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return nil
}

// DeleteTable drops the table.
func (s *BigQueryService) DeleteTable(ctx context.Context, tableRef string) error {
	tbl, err := s.table(tableRef)
	if err != nil {
		return err
	}
	if err := tbl.Delete(ctx); err != nil {
		return fmt.Errorf("delete table %q: %w", tableRef, err)
	}
	return nil
}

func (s *BigQueryService) runQuery(ctx context.Context, sql string) (*bigquery.Job, error) {
	q := s.client.Query(sql)
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return job, nil
}

func (s *BigQueryService) table(tableRef string) (*bigquery.Table, error) {
	parts := strings.Split(tableRef, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid table reference %q", tableRef)
	}
	return s.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]), nil
}

func toBigQuerySchema(schema models.InferredSchema) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		var ft bigquery.FieldType
		switch c.Type {
		case models.TypeBoolean:
			ft = bigquery.BooleanFieldType
		case models.TypeInt64:
			ft = bigquery.IntegerFieldType
		case models.TypeFloat64:
			ft = bigquery.FloatFieldType
		default:
			ft = bigquery.StringFieldType
		}
		out = append(out, &bigquery.FieldSchema{Name: c.Name, Type: ft})
	}
	return out
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 409
}
