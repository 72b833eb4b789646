package pipeline_test

import (
	"context"
	"testing"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/pipeline"
)

var testSchema = models.InferredSchema{Columns: []models.ColumnSchema{
	{Name: "email", Type: models.TypeString},
	{Name: "age", Type: models.TypeInt64},
}}

func testRequest(mode models.WriteMode) *models.IngestionRequest {
	return &models.IngestionRequest{
		DatasetID:  "sales",
		TableID:    "orders",
		Mode:       mode,
		SourcePath: "f.csv",
		Bucket:     "uploads",
		Object:     "sales-orders-" + string(mode) + "__f.csv",
	}
}

func TestLoad_CreateAgainstExistingTableIsConflict(t *testing.T) {
	existing := &pipeline.TableMeta{NumRows: 1000, Columns: []string{"email", "age"}}
	store := &fakeStore{
		tableMeta: func(string) (*pipeline.TableMeta, error) { return existing, nil },
	}
	l := pipeline.NewLoader(store, fastPolicy(), 1000)

	_, err := l.Load(context.Background(), testRequest(models.ModeCreate), testSchema, "p.sales.orders")
	if err == nil {
		t.Fatal("expected conflict")
	}
	if !models.IsKind(err, models.KindLoadConflict) {
		t.Errorf("kind = %q, want load_conflict", models.KindOf(err))
	}
	// CREATE must never touch pre-existing data
	if len(store.loads) != 0 {
		t.Errorf("load job must not be submitted on conflict")
	}
	if existing.NumRows != 1000 {
		t.Errorf("existing table mutated")
	}
}

func TestLoad_AppendSkipsExistenceCheck(t *testing.T) {
	metaCalls := 0
	store := &fakeStore{
		runLoad: func(pipeline.LoadSpec) error { return nil },
	}
	store.tableMeta = func(string) (*pipeline.TableMeta, error) {
		metaCalls++
		return &pipeline.TableMeta{NumRows: 42}, nil
	}
	l := pipeline.NewLoader(store, fastPolicy(), 1000)

	outcome, err := l.Load(context.Background(), testRequest(models.ModeAppend), testSchema, "p.sales.orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.RowsLoaded != 42 {
		t.Errorf("rows = %d, want 42", outcome.RowsLoaded)
	}
	if len(store.loads) != 1 {
		t.Fatalf("expected 1 load, got %d", len(store.loads))
	}
	// The only metadata call is post-load verification.
	if metaCalls != 1 {
		t.Errorf("append should not pre-check existence, got %d meta calls", metaCalls)
	}

	spec := store.loads[0]
	if spec.Mode != models.ModeAppend {
		t.Errorf("mode = %q", spec.Mode)
	}
	if spec.MaxBadRecords != 1000 {
		t.Errorf("max bad records = %d", spec.MaxBadRecords)
	}
	if len(spec.Schema.Columns) != 2 {
		t.Errorf("schema not forwarded")
	}
}

func TestLoad_JobFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		tableMeta: func(string) (*pipeline.TableMeta, error) { return nil, pipeline.ErrNotFound },
		runLoad:   func(pipeline.LoadSpec) error { return errUnexpectedCall },
	}
	store.runLoad = func(pipeline.LoadSpec) error { return context.DeadlineExceeded }
	l := pipeline.NewLoader(store, fastPolicy(), 1000)

	_, err := l.Load(context.Background(), testRequest(models.ModeCreate), testSchema, "p.sales.orders")
	if !models.IsKind(err, models.KindLoadJobFailure) {
		t.Errorf("kind = %q, want load_job_failure", models.KindOf(err))
	}
}

func TestLoad_EmptyTableDegradesInsteadOfFailing(t *testing.T) {
	store := &fakeStore{
		tableMeta: func(string) (*pipeline.TableMeta, error) { return nil, pipeline.ErrNotFound },
		runLoad:   func(pipeline.LoadSpec) error { return nil },
	}
	verifying := false
	store.tableMeta = func(string) (*pipeline.TableMeta, error) {
		if !verifying {
			verifying = true
			return nil, pipeline.ErrNotFound // CREATE pre-check
		}
		return &pipeline.TableMeta{NumRows: 0}, nil
	}
	l := pipeline.NewLoader(store, fastPolicy(), 1000)

	outcome, err := l.Load(context.Background(), testRequest(models.ModeCreate), testSchema, "p.sales.orders")
	if err != nil {
		t.Fatalf("verification timeout must degrade, not fail: %v", err)
	}
	if !outcome.Degraded {
		t.Error("expected degraded outcome")
	}
	if outcome.RowsLoaded != 0 {
		t.Errorf("rows = %d, want 0", outcome.RowsLoaded)
	}
}

func TestLoad_VerificationSucceedsAfterPolling(t *testing.T) {
	calls := 0
	store := &fakeStore{
		runLoad: func(pipeline.LoadSpec) error { return nil },
	}
	store.tableMeta = func(string) (*pipeline.TableMeta, error) {
		calls++
		if calls < 3 {
			return &pipeline.TableMeta{NumRows: 0}, nil
		}
		return &pipeline.TableMeta{NumRows: 7}, nil
	}
	l := pipeline.NewLoader(store, fastPolicy(), 1000)

	outcome, err := l.Load(context.Background(), testRequest(models.ModeAppend), testSchema, "p.sales.orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.RowsLoaded != 7 || outcome.Degraded {
		t.Errorf("outcome = %+v", outcome)
	}
}
