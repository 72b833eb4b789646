package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/pipeline"
)

const sampleCSV = "Email,Age\na@example.com,30\nb@example.com,40\n"

func testOptions(strategy pipeline.Strategy) pipeline.Options {
	return pipeline.Options{
		ProjectID:       "proj",
		SampleRows:      100,
		MaxBadRecords:   1000,
		Policy:          fastPolicy(),
		Thresholds:      defaultThresholds(),
		Strategy:        strategy,
		EnableCleaning:  true,
		RowTolerancePct: 1.0,
	}
}

// worldStore is a stateful fake: RunLoad materializes the destination
// table, and query behavior dispatches on the SQL shape.
type worldStore struct {
	fakeStore
	tmu      sync.Mutex
	tables   map[string]*pipeline.TableMeta
	colStats []map[string]any
}

func newWorldStore(colStats []map[string]any) *worldStore {
	w := &worldStore{
		tables:   make(map[string]*pipeline.TableMeta),
		colStats: colStats,
	}
	w.datasetExists = func(string) (bool, error) { return true, nil }
	w.tableMeta = func(ref string) (*pipeline.TableMeta, error) {
		w.tmu.Lock()
		defer w.tmu.Unlock()
		meta, ok := w.tables[ref]
		if !ok {
			return nil, pipeline.ErrNotFound
		}
		cp := *meta
		return &cp, nil
	}
	w.runLoad = func(spec pipeline.LoadSpec) error {
		w.tmu.Lock()
		defer w.tmu.Unlock()
		w.tables[spec.TableRef] = &pipeline.TableMeta{
			NumRows: 2,
			Columns: spec.Schema.Names(),
		}
		return nil
	}
	w.queryRows = func(sql string) ([]map[string]any, error) {
		switch {
		case strings.Contains(sql, "dup_count"):
			return []map[string]any{{"dup_count": int64(0)}}, nil
		case strings.Contains(sql, "na_count"):
			return []map[string]any{{"na_count": int64(0)}}, nil
		case strings.Contains(sql, "row_count"):
			return []map[string]any{{"row_count": int64(2)}}, nil
		default:
			return w.colStats, nil
		}
	}
	w.queryToTable = func(sql, destRef string) error {
		w.tmu.Lock()
		defer w.tmu.Unlock()
		w.tables[destRef] = &pipeline.TableMeta{NumRows: 2, Columns: []string{"email", "age"}}
		return nil
	}
	return w
}

func objects() *fakeObjects {
	return &fakeObjects{contents: map[string]string{
		"uploads/sales-orders-create__f.csv": sampleCSV,
	}}
}

func event(name string) models.TriggerEvent {
	return models.TriggerEvent{Bucket: "uploads", Name: name}
}

func TestRun_HappyPathNoCleaningNeeded(t *testing.T) {
	store := newWorldStore(statRow(2, 2, 0, 0, 2, 5, 20))
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusLoaded {
		t.Fatalf("status = %s (%s): %s", res.Status, res.ErrorKind, res.Message)
	}
	if res.TableRef != "proj.sales.orders" {
		t.Errorf("table ref = %q", res.TableRef)
	}
	if res.RowsLoaded != 2 {
		t.Errorf("rows = %d", res.RowsLoaded)
	}
	if res.Cleaned {
		t.Error("clean data must not trigger remediation")
	}
	if res.InvocationID == "" {
		t.Error("invocation id missing")
	}
}

func TestRun_SkipsNonCSV(t *testing.T) {
	store := &fakeStore{}
	p := pipeline.New(store, &fakeObjects{}, testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("sales-orders-create__f.parquet"))
	if res.Status != models.StatusSkipped {
		t.Errorf("status = %s, want skipped", res.Status)
	}
}

func TestRun_MalformedNameFailsBeforeAnyCloudCall(t *testing.T) {
	store := &fakeStore{} // any store call would error
	p := pipeline.New(store, &fakeObjects{}, testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("badname.csv"))
	if res.Status != models.StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if res.ErrorKind != models.KindMalformedRequest {
		t.Errorf("kind = %s", res.ErrorKind)
	}
}

func TestRun_CreateConflictEndsCleanly(t *testing.T) {
	store := newWorldStore(nil)
	store.tables["proj.sales.orders"] = &pipeline.TableMeta{NumRows: 50, Columns: []string{"email", "age"}}
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusConflict {
		t.Fatalf("status = %s", res.Status)
	}
	if len(store.loads) != 0 {
		t.Error("conflict must not submit a load job")
	}
	if store.tables["proj.sales.orders"].NumRows != 50 {
		t.Error("existing table row count must be untouched")
	}
}

func TestRun_CopyCleaningProducesNewTable(t *testing.T) {
	// One of two rows empty puts the column inside the cleaning bounds.
	store := newWorldStore(statRow(2, 2, 1, 0, 2, 5, 20))
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusLoaded {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if !res.Cleaned {
		t.Fatal("expected cleaning to run")
	}
	if !strings.HasPrefix(res.CleanedRef, "proj.sales.orders_cleaned_") {
		t.Errorf("cleaned ref = %q", res.CleanedRef)
	}
	// Copy-based remediation leaves the original untouched.
	if store.tables["proj.sales.orders"].NumRows != 2 {
		t.Error("original table mutated by copy strategy")
	}
}

func TestRun_InPlaceCleaningIsBackupGated(t *testing.T) {
	store := newWorldStore(statRow(2, 2, 1, 0, 2, 5, 20))
	store.exec = func(sql string) (int64, error) {
		w := store
		if m := createAsSelectRE.FindStringSubmatch(sql); m != nil {
			w.tmu.Lock()
			defer w.tmu.Unlock()
			src := *w.tables[m[2]]
			w.tables[m[1]] = &src
			return src.NumRows, nil
		}
		return 2, nil // the UPDATE
	}
	store.deleteTable = func(ref string) error {
		store.tmu.Lock()
		defer store.tmu.Unlock()
		delete(store.tables, ref)
		return nil
	}
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyInPlace))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusLoaded {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if !res.Cleaned {
		t.Fatal("expected in-place cleaning")
	}

	var sawBackup, sawUpdate bool
	for _, sql := range store.execSQL {
		if strings.Contains(sql, "_backup_") && strings.HasPrefix(sql, "CREATE TABLE") {
			sawBackup = true
		}
		if strings.HasPrefix(sql, "UPDATE") {
			if !sawBackup {
				t.Fatal("mutation ran before backup")
			}
			sawUpdate = true
		}
	}
	if !sawBackup || !sawUpdate {
		t.Errorf("backup=%v update=%v, both required", sawBackup, sawUpdate)
	}
	if len(store.deleted) != 1 {
		t.Errorf("backup should be cleaned up after validation, deleted=%v", store.deleted)
	}
}

func TestRun_InPlaceFailureRestoresBackup(t *testing.T) {
	store := newWorldStore(statRow(2, 2, 1, 0, 2, 5, 20))
	var restored bool
	store.exec = func(sql string) (int64, error) {
		if m := createAsSelectRE.FindStringSubmatch(sql); m != nil {
			if strings.HasPrefix(sql, "CREATE OR REPLACE") {
				restored = true
			}
			store.tmu.Lock()
			defer store.tmu.Unlock()
			if src, ok := store.tables[m[2]]; ok {
				cp := *src
				store.tables[m[1]] = &cp
				return cp.NumRows, nil
			}
			return 0, errUnexpectedCall
		}
		return 0, errUnexpectedCall // the UPDATE fails
	}
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyInPlace))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusLoaded {
		t.Fatalf("cleaning failure is fatal to the cleaning step only, status = %s", res.Status)
	}
	if res.Cleaned {
		t.Error("cleaning did not succeed")
	}
	if res.ErrorKind != models.KindCleaningFailure {
		t.Errorf("kind = %s", res.ErrorKind)
	}
	if !restored {
		t.Error("failed mutation must restore from backup")
	}
	if len(store.deleted) != 0 {
		t.Error("backup must be kept after a restore")
	}
}

func TestRun_EmptySourceIsTerminalNotError(t *testing.T) {
	store := newWorldStore(nil)
	store.runLoad = func(spec pipeline.LoadSpec) error {
		store.tmu.Lock()
		defer store.tmu.Unlock()
		store.tables[spec.TableRef] = &pipeline.TableMeta{NumRows: 0, Columns: spec.Schema.Names()}
		return nil
	}
	p := pipeline.New(&store.fakeStore, objects(), testOptions(pipeline.StrategyCopy))

	res := p.Run(context.Background(), event("sales-orders-create__f.csv"))
	if res.Status != models.StatusDegraded {
		t.Fatalf("status = %s, want degraded", res.Status)
	}
	if res.ErrorKind != models.KindVerificationTimeout {
		t.Errorf("kind = %s", res.ErrorKind)
	}
}
