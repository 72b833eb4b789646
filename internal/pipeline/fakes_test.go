package pipeline_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/cortexai/ingest/internal/pipeline"
)

// fakeStore implements pipeline.Store with per-test function hooks.
// Unset hooks fail loudly so a test only exercises what it declares.
type fakeStore struct {
	mu sync.Mutex

	datasetExists func(datasetID string) (bool, error)
	createDataset func(datasetID string) error
	tableMeta     func(tableRef string) (*pipeline.TableMeta, error)
	runLoad       func(spec pipeline.LoadSpec) error
	queryRows     func(sql string) ([]map[string]any, error)
	exec          func(sql string) (int64, error)
	queryToTable  func(sql, destRef string) error
	deleteTable   func(tableRef string) error

	loads     []pipeline.LoadSpec
	execSQL   []string
	querySQL  []string
	copySQL   []string
	deleted   []string
	createdDS []string
}

var errUnexpectedCall = errors.New("unexpected store call")

func (f *fakeStore) DatasetExists(_ context.Context, datasetID string) (bool, error) {
	if f.datasetExists == nil {
		return false, errUnexpectedCall
	}
	return f.datasetExists(datasetID)
}

func (f *fakeStore) CreateDataset(_ context.Context, datasetID string) error {
	f.mu.Lock()
	f.createdDS = append(f.createdDS, datasetID)
	f.mu.Unlock()
	if f.createDataset == nil {
		return errUnexpectedCall
	}
	return f.createDataset(datasetID)
}

func (f *fakeStore) TableMeta(_ context.Context, tableRef string) (*pipeline.TableMeta, error) {
	if f.tableMeta == nil {
		return nil, errUnexpectedCall
	}
	return f.tableMeta(tableRef)
}

func (f *fakeStore) RunLoad(_ context.Context, spec pipeline.LoadSpec) error {
	f.mu.Lock()
	f.loads = append(f.loads, spec)
	f.mu.Unlock()
	if f.runLoad == nil {
		return errUnexpectedCall
	}
	return f.runLoad(spec)
}

func (f *fakeStore) QueryRows(_ context.Context, sql string) ([]map[string]any, error) {
	f.mu.Lock()
	f.querySQL = append(f.querySQL, sql)
	f.mu.Unlock()
	if f.queryRows == nil {
		return nil, errUnexpectedCall
	}
	return f.queryRows(sql)
}

func (f *fakeStore) Exec(_ context.Context, sql string) (int64, error) {
	f.mu.Lock()
	f.execSQL = append(f.execSQL, sql)
	f.mu.Unlock()
	if f.exec == nil {
		return 0, errUnexpectedCall
	}
	return f.exec(sql)
}

func (f *fakeStore) QueryToTable(_ context.Context, sql, destRef string) error {
	f.mu.Lock()
	f.copySQL = append(f.copySQL, sql)
	f.mu.Unlock()
	if f.queryToTable == nil {
		return errUnexpectedCall
	}
	return f.queryToTable(sql, destRef)
}

func (f *fakeStore) DeleteTable(_ context.Context, tableRef string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, tableRef)
	f.mu.Unlock()
	if f.deleteTable == nil {
		return errUnexpectedCall
	}
	return f.deleteTable(tableRef)
}

// fakeObjects serves object contents from memory.
type fakeObjects struct {
	contents map[string]string // "bucket/object" -> body
}

func (f *fakeObjects) Open(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	body, ok := f.contents[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// statRow builds the aggregate row the quality query returns.
func statRow(total, nonNull, empty, whitespace, distinct, minLen, maxLen int64) []map[string]any {
	return []map[string]any{{
		"total_rows":            total,
		"non_null_count":        nonNull,
		"empty_string_count":    empty,
		"whitespace_only_count": whitespace,
		"distinct_values":       distinct,
		"min_length":            minLen,
		"max_length":            maxLen,
	}}
}
