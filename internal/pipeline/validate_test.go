package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/pipeline"
)

func countStore(count int64) *fakeStore {
	return &fakeStore{
		queryRows: func(sql string) ([]map[string]any, error) {
			return []map[string]any{{"row_count": count}}, nil
		},
	}
}

func TestRowCount_QueryFailureReturnsZero(t *testing.T) {
	store := &fakeStore{
		queryRows: func(string) ([]map[string]any, error) { return nil, errors.New("boom") },
	}
	v := pipeline.NewValidator(store)
	if got := v.RowCount(context.Background(), "p.d.t"); got != 0 {
		t.Errorf("row count = %d, want 0 on failure", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		original int64
		current  int64
		want     bool
	}{
		{"unchanged", 1000, 1000, true},
		{"within tolerance", 1000, 995, true},
		{"exactly at tolerance", 1000, 990, true},
		{"beyond tolerance", 1000, 980, false},
		{"growth beyond tolerance", 1000, 1020, false},
		{"original zero with change", 0, 5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := pipeline.NewValidator(countStore(tc.current))
			got := v.Validate(context.Background(), "p.d.t", tc.original, 1.0)
			if got != tc.want {
				t.Errorf("Validate(%d -> %d) = %v, want %v", tc.original, tc.current, got, tc.want)
			}
		})
	}
}

func TestValidateIntegrity(t *testing.T) {
	store := &fakeStore{
		tableMeta: func(string) (*pipeline.TableMeta, error) {
			return &pipeline.TableMeta{Columns: []string{"email", "age"}}, nil
		},
	}
	v := pipeline.NewValidator(store)

	if got := v.ValidateIntegrity(context.Background(), "p.d.t", []string{"email", "age"}); got != models.IntegrityOK {
		t.Errorf("result = %s, want ok", got)
	}
	if got := v.ValidateIntegrity(context.Background(), "p.d.t", []string{"email", "missing"}); got != models.IntegrityMissingColumns {
		t.Errorf("result = %s, want missing_columns", got)
	}
}

func TestValidateIntegrity_ErrorIsUnknownNotSuccess(t *testing.T) {
	store := &fakeStore{
		tableMeta: func(string) (*pipeline.TableMeta, error) { return nil, errors.New("boom") },
	}
	v := pipeline.NewValidator(store)

	if got := v.ValidateIntegrity(context.Background(), "p.d.t", []string{"email"}); got != models.IntegrityUnknown {
		t.Errorf("a check that cannot run must report unknown, got %s", got)
	}
}
