package textpool

import (
	"context"

	"github.com/textpool/textpool/textpool/diff"
	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/storage"
)

// ColumnDiff compares values of one column against Base. Changes holds one
// entry per compared value, the zero Change where a value equals Base.
type ColumnDiff struct {
	Column  string        `json:"column"`
	Base    string        `json:"base"`
	Changes []diff.Change `json:"changes"`
}

// CompareRows compares the rows of the target with the given primary keys.
// For every non-key column the first row is the base and the others are
// diffed against it.
func (s *Service) CompareRows(ctx context.Context, t Target, keys []string) ([]ColumnDiff, error) {
	pool, target, err := s.resolve(t)
	if err != nil {
		return nil, err
	}
	store := pool.Store()
	tbl, ok := store.Table(target.Source)
	if !ok {
		return nil, tperrors.NotFound("table " + target.Source)
	}
	if len(keys) < 2 {
		return nil, tperrors.New(tperrors.ErrConfig, "compare needs at least two rows")
	}

	byKey := make(map[string]storage.Row)
	for _, row := range store.Select(ctx, tbl.Name, storage.Where{tbl.PrimaryKey: keys}, storage.SelectOptions{}) {
		byKey[row[tbl.PrimaryKey]] = row
	}
	rows := make([]storage.Row, len(keys))
	for i, k := range keys {
		row, ok := byKey[k]
		if !ok {
			return nil, tperrors.NotFound("row " + k + " in " + target.String())
		}
		rows[i] = row
	}

	var out []ColumnDiff
	for _, col := range tbl.Columns {
		if col.Primary {
			continue
		}
		values := make([]string, len(rows))
		for i, row := range rows {
			values[i] = row[col.Name]
		}
		out = append(out, compareValues(col.Name, values[0], values[1:]))
	}
	return out, nil
}

// CompareVariants diffs, for every row of a variant-mapped source whose base
// column equals value, each variant column against value.
func (s *Service) CompareVariants(ctx context.Context, t Target, value string) ([]ColumnDiff, error) {
	pool, target, err := s.resolve(t)
	if err != nil {
		return nil, err
	}
	vm, ok := pool.variants[target.Source]
	if !ok {
		return nil, tperrors.New(tperrors.ErrConfig, target.String()+" has no variant mapping")
	}
	rows := pool.Store().Select(ctx, target.Source, storage.Where{vm.Base: {value}}, storage.SelectOptions{})
	if len(rows) == 0 {
		return nil, tperrors.NotFound(vm.Base + " " + value + " in " + target.String())
	}

	out := make([]ColumnDiff, 0, len(vm.Variants))
	for _, col := range vm.Variants {
		values := make([]string, len(rows))
		for i, row := range rows {
			values[i] = row[col]
		}
		out = append(out, compareValues(col, value, values))
	}
	return out, nil
}

func compareValues(column, base string, values []string) ColumnDiff {
	cd := ColumnDiff{Column: column, Base: base, Changes: make([]diff.Change, len(values))}
	for i, v := range values {
		if c, ok := diff.Diff(base, v); ok {
			cd.Changes[i] = c
		}
	}
	return cd
}
