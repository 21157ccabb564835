package storage_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
	"github.com/textpool/textpool/textpool/storage/sqlite"
)

func peopleInfo() schema.DataInfo {
	return schema.DataInfo{
		Name: "people",
		Sources: []schema.Source{
			{
				Name: "people.csv",
				Fields: []schema.Field{
					schema.IndexField{Name: "name", Type: schema.TypeText, Language: schema.English, Default: true},
					schema.BasicField{Name: "age", Type: schema.TypeInt},
					schema.BasicField{Name: "score", Type: schema.TypeFloat},
					schema.BasicField{Name: "active", Type: schema.TypeBoolean},
				},
			},
			{
				Name: "books.csv",
				Fields: []schema.Field{
					schema.UniqueField{Name: "isbn", Type: schema.TypeInt, Identify: true},
					schema.IndexField{Name: "title", Type: schema.TypeText, Language: schema.English},
				},
			},
		},
	}
}

func openProvider(t *testing.T, opts storage.Options) (*storage.Provider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "people.db")
	p, status, err := storage.Open(context.Background(), sqlite.New(path), peopleInfo(), opts)
	require.NoError(t, err)
	require.Equal(t, storage.StatusSuccess, status)
	t.Cleanup(func() { _ = p.Close() })
	return p, path
}

func seed(t *testing.T, p *storage.Provider) {
	t.Helper()
	recs := []map[string]string{
		{"people_ag_id": "1", "name": "John", "age": "31", "score": "1.5", "active": "true"},
		{"people_ag_id": "2", "name": "Jon", "age": "25", "score": "2.5", "active": "false"},
		{"people_ag_id": "3", "name": "Johnson's", "age": "40"},
		{"people_ag_id": "4", "name": "Mary", "age": "25", "score": "0"},
	}
	require.Equal(t, 4, p.Insert(context.Background(), "people", recs))
}

func names(rows []storage.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["name"]
	}
	return out
}

func TestTableDerivation(t *testing.T) {
	info := peopleInfo()
	people := storage.TableFor(info.Sources[0])
	assert.Equal(t, "people", people.Name)
	assert.Equal(t, "people_ag_id", people.PrimaryKey)
	assert.True(t, people.Synthetic)
	assert.Equal(t, []string{"people_ag_id", "name", "age", "score", "active"}, people.ColumnNames())

	age, ok := people.Column("age")
	require.True(t, ok)
	assert.Equal(t, storage.ColInteger, age.Type)
	active, _ := people.Column("active")
	assert.Equal(t, storage.ColText, active.Type)

	books := storage.TableFor(info.Sources[1])
	assert.Equal(t, "isbn", books.PrimaryKey)
	assert.False(t, books.Synthetic)
}

func TestRoundTrip(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Select(ctx, "people", storage.Where{"people_ag_id": {"1"}}, storage.SelectOptions{})
	require.Len(t, rows, 1)
	assert.Equal(t, storage.Row{
		"people_ag_id": "1", "name": "John", "age": "31", "score": "1.5", "active": "true",
	}, rows[0])

	rows = p.Select(ctx, "people", storage.Where{"people_ag_id": {"3"}}, storage.SelectOptions{})
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["score"], "absent column stays unset")
}

func TestWildcardSelect(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Select(ctx, "people", storage.Where{"name": {"Jo*n"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"John", "Jon"}, names(rows))

	rows = p.Select(ctx, "people", storage.Where{"name": {"j?n"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon"}, names(rows), "like is case-insensitive")

	rows = p.Select(ctx, "people", storage.Where{"name": {"Mary", "Jo*n"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"John", "Jon", "Mary"}, names(rows), "exact and pattern are or-ed")

	rows = p.Select(ctx, "people", storage.Where{"age": {"2*"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon", "Mary"}, names(rows), "patterns work on integer columns")
}

func TestWhereSemantics(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Select(ctx, "people", storage.Where{"age": {"25"}, "name": {"Jon"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon"}, names(rows))

	rows = p.Select(ctx, "people", storage.Where{"age": {"25", "31"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"John", "Jon", "Mary"}, names(rows))

	rows = p.Select(ctx, "people", storage.Where{"nope": {"x"}}, storage.SelectOptions{})
	assert.Len(t, rows, 4, "unknown columns are ignored")

	rows = p.Select(ctx, "people", storage.Where{"age": {"abc"}}, storage.SelectOptions{})
	assert.Empty(t, rows)

	assert.Equal(t, int64(2), p.Count(ctx, "people", storage.Where{"age": {"25"}}))
	assert.Equal(t, int64(4), p.Count(ctx, "people", nil))
}

func TestLiteralLikeMetacharacters(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	ctx := context.Background()
	p.Insert(ctx, "people", []map[string]string{
		{"name": "100%_sure"},
		{"name": "100 percent"},
		{"name": `back\slash`},
	})

	rows := p.Select(ctx, "people", storage.Where{"name": {"100%_*"}}, storage.SelectOptions{})
	assert.Equal(t, []string{"100%_sure"}, names(rows))

	rows = p.Select(ctx, "people", storage.Where{"name": {`back\*`}}, storage.SelectOptions{})
	assert.Equal(t, []string{`back\slash`}, names(rows))
}

func TestOrderAndPagination(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Select(ctx, "people", nil, storage.SelectOptions{Order: &storage.Order{Column: "age", Desc: true}})
	assert.Equal(t, []string{"Johnson's", "John", "Jon", "Mary"}, names(rows))

	rows = p.Select(ctx, "people", nil, storage.SelectOptions{Offset: 1, Limit: 2})
	assert.Equal(t, []string{"Jon", "Johnson's"}, names(rows))

	rows = p.Select(ctx, "people", nil, storage.SelectOptions{Offset: 3})
	assert.Equal(t, []string{"Mary"}, names(rows))

	rows = p.Select(ctx, "people", nil, storage.SelectOptions{Order: &storage.Order{Column: "bogus"}, Limit: 1})
	assert.Equal(t, []string{"John"}, names(rows))
}

func TestSuggestions(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	assert.Equal(t, []string{"John", "Johnson's"}, p.Suggestions(ctx, "people", "name", "joh", 5))
	assert.Equal(t, []string{"John"}, p.Suggestions(ctx, "people", "name", "Joh", 1))
	assert.Empty(t, p.Suggestions(ctx, "people", "missing", "a", 5))
}

func TestSyntheticKeyGenerated(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	ctx := context.Background()
	require.Equal(t, 2, p.Insert(ctx, "people", []map[string]string{{"name": "a"}, {"name": "b"}}))
	assert.Equal(t, int64(2), p.MaxID(ctx, "people"))
}

func TestInvalidValueSkipsRecord(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	ctx := context.Background()
	n := p.Insert(ctx, "people", []map[string]string{
		{"name": "ok", "age": "3"},
		{"name": "bad", "age": "three"},
	})
	assert.Equal(t, 1, n)
}

func TestLockedProviderRejectsInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")
	ctx := context.Background()

	p, _, err := storage.Open(ctx, sqlite.New(path), peopleInfo(), storage.DefaultOptions())
	require.NoError(t, err)
	seed(t, p)
	require.NoError(t, p.Close())

	opts := storage.DefaultOptions()
	opts.Locked = true
	locked, status, err := storage.Open(ctx, sqlite.New(path), peopleInfo(), opts)
	require.NoError(t, err)
	defer locked.Close()
	assert.Equal(t, storage.StatusExists, status)
	assert.True(t, locked.Locked())

	assert.Equal(t, 0, locked.Insert(ctx, "people", []map[string]string{{"name": "Zed"}}))
	assert.Equal(t, int64(4), locked.Count(ctx, "people", nil))
}

func TestEntryMerge(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Get(ctx, "people", []int64{1, 2, 4}, []string{"age:25"}, nil, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon", "Mary"}, names(rows))

	rows = p.Get(ctx, "people", nil, nil, []string{"age:25"}, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon", "Mary"}, names(rows), "filters alone become the where clause")

	rows = p.Get(ctx, "people", []int64{1, 2}, nil, []string{"people_ag_id:2"}, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon"}, names(rows), "filters narrow matching columns")

	rows = p.Get(ctx, "people", []int64{1}, nil, []string{"people_ag_id:3"}, storage.SelectOptions{})
	assert.Empty(t, rows, "disjoint filter yields nothing")

	assert.Equal(t, int64(3), p.CountMatching(ctx, "people", []int64{1, 2, 3}, nil, nil))
	assert.Empty(t, p.Get(ctx, "unknown", nil, nil, nil, storage.SelectOptions{}))
}

func TestQualifiedColumnTokens(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	rows := p.Get(ctx, "people", nil, []string{"people.age:25"}, nil, storage.SelectOptions{})
	assert.Equal(t, []string{"Jon", "Mary"}, names(rows))

	rows = p.Get(ctx, "people", nil, []string{"people.csv.age:40"}, nil, storage.SelectOptions{})
	assert.Equal(t, []string{"Johnson's"}, names(rows))

	rows = p.Get(ctx, "people", []int64{1}, []string{"books.age:25"}, nil, storage.SelectOptions{})
	assert.Equal(t, []string{"John"}, names(rows), "tokens of another source are dropped")

	assert.Equal(t, int64(2), p.CountMatching(ctx, "people", nil, []string{"people.age:25"}, nil))
}

func TestStream(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	ctx := context.Background()
	recs := make([]map[string]string, 0, 25)
	for i := 1; i <= 25; i++ {
		recs = append(recs, map[string]string{"people_ag_id": strconv.Itoa(i), "name": "n" + strconv.Itoa(i)})
	}
	require.Equal(t, 25, p.Insert(ctx, "people", recs))

	var sizes []int
	seen := 0
	require.NoError(t, p.Stream(ctx, "people", 10, func(rows []storage.Row) error {
		sizes = append(sizes, len(rows))
		seen += len(rows)
		return nil
	}))
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, 25, seen)

	assert.Error(t, p.Stream(ctx, "missing", 10, func([]storage.Row) error { return nil }))
}

func TestConnectionDropReturnsEmpty(t *testing.T) {
	p, path := openProvider(t, storage.DefaultOptions())
	seed(t, p)
	ctx := context.Background()

	require.NoError(t, p.DB().Close())

	assert.Empty(t, p.Select(ctx, "people", nil, storage.SelectOptions{}))
	assert.Zero(t, p.Count(ctx, "people", nil))
	assert.Zero(t, p.Insert(ctx, "people", []map[string]string{{"name": "x"}}))
	assert.Empty(t, p.Suggestions(ctx, "people", "name", "J", 3))

	reopened, status, err := storage.Open(ctx, sqlite.New(path), peopleInfo(), storage.DefaultOptions())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, storage.StatusExists, status)
	assert.Equal(t, int64(4), reopened.Count(ctx, "people", nil))
}

func TestClosedProvider(t *testing.T) {
	p, _ := openProvider(t, storage.DefaultOptions())
	require.NoError(t, p.Close())
	assert.Empty(t, p.Select(context.Background(), "people", nil, storage.SelectOptions{}))
	_, ok := p.PrimaryKey("people")
	assert.False(t, ok)
	assert.NoError(t, p.Close())
}
