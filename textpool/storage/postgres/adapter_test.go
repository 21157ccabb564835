package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

func TestSchemaFor(t *testing.T) {
	assert.Equal(t, "tp_my_pool_v2", SchemaFor("My-Pool.v2"))
	assert.Regexp(t, schemaNameRe, SchemaFor("9lives"))
}

func TestDialect(t *testing.T) {
	a := New("postgres://localhost/db", "tp_x")
	assert.Equal(t, "BIGINT", a.ColumnType(storage.ColInteger))
	assert.Equal(t, "DOUBLE PRECISION", a.ColumnType(storage.ColReal))
	assert.Equal(t, "TEXT", a.ColumnType(storage.ColText))
	assert.Equal(t, "ILIKE", a.LikeOperator())
	assert.Equal(t, "DEFAULT", a.MissingValue())

	b := sqlbuilder.New(a.PlaceholderStyle())
	assert.Equal(t, " LIMIT $1 OFFSET $2", a.Limit(b, 10, 20))
	assert.Equal(t, " OFFSET $3", a.Limit(b, 0, 5))
	assert.Equal(t, "", a.Limit(b, 0, 0))
}

func TestInvalidSchemaRejected(t *testing.T) {
	_, err := New("postgres://localhost/db", "bad-name").Connect(context.Background())
	assert.Error(t, err)
}

// Runs against a live server when TEXTPOOL_PG_DSN is set.
func TestProviderOnPostgres(t *testing.T) {
	dsn := os.Getenv("TEXTPOOL_PG_DSN")
	if dsn == "" {
		t.Skip("TEXTPOOL_PG_DSN not set")
	}
	ctx := context.Background()
	a := New(dsn, SchemaFor("textpool_test"))
	require.NoError(t, a.DropSchema(ctx))
	t.Cleanup(func() { _ = a.DropSchema(ctx) })

	info := schema.DataInfo{
		Name: "textpool_test",
		Sources: []schema.Source{{
			Name: "people.csv",
			Fields: []schema.Field{
				schema.BasicField{Name: "name", Type: schema.TypeText},
				schema.BasicField{Name: "age", Type: schema.TypeInt},
			},
		}},
	}
	p, status, err := storage.Open(ctx, a, info, storage.DefaultOptions())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, storage.StatusSuccess, status)

	n := p.Insert(ctx, "people", []map[string]string{
		{"people_ag_id": "1", "name": "John", "age": "30"},
		{"people_ag_id": "2", "name": "Jon"},
		{"people_ag_id": "3", "name": "Johnson's", "age": "41"},
	})
	require.Equal(t, 3, n)

	rows := p.Select(ctx, "people", storage.Where{"name": {"jo*n"}}, storage.SelectOptions{})
	require.Len(t, rows, 2)
	assert.Equal(t, "John", rows[0]["name"])
	assert.Equal(t, "", rows[1]["age"])
	assert.Equal(t, int64(1), p.Count(ctx, "people", storage.Where{"age": {"3*"}}))
	assert.Equal(t, int64(3), p.MaxID(ctx, "people"))
}
