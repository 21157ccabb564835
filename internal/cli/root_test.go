package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpool/textpool/textpool"
	"github.com/textpool/textpool/textpool/diff"
	"github.com/textpool/textpool/textpool/schema"
)

type env struct {
	dataDir string
	sources string
	info    string
}

func setup(t *testing.T) env {
	t.Helper()
	e := env{dataDir: t.TempDir(), sources: t.TempDir()}
	e.info = filepath.Join(e.sources, "shop.yaml")

	info := schema.DataInfo{
		Name: "shop",
		Sources: []schema.Source{{
			Name: "Books.csv",
			Fields: []schema.Field{
				schema.UniqueField{Name: "id", Type: schema.TypeInt, Identify: true},
				schema.IndexField{Name: "title", Type: schema.TypeText, Language: schema.English, Default: true},
			},
		}},
	}
	require.NoError(t, schema.Save(e.info, info))
	require.NoError(t, os.WriteFile(filepath.Join(e.sources, "Books.csv"),
		[]byte("id,title\n1,Life on the Mississippi\n3,Moby Dick\n"), 0o644))
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--data-dir", e.dataDir, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err)
	return out
}

func TestPoolLifecycle(t *testing.T) {
	e := setup(t)

	assert.Equal(t, "created pool shop (1 sources, storage sqlite)\n",
		e.mustRun(t, "index", "create", "--info", e.info, "--sources", e.sources))
	assert.Equal(t, "shop\t1 sources\n", e.mustRun(t, "index", "list"))
	assert.Equal(t, "shop.Books\n", e.mustRun(t, "discover", "pools"))
	assert.Equal(t, "shop: ok\n", e.mustRun(t, "index", "check", "shop"))

	_, err := e.run(t, "index", "create", "--info", e.info, "--sources", e.sources)
	assert.Error(t, err)

	assert.Equal(t, "deleted shop\n", e.mustRun(t, "delete", "shop"))
	assert.Empty(t, e.mustRun(t, "index", "list"))
	assert.NoDirExists(t, filepath.Join(e.dataDir, "shop"))
}

func TestQueries(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "index", "create", "--info", e.info, "--sources", e.sources)

	var page textpool.PageResult
	out := e.mustRun(t, "--format", "json", "search", "--in", "shop.Books", "moby")
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Moby Dick", page.Rows[0]["title"])

	assert.Equal(t, "1 rows, 1 pages\nhighlight: moby\n", e.mustRun(t, "count", "moby"))
	assert.Equal(t, "id: 3\ntitle: Moby Dick\n", e.mustRun(t, "get", "shop.Books", "3"))
	assert.Equal(t, "Moby Dick\n", e.mustRun(t, "discover", "values", "shop.Books", "--field", "title", "--prefix", "mo"))
	assert.Equal(t, "id (INT)\ntitle (TEXT) indexed\n", e.mustRun(t, "discover", "fields", "shop.Books"))

	_, err := e.run(t, "get", "shop.Books", "99")
	assert.Error(t, err)
}

func TestPutAndRebuild(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "index", "create", "--info", e.info, "--sources", e.sources)

	extra := filepath.Join(e.sources, "more.tsv")
	require.NoError(t, os.WriteFile(extra, []byte("id\ttitle\n7\tThe Whale\n"), 0o644))
	assert.Equal(t, "appended "+extra+" to shop.Books\n", e.mustRun(t, "put", "shop.Books", extra))
	assert.Equal(t, "1 rows, 1 pages\nhighlight: whale\n", e.mustRun(t, "count", "whale"))

	assert.Equal(t, "rebuilt shop\n", e.mustRun(t, "index", "rebuild", "shop"))
	assert.Equal(t, "1 rows, 1 pages\nhighlight: whale\n", e.mustRun(t, "count", "whale"))

	_, err := e.run(t, "put", "shop", extra)
	assert.Error(t, err)
}

func TestDiffRows(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "index", "create", "--info", e.info, "--sources", e.sources)

	var diffs []textpool.ColumnDiff
	out := e.mustRun(t, "--format", "json", "diff", "rows", "shop.Books", "1", "3")
	require.NoError(t, json.Unmarshal([]byte(out), &diffs))
	require.Len(t, diffs, 1)
	assert.Equal(t, "Life on the Mississippi", diffs[0].Base)
	assert.Equal(t, "Moby Dick", diff.NewValue(diffs[0].Changes[0]))

	out = e.mustRun(t, "diff", "rows", "shop.Books", "1", "1")
	assert.Equal(t, "title: Life on the Mississippi\n  =\n", out)

	_, err := e.run(t, "diff", "variants", "shop.Books", "moby")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "--log-level", "loud", "index", "list")
	assert.Error(t, err)
}
