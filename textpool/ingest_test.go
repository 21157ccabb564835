package textpool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
)

func notesInfo() schema.DataInfo {
	return schema.DataInfo{
		Name: "notes",
		Sources: []schema.Source{{
			Name: "notes.tsv",
			Fields: []schema.Field{
				schema.IndexField{Name: "body", Type: schema.TypeText, Language: schema.English, Default: true},
				schema.BasicField{Name: "tag", Type: schema.TypeText},
			},
		}},
	}
}

func TestIngestWritesStoreAndIndex(t *testing.T) {
	p := openPool(t, booksInfo(), DefaultPoolOptions())
	ctx := context.Background()

	stats := ingest(t, p, "Books.csv", booksCSV)
	assert.Equal(t, IngestStats{Parsed: 5, Stored: 5, Indexed: 5, Batches: 1}, stats)
	assert.Equal(t, int64(5), p.Store().Count(ctx, "Books", nil))
	assert.Equal(t, int64(5), p.Index().DocCount(ctx))

	rows := p.Store().Select(ctx, "Books", storage.Where{"id": {"5"}}, storage.SelectOptions{})
	require.Len(t, rows, 1)
	assert.Equal(t, "The River, Revisited", rows[0]["title"])
}

func TestIngestSyntheticIdentifiersContinue(t *testing.T) {
	p := openPool(t, notesInfo(), DefaultPoolOptions())
	ctx := context.Background()
	opts := DefaultIngestOptions()
	opts.Delimiter = '\t'

	_, err := p.Ingest(ctx, "notes.tsv", strings.NewReader("body\ttag\nfirst river note\ta\nsecond note\tb\n"), opts)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "notes", strings.NewReader("body\ttag\nthird river note\tc\n"), opts)
	require.NoError(t, err)

	rows := p.Store().Select(ctx, "notes", nil, storage.SelectOptions{})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{rows[0]["notes_ag_id"], rows[1]["notes_ag_id"], rows[2]["notes_ag_id"]})
	assert.Equal(t, []int64{1, 3}, p.Search(ctx, "river", false).IDs)
}

func TestIngestMultilineRecord(t *testing.T) {
	p := openPool(t, notesInfo(), DefaultPoolOptions())
	ctx := context.Background()

	csv := "body,tag\n\"a note\nspanning lines\",x\n"
	stats, err := p.Ingest(ctx, "notes.tsv", strings.NewReader(csv), DefaultIngestOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, []int64{1}, p.Search(ctx, "spanning", false).IDs)
}

func TestIngestProgressAndBatches(t *testing.T) {
	p := openPool(t, notesInfo(), DefaultPoolOptions())
	var sb strings.Builder
	sb.WriteString("body,tag\n")
	for i := 0; i < 250; i++ {
		sb.WriteString("entry,t\n")
	}
	var seen []int
	opts := DefaultIngestOptions()
	opts.OnBatch = func(s IngestStats) { seen = append(seen, s.Stored) }

	stats, err := p.Ingest(context.Background(), "notes.tsv", strings.NewReader(sb.String()), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, []int{100, 200, 250}, seen)
}

func TestIngestUnknownSource(t *testing.T) {
	p := openPool(t, notesInfo(), DefaultPoolOptions())
	_, err := p.Ingest(context.Background(), "missing.csv", strings.NewReader("a\n1\n"), DefaultIngestOptions())
	assert.True(t, tperrors.IsKind(err, tperrors.ErrNotFound))
}

func TestIngestCanceled(t *testing.T) {
	p := openPool(t, notesInfo(), DefaultPoolOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Ingest(ctx, "notes.tsv", strings.NewReader("body,tag\nx,y\n"), DefaultIngestOptions())
	assert.True(t, tperrors.IsKind(err, tperrors.ErrIngest))
}

func TestReindex(t *testing.T) {
	p := openPool(t, booksInfo(), DefaultPoolOptions())
	ctx := context.Background()
	ingest(t, p, "Books.csv", booksCSV)

	require.NoError(t, p.Index().Clear(ctx))
	assert.Empty(t, p.Search(ctx, "moby", false).IDs)

	var progress []int
	require.NoError(t, p.Reindex(ctx, func(pct int) { progress = append(progress, pct) }))
	assert.Equal(t, []int{0, 100}, progress)
	assert.Equal(t, []int64{3}, p.Search(ctx, "moby", false).IDs)
	assert.Equal(t, []int64{1, 2}, p.Search(ctx, `author:"mark twain"`, false).IDs)
}
