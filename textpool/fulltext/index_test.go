package fulltext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpool/textpool/textpool/schema"
)

func libraryInfo() schema.DataInfo {
	return schema.DataInfo{
		Name: "library",
		Sources: []schema.Source{
			{
				Name: "Books.csv",
				Fields: []schema.Field{
					schema.UniqueField{Name: "id", Type: schema.TypeInt, Identify: true},
					schema.IndexField{Name: "title", Type: schema.TypeText, Language: schema.English, Default: true},
					schema.IndexField{Name: "author", Type: schema.TypeText, Language: schema.English},
					schema.BasicField{Name: "year", Type: schema.TypeInt},
				},
			},
			{
				Name: "notes.csv",
				Fields: []schema.Field{
					schema.IndexField{Name: "text", Type: schema.TypeText, Language: schema.German},
				},
			},
			{
				Name: "shelves.csv",
				Fields: []schema.Field{
					schema.BasicField{Name: "label", Type: schema.TypeText},
				},
			},
		},
	}
}

var books = []map[string]string{
	{"id": "1", "title": "The Adventures of Tom Sawyer", "author": "Mark Twain", "year": "1876"},
	{"id": "2", "title": "Adventures of Huckleberry Finn", "author": "Mark Twain", "year": "1884"},
	{"id": "3", "title": "Life on the Mississippi", "author": "Mark Twain", "year": "1883"},
	{"id": "4", "title": "Moby Dick", "author": "Herman Melville", "year": "1851"},
	{"id": "5", "title": "Twain's River Tales", "author": "Unknown Author", "year": "1900"},
}

func openLibrary(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(t.TempDir(), libraryInfo(), DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	require.Equal(t, len(books), ix.IndexEntries(context.Background(), "Books.csv", books))
	return ix
}

func bookIDs(docs []Document) []int64 {
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		id, _ := d.ID("Books.id")
		out = append(out, id)
	}
	return out
}

func TestSearchField(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	cases := []struct {
		field, query string
		want         []int64
	}{
		{"Books.title", "adventure", []int64{1, 2}},
		{"Books.title", "tom adventures", []int64{1}},
		{"Books.title", "dick or finn", []int64{2, 4}},
		{"Books.title", "adventures and not tom", []int64{2}},
		{"Books.title", "adventures AND NOT tom", []int64{2}},
		{"Books.title", "huck*", []int64{2}},
		{"Books.title", "*sippi", []int64{3}},
		{"Books.title", "m?by", []int64{4}},
		{"Books.title", "author:melville", []int64{4}},
		{"Books.title", "Books.author:melville", []int64{4}},
		{"Books.author", `"Mark Twain"`, []int64{1, 2, 3}},
		{"Books.author", `"Twain Mark"`, []int64{}},
		{"Books.title", "twain", []int64{5}},
		{"Books.title", "(tom or moby) and adventures", []int64{1}},
		{"Books.title", "unknownfield:tom", []int64{}},
	}
	for _, c := range cases {
		got := ix.SearchField(ctx, c.field, c.query)
		assert.Equal(t, c.want, bookIDs(got), "%s: %s", c.field, c.query)
	}
}

func TestSearchFieldStoredValues(t *testing.T) {
	ix := openLibrary(t)
	docs := ix.SearchField(context.Background(), "Books.title", "moby")
	require.Len(t, docs, 1)
	assert.Equal(t, "Moby Dick", docs[0].Get("Books.title"))
	assert.Equal(t, "Herman Melville", docs[0].Get("Books.author"))
	assert.Empty(t, docs[0].Get("Books.year"))
}

func TestSearchFieldNothingToMatch(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()
	assert.Empty(t, ix.SearchField(ctx, "Books.title", "the"))
	assert.Empty(t, ix.SearchField(ctx, "Books.title", "   "))
	assert.Empty(t, ix.SearchField(ctx, "Books.title", "and or"))
	assert.Empty(t, ix.SearchField(ctx, "Books.title", `"unterminated`))
	assert.Empty(t, ix.SearchField(ctx, "Books.year", "1876"))
}

func TestUpsertReplacesDocument(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	n := ix.IndexEntries(ctx, "Books.csv", []map[string]string{
		{"id": "1", "title": "Tom Thumb", "author": "Anonymous"},
	})
	require.Equal(t, 1, n)

	assert.Empty(t, ix.SearchField(ctx, "Books.title", "sawyer"))
	assert.Equal(t, []int64{1}, bookIDs(ix.SearchField(ctx, "Books.title", "tom")))
	assert.Equal(t, []int64{2, 3}, bookIDs(ix.SearchField(ctx, "Books.author", `"Mark Twain"`)))
	assert.Equal(t, int64(len(books)), ix.DocCount(ctx))
}

func TestIndexEntriesSkipsRecordsWithoutIdentifier(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	n := ix.IndexEntries(ctx, "Books.csv", []map[string]string{
		{"title": "no id"},
		{"id": "abc", "title": "bad id"},
		{"id": "7", "title": "Roughing It"},
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(len(books)+1), ix.DocCount(ctx))
	assert.Equal(t, []int64{7}, bookIDs(ix.SearchField(ctx, "Books.title", "roughing")))
}

func TestSyntheticIdentifier(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	idField, ok := ix.IDField("notes")
	require.True(t, ok)
	assert.Equal(t, "notes_ag_id", idField)

	require.Equal(t, 2, ix.IndexEntries(ctx, "notes.csv", []map[string]string{
		{"notes_ag_id": "10", "text": "Die Häuser am Fluss"},
		{"notes_ag_id": "11", "text": "Ein Haus"},
	}))
	docs := ix.SearchField(ctx, "notes.text", "häuser")
	require.Len(t, docs, 1)
	id, ok := docs[0].ID("notes_ag_id")
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	// NOT only ranges over documents of the searched source.
	docs = ix.SearchField(ctx, "notes.text", "ein or not fluss")
	require.Len(t, docs, 1)
	id, _ = docs[0].ID("notes_ag_id")
	assert.Equal(t, int64(11), id)
}

func TestSourcesWithoutIndexAreSkipped(t *testing.T) {
	ix := openLibrary(t)
	_, ok := ix.IDField("shelves")
	assert.False(t, ok)
	assert.Zero(t, ix.IndexEntries(context.Background(), "shelves.csv", []map[string]string{{"label": "A"}}))
	assert.ElementsMatch(t, []string{"Books.title", "Books.author", "notes.text"}, ix.Fields())
}

func TestReaderRefresh(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	assert.Equal(t, []int64{4}, bookIDs(ix.SearchField(ctx, "Books.title", "moby")))
	first := ix.current.Load()
	require.NotNil(t, first)

	// Unchanged index keeps the reader.
	ix.SearchField(ctx, "Books.title", "moby")
	assert.Same(t, first, ix.current.Load())

	ix.IndexEntries(ctx, "Books.csv", []map[string]string{{"id": "6", "title": "Moby Returns"}})
	assert.Equal(t, []int64{4, 6}, bookIDs(ix.SearchField(ctx, "Books.title", "moby")))
	assert.NotSame(t, first, ix.current.Load())
	assert.Zero(t, first.refs.Load())
}

func TestRetainedReaderKeepsSnapshot(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()

	r, err := ix.acquire()
	require.NoError(t, err)

	ix.IndexEntries(ctx, "Books.csv", []map[string]string{{"id": "8", "title": "The Whale"}})

	bm, err := r.postings(ctx, "Books.title", "whale")
	require.NoError(t, err)
	assert.True(t, bm.IsEmpty())

	assert.Equal(t, []int64{8}, bookIDs(ix.SearchField(ctx, "Books.title", "whale")))
	// still referenced by this test
	assert.Equal(t, int32(1), r.refs.Load())
	r.release()
	assert.Zero(t, r.refs.Load())
}

func TestClear(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()
	require.NotEmpty(t, ix.SearchField(ctx, "Books.title", "moby"))
	require.NoError(t, ix.Clear(ctx))
	assert.Zero(t, ix.DocCount(ctx))
	assert.Empty(t, ix.SearchField(ctx, "Books.title", "moby"))
}

func TestReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, err := Open(dir, libraryInfo(), DefaultOptions())
	require.NoError(t, err)
	ix.IndexEntries(ctx, "Books.csv", books)
	require.NoError(t, ix.Close())

	require.NoError(t, Check(dir))

	ix, err = Open(dir, libraryInfo(), DefaultOptions())
	require.NoError(t, err)
	defer ix.Close()
	assert.Equal(t, int64(len(books)), ix.DocCount(ctx))
	assert.Equal(t, []int64{3}, bookIDs(ix.SearchField(ctx, "Books.title", "mississippi")))
}

func TestCheckRejectsMissingIndex(t *testing.T) {
	assert.Error(t, Check(t.TempDir()))
}

func TestClosedIndex(t *testing.T) {
	ix := openLibrary(t)
	ctx := context.Background()
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())

	assert.Empty(t, ix.SearchField(ctx, "Books.title", "moby"))
	assert.Zero(t, ix.IndexEntries(ctx, "Books.csv", books))
	assert.Zero(t, ix.DocCount(ctx))
}
