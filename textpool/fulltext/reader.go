package fulltext

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	lru "github.com/hashicorp/golang-lru/v2"
)

// reader is a point-in-time view of the index. It holds an open read
// transaction so that commits made after it was opened stay invisible, and
// it is closed once the index has replaced it and the last search using it
// has released it.
type reader struct {
	gen  uint64
	tx   *sql.Tx
	refs atomic.Int32

	// mu serializes statements on the reader's single connection.
	mu    sync.Mutex
	cache *lru.Cache[string, *roaring.Bitmap]
}

func (ix *Index) openReader(gen uint64) (*reader, error) {
	// The snapshot outlives the request that triggered it.
	ctx := context.Background()
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	// SQLite takes the read snapshot at the first statement.
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	cache, err := lru.New[string, *roaring.Bitmap](ix.opts.CacheSize)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	r := &reader{gen: gen, tx: tx, cache: cache}
	r.refs.Store(1)
	ix.log.Debug("reader opened", "generation", gen, "documents", n)
	return r, nil
}

func (r *reader) tryRetain() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (r *reader) release() {
	if r.refs.Add(-1) == 0 {
		_ = r.tx.Rollback()
	}
}

// acquire returns a retained reader at the current generation, reopening it
// when commits happened since the last one was opened.
func (ix *Index) acquire() (*reader, error) {
	for {
		if ix.closed.Load() {
			return nil, fmt.Errorf("index closed")
		}
		gen := ix.gen.Load()
		if r := ix.current.Load(); r != nil && r.gen == gen && r.tryRetain() {
			return r, nil
		}

		ix.swapMu.Lock()
		if r := ix.current.Load(); (r == nil || r.gen != gen) && !ix.closed.Load() {
			nr, err := ix.openReader(gen)
			if err != nil {
				ix.swapMu.Unlock()
				return nil, err
			}
			if old := ix.current.Swap(nr); old != nil {
				old.release()
			}
		}
		ix.swapMu.Unlock()
	}
}

// postings returns the documents containing term in field.
func (r *reader) postings(ctx context.Context, field, term string) (*roaring.Bitmap, error) {
	key := "t\x00" + field + "\x00" + term
	return r.cached(key, func() (*roaring.Bitmap, error) {
		return r.bitmap(ctx, `SELECT doc_id FROM postings WHERE field = ? AND term = ?`, field, term)
	})
}

// glob returns the documents with a term in field matching a wildcard
// pattern: * is any run, ? one rune.
func (r *reader) glob(ctx context.Context, field, pattern string) (*roaring.Bitmap, error) {
	key := "g\x00" + field + "\x00" + pattern
	return r.cached(key, func() (*roaring.Bitmap, error) {
		return r.bitmap(ctx, `SELECT DISTINCT doc_id FROM postings WHERE field = ? AND term GLOB ?`, field, globPattern(pattern))
	})
}

// universe returns every document of source.
func (r *reader) universe(ctx context.Context, source string) (*roaring.Bitmap, error) {
	return r.cached("u\x00"+source, func() (*roaring.Bitmap, error) {
		return r.bitmap(ctx, `SELECT doc_id FROM documents WHERE source = ?`, source)
	})
}

// globPattern keeps * and ? and makes [ literal.
func globPattern(pattern string) string {
	return strings.ReplaceAll(pattern, "[", "[[]")
}

func (r *reader) cached(key string, load func() (*roaring.Bitmap, error)) (*roaring.Bitmap, error) {
	if bm, ok := r.cache.Get(key); ok {
		return bm, nil
	}
	bm, err := load()
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, bm)
	return bm, nil
}

func (r *reader) bitmap(ctx context.Context, query string, args ...any) (*roaring.Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bm := roaring.New()
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		bm.Add(id)
	}
	return bm, rows.Err()
}

// positions returns the positions of term in field for the documents of
// within.
func (r *reader) positions(ctx context.Context, field, term string, within *roaring.Bitmap) (map[uint32][]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.tx.QueryContext(ctx, `SELECT doc_id, pos FROM postings WHERE field = ? AND term = ?`, field, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint32][]int)
	for rows.Next() {
		var (
			id  uint32
			pos int
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, err
		}
		if within.Contains(id) {
			out[id] = append(out[id], pos)
		}
	}
	return out, rows.Err()
}

// documents loads stored fields and identifiers of ids in ascending order.
func (r *reader) documents(ctx context.Context, ids *roaring.Bitmap) ([]Document, error) {
	if ids.IsEmpty() {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]Document, 0, ids.GetCardinality())
	byID := make(map[uint32]int, ids.GetCardinality())
	for _, chunk := range chunks(ids.ToArray(), 500) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		in := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")

		rows, err := r.tx.QueryContext(ctx, `SELECT doc_id, id_field, id_value FROM documents WHERE doc_id IN (`+in+`) ORDER BY doc_id`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id      uint32
				idField string
				idValue int64
			)
			if err := rows.Scan(&id, &idField, &idValue); err != nil {
				rows.Close()
				return nil, err
			}
			byID[id] = len(docs)
			docs = append(docs, Document{
				Fields: make(map[string]string),
				IDs:    map[string]int64{idField: idValue},
			})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		rows, err = r.tx.QueryContext(ctx, `SELECT doc_id, field, value FROM stored WHERE doc_id IN (`+in+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id           uint32
				field, value string
			)
			if err := rows.Scan(&id, &field, &value); err != nil {
				rows.Close()
				return nil, err
			}
			if i, ok := byID[id]; ok {
				docs[i].Fields[field] = value
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func chunks(ids []uint32, size int) [][]uint32 {
	var out [][]uint32
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
