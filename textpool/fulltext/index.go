// Package fulltext is the full-text half of a pool: an inverted index kept in
// one SQLite file per pool directory, searched with roaring bitmaps.
//
// Every indexed field "<source>.<field>" is written twice. The field itself
// holds terms of the field's language analyzer, "<source>.<field>.ws" holds
// lowercased whitespace words and serves quoted phrases and wildcards.
package fulltext

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/fulltext/analysis"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage/sqlite"
)

// FileName is the index file inside a pool's index directory.
const FileName = "index.db"

// ExactSuffix marks the whitespace variant of an indexed field.
const ExactSuffix = ".ws"

const formatVersion = "1"

type Options struct {
	Logger *slog.Logger
	// CacheSize bounds the posting bitmaps cached per reader generation.
	CacheSize int
}

func DefaultOptions() Options {
	return Options{Logger: slog.Default(), CacheSize: 4096}
}

type indexedField struct {
	qualified string
	name      string
	analyzer  *analysis.Analyzer
}

// indexedSource describes how records of one source become documents.
type indexedSource struct {
	norm string
	// idField is the document identifier name, idKey the record column
	// carrying its value.
	idField string
	idKey   string
	fields  []*indexedField
}

type Index struct {
	db   *sql.DB
	dir  string
	log  *slog.Logger
	opts Options

	sources map[string]*indexedSource
	fields  map[string]*indexedField

	// gen advances on every commit; readers older than gen are replaced.
	gen     atomic.Uint64
	current atomic.Pointer[reader]
	swapMu  sync.Mutex
	writeMu sync.Mutex
	closed  atomic.Bool
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS documents (
		doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		id_field TEXT NOT NULL,
		id_value INTEGER NOT NULL,
		UNIQUE (id_field, id_value)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_source ON documents (source)`,
	`CREATE TABLE IF NOT EXISTS stored (
		doc_id INTEGER NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (doc_id, field)
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		field TEXT NOT NULL,
		term TEXT NOT NULL,
		doc_id INTEGER NOT NULL,
		pos INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS postings_term ON postings (field, term)`,
	`CREATE INDEX IF NOT EXISTS postings_doc ON postings (doc_id)`,
}

var requiredTables = []string{"meta", "documents", "stored", "postings"}

// Open opens or creates the index in dir for the indexed sources of info.
// Sources without index fields are skipped.
func Open(dir string, info schema.DataInfo, opts Options) (*Index, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	log = log.With("component", "fulltext", "pool", info.Name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, tperrors.Wrap(tperrors.ErrIO, "create index directory", err)
	}
	ctx := context.Background()
	db, err := sqlite.New(filepath.Join(dir, FileName)).Connect(ctx)
	if err != nil {
		return nil, tperrors.Wrap(tperrors.ErrIO, "open index", err)
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, tperrors.Wrap(tperrors.ErrIndex, "create index schema", err)
		}
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO meta (key, value) VALUES ('version', ?)`, formatVersion); err != nil {
		_ = db.Close()
		return nil, tperrors.Wrap(tperrors.ErrIndex, "write index version", err)
	}

	ix := &Index{
		db:      db,
		dir:     dir,
		log:     log,
		opts:    opts,
		sources: make(map[string]*indexedSource),
		fields:  make(map[string]*indexedField),
	}
	for _, src := range info.Sources {
		ix.register(src)
	}
	log.Debug("index opened", "dir", dir, "fields", len(ix.fields))
	return ix, nil
}

func (ix *Index) register(src schema.Source) {
	if !src.HasIndex() {
		return
	}
	norm := schema.NormalizeSource(src.Name)
	is := &indexedSource{norm: norm, idField: schema.SyntheticID(src.Name), idKey: schema.SyntheticID(src.Name)}
	if id, ok := src.Identifier(); ok {
		is.idField = schema.Qualified(src.Name, id.Name)
		is.idKey = id.Name
	}
	for _, f := range src.Fields {
		switch v := f.(type) {
		case schema.IndexField:
			q := schema.Qualified(src.Name, v.Name)
			field := &indexedField{qualified: q, name: v.Name, analyzer: analysis.For(v.Language)}
			is.fields = append(is.fields, field)
			ix.fields[q] = field
		case schema.BasicField, schema.UniqueField:
		default:
			panic(fmt.Sprintf("fulltext: unknown field variant %T", f))
		}
	}
	ix.sources[norm] = is
}

func (ix *Index) source(name string) (*indexedSource, bool) {
	s, ok := ix.sources[schema.NormalizeSource(name)]
	if !ok {
		s, ok = ix.sources[name]
	}
	return s, ok
}

// Fields returns the qualified names of all indexed fields.
func (ix *Index) Fields() []string {
	out := make([]string, 0, len(ix.fields))
	for q := range ix.fields {
		out = append(out, q)
	}
	return out
}

// IDField returns the identifier field recorded for documents of source.
func (ix *Index) IDField(source string) (string, bool) {
	s, ok := ix.source(source)
	if !ok {
		return "", false
	}
	return s.idField, true
}

func (ix *Index) Dir() string { return ix.dir }

// DocCount returns the number of documents, 0 on failure.
func (ix *Index) DocCount(ctx context.Context) int64 {
	if ix.closed.Load() {
		return 0
	}
	var n int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		ix.log.Error("count documents failed", "err", err)
		return 0
	}
	return n
}

// Clear removes every document.
func (ix *Index) Clear(ctx context.Context) error {
	if ix.closed.Load() {
		return tperrors.New(tperrors.ErrClosed, "index closed")
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return tperrors.Wrap(tperrors.ErrIndex, "begin transaction", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"postings", "stored", "documents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return tperrors.Wrap(tperrors.ErrIndex, "clear "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return tperrors.Wrap(tperrors.ErrIndex, "commit", err)
	}
	ix.gen.Add(1)
	return nil
}

// Close releases the current reader and the writer connection.
func (ix *Index) Close() error {
	if !ix.closed.CompareAndSwap(false, true) {
		return nil
	}
	ix.swapMu.Lock()
	if r := ix.current.Swap(nil); r != nil {
		r.release()
	}
	ix.swapMu.Unlock()
	if err := ix.db.Close(); err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "close index", err)
	}
	return nil
}

// Check verifies that dir holds a readable index.
func Check(dir string) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "stat index", err)
	}
	ctx := context.Background()
	db, err := sqlite.New(path).Connect(ctx)
	if err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "open index", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return tperrors.Wrap(tperrors.ErrIndex, "integrity check", err)
	}
	if result != "ok" {
		return tperrors.New(tperrors.ErrIndex, "integrity check: "+result)
	}
	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return tperrors.New(tperrors.ErrIndex, "missing table "+table)
		}
		if err != nil {
			return tperrors.Wrap(tperrors.ErrIndex, "inspect index", err)
		}
	}
	return nil
}
