// Package storage is the relational half of a pool: one table per source,
// batched inserts and filtered, paginated reads.
//
// Open fails if the store cannot be reached. After that every public method
// logs failures and returns an empty or zero result.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusExists
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusExists:
		return "exists"
	default:
		return "failed"
	}
}

// maxParams bounds the bind variables of one INSERT statement; larger
// batches are split inside the same transaction.
const maxParams = 30000

type Options struct {
	// Locked providers reject inserts and stay readable.
	Locked bool
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{Logger: slog.Default()}
}

// Row maps column names to values rendered as text. NULL is "".
type Row map[string]string

type Order struct {
	Column string
	Desc   bool
}

type SelectOptions struct {
	Order  *Order
	Offset int
	// Limit <= 0 means unbounded.
	Limit int
}

type Provider struct {
	adapter Adapter
	db      *sql.DB
	locked  bool
	log     *slog.Logger

	mu     sync.RWMutex
	tables map[string]*Table
	closed bool
}

// Open connects through the adapter and creates a table per source. A source
// whose table cannot be created is logged and left out.
func Open(ctx context.Context, adapter Adapter, info schema.DataInfo, opts Options) (*Provider, Status, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "storage", "pool", info.Name)

	existed, err := adapter.Exists(ctx)
	if err != nil {
		return nil, StatusFailed, tperrors.Wrap(tperrors.ErrIO, "check store", err)
	}
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, StatusFailed, tperrors.Wrap(tperrors.ErrIO, "connect to database", err)
	}

	p := &Provider{
		adapter: adapter,
		db:      db,
		locked:  opts.Locked,
		log:     log,
		tables:  make(map[string]*Table, len(info.Sources)),
	}
	for _, src := range info.Sources {
		t := TableFor(src)
		err := p.withTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, t.createSQL(adapter))
			return err
		})
		if err != nil {
			log.Error("create table failed, skipping source", "table", t.Name, "err", err)
			continue
		}
		p.tables[t.Name] = t
	}

	log.Info("storage opened", "backend", adapter.Backend(), "location", adapter.Location(), "locked", opts.Locked, "tables", len(p.tables))
	if existed {
		return p, StatusExists, nil
	}
	return p, StatusSuccess, nil
}

// DB exposes the underlying handle for maintenance tasks.
func (p *Provider) DB() *sql.DB { return p.db }

func (p *Provider) Locked() bool { return p.locked }

func (p *Provider) Table(name string) (*Table, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tables[name]
	return t, ok && !p.closed
}

// PrimaryKey returns the identifier column of a table.
func (p *Provider) PrimaryKey(table string) (string, bool) {
	t, ok := p.Table(table)
	if !ok {
		return "", false
	}
	return t.PrimaryKey, true
}

func (p *Provider) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return tperrors.Wrap(tperrors.ErrSQL, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return tperrors.Wrap(tperrors.ErrSQL, "commit", err)
	}
	return nil
}

func (p *Provider) lookup(table string) (*Table, bool) {
	t, ok := p.Table(table)
	if !ok {
		p.log.Warn("unknown table", "table", table)
	}
	return t, ok
}

// Insert writes records in one multi-row INSERT per chunk inside a single
// transaction and returns the number of rows written. Columns missing from a
// record are left unset; records with values that do not fit their column
// type are skipped.
func (p *Provider) Insert(ctx context.Context, table string, records []map[string]string) int {
	if p.locked {
		p.log.Warn("blocked insert on locked provider", "table", table)
		return 0
	}
	t, ok := p.lookup(table)
	if !ok || len(records) == 0 {
		return 0
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		if row, ok := p.bindRow(t, rec); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return 0
	}

	chunk := max(1, maxParams/len(t.Columns))
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(rows); start += chunk {
			end := min(start+chunk, len(rows))
			query, args := p.insertSQL(t, rows[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return tperrors.Wrap(tperrors.ErrSQL, "insert into "+t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		p.log.Error("insert failed", "table", t.Name, "rows", len(rows), "err", err)
		return 0
	}
	return len(rows)
}

// bindRow converts a record into column order. A nil entry marks a column
// absent from the record.
func (p *Provider) bindRow(t *Table, rec map[string]string) ([]any, bool) {
	row := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		raw, ok := rec[c.Name]
		if !ok {
			continue
		}
		v, err := convert(c, raw)
		if err != nil {
			p.log.Warn("skipping record with invalid value", "table", t.Name, "column", c.Name, "value", raw)
			return nil, false
		}
		row[i] = v
	}
	return row, true
}

func (p *Provider) insertSQL(t *Table, rows [][]any) (string, []any) {
	b := sqlbuilder.New(p.adapter.PlaceholderStyle())
	tuples := make([]string, len(rows))
	for i, row := range rows {
		ph := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				ph[j] = p.adapter.MissingValue()
			} else {
				ph[j] = b.Arg(v)
			}
		}
		tuples[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", sqlbuilder.Ident(t.Name), t.selectList(), strings.Join(tuples, ", "))
	return query, b.Args()
}

// Select returns the rows matching where. Without an explicit order rows come
// back in primary key order.
func (p *Provider) Select(ctx context.Context, table string, where Where, opts SelectOptions) []Row {
	t, ok := p.lookup(table)
	if !ok {
		return nil
	}

	b := sqlbuilder.New(p.adapter.PlaceholderStyle())
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", t.selectList(), sqlbuilder.Ident(t.Name))
	sb.WriteString(buildWhere(b, p.adapter, t, where))

	orderCol, desc := t.PrimaryKey, false
	if opts.Order != nil {
		if _, ok := t.Column(opts.Order.Column); ok {
			orderCol, desc = opts.Order.Column, opts.Order.Desc
		} else {
			p.log.Debug("ignoring order on unknown column", "table", t.Name, "column", opts.Order.Column)
		}
	}
	sb.WriteString(" ORDER BY " + sqlbuilder.Ident(orderCol))
	if desc {
		sb.WriteString(" DESC")
	}
	if orderCol != t.PrimaryKey {
		sb.WriteString(", " + sqlbuilder.Ident(t.PrimaryKey))
	}
	sb.WriteString(p.adapter.Limit(b, opts.Limit, max(opts.Offset, 0)))

	var out []Row
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, sb.String(), b.Args()...)
		if err != nil {
			return tperrors.Wrap(tperrors.ErrSQL, "select from "+t.Name, err)
		}
		defer rows.Close()
		out, err = scanRows(rows, t)
		return err
	})
	if err != nil {
		p.log.Error("select failed", "table", t.Name, "err", err)
		return nil
	}
	return out
}

func scanRows(rows *sql.Rows, t *Table) ([]Row, error) {
	var out []Row
	vals := make([]sql.NullString, len(t.Columns))
	dest := make([]any, len(t.Columns))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, tperrors.Wrap(tperrors.ErrSQL, "scan row", err)
		}
		r := make(Row, len(t.Columns))
		for i, c := range t.Columns {
			r[c.Name] = vals[i].String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, tperrors.Wrap(tperrors.ErrSQL, "iterate rows", err)
	}
	return out, nil
}

// Count returns the number of rows matching where.
func (p *Provider) Count(ctx context.Context, table string, where Where) int64 {
	t, ok := p.lookup(table)
	if !ok {
		return 0
	}
	b := sqlbuilder.New(p.adapter.PlaceholderStyle())
	query := "SELECT COUNT(*) FROM " + sqlbuilder.Ident(t.Name) + buildWhere(b, p.adapter, t, where)

	var n int64
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, query, b.Args()...).Scan(&n)
	})
	if err != nil {
		p.log.Error("count failed", "table", t.Name, "err", err)
		return 0
	}
	return n
}

// Suggestions returns up to amount distinct values of column starting with
// prefix, compared case-insensitively.
func (p *Provider) Suggestions(ctx context.Context, table, column, prefix string, amount int) []string {
	t, ok := p.lookup(table)
	if !ok || amount <= 0 {
		return nil
	}
	col, ok := t.Column(column)
	if !ok {
		return nil
	}

	b := sqlbuilder.New(p.adapter.PlaceholderStyle())
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s %s %s ESCAPE '\\' ORDER BY %s%s",
		sqlbuilder.Ident(col.Name), sqlbuilder.Ident(t.Name),
		textExpr(col), p.adapter.LikeOperator(), b.Arg(EscapeLike(prefix)+"%"),
		sqlbuilder.Ident(col.Name), p.adapter.Limit(b, amount, 0))

	var out []string
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, b.Args()...)
		if err != nil {
			return tperrors.Wrap(tperrors.ErrSQL, "suggestions from "+t.Name, err)
		}
		defer rows.Close()
		for rows.Next() {
			var v sql.NullString
			if err := rows.Scan(&v); err != nil {
				return err
			}
			if v.Valid {
				out = append(out, v.String)
			}
		}
		return rows.Err()
	})
	if err != nil {
		p.log.Error("suggestions failed", "table", t.Name, "column", column, "err", err)
		return nil
	}
	return out
}

// MaxID returns the largest integer primary key of a table, or 0.
func (p *Provider) MaxID(ctx context.Context, table string) int64 {
	t, ok := p.lookup(table)
	if !ok {
		return 0
	}
	if c, _ := t.Column(t.PrimaryKey); c.Type != ColInteger {
		return 0
	}
	query := "SELECT COALESCE(MAX(" + sqlbuilder.Ident(t.PrimaryKey) + "), 0) FROM " + sqlbuilder.Ident(t.Name)
	var n int64
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, query).Scan(&n)
	})
	if err != nil {
		p.log.Error("max id failed", "table", t.Name, "err", err)
		return 0
	}
	return n
}

// Stream walks the whole table in primary key order, batch rows at a time,
// using keyset pagination so no transaction spans calls to fn.
func (p *Provider) Stream(ctx context.Context, table string, batch int, fn func([]Row) error) error {
	t, ok := p.Table(table)
	if !ok {
		return tperrors.NotFound("table " + table)
	}
	if batch <= 0 {
		batch = 1000
	}
	pk, _ := t.Column(t.PrimaryKey)

	var last any
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := sqlbuilder.New(p.adapter.PlaceholderStyle())
		var sb strings.Builder
		fmt.Fprintf(&sb, "SELECT %s FROM %s", t.selectList(), sqlbuilder.Ident(t.Name))
		if last != nil {
			sb.WriteString(" WHERE " + sqlbuilder.Ident(pk.Name) + " > " + b.Arg(last))
		}
		sb.WriteString(" ORDER BY " + sqlbuilder.Ident(pk.Name))
		sb.WriteString(p.adapter.Limit(b, batch, 0))

		var rows []Row
		err := p.withTx(ctx, func(tx *sql.Tx) error {
			rs, err := tx.QueryContext(ctx, sb.String(), b.Args()...)
			if err != nil {
				return tperrors.Wrap(tperrors.ErrSQL, "stream "+t.Name, err)
			}
			defer rs.Close()
			rows, err = scanRows(rs, t)
			return err
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		if len(rows) < batch {
			return nil
		}
		v, err := convert(pk, rows[len(rows)-1][pk.Name])
		if err != nil {
			return tperrors.Wrap(tperrors.ErrSQL, "stream cursor", err)
		}
		last = v
	}
}

// Close releases the connection pool. Calls after Close return empty results.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var err error
	if cerr := p.db.Close(); cerr != nil {
		err = tperrors.Wrap(tperrors.ErrIO, "close database", cerr)
	}
	if cerr := p.adapter.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
