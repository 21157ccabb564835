package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/textpool/textpool/textpool/storage"
	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

// Adapter stores a pool in a dedicated PostgreSQL schema.
type Adapter struct {
	DSN    string
	Schema string
}

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SchemaFor derives a valid schema name from a pool name.
func SchemaFor(pool string) string {
	s := strings.ToLower(nonIdent.ReplaceAllString(pool, "_"))
	return "tp_" + s
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) Location() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) validate() error {
	if !schemaNameRe.MatchString(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	return nil
}

func (a *Adapter) open(ctx context.Context, searchPath bool) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if searchPath {
		if cfg.RuntimeParams == nil {
			cfg.RuntimeParams = make(map[string]string)
		}
		cfg.RuntimeParams["search_path"] = sqlbuilder.Ident(a.Schema) + ",public"
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	if err := a.validate(); err != nil {
		return false, err
	}
	db, err := a.open(ctx, false)
	if err != nil {
		return false, err
	}
	defer db.Close()
	var ok bool
	err = db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", a.Schema).Scan(&ok)
	return ok, err
}

// Connect makes sure the schema exists, then opens a pool whose search_path
// is pinned to it.
func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	db0, err := a.open(ctx, false)
	if err != nil {
		return nil, err
	}
	_, err = db0.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+sqlbuilder.Ident(a.Schema))
	_ = db0.Close()
	if err != nil {
		return nil, err
	}
	return a.open(ctx, true)
}

// DropSchema removes the schema and everything in it.
func (a *Adapter) DropSchema(ctx context.Context) error {
	if err := a.validate(); err != nil {
		return err
	}
	db, err := a.open(ctx, false)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+sqlbuilder.Ident(a.Schema)+" CASCADE")
	return err
}

func (a *Adapter) ColumnType(t storage.ColumnType) string {
	switch t {
	case storage.ColInteger:
		return "BIGINT"
	case storage.ColReal:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (a *Adapter) SyntheticKeyType() string {
	return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
}

func (a *Adapter) MissingValue() string { return "DEFAULT" }

func (a *Adapter) LikeOperator() string { return "ILIKE" }

func (a *Adapter) Limit(b *sqlbuilder.Builder, limit, offset int) string {
	var s string
	if limit > 0 {
		s += " LIMIT " + b.Arg(limit)
	}
	if offset > 0 {
		s += " OFFSET " + b.Arg(offset)
	}
	return s
}

var _ storage.Adapter = (*Adapter)(nil)
