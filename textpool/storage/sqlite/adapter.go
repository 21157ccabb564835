package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/textpool/textpool/textpool/storage"
	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

// Adapter stores a pool in a single SQLite file.
type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DriverName}
}

func NewWithDriver(path, driver string) *Adapter {
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendSQLite }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) Location() string { return a.Path }

func (a *Adapter) Exists(context.Context) (bool, error) {
	_, err := os.Stat(a.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// DSN appends busy timeout, WAL, synchronous and foreign key settings in
// the syntax of the configured driver so they apply to every pooled
// connection.
func (a *Adapter) DSN() string {
	var params string
	if a.DriverName == "sqlite" {
		params = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	} else {
		params = "_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
	}
	if strings.Contains(a.Path, "?") {
		return a.Path + "&" + params
	}
	return a.Path + "?" + params
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	if dir := filepath.Dir(a.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(a.DriverName, a.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) ColumnType(t storage.ColumnType) string {
	return string(t)
}

// SyntheticKeyType aliases the rowid, so omitted keys are generated.
func (a *Adapter) SyntheticKeyType() string { return "INTEGER PRIMARY KEY" }

func (a *Adapter) MissingValue() string { return "NULL" }

// LikeOperator is plain LIKE, which SQLite already compares without case
// for ASCII.
func (a *Adapter) LikeOperator() string { return "LIKE" }

func (a *Adapter) Limit(b *sqlbuilder.Builder, limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return " LIMIT " + b.Arg(limit) + " OFFSET " + b.Arg(offset)
	case limit > 0:
		return " LIMIT " + b.Arg(limit)
	case offset > 0:
		return " LIMIT -1 OFFSET " + b.Arg(offset)
	default:
		return ""
	}
}

var _ storage.Adapter = (*Adapter)(nil)
