package storage

import (
	"context"
	"database/sql"

	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Adapter abstracts the dialect-specific parts of the storage engine.
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	// Location identifies the physical store in log output.
	Location() string

	// Exists reports whether the store already existed before Connect.
	Exists(ctx context.Context) (bool, error)
	Connect(ctx context.Context) (*sql.DB, error)
	Close() error

	// ColumnType maps a generic column type to the dialect's type name.
	ColumnType(t ColumnType) string
	// SyntheticKeyType is the full column definition of a generated
	// integer primary key, excluding the column name.
	SyntheticKeyType() string
	// MissingValue is the literal written for a column absent from a record.
	MissingValue() string
	// LikeOperator is a case-insensitive LIKE.
	LikeOperator() string
	// Limit renders LIMIT/OFFSET; limit <= 0 means unbounded.
	Limit(b *sqlbuilder.Builder, limit, offset int) string
}
