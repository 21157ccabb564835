package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

// ColumnType is the dialect-neutral storage type of a column.
type ColumnType string

const (
	ColText    ColumnType = "TEXT"
	ColInteger ColumnType = "INTEGER"
	ColReal    ColumnType = "REAL"
)

func columnTypeOf(t schema.FieldType) ColumnType {
	switch t {
	case schema.TypeInt:
		return ColInteger
	case schema.TypeFloat:
		return ColReal
	default:
		return ColText
	}
}

type Column struct {
	Name    string
	Type    ColumnType
	Primary bool
}

// Table is the relational layout derived from one source.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey string
	// Synthetic is set when the primary key is the generated <source>_ag_id.
	Synthetic bool
}

// TableFor derives the table of a source. The first UniqueField with
// Identify set becomes the primary key; otherwise a synthetic integer key is
// prepended. The primary key is always the first column.
func TableFor(src schema.Source) *Table {
	t := &Table{Name: schema.NormalizeSource(src.Name)}
	var rest []Column
	for _, f := range src.Fields {
		col := Column{Name: f.FieldName(), Type: columnTypeOf(f.FieldType())}
		switch v := f.(type) {
		case schema.UniqueField:
			if v.Identify && t.PrimaryKey == "" {
				col.Primary = true
				t.PrimaryKey = col.Name
			}
		case schema.IndexField, schema.BasicField:
		default:
			panic(fmt.Sprintf("storage: unknown field variant %T", f))
		}
		if col.Primary {
			t.Columns = append(t.Columns, col)
		} else {
			rest = append(rest, col)
		}
	}
	if t.PrimaryKey == "" {
		t.PrimaryKey = schema.SyntheticID(src.Name)
		t.Synthetic = true
		t.Columns = append(t.Columns, Column{Name: t.PrimaryKey, Type: ColInteger, Primary: true})
	}
	t.Columns = append(t.Columns, rest...)
	return t
}

func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

func (t *Table) createSQL(a Adapter) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := sqlbuilder.Ident(c.Name) + " "
		switch {
		case c.Primary && t.Synthetic:
			def += a.SyntheticKeyType()
		case c.Primary:
			def += a.ColumnType(c.Type) + " PRIMARY KEY"
		default:
			def += a.ColumnType(c.Type)
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlbuilder.Ident(t.Name), strings.Join(defs, ", "))
}

func (t *Table) selectList() string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = sqlbuilder.Ident(c.Name)
	}
	return strings.Join(cols, ", ")
}

// convert turns a raw record value into the bind value for the column.
// Empty strings on numeric columns become NULL.
func convert(c Column, raw string) (any, error) {
	switch c.Type {
	case ColInteger:
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, nil
		}
		return strconv.ParseInt(s, 10, 64)
	case ColReal:
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return raw, nil
	}
}
