package schema

import (
	"fmt"
	"regexp"
	"strings"

	tperrors "github.com/textpool/textpool/textpool/errors"
)

// FieldType is the declared value type of a source column.
type FieldType string

const (
	TypeText    FieldType = "TEXT"
	TypeInt     FieldType = "INT"
	TypeFloat   FieldType = "FLOAT"
	TypeBoolean FieldType = "BOOLEAN"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeText, TypeInt, TypeFloat, TypeBoolean:
		return true
	}
	return false
}

// StorageType selects the relational backend of a pool.
type StorageType string

const (
	StorageSQLite   StorageType = "sqlite"
	StoragePostgres StorageType = "postgres"
)

// Field is one of BasicField, UniqueField or IndexField.
type Field interface {
	FieldName() string
	FieldType() FieldType
	LinkedSource() string
	isField()
}

// BasicField is stored but neither indexed nor identifying.
type BasicField struct {
	Name string
	Type FieldType
	Link string
}

// UniqueField is a candidate key. Identify marks it as the row identifier
// of its source.
type UniqueField struct {
	Name     string
	Type     FieldType
	Link     string
	Identify bool
}

// IndexField is full-text searchable with the analyzer of Language.
// Default marks it as the fallback target of unqualified search terms.
type IndexField struct {
	Name     string
	Type     FieldType
	Link     string
	Language Language
	Default  bool
}

func (f BasicField) FieldName() string     { return f.Name }
func (f BasicField) FieldType() FieldType  { return f.Type }
func (f BasicField) LinkedSource() string  { return f.Link }
func (BasicField) isField()                {}
func (f UniqueField) FieldName() string    { return f.Name }
func (f UniqueField) FieldType() FieldType { return f.Type }
func (f UniqueField) LinkedSource() string { return f.Link }
func (UniqueField) isField()               {}
func (f IndexField) FieldName() string     { return f.Name }
func (f IndexField) FieldType() FieldType  { return f.Type }
func (f IndexField) LinkedSource() string  { return f.Link }
func (IndexField) isField()                {}

// PreFilter narrows a source by a value found through a linked source.
type PreFilter struct {
	Key     string `json:"key" yaml:"key"`
	LinkKey string `json:"linkKey" yaml:"linkKey"`
	Value   string `json:"value" yaml:"value"`
}

// VariantMapping expands a base value into the values of sibling columns.
type VariantMapping struct {
	Base     string   `json:"base" yaml:"base"`
	Variants []string `json:"variants" yaml:"variants"`
}

// Source is a named collection of fields backed by one input file.
type Source struct {
	Name           string
	Fields         []Field
	VariantMapping *VariantMapping
	PreFilter      *PreFilter
}

// DataInfo is the unit a pool is built over.
type DataInfo struct {
	Name        string
	Sources     []Source
	StorageType StorageType
}

// SyntheticIDSuffix is appended to a normalized source name to form the
// generated row identifier column.
const SyntheticIDSuffix = "_ag_id"

// NormalizeSource strips the last extension and replaces spaces with
// underscores: "Books.csv" -> "Books", "my data.tsv" -> "my_data".
func NormalizeSource(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, " ", "_")
}

// Qualified returns "<normalizedSource>.<field>".
func Qualified(source, field string) string {
	return NormalizeSource(source) + "." + field
}

// SplitQualified splits a qualified field name at the first dot.
func SplitQualified(qualified string) (source, field string) {
	source, field, ok := strings.Cut(qualified, ".")
	if !ok {
		return "", qualified
	}
	return source, field
}

// SyntheticID returns the generated identifier column of a source.
func SyntheticID(source string) string {
	return NormalizeSource(source) + SyntheticIDSuffix
}

// Identifier returns the declared identifier field of the source, if any.
// The first UniqueField with Identify set wins.
func (s Source) Identifier() (UniqueField, bool) {
	for _, f := range s.Fields {
		if u, ok := f.(UniqueField); ok && u.Identify {
			return u, true
		}
	}
	return UniqueField{}, false
}

// HasIndex reports whether any field of the source is full-text indexed.
func (s Source) HasIndex() bool {
	for _, f := range s.Fields {
		if _, ok := f.(IndexField); ok {
			return true
		}
	}
	return false
}

// Field looks up a field by name.
func (s Source) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.FieldName() == name {
			return f, true
		}
	}
	return nil, false
}

// Source looks up a source by raw or normalized name.
func (d DataInfo) Source(name string) (Source, bool) {
	for _, s := range d.Sources {
		if s.Name == name || NormalizeSource(s.Name) == name {
			return s, true
		}
	}
	return Source{}, false
}

var identRe = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

var poolNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ValidIdentifier reports whether s can be used as a table or column name.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// Validate checks structural validity. Soft problems such as dangling links
// or a missing default index field are not errors; the pool logs them.
func (d DataInfo) Validate() error {
	if !poolNameRe.MatchString(d.Name) {
		return tperrors.SchemaError(fmt.Sprintf("invalid pool name %q", d.Name))
	}
	switch d.StorageType {
	case "", StorageSQLite, StoragePostgres:
	default:
		return tperrors.SchemaError(fmt.Sprintf("unknown storage type %q", d.StorageType))
	}
	if len(d.Sources) == 0 {
		return tperrors.SchemaError("data info must have at least one source")
	}

	seen := make(map[string]bool, len(d.Sources))
	for _, s := range d.Sources {
		norm := NormalizeSource(s.Name)
		if !ValidIdentifier(norm) {
			return tperrors.SchemaError(fmt.Sprintf("invalid source name %q", s.Name))
		}
		if seen[norm] {
			return tperrors.SchemaError(fmt.Sprintf("duplicate source %q", norm))
		}
		seen[norm] = true

		if err := s.validateFields(); err != nil {
			return err
		}
	}
	return nil
}

func (s Source) validateFields() error {
	if len(s.Fields) == 0 {
		return tperrors.SchemaError(fmt.Sprintf("source %q has no fields", s.Name))
	}
	names := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		name := f.FieldName()
		if !ValidIdentifier(name) {
			return tperrors.FieldError(tperrors.ErrSchema, name, "invalid field name")
		}
		if names[name] {
			return tperrors.FieldError(tperrors.ErrSchema, name, "duplicate field in source "+s.Name)
		}
		names[name] = true

		if !f.FieldType().valid() {
			return tperrors.FieldError(tperrors.ErrSchema, name, fmt.Sprintf("unknown field type %q", f.FieldType()))
		}
		if idx, ok := f.(IndexField); ok && !idx.Language.Valid() {
			return tperrors.FieldError(tperrors.ErrSchema, name, fmt.Sprintf("unknown language %q", idx.Language))
		}
	}
	return nil
}
