package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	tperrors "github.com/textpool/textpool/textpool/errors"
)

// Field kinds used as the "type" discriminator in serialized field lists.
const (
	kindBasic  = "basic"
	kindUnique = "unique"
	kindIndex  = "index"
)

type rawField struct {
	Kind       string    `json:"type,omitempty" yaml:"type,omitempty"`
	Name       string    `json:"name" yaml:"name"`
	FieldType  FieldType `json:"fieldType" yaml:"fieldType"`
	SourceLink string    `json:"sourceLink,omitempty" yaml:"sourceLink,omitempty"`
	Identify   bool      `json:"identify,omitempty" yaml:"identify,omitempty"`
	Lang       Language  `json:"lang,omitempty" yaml:"lang,omitempty"`
	Default    bool      `json:"default,omitempty" yaml:"default,omitempty"`
}

type rawSource struct {
	Name           string          `json:"name" yaml:"name"`
	Fields         []rawField      `json:"fields" yaml:"fields"`
	VariantMapping *VariantMapping `json:"variantMapping,omitempty" yaml:"variantMapping,omitempty"`
	PreFilter      *PreFilter      `json:"preFilter,omitempty" yaml:"preFilter,omitempty"`
}

type rawDataInfo struct {
	Name        string      `json:"name" yaml:"name"`
	Sources     []rawSource `json:"sources" yaml:"sources"`
	StorageType StorageType `json:"storageType,omitempty" yaml:"storageType,omitempty"`
}

func toRawField(f Field) rawField {
	switch v := f.(type) {
	case UniqueField:
		return rawField{Kind: kindUnique, Name: v.Name, FieldType: v.Type, SourceLink: v.Link, Identify: v.Identify}
	case IndexField:
		return rawField{Kind: kindIndex, Name: v.Name, FieldType: v.Type, SourceLink: v.Link, Lang: v.Language, Default: v.Default}
	case BasicField:
		return rawField{Kind: kindBasic, Name: v.Name, FieldType: v.Type, SourceLink: v.Link}
	default:
		panic(fmt.Sprintf("schema: unknown field variant %T", f))
	}
}

func (r rawField) toField() (Field, error) {
	switch strings.ToLower(r.Kind) {
	case "", kindBasic:
		return BasicField{Name: r.Name, Type: r.FieldType, Link: r.SourceLink}, nil
	case kindUnique:
		return UniqueField{Name: r.Name, Type: r.FieldType, Link: r.SourceLink, Identify: r.Identify}, nil
	case kindIndex:
		return IndexField{Name: r.Name, Type: r.FieldType, Link: r.SourceLink, Language: r.Lang, Default: r.Default}, nil
	default:
		return nil, tperrors.FieldError(tperrors.ErrSchema, r.Name, fmt.Sprintf("unknown field kind %q", r.Kind))
	}
}

func (d DataInfo) toRaw() rawDataInfo {
	out := rawDataInfo{Name: d.Name, StorageType: d.StorageType, Sources: make([]rawSource, 0, len(d.Sources))}
	for _, s := range d.Sources {
		rs := rawSource{Name: s.Name, VariantMapping: s.VariantMapping, PreFilter: s.PreFilter}
		for _, f := range s.Fields {
			rs.Fields = append(rs.Fields, toRawField(f))
		}
		out.Sources = append(out.Sources, rs)
	}
	return out
}

func (r rawDataInfo) toDataInfo() (DataInfo, error) {
	d := DataInfo{Name: r.Name, StorageType: r.StorageType, Sources: make([]Source, 0, len(r.Sources))}
	for _, rs := range r.Sources {
		s := Source{Name: rs.Name, VariantMapping: rs.VariantMapping, PreFilter: rs.PreFilter}
		for _, rf := range rs.Fields {
			f, err := rf.toField()
			if err != nil {
				return DataInfo{}, err
			}
			s.Fields = append(s.Fields, f)
		}
		d.Sources = append(d.Sources, s)
	}
	return d, nil
}

func (d DataInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.toRaw())
}

func (d *DataInfo) UnmarshalJSON(b []byte) error {
	var raw rawDataInfo
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := raw.toDataInfo()
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DataInfo) MarshalYAML() (any, error) {
	return d.toRaw(), nil
}

func (d *DataInfo) UnmarshalYAML(node *yaml.Node) error {
	var raw rawDataInfo
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := raw.toDataInfo()
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ToJSON serializes the data info as indented JSON.
func ToJSON(d DataInfo) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, tperrors.Wrap(tperrors.ErrSchema, "encode data info", err)
	}
	return b, nil
}

// FromJSON parses and validates a data info.
func FromJSON(b []byte) (DataInfo, error) {
	var d DataInfo
	if err := json.Unmarshal(b, &d); err != nil {
		return DataInfo{}, tperrors.Wrap(tperrors.ErrSchema, "invalid data info JSON", err)
	}
	if err := d.Validate(); err != nil {
		return DataInfo{}, err
	}
	return d, nil
}

func ToYAML(d DataInfo) ([]byte, error) {
	b, err := yaml.Marshal(d)
	if err != nil {
		return nil, tperrors.Wrap(tperrors.ErrSchema, "encode data info", err)
	}
	return b, nil
}

func FromYAML(b []byte) (DataInfo, error) {
	var d DataInfo
	if err := yaml.Unmarshal(b, &d); err != nil {
		return DataInfo{}, tperrors.Wrap(tperrors.ErrSchema, "invalid data info YAML", err)
	}
	if err := d.Validate(); err != nil {
		return DataInfo{}, err
	}
	return d, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a data info file. The codec is chosen by extension; anything
// other than .yaml/.yml is read as JSON.
func Load(path string) (DataInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return DataInfo{}, tperrors.Wrap(tperrors.ErrIO, "read data info", err)
	}
	if isYAML(path) {
		return FromYAML(b)
	}
	return FromJSON(b)
}

// Save writes a data info file using the codec matching its extension.
func Save(path string, d DataInfo) error {
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = ToYAML(d)
	} else {
		b, err = ToJSON(d)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "write data info", err)
	}
	return nil
}
