// Package textpool builds queryable data pools over tabular text sources.
//
// A Pool pairs a relational store with a full-text index for one DataInfo
// and routes query strings to both. A Service manages the pools of a data
// directory.
package textpool

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/textpool/textpool/textpool/fulltext"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
)

// SimilarityThreshold is the minimum score of semantic matches.
const SimilarityThreshold = 0.7

type PoolOptions struct {
	Logger *slog.Logger
	// Semantic answers searches issued with semantic set. Without it those
	// searches use the full-text index.
	Semantic SemanticSearcher
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{Logger: slog.Default()}
}

// SearchResult is the outcome of routing one query string.
type SearchResult struct {
	// IDs are matching row identifiers in first-seen order.
	IDs []int64
	// Tokens are field:value tokens that name no indexed field. They are
	// left to the relational filter.
	Tokens []string
	// IndexedValues are the values sent to the index, for highlighting.
	IndexedValues []string
}

func (r SearchResult) Empty() bool { return len(r.IDs) == 0 && len(r.Tokens) == 0 }

// Pool is the derived schema of a DataInfo together with the index and store
// built over it. The schema is computed once by NewPool and read-only after.
type Pool struct {
	info     schema.DataInfo
	index    *fulltext.Index
	store    *storage.Provider
	semantic SemanticSearcher
	log      *slog.Logger

	fields            map[string]bool
	fieldOrder        []string
	identifier        map[string]string
	links             map[string]string
	defaultIndexField string
	defaultSource     string
	variants          map[string]schema.VariantMapping
	preFilters        map[string]schema.PreFilter
}

var keyValueRe = regexp.MustCompile(`\w+:\w+|\w+:"[^"]*"`)

// NewPool derives the pool schema of info. index and store may be nil, in
// which case searches and reads return empty results. Configuration problems
// such as dangling links or a missing default field are logged, not failed.
func NewPool(info schema.DataInfo, index *fulltext.Index, store *storage.Provider, opts PoolOptions) *Pool {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		info:       info,
		index:      index,
		store:      store,
		semantic:   opts.Semantic,
		log:        log.With("component", "pool", "pool", info.Name),
		fields:     make(map[string]bool),
		identifier: make(map[string]string),
		links:      make(map[string]string),
		variants:   make(map[string]schema.VariantMapping),
		preFilters: make(map[string]schema.PreFilter),
	}
	for _, src := range info.Sources {
		p.derive(src)
	}
	p.chooseDefault()
	return p
}

func (p *Pool) derive(src schema.Source) {
	norm := schema.NormalizeSource(src.Name)
	if src.VariantMapping != nil {
		p.variants[norm] = *src.VariantMapping
	}
	if src.PreFilter != nil {
		p.preFilters[norm] = *src.PreFilter
	}

	declared := ""
	for _, f := range src.Fields {
		key := schema.Qualified(src.Name, f.FieldName())
		p.fields[key] = false
		p.fieldOrder = append(p.fieldOrder, key)

		if link := f.LinkedSource(); link != "" {
			if target, ok := p.info.Source(link); ok && hasField(target, f.FieldName()) {
				p.links[key] = schema.Qualified(target.Name, f.FieldName())
			} else {
				p.log.Warn("link target not present, ignoring", "field", key, "link", link)
			}
		}

		switch v := f.(type) {
		case schema.IndexField:
			p.fields[key] = true
			if v.Default && p.defaultIndexField == "" {
				p.defaultIndexField = key
				p.defaultSource = norm
			}
		case schema.UniqueField:
			if !v.Identify {
				continue
			}
			if declared != "" {
				p.log.Warn("duplicate identifier, keeping the first", "source", norm, "kept", declared, "ignored", v.Name)
				continue
			}
			declared = v.Name
		case schema.BasicField:
		}
	}

	if declared != "" {
		p.identifier[norm] = schema.Qualified(src.Name, declared)
	} else {
		p.identifier[norm] = schema.SyntheticID(src.Name)
	}
}

func hasField(src schema.Source, name string) bool {
	_, ok := src.Field(name)
	return ok
}

func (p *Pool) chooseDefault() {
	if p.defaultIndexField != "" {
		return
	}
	p.log.Warn("no default index field")
	for _, key := range p.fieldOrder {
		if p.fields[key] {
			p.defaultIndexField = key
			p.defaultSource, _ = schema.SplitQualified(key)
			p.log.Warn("using first indexed field as default", "field", key)
			return
		}
	}
	p.log.Warn("no indexed fields, searches return nothing")
}

func (p *Pool) Name() string                { return p.info.Name }
func (p *Pool) Info() schema.DataInfo       { return p.info }
func (p *Pool) Index() *fulltext.Index      { return p.index }
func (p *Pool) Store() *storage.Provider    { return p.store }
func (p *Pool) DefaultIndexField() string   { return p.defaultIndexField }
func (p *Pool) DefaultSource() string       { return p.defaultSource }
func (p *Pool) Links() map[string]string    { return p.links }
func (p *Pool) IsIndexed(field string) bool { return p.fields[field] }

// Known reports whether field is a qualified field of the pool.
func (p *Pool) Known(field string) bool {
	_, ok := p.fields[field]
	return ok
}

// Identifier returns the identifier field of a normalized source.
func (p *Pool) Identifier(source string) (string, bool) {
	id, ok := p.identifier[source]
	return id, ok
}

// IndexedFields returns the qualified indexed fields in declaration order.
func (p *Pool) IndexedFields() []string {
	var out []string
	for _, key := range p.fieldOrder {
		if p.fields[key] {
			out = append(out, key)
		}
	}
	return out
}

type idSet struct {
	seen  map[int64]struct{}
	order []int64
}

func (s *idSet) add(id int64) {
	if s.seen == nil {
		s.seen = make(map[int64]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

type stringSet struct {
	seen  map[string]struct{}
	order []string
}

func (s *stringSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

// Search routes query to the index.
//
// A query without any field:value token is searched as a whole against the
// default index field. Otherwise it is split on unquoted spaces: plain words
// are searched together against the default field, field:value tokens
// naming an indexed field are searched against that field and all others are
// returned as Tokens. Unqualified fields belong to the default source; when
// there is none the result is empty.
func (p *Pool) Search(ctx context.Context, query string, semantic bool) SearchResult {
	if p.index == nil {
		return SearchResult{}
	}

	var (
		ids     idSet
		values  stringSet
		unknown []string
	)
	collect := func(docs []fulltext.Document, source string) {
		idField, ok := p.identifier[source]
		if !ok {
			return
		}
		for _, d := range docs {
			if id, ok := d.ID(idField); ok {
				ids.add(id)
			}
		}
	}

	if !keyValueRe.MatchString(query) {
		if p.defaultIndexField != "" {
			collect(p.searchField(ctx, p.defaultIndexField, query, semantic), p.defaultSource)
		}
		values.add(query)
		return SearchResult{IDs: ids.order, Tokens: unknown, IndexedValues: values.order}
	}

	var free []string
	for _, tok := range splitUnquoted(query, ' ') {
		if tok == "" {
			continue
		}
		colon := -1
		hasSpace := false
		for i, ch := range tok {
			if ch == ':' {
				colon = i
				break
			}
			if ch == ' ' {
				hasSpace = true
			}
		}
		if colon < 0 {
			if hasSpace && !strings.HasPrefix(tok, `"`) {
				tok = `"` + tok + `"`
			}
			free = append(free, tok)
			continue
		}

		field := tok[:colon]
		if !strings.Contains(field, ".") {
			if p.defaultSource == "" {
				p.log.Debug("unqualified field without default source", "field", field)
				return SearchResult{}
			}
			field = p.defaultSource + "." + field
		}
		if !p.fields[field] {
			unknown = append(unknown, tok)
			continue
		}
		value := tok[colon+1:]
		values.add(value)
		source, _ := schema.SplitQualified(field)
		collect(p.searchField(ctx, field, value, semantic), source)
	}

	if len(free) > 0 {
		joined := strings.Join(free, " ")
		values.add(joined)
		if p.defaultIndexField != "" {
			collect(p.searchField(ctx, p.defaultIndexField, joined, semantic), p.defaultSource)
		}
	}
	return SearchResult{IDs: ids.order, Tokens: unknown, IndexedValues: values.order}
}

func (p *Pool) searchField(ctx context.Context, field, value string, semantic bool) []fulltext.Document {
	if semantic && p.semantic != nil {
		docs, err := p.semantic.SearchSimilar(ctx, field, value, SimilarityThreshold)
		if err != nil {
			p.log.Error("semantic search failed", "field", field, "err", err)
			return nil
		}
		return docs
	}
	return p.index.SearchField(ctx, field, value)
}

// splitUnquoted splits s on sep outside double quotes. Quotes are kept.
func splitUnquoted(s string, sep rune) []string {
	var (
		out    []string
		start  int
		quoted bool
	)
	for i, ch := range s {
		switch {
		case ch == '"':
			quoted = !quoted
		case ch == sep && !quoted:
			out = append(out, s[start:i])
			start = i + len(string(sep))
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Close closes the index and the store together.
func (p *Pool) Close() error {
	var first error
	if p.index != nil {
		if err := p.index.Close(); err != nil {
			first = err
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
