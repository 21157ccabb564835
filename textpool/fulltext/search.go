package fulltext

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/textpool/textpool/textpool/fulltext/analysis"
	"github.com/textpool/textpool/textpool/query"
	"github.com/textpool/textpool/textpool/schema"
)

// SearchField runs query against the qualified field and returns every
// matching document in index order. Boolean words in any case are treated as
// operators, adjacent clauses are AND-ed and leading wildcards are allowed.
// Predicates naming another field of the same source search that field.
// Unparseable queries and failures are logged and give no documents.
func (ix *Index) SearchField(ctx context.Context, field, q string) []Document {
	f, ok := ix.fields[field]
	if !ok {
		ix.log.Warn("search on unknown field", "field", field)
		return nil
	}
	q = query.NormalizeOperators(q)
	if strings.TrimSpace(q) == "" {
		return nil
	}
	expr, err := query.Parse(q)
	if err != nil {
		ix.log.Warn("query parse failed", "field", field, "query", q, "err", err)
		return nil
	}

	r, err := ix.acquire()
	if err != nil {
		ix.log.Error("open reader failed", "err", err)
		return nil
	}
	defer r.release()

	source, _ := schema.SplitQualified(f.qualified)
	ev := &evaluator{ix: ix, r: r, field: f.qualified, source: source}
	bm, ok, err := ev.eval(ctx, expr)
	if err != nil {
		ix.log.Error("search failed", "field", field, "query", q, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	docs, err := r.documents(ctx, bm)
	if err != nil {
		ix.log.Error("load documents failed", "field", field, "err", err)
		return nil
	}
	return docs
}

type evaluator struct {
	ix     *Index
	r      *reader
	field  string
	source string
}

// eval returns the matching documents of e. ok is false when e had nothing
// left to match after analysis, such as a lone stop word; such clauses are
// dropped from the enclosing boolean.
func (ev *evaluator) eval(ctx context.Context, e query.Expr) (*roaring.Bitmap, bool, error) {
	switch v := e.(type) {
	case query.And:
		l, lok, err := ev.eval(ctx, v.Left)
		if err != nil {
			return nil, false, err
		}
		r, rok, err := ev.eval(ctx, v.Right)
		if err != nil {
			return nil, false, err
		}
		switch {
		case lok && rok:
			return roaring.And(l, r), true, nil
		case lok:
			return l, true, nil
		default:
			return r, rok, nil
		}
	case query.Or:
		l, lok, err := ev.eval(ctx, v.Left)
		if err != nil {
			return nil, false, err
		}
		r, rok, err := ev.eval(ctx, v.Right)
		if err != nil {
			return nil, false, err
		}
		switch {
		case lok && rok:
			return roaring.Or(l, r), true, nil
		case lok:
			return l, true, nil
		default:
			return r, rok, nil
		}
	case query.Not:
		inner, ok, err := ev.eval(ctx, v.Inner)
		if err != nil || !ok {
			return nil, false, err
		}
		all, err := ev.r.universe(ctx, ev.source)
		if err != nil {
			return nil, false, err
		}
		return roaring.AndNot(all, inner), true, nil
	case query.Pred:
		return ev.predicate(ctx, v.Predicate)
	default:
		return nil, false, fmt.Errorf("unknown expression %T", e)
	}
}

// resolve maps a predicate field to an indexed field. Empty means the
// searched field, an unqualified name is looked up in the searched source.
func (ev *evaluator) resolve(name string) (*indexedField, bool) {
	if name == "" {
		name = ev.field
	} else if !strings.Contains(name, ".") {
		name = ev.source + "." + name
	}
	f, ok := ev.ix.fields[name]
	return f, ok
}

func (ev *evaluator) predicate(ctx context.Context, p query.Predicate) (*roaring.Bitmap, bool, error) {
	f, ok := ev.resolve(p.FieldName())
	if !ok {
		return roaring.New(), true, nil
	}
	switch v := p.(type) {
	case query.Term:
		return ev.term(ctx, f, v.Text)
	case query.Wildcard:
		pattern := strings.ToLower(v.Pattern)
		if strings.Trim(pattern, "*") == "" {
			all, err := ev.r.universe(ctx, ev.source)
			return all, err == nil, err
		}
		bm, err := ev.r.glob(ctx, f.qualified+ExactSuffix, pattern)
		return bm, err == nil, err
	case query.Phrase:
		return ev.phrase(ctx, f, v.Text)
	default:
		return nil, false, fmt.Errorf("unknown predicate %T", p)
	}
}

// term matches all analyzed terms of text.
func (ev *evaluator) term(ctx context.Context, f *indexedField, text string) (*roaring.Bitmap, bool, error) {
	terms := f.analyzer.Terms(text)
	if len(terms) == 0 {
		return nil, false, nil
	}
	var out *roaring.Bitmap
	for _, t := range terms {
		bm, err := ev.r.postings(ctx, f.qualified, t)
		if err != nil {
			return nil, false, err
		}
		if out == nil {
			out = bm
		} else {
			out = roaring.And(out, bm)
		}
	}
	return out, true, nil
}

// phrase matches documents holding the exact words of text at consecutive
// positions.
func (ev *evaluator) phrase(ctx context.Context, f *indexedField, text string) (*roaring.Bitmap, bool, error) {
	toks := analysis.Exact(text)
	if len(toks) == 0 {
		return nil, false, nil
	}
	field := f.qualified + ExactSuffix

	candidates, err := ev.r.postings(ctx, field, toks[0].Term)
	if err != nil {
		return nil, false, err
	}
	for _, t := range toks[1:] {
		bm, err := ev.r.postings(ctx, field, t.Term)
		if err != nil {
			return nil, false, err
		}
		candidates = roaring.And(candidates, bm)
	}
	if len(toks) == 1 || candidates.IsEmpty() {
		return candidates, true, nil
	}

	positions := make([]map[uint32][]int, len(toks))
	for i, t := range toks {
		if positions[i], err = ev.r.positions(ctx, field, t.Term, candidates); err != nil {
			return nil, false, err
		}
	}

	out := roaring.New()
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		if phraseAt(id, toks, positions) {
			out.Add(id)
		}
	}
	return out, true, nil
}

func phraseAt(id uint32, toks []analysis.Token, positions []map[uint32][]int) bool {
	for _, start := range positions[0][id] {
		matched := true
		for i := 1; i < len(toks) && matched; i++ {
			want := start + toks[i].Pos - toks[0].Pos
			matched = slices.Contains(positions[i][id], want)
		}
		if matched {
			return true
		}
	}
	return false
}
