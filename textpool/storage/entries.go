package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/textpool/textpool/textpool/schema"
)

// groupTokens turns "column:value" tokens into a Where for table. A column
// may be qualified as "source.column"; tokens qualified with another source
// and tokens without a colon are dropped.
func groupTokens(table string, tokens []string) Where {
	w := make(Where)
	for _, tok := range tokens {
		col, val, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		if i := strings.LastIndex(col, "."); i >= 0 {
			if schema.NormalizeSource(col[:i]) != table {
				continue
			}
			col = col[i+1:]
		}
		w[col] = append(w[col], strings.Trim(val, `"`))
	}
	return w
}

// entries merges identifier hits, free column tokens and pre-filter tokens
// into one Where. Pre-filters narrow columns already constrained and are
// used alone when nothing else constrains the query. ok is false when the
// combination cannot match anything.
func (p *Provider) entries(table string, ids []int64, tokens, filters []string) (Where, bool) {
	pk, found := p.PrimaryKey(table)
	if !found {
		p.log.Warn("primary key not found", "table", table)
		return nil, false
	}

	w := groupTokens(table, tokens)
	if len(ids) > 0 {
		vals := make([]string, len(ids))
		for i, id := range ids {
			vals[i] = strconv.FormatInt(id, 10)
		}
		w[pk] = append(w[pk], vals...)
	}

	if len(filters) == 0 {
		return w, true
	}
	grouped := groupTokens(table, filters)
	if len(w) == 0 {
		return grouped, true
	}
	for col, vals := range w {
		allowed, ok := grouped[col]
		if !ok {
			continue
		}
		kept := vals[:0:0]
		for _, v := range vals {
			for _, a := range allowed {
				if v == a {
					kept = append(kept, v)
					break
				}
			}
		}
		if len(kept) == 0 {
			delete(w, col)
		} else {
			w[col] = kept
		}
	}
	if len(w) == 0 {
		return nil, false
	}
	return w, true
}

// Get selects the rows matching the merged identifiers, column tokens and
// pre-filter tokens.
func (p *Provider) Get(ctx context.Context, table string, ids []int64, tokens, filters []string, opts SelectOptions) []Row {
	w, ok := p.entries(table, ids, tokens, filters)
	if !ok {
		return nil
	}
	return p.Select(ctx, table, w, opts)
}

// CountMatching counts what Get would return without pagination.
func (p *Provider) CountMatching(ctx context.Context, table string, ids []int64, tokens, filters []string) int64 {
	w, ok := p.entries(table, ids, tokens, filters)
	if !ok {
		return 0
	}
	return p.Count(ctx, table, w)
}
