package textpool

import (
	"context"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/textpool/textpool/textpool/fulltext"
)

// SemanticSearcher finds documents of a field whose embedding is similar to
// text. Implementations wrap an external embedding provider.
type SemanticSearcher interface {
	SearchSimilar(ctx context.Context, field, text string, threshold float32) ([]fulltext.Document, error)
}

// CachedSemantic memoizes the results of a SemanticSearcher. Errors are not
// cached.
type CachedSemantic struct {
	next  SemanticSearcher
	cache *lru.Cache[string, []fulltext.Document]
}

func NewCachedSemantic(next SemanticSearcher, size int) (*CachedSemantic, error) {
	cache, err := lru.New[string, []fulltext.Document](size)
	if err != nil {
		return nil, err
	}
	return &CachedSemantic{next: next, cache: cache}, nil
}

func (c *CachedSemantic) SearchSimilar(ctx context.Context, field, text string, threshold float32) ([]fulltext.Document, error) {
	key := field + "\x00" + strconv.FormatFloat(float64(threshold), 'g', -1, 32) + "\x00" + text
	if docs, ok := c.cache.Get(key); ok {
		return docs, nil
	}
	docs, err := c.next.SearchSimilar(ctx, field, text, threshold)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, docs)
	return docs, nil
}

// Purge drops all cached results.
func (c *CachedSemantic) Purge() { c.cache.Purge() }
