package textpool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/fulltext"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
	"github.com/textpool/textpool/textpool/storage/postgres"
	"github.com/textpool/textpool/textpool/storage/sqlite"
)

const (
	PageSize        = 100
	SuggestionCount = 6

	pageCacheSize = 32

	InfoFile = "info.json"
	DataDir  = "data"
	IndexDir = "index"
)

var (
	preFilterRe = regexp.MustCompile(`@[^:\s]+:[^:\s]+:[^:\s]+`)
	variantRe   = regexp.MustCompile(`@([^:]+):(\S+)`)
)

type ServiceOptions struct {
	Logger *slog.Logger
	// PostgresDSN is required by pools with storage type postgres.
	PostgresDSN string
	Semantic    SemanticSearcher
}

func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{Logger: slog.Default()}
}

// Target names a pool and one of its sources. Empty fields fall back to the
// service's selection.
type Target struct {
	Pool   string
	Source string
}

func (t Target) String() string { return t.Pool + "." + t.Source }

type PageQuery struct {
	Target
	Query    string
	Semantic bool
	Order    *storage.Order
	// Page is zero based.
	Page int
}

type pageKey struct {
	target   Target
	query    string
	semantic bool
	order    storage.Order
	ordered  bool
	page     int
}

// PageResult holds one page of rows and, per linking column, the rows of the
// linked source matching the values on the page.
type PageResult struct {
	Rows  []storage.Row
	Links map[string][]storage.Row
}

type PageCount struct {
	Count int64
	Pages int64
	// Highlights are the searched words worth marking in results.
	Highlights []string
}

// Service owns the pools stored under one data directory. Each pool lives
// in <dataDir>/<pool> with its info file, storage and index directory.
type Service struct {
	dataDir string
	opts    ServiceOptions
	// base is handed to pools, storage and indexes, which add their own
	// component.
	base    *slog.Logger
	log     *slog.Logger

	mu       sync.RWMutex
	pools    map[string]*Pool
	selected Target

	pages *lru.Cache[pageKey, PageResult]
}

func NewService(dataDir string, opts ServiceOptions) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, tperrors.Wrap(tperrors.ErrIO, "create data directory", err)
	}
	pages, err := lru.New[pageKey, PageResult](pageCacheSize)
	if err != nil {
		return nil, tperrors.Wrap(tperrors.ErrConfig, "page cache", err)
	}
	return &Service{
		dataDir: dataDir,
		opts:    opts,
		base:    log,
		log:     log.With("component", "service"),
		pools:   make(map[string]*Pool),
		pages:   pages,
	}, nil
}

func (s *Service) DataDir() string { return s.dataDir }

func (s *Service) poolDir(name string) string { return filepath.Join(s.dataDir, name) }

func (s *Service) adapter(info schema.DataInfo) (storage.Adapter, error) {
	switch info.StorageType {
	case "", schema.StorageSQLite:
		return sqlite.New(filepath.Join(s.poolDir(info.Name), DataDir, info.Name+".db")), nil
	case schema.StoragePostgres:
		if s.opts.PostgresDSN == "" {
			return nil, tperrors.New(tperrors.ErrConfig, "pool "+info.Name+" needs a postgres DSN")
		}
		return postgres.New(s.opts.PostgresDSN, postgres.SchemaFor(info.Name)), nil
	default:
		return nil, tperrors.SchemaError(fmt.Sprintf("unknown storage type %q", info.StorageType))
	}
}

func (s *Service) poolOptions() PoolOptions {
	return PoolOptions{Logger: s.base, Semantic: s.opts.Semantic}
}

// CreatePool builds a new pool from info, reading every source from
// sourcesDir. A source file is looked up by the source name and, if that
// does not exist, with a .csv extension added; .tsv files are tab
// separated. Nothing is left behind when creation fails.
func (s *Service) CreatePool(ctx context.Context, info schema.DataInfo, sourcesDir string, onProgress func(int)) (err error) {
	if err := info.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	_, loaded := s.pools[info.Name]
	s.mu.RUnlock()
	if loaded {
		return tperrors.New(tperrors.ErrConfig, "pool "+info.Name+" already exists")
	}

	files := make([]string, len(info.Sources))
	for i, src := range info.Sources {
		path, err := sourceFile(sourcesDir, src.Name)
		if err != nil {
			return err
		}
		files[i] = path
	}

	adapter, err := s.adapter(info)
	if err != nil {
		return err
	}
	dir := s.poolDir(info.Name)
	store, status, err := storage.Open(ctx, adapter, info, storage.Options{Logger: s.base})
	if err != nil {
		return err
	}
	if status == storage.StatusExists {
		_ = store.Close()
		return tperrors.New(tperrors.ErrConfig, "storage for pool "+info.Name+" already exists")
	}

	var pool *Pool
	defer func() {
		if err == nil {
			return
		}
		if pool != nil {
			_ = pool.Close()
		} else {
			_ = store.Close()
		}
		s.discard(ctx, info, adapter)
	}()

	if err = os.MkdirAll(dir, 0o755); err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "create pool directory", err)
	}
	if err = schema.Save(filepath.Join(dir, InfoFile), info); err != nil {
		return err
	}
	index, err := fulltext.Open(filepath.Join(dir, IndexDir), info, fulltext.Options{Logger: s.base})
	if err != nil {
		return err
	}
	pool = NewPool(info, index, store, s.poolOptions())

	if onProgress != nil {
		onProgress(0)
	}
	for i, src := range info.Sources {
		if err = s.ingestFile(ctx, pool, src, files[i]); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress((i + 1) * 100 / len(info.Sources))
		}
	}

	s.mu.Lock()
	s.pools[info.Name] = pool
	if s.selected.Pool == "" {
		s.selected = Target{Pool: info.Name, Source: pool.DefaultSource()}
	}
	s.mu.Unlock()
	s.pages.Purge()
	s.log.Info("pool created", "pool", info.Name)
	return nil
}

func sourceFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + ".csv"} {
		path := filepath.Join(dir, candidate)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", tperrors.NotFound("source file " + name + " in " + dir)
}

func (s *Service) ingestFile(ctx context.Context, pool *Pool, src schema.Source, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return tperrors.Wrap(tperrors.ErrIO, "open source", err)
	}
	defer f.Close()

	opts := DefaultIngestOptions()
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		opts.Delimiter = '\t'
	}
	_, err = pool.Ingest(ctx, src.Name, f, opts)
	return err
}

// discard removes what a pool left on disk and in an external store.
func (s *Service) discard(ctx context.Context, info schema.DataInfo, adapter storage.Adapter) {
	if pg, ok := adapter.(*postgres.Adapter); ok {
		if err := pg.DropSchema(ctx); err != nil {
			s.log.Error("drop schema failed", "pool", info.Name, "err", err)
		}
	}
	if err := os.RemoveAll(s.poolDir(info.Name)); err != nil {
		s.log.Error("remove pool directory failed", "pool", info.Name, "err", err)
	}
}

// LoadPools opens every pool found in the data directory and returns how
// many were loaded. Directories without a readable info file or with missing
// storage are skipped. A single loaded pool becomes the selection.
func (s *Service) LoadPools(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, tperrors.Wrap(tperrors.ErrIO, "read data directory", err)
	}
	loaded := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pool, err := s.load(ctx, filepath.Join(s.dataDir, e.Name()))
		if err != nil {
			s.log.Warn("skipping pool", "dir", e.Name(), "err", err)
			continue
		}
		s.mu.Lock()
		if old, ok := s.pools[pool.Name()]; ok {
			_ = old.Close()
		}
		s.pools[pool.Name()] = pool
		s.mu.Unlock()
		loaded++
	}

	s.mu.Lock()
	if len(s.pools) == 1 {
		for name, p := range s.pools {
			s.selected = Target{Pool: name, Source: p.DefaultSource()}
		}
		if s.selected.Source == "" {
			s.log.Warn("selected pool has no index field", "pool", s.selected.Pool)
		}
	}
	s.mu.Unlock()
	s.pages.Purge()
	s.log.Info("pools loaded", "count", loaded, "dir", s.dataDir)
	return loaded, nil
}

func (s *Service) load(ctx context.Context, dir string) (*Pool, error) {
	info, err := loadInfo(dir)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapter(info)
	if err != nil {
		return nil, err
	}
	if ok, err := adapter.Exists(ctx); err != nil || !ok {
		return nil, tperrors.New(tperrors.ErrNotFound, "pool "+info.Name+" has no storage")
	}
	store, _, err := storage.Open(ctx, adapter, info, storage.Options{Logger: s.base})
	if err != nil {
		return nil, err
	}
	index, err := fulltext.Open(filepath.Join(dir, IndexDir), info, fulltext.Options{Logger: s.base})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	s.log.Info("pool loaded", "pool", info.Name)
	return NewPool(info, index, store, s.poolOptions()), nil
}

func loadInfo(dir string) (schema.DataInfo, error) {
	for _, name := range []string{InfoFile, "info.yaml", "info.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return schema.Load(path)
	}
	return schema.DataInfo{}, tperrors.NotFound("info file in " + dir)
}

// DeletePool closes a pool and removes its files. If it was selected, the
// selection moves to another pool.
func (s *Service) DeletePool(ctx context.Context, name string) error {
	s.mu.Lock()
	pool, ok := s.pools[name]
	if !ok {
		s.mu.Unlock()
		return tperrors.NotFound("pool " + name)
	}
	delete(s.pools, name)
	if s.selected.Pool == name {
		s.selected = Target{}
		if rest := s.sortedPools(); len(rest) > 0 {
			s.selected = Target{Pool: rest[0].Name(), Source: rest[0].DefaultSource()}
		}
	}
	s.mu.Unlock()
	s.pages.Purge()

	if err := pool.Close(); err != nil {
		s.log.Error("close pool failed", "pool", name, "err", err)
	}
	adapter, err := s.adapter(pool.Info())
	if err != nil {
		return err
	}
	s.discard(ctx, pool.Info(), adapter)
	s.log.Info("pool deleted", "pool", name)
	return nil
}

// RebuildPool rebuilds the index of a pool from its stored rows.
func (s *Service) RebuildPool(ctx context.Context, name string, onProgress func(int)) error {
	pool, err := s.Pool(name)
	if err != nil {
		return err
	}
	defer s.pages.Purge()
	return pool.Reindex(ctx, onProgress)
}

// AppendSource ingests another file into a source of a loaded pool.
func (s *Service) AppendSource(ctx context.Context, name, source, path string) error {
	pool, err := s.Pool(name)
	if err != nil {
		return err
	}
	src, ok := pool.Info().Source(source)
	if !ok {
		return tperrors.NotFound("source " + source + " in pool " + name)
	}
	defer s.pages.Purge()
	return s.ingestFile(ctx, pool, src, path)
}

// CheckPool verifies the on-disk index of a pool.
func (s *Service) CheckPool(name string) error {
	if _, err := s.Pool(name); err != nil {
		return err
	}
	return fulltext.Check(filepath.Join(s.poolDir(name), IndexDir))
}

// Select makes pool.source the default target of queries.
func (s *Service) Select(pool, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[pool]
	if !ok {
		return tperrors.NotFound("pool " + pool)
	}
	src, ok := p.Info().Source(source)
	if !ok {
		return tperrors.NotFound("source " + source + " in pool " + pool)
	}
	s.selected = Target{Pool: pool, Source: schema.NormalizeSource(src.Name)}
	s.log.Info("selected", "target", s.selected.String())
	return nil
}

// Selected returns the current selection.
func (s *Service) Selected() (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.selected.Pool != "" && s.selected.Source != ""
}

// Pools lists "<pool>.<source>" for every source with indexed fields.
func (s *Service) Pools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.sortedPools() {
		for _, field := range p.IndexedFields() {
			src, _ := schema.SplitQualified(field)
			t := Target{Pool: p.Name(), Source: src}.String()
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Infos returns the definitions of all loaded pools.
func (s *Service) Infos() []schema.DataInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.DataInfo
	for _, p := range s.sortedPools() {
		out = append(out, p.Info())
	}
	return out
}

func (s *Service) sortedPools() []*Pool {
	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Pool, len(names))
	for i, name := range names {
		out[i] = s.pools[name]
	}
	return out
}

// Pool returns a loaded pool by name.
func (s *Service) Pool(name string) (*Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[name]
	if !ok {
		return nil, tperrors.NotFound("pool " + name)
	}
	return p, nil
}

// resolve fills t from the selection and returns its pool and table.
func (s *Service) resolve(t Target) (*Pool, Target, error) {
	s.mu.RLock()
	if t.Pool == "" {
		t.Pool = s.selected.Pool
		if t.Source == "" {
			t.Source = s.selected.Source
		}
	}
	p, ok := s.pools[t.Pool]
	s.mu.RUnlock()
	if !ok {
		return nil, t, tperrors.NotFound("pool " + t.Pool)
	}
	if t.Source == "" {
		t.Source = p.DefaultSource()
	}
	src, ok := p.Info().Source(t.Source)
	if !ok {
		return nil, t, tperrors.NotFound("source " + t.Source + " in pool " + t.Pool)
	}
	t.Source = schema.NormalizeSource(src.Name)
	if p.Store() == nil {
		return nil, t, tperrors.New(tperrors.ErrClosed, "pool "+t.Pool+" has no store")
	}
	return p, t, nil
}

// Page returns one page of rows of the target source matching q.Query.
func (s *Service) Page(ctx context.Context, q PageQuery) (PageResult, error) {
	pool, target, err := s.resolve(q.Target)
	if err != nil {
		return PageResult{}, err
	}
	key := pageKey{target: target, query: q.Query, semantic: q.Semantic, page: q.Page}
	if q.Order != nil {
		key.order, key.ordered = *q.Order, true
	}
	if cached, ok := s.pages.Get(key); ok {
		return cached, nil
	}
	s.log.Info("query", "target", target.String(), "query", q.Query, "semantic", q.Semantic, "page", q.Page)

	res, filters := s.route(ctx, pool, q.Query, q.Semantic)
	if len(filters) == 0 && res.Empty() {
		return PageResult{}, nil
	}
	store := pool.Store()
	rows := store.Get(ctx, target.Source, res.IDs, res.Tokens, filters, storage.SelectOptions{
		Order:  q.Order,
		Offset: q.Page * PageSize,
		Limit:  PageSize,
	})

	links := make(map[string][]storage.Row)
	for from, to := range pool.Links() {
		fromSource, fromField := schema.SplitQualified(from)
		if fromSource != target.Source {
			continue
		}
		toSource, toField := schema.SplitQualified(to)
		values := distinctValues(rows, fromField)
		if len(values) == 0 {
			continue
		}
		links[fromField] = store.Select(ctx, toSource, storage.Where{toField: values}, storage.SelectOptions{})
	}

	result := PageResult{Rows: rows, Links: links}
	s.pages.Add(key, result)
	return result, nil
}

// PageCount counts the rows matching q.Query and the pages they fill.
func (s *Service) PageCount(ctx context.Context, q PageQuery) (PageCount, error) {
	pool, target, err := s.resolve(q.Target)
	if err != nil {
		return PageCount{}, err
	}
	res, filters := s.route(ctx, pool, q.Query, q.Semantic)
	if len(filters) == 0 && res.Empty() {
		return PageCount{}, nil
	}
	count := pool.Store().CountMatching(ctx, target.Source, res.IDs, res.Tokens, filters)
	return PageCount{
		Count:      count,
		Pages:      int64(math.Ceil(float64(count) / PageSize)),
		Highlights: highlights(res.IndexedValues),
	}, nil
}

// Suggestions completes prefix from the values of a field of the target.
func (s *Service) Suggestions(ctx context.Context, t Target, field, prefix string) []string {
	pool, target, err := s.resolve(t)
	if err != nil {
		return nil
	}
	src, _ := pool.Info().Source(target.Source)
	if _, ok := src.Field(field); !ok {
		return nil
	}
	return pool.Store().Suggestions(ctx, target.Source, field, prefix, SuggestionCount)
}

// route strips pre-filter tokens from query, expands variant tokens and
// searches what is left.
func (s *Service) route(ctx context.Context, pool *Pool, query string, semantic bool) (SearchResult, []string) {
	rest, filters := s.preFilters(ctx, pool, query)
	return pool.Search(ctx, s.expandVariants(ctx, pool, rest), semantic), filters
}

// preFilters resolves "@source:linkValue:value" tokens. linkValue selects
// rows of the linked source by the pre-filter's link key; their link values
// together with value narrow rows of source, whose pre-filter keys become
// filter tokens.
func (s *Service) preFilters(ctx context.Context, pool *Pool, query string) (string, []string) {
	var raws []string
	seenRaw := make(map[string]bool)
	for _, m := range preFilterRe.FindAllString(query, -1) {
		if !seenRaw[m] {
			seenRaw[m] = true
			raws = append(raws, m)
		}
	}
	for _, raw := range raws {
		query = strings.ReplaceAll(query, raw, "")
	}
	query = strings.TrimSpace(query)

	store := pool.Store()
	var filters stringSet
	for _, raw := range raws {
		parts := strings.SplitN(raw[1:], ":", 3)
		if len(parts) != 3 {
			continue
		}
		name, linkValue, value := parts[0], parts[1], parts[2]
		source := name
		pf, ok := pool.preFilters[source]
		if !ok {
			source = schema.NormalizeSource(name)
			if pf, ok = pool.preFilters[source]; !ok {
				continue
			}
		}

		for from, to := range pool.Links() {
			if !strings.HasPrefix(from, source+".") {
				continue
			}
			linkSource, linkField := schema.SplitQualified(to)
			linked := store.Select(ctx, linkSource, storage.Where{pf.LinkKey: {linkValue}}, storage.SelectOptions{})

			where := storage.Where{pf.Value: {value}}
			if ids := distinctValues(linked, linkField); len(ids) > 0 {
				where[linkField] = ids
			}
			for _, row := range store.Select(ctx, source, where, storage.SelectOptions{}) {
				if v, ok := row[pf.Key]; ok && v != "" {
					filters.add(pf.Key + ":" + v)
				}
			}
		}
	}
	return query, filters.order
}

// expandVariants replaces "@source:value" with the variant values of the
// rows whose base column equals value, OR-ed in parentheses.
func (s *Service) expandVariants(ctx context.Context, pool *Pool, query string) string {
	store := pool.Store()
	return variantRe.ReplaceAllStringFunc(query, func(m string) string {
		sub := variantRe.FindStringSubmatch(m)
		source, value := sub[1], sub[2]
		vm, ok := pool.variants[source]
		if !ok {
			source = schema.NormalizeSource(source)
			if vm, ok = pool.variants[source]; !ok {
				return ""
			}
		}
		var variants stringSet
		for _, row := range store.Select(ctx, source, storage.Where{vm.Base: {value}}, storage.SelectOptions{}) {
			for _, col := range vm.Variants {
				if v := row[col]; v != "" {
					variants.add(v)
				}
			}
		}
		if len(variants.order) == 0 {
			return ""
		}
		return "(" + strings.Join(variants.order, " or ") + ")"
	})
}

func distinctValues(rows []storage.Row, column string) []string {
	var set stringSet
	for _, row := range rows {
		if v := row[column]; v != "" {
			set.add(v)
		}
	}
	return set.order
}

// highlights splits indexed values into words, dropping boolean operators
// and words shorter than two runes.
func highlights(values []string) []string {
	var set stringSet
	for _, v := range values {
		for _, tok := range splitUnquoted(v, ' ') {
			tok = strings.TrimSpace(strings.Trim(tok, "()"))
			switch strings.ToLower(tok) {
			case "and", "or", "not":
				continue
			}
			if len([]rune(tok)) < 2 {
				continue
			}
			set.add(tok)
		}
	}
	return set.order
}

// Close closes every pool.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, p := range s.pools {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pool %s: %w", name, err))
		}
	}
	s.pools = make(map[string]*Pool)
	s.selected = Target{}
	s.pages.Purge()
	return errors.Join(errs...)
}
