package textpool

import (
	"context"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/textpool/textpool/textpool/csvio"
	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
)

// ReindexBatchSize is the number of stored rows indexed per commit when
// rebuilding the index.
const ReindexBatchSize = 1000

type IngestOptions struct {
	Delimiter rune
	// Quotes toggle quoted spans; default is the double quote.
	Quotes    []rune
	BatchSize int
	// OnBatch is called after every written batch with the running stats.
	OnBatch func(IngestStats)
}

func DefaultIngestOptions() IngestOptions {
	return IngestOptions{Delimiter: ',', BatchSize: csvio.DefaultBatchSize}
}

type IngestStats struct {
	Parsed  int
	Errors  int
	Stored  int
	Indexed int
	Batches int
}

// Ingest reads delimited text for source and writes every batch to the store
// and the index concurrently. Sources without a declared identifier get
// synthetic identifiers continuing after the largest stored one.
func (p *Pool) Ingest(ctx context.Context, source string, r io.Reader, opts IngestOptions) (IngestStats, error) {
	var stats IngestStats
	src, ok := p.info.Source(source)
	if !ok {
		return stats, tperrors.NotFound("source " + source)
	}
	if p.store == nil {
		return stats, tperrors.New(tperrors.ErrIngest, "pool has no store")
	}
	table := schema.NormalizeSource(src.Name)
	t, ok := p.store.Table(table)
	if !ok {
		return stats, tperrors.NotFound("table " + table)
	}
	if p.store.Locked() {
		return stats, tperrors.New(tperrors.ErrLocked, "store is locked")
	}

	var next int64
	if t.Synthetic {
		next = p.store.MaxID(ctx, table) + 1
	}

	csvOpts := []csvio.Option{csvio.WithLogger(p.log)}
	if opts.Delimiter != 0 {
		csvOpts = append(csvOpts, csvio.WithDelimiter(opts.Delimiter))
	}
	if len(opts.Quotes) > 0 {
		csvOpts = append(csvOpts, csvio.WithQuotes(opts.Quotes...))
	}
	if opts.BatchSize > 0 {
		csvOpts = append(csvOpts, csvio.WithBatchSize(opts.BatchSize))
	}
	reader := csvio.NewReader(r, csvOpts...)

	err := reader.ReadBatches(func(batch []csvio.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		records := make([]map[string]string, len(batch))
		for i, rec := range batch {
			if t.Synthetic {
				rec[t.PrimaryKey] = strconv.FormatInt(next, 10)
				next++
			}
			records[i] = rec
		}

		stored, indexed := p.write(ctx, src, table, records)
		stats.Stored += stored
		stats.Indexed += indexed
		stats.Batches++
		stats.Parsed = reader.Parsed()
		stats.Errors = reader.Errors()
		if opts.OnBatch != nil {
			opts.OnBatch(stats)
		}
		return nil
	})
	stats.Parsed = reader.Parsed()
	stats.Errors = reader.Errors()
	if err != nil {
		return stats, tperrors.Wrap(tperrors.ErrIngest, "ingest "+src.Name, err)
	}
	p.log.Info("ingested", "source", src.Name, "parsed", stats.Parsed, "errors", stats.Errors,
		"stored", stats.Stored, "indexed", stats.Indexed)
	return stats, nil
}

// write hands one batch to the store and the index in parallel. Both log
// their own failures, so the group never fails.
func (p *Pool) write(ctx context.Context, src schema.Source, table string, records []map[string]string) (stored, indexed int) {
	var g errgroup.Group
	g.Go(func() error {
		stored = p.store.Insert(ctx, table, records)
		return nil
	})
	if p.index != nil && src.HasIndex() {
		g.Go(func() error {
			indexed = p.index.IndexEntries(ctx, src.Name, records)
			return nil
		})
	}
	_ = g.Wait()
	return stored, indexed
}

// Reindex rebuilds the index from the stored rows of every indexed source.
// onProgress, if set, receives the completed percentage.
func (p *Pool) Reindex(ctx context.Context, onProgress func(int)) error {
	if p.index == nil || p.store == nil {
		return tperrors.New(tperrors.ErrIndex, "pool has no index or store")
	}
	if err := p.index.Clear(ctx); err != nil {
		return err
	}

	var indexed []schema.Source
	var total int64
	for _, src := range p.info.Sources {
		if !src.HasIndex() {
			continue
		}
		indexed = append(indexed, src)
		total += p.store.Count(ctx, schema.NormalizeSource(src.Name), nil)
	}
	batches := (total + ReindexBatchSize - 1) / ReindexBatchSize

	progress := func(done int64) {}
	if onProgress != nil {
		last := -1
		progress = func(done int64) {
			pct := 100
			if batches > 0 {
				pct = int(done * 100 / batches)
			}
			if pct > last {
				last = pct
				onProgress(pct)
			}
		}
	}
	progress(0)

	var done int64
	for _, src := range indexed {
		err := p.store.Stream(ctx, schema.NormalizeSource(src.Name), ReindexBatchSize, func(rows []storage.Row) error {
			records := make([]map[string]string, len(rows))
			for i, row := range rows {
				records[i] = row
			}
			p.index.IndexEntries(ctx, src.Name, records)
			done++
			progress(done)
			return nil
		})
		if err != nil {
			return tperrors.Wrap(tperrors.ErrIndex, "reindex "+src.Name, err)
		}
	}
	p.log.Info("reindexed", "documents", p.index.DocCount(ctx))
	return nil
}
