package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/menufile"
	"github.com/xenking/coffee-shop/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 10_000
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog shards")
	flag.StringVar(&pattern, "pattern", "menu*.jsonl.gz", "glob of gzip'd JSON-lines shards inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, dryRun); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "match %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no shards match %s", glob)
	}
	sort.Strings(files)

	var w catalog.Writer = discardWriter{}
	if !dryRun {
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		w = postgres.NewCatalogRepository(pool)
	}

	stats, err := ingest(ctx, files, w)
	if err != nil {
		return err
	}
	slog.Info("ingest summary",
		slog.Int("shards", len(files)),
		slog.Int("read", stats.read),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("malformed", stats.malformed),
		slog.Int64("written", stats.written),
	)
	return nil
}

type ingestStats struct {
	read       int
	duplicates int
	malformed  int
	written    int64
}

// ingest streams every shard concurrently into a single writer goroutine
// that drops repeated item ids and upserts in batches. The first occurrence
// of an id wins.
func ingest(ctx context.Context, files []string, w catalog.Writer) (ingestStats, error) {
	type shardItem struct {
		item catalog.Item
		bad  bool
	}
	items := make(chan shardItem, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(ctx)
	for i, path := range files {
		readers.Go(func() error {
			err := streamShard(rctx, path, func(it catalog.Item) error {
				select {
				case items <- shardItem{item: it}:
					return nil
				case <-rctx.Done():
					return rctx.Err()
				}
			}, func(line int, err error) {
				slog.Warn("skipping malformed line",
					slog.Int("shard", i+1),
					slog.Int("line", line),
					slog.String("error", err.Error()),
				)
				select {
				case items <- shardItem{bad: true}:
				case <-rctx.Done():
				}
			})
			if err != nil {
				return errors.Wrapf(err, "shard %s", filepath.Base(path))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(items)
		return readers.Wait()
	})

	var stats ingestStats
	g.Go(func() error {
		seen := newIDSet()
		batch := make([]catalog.Item, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := w.Upsert(ctx, batch)
			if err != nil {
				return errors.Wrap(err, "upsert batch")
			}
			stats.written += n
			batch = batch[:0]
			return nil
		}

		for si := range items {
			if si.bad {
				stats.malformed++
				continue
			}
			stats.read++
			if stats.read%progressEvery == 0 {
				slog.Info("ingest progress", slog.Int("read", stats.read), slog.Int64("written", stats.written))
			}
			if !seen.add(si.item.ID) {
				stats.duplicates++
				continue
			}
			batch = append(batch, si.item)
			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// streamShard decompresses a shard and decodes one item per line.
func streamShard(ctx context.Context, path string, fn func(catalog.Item) error, bad func(int, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return menufile.ReadLines(ctxReader{ctx: ctx, r: gz}, fn, bad)
}

// ctxReader stops a long decompression once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// idSet tracks item ids. The bloom filter answers most first sightings
// without touching the exact set.
type idSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newIDSet() *idSet {
	return &idSet{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		exact:  make(map[string]struct{}),
	}
}

// add records id and reports whether it was new.
func (s *idSet) add(id string) bool {
	if !s.filter.TestAndAddString(id) {
		s.exact[id] = struct{}{}
		return true
	}
	if _, ok := s.exact[id]; ok {
		return false
	}
	s.exact[id] = struct{}{}
	return true
}

type discardWriter struct{}

func (discardWriter) Upsert(_ context.Context, items []catalog.Item) (int64, error) {
	return int64(len(items)), nil
}
