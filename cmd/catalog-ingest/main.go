package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomMinCapacity = 10_000
	bloomFPR         = 0.001
	confirmBatch     = 500
	progressEvery    = 10_000
	maxLineBytes     = 1 << 20
)

// feedResult holds the products parsed from a single feed file.
type feedResult struct {
	products []product.Product
	invalid  int
}

// catalog is the subset of the product store the ingest needs.
type catalog interface {
	product.Writer
	ListIDs(ctx context.Context) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

func main() {
	_ = godotenv.Load()

	var (
		dataDir     string
		pattern     string
		databaseURL string
		onlyNew     bool
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog feed files")
	flag.StringVar(&pattern, "pattern", "catalog*.ndjson.gz", "glob of gzipped NDJSON feed files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&onlyNew, "only-new", false, "insert products missing from the catalog, leave existing ones untouched")
	flag.IntVar(&workers, "workers", 8, "concurrent database writers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, onlyNew, workers); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, onlyNew bool, workers int) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "match feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no feed files match %s", glob)
	}
	slices.Sort(files)

	// Pass 1: parse feeds concurrently.
	slog.Info("pass 1: parsing feeds", slog.Int("files", len(files)))

	products, err := parseFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}
	if len(products) == 0 {
		slog.Info("no products to ingest")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{MaxConns: int32(max(workers, 1))})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	repo := postgres.NewProductRepository(pool)

	// Pass 2: split into new and possibly existing products.
	slog.Info("pass 2: checking existing catalog")

	filter, err := buildCatalogFilter(ctx, repo)
	if err != nil {
		return errors.Wrap(err, "build catalog filter")
	}
	fresh, known := partition(products, filter)
	slog.Info("partitioned products",
		slog.Int("new", len(fresh)),
		slog.Int("maybe_existing", len(known)),
	)

	toWrite := products
	if onlyNew {
		missing, err := confirmMissing(ctx, repo, known)
		if err != nil {
			return errors.Wrap(err, "confirm existing products")
		}
		toWrite = append(fresh, missing...)
		slog.Info("skipping existing products", slog.Int("skipped", len(known)-len(missing)))
	}

	return writeProducts(ctx, repo, toWrite, workers)
}

// parseFeeds parses every file concurrently and merges the results. A
// product listed more than once keeps the last occurrence in file order.
func parseFeeds(ctx context.Context, files []string) ([]product.Product, error) {
	results := make([]feedResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := parseFeedFile(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "parse %s", f)
			}
			slog.Info("pass 1 complete",
				slog.String("file", filepath.Base(f)),
				slog.Int("products", len(res.products)),
				slog.Int("invalid", res.invalid),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merge(results), nil
}

func merge(results []feedResult) []product.Product {
	index := make(map[string]int)
	var out []product.Product
	for _, r := range results {
		for _, p := range r.products {
			if i, ok := index[p.ID]; ok {
				out[i] = p
				continue
			}
			index[p.ID] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func parseFeedFile(ctx context.Context, path string) (feedResult, error) {
	var res feedResult
	lineNo := 0
	err := streamGzFile(ctx, path, func(line []byte) {
		lineNo++
		if len(line) == 0 {
			return
		}
		var rec product.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			res.invalid++
			slog.Warn("skipping malformed line",
				slog.String("file", filepath.Base(path)),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			return
		}
		p, err := rec.Product()
		if err != nil {
			res.invalid++
			slog.Warn("skipping invalid product",
				slog.String("file", filepath.Base(path)),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			return
		}
		res.products = append(res.products, p)
		if len(res.products)%progressEvery == 0 {
			slog.Info("pass 1 progress",
				slog.String("file", filepath.Base(path)),
				slog.Int("products", len(res.products)),
			)
		}
	})
	return res, err
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// buildCatalogFilter loads every stored product id into a bloom filter.
func buildCatalogFilter(ctx context.Context, c catalog) (*bloom.BloomFilter, error) {
	ids, err := c.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	filter := bloom.NewWithEstimates(uint(max(len(ids), bloomMinCapacity)), bloomFPR)
	for _, id := range ids {
		filter.AddString(id)
	}
	slog.Info("catalog filter built", slog.Int("ids", len(ids)))
	return filter, nil
}

// partition splits products into certainly new ones and ones the filter
// reports as possibly stored.
func partition(products []product.Product, filter *bloom.BloomFilter) (fresh, known []product.Product) {
	for _, p := range products {
		if filter.TestString(p.ID) {
			known = append(known, p)
		} else {
			fresh = append(fresh, p)
		}
	}
	return fresh, known
}

// confirmMissing resolves bloom false positives: it returns the products of
// candidates that are not actually stored.
func confirmMissing(ctx context.Context, c catalog, candidates []product.Product) ([]product.Product, error) {
	var missing []product.Product
	for chunk := range slices.Chunk(candidates, confirmBatch) {
		ids := make([]string, len(chunk))
		for i, p := range chunk {
			ids[i] = p.ID
		}
		stored, err := c.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		exists := make(map[string]bool, len(stored))
		for _, p := range stored {
			exists[p.ID] = true
		}
		for _, p := range chunk {
			if !exists[p.ID] {
				missing = append(missing, p)
			}
		}
	}
	return missing, nil
}

// writeProducts upserts products with up to workers concurrent writers.
func writeProducts(ctx context.Context, w product.Writer, products []product.Product, workers int) error {
	slog.Info("writing products to database", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, p := range products {
		g.Go(func() error {
			if err := w.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			if (i+1)%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(products)))
			}
			return nil
		})
	}
	return g.Wait()
}
