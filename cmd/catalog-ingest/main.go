// Command catalog-ingest imports products from large gzipped supplier feed
// exports. Suppliers ship several daily export files that should agree with
// each other; a SKU is accepted only when it appears in at least two files,
// which filters out truncated or corrupt exports. Membership across files is
// tracked with bloom filters so the feeds never need to fit in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/brewpos/brewpos/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 1_000_000
)

// feedLine is one parsed supplier feed record: sku|name|price.
type feedLine struct {
	sku   string
	name  string
	price decimal.Decimal
}

// fileResult holds candidate SKUs found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
	lines      map[string]feedLine
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing productfeedN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("productfeed%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per feed file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep SKUs appearing in 2+ files.
	slog.Info("pass 2: finding confirmed SKUs")

	confirmed, err := findConfirmedLines(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed SKUs")
	}

	slog.Info("confirmed SKUs", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("nothing to ingest")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeProducts(ctx, pool, confirmed); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line feedLine) {
			filter.AddString(line.sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("skus", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedLines re-streams each file and checks SKUs against OTHER
// files' bloom filters. A SKU is confirmed if it appears in 2 or more files.
func findConfirmedLines(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]feedLine, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files; the latest-seen line wins for a SKU.
	merged := make(map[string]uint)
	lines := make(map[string]feedLine)
	for _, r := range results {
		for sku, mask := range r.candidates {
			merged[sku] |= mask
			lines[sku] = r.lines[sku]
		}
	}

	var confirmed []feedLine
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, lines[sku])
		}
	}

	return confirmed, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		lines := make(map[string]feedLine)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line feedLine) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("skus", count),
				)
			}

			// Check whether this SKU appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(line.sku) {
					candidates[line.sku] |= fileBit
					lines[line.sku] = line
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates, lines: lines}
		return nil
	}
}

// streamGzFile opens a gzip-compressed feed and calls fn for each parseable
// record. Lines are `sku|name|price`; malformed lines are skipped.
func streamGzFile(ctx context.Context, path string, fn func(line feedLine)) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := parseFeedLine(scanner.Text())
		if ok {
			fn(line)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func parseFeedLine(raw string) (feedLine, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return feedLine{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil || price.IsNegative() {
		return feedLine{}, false
	}
	return feedLine{
		sku:   strings.TrimSpace(parts[0]),
		name:  strings.TrimSpace(parts[1]),
		price: price,
	}, true
}

// writeProducts upserts all confirmed products as inactive simple products;
// activation stays a deliberate catalog-management step.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, lines []feedLine) error {
	slog.Info("writing products to database", slog.Int("count", len(lines)))

	for i, line := range lines {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, price, kind, active)
			VALUES ($1, $2, $3, 'simple', FALSE)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, updated_at = now()`,
			line.sku, line.name, line.price,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", line.sku)
		}

		if (i+1)%100 == 0 || i+1 == len(lines) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(lines)))
		}
	}

	return nil
}
