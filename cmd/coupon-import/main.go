// Command coupon-import loads partner coupon feeds into the coupon directory.
//
// Each feed is a gzip-compressed CSV file with rows of
//
//	code,type,value,min_order,expires
//
// where min_order (minor units) and expires (YYYY-MM-DD) may be empty. A code
// defined differently by two feeds is a conflict and is skipped entirely.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

type options struct {
	dataDir       string
	databaseURL   string
	expectedCodes uint
	dryRun        bool
}

// feed is the parsed content of one file. candidates holds codes that the
// other feeds' filters report as possibly present.
type feed struct {
	path       string
	coupons    map[string]coupon.Coupon
	candidates map[string]struct{}
	invalid    int
}

type couponWriter interface {
	UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.csv.gz coupon feeds")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expectedCodes, "expected-codes", 1_000_000, "expected codes per feed, sizes the bloom filters")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and reconcile feeds without writing")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz feeds in %s", opts.dataDir)
	}
	slices.Sort(files)

	// Pass 1: one bloom filter per feed.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts.expectedCodes)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: parse rows and flag codes other feeds may also define.
	slog.Info("pass 2: parsing feeds")

	feeds, err := scanFeeds(ctx, files, filters, time.Now())
	if err != nil {
		return errors.Wrap(err, "scan feeds")
	}

	coupons, conflicts := reconcile(feeds)
	for _, code := range conflicts {
		slog.Warn("conflicting coupon definitions, skipped", slog.String("code", code))
	}
	slog.Info("coupons reconciled",
		slog.Int("coupons", len(coupons)),
		slog.Int("conflicts", len(conflicts)),
	)

	if opts.dryRun || len(coupons) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeBatches(ctx, postgres.NewCouponRepository(pool), coupons, batchSize); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter of normalized codes per file,
// concurrently.
func buildBloomFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var count int

			if err := streamFeed(ctx, path, func(_ int, rec []string) error {
				filter.AddString(pricing.NormalizeCode(rec[0]))
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Int("codes", count))
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFeeds parses every file concurrently. Invalid rows are logged and
// counted; a code repeated within one file keeps its last row.
func scanFeeds(ctx context.Context, files []string, filters []*bloom.BloomFilter, now time.Time) ([]feed, error) {
	feeds := make([]feed, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := feed{
				path:       path,
				coupons:    make(map[string]coupon.Coupon),
				candidates: make(map[string]struct{}),
			}
			source := filepath.Base(path)

			if err := streamFeed(ctx, path, func(line int, rec []string) error {
				c, err := parseRecord(rec, source, now)
				if err != nil {
					f.invalid++
					slog.Warn("invalid coupon row",
						slog.String("file", path),
						slog.Int("line", line),
						slog.String("error", err.Error()),
					)
					return nil
				}
				f.coupons[c.Code] = *c

				for j, other := range filters {
					if j != i && other.TestString(c.Code) {
						f.candidates[c.Code] = struct{}{}
						break
					}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}

			slog.Info("pass 2 complete",
				slog.String("file", path),
				slog.Int("coupons", len(f.coupons)),
				slog.Int("candidates", len(f.candidates)),
				slog.Int("invalid", f.invalid),
			)
			feeds[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

// reconcile merges feeds into a code-sorted coupon list. Bloom candidates are
// checked exactly: a code present in several feeds is kept once when every
// definition agrees and reported as a conflict otherwise.
func reconcile(feeds []feed) (coupons []coupon.Coupon, conflicts []string) {
	kept := make(map[string]coupon.Coupon)
	conflicted := make(map[string]struct{})

	for _, f := range feeds {
		for code, c := range f.coupons {
			if _, ok := f.candidates[code]; !ok {
				kept[code] = c
				continue
			}
			if _, bad := conflicted[code]; bad {
				continue
			}
			prev, seen := kept[code]
			switch {
			case !seen:
				kept[code] = c
			case !sameRule(prev, c):
				delete(kept, code)
				conflicted[code] = struct{}{}
			}
		}
	}

	for _, c := range kept {
		coupons = append(coupons, c)
	}
	slices.SortFunc(coupons, func(a, b coupon.Coupon) int { return strings.Compare(a.Code, b.Code) })
	for code := range conflicted {
		conflicts = append(conflicts, code)
	}
	slices.Sort(conflicts)
	return coupons, conflicts
}

func sameRule(a, b coupon.Coupon) bool {
	return a.DiscountType == b.DiscountType &&
		a.DiscountValue.Equal(b.DiscountValue) &&
		a.MinOrderValue == b.MinOrderValue &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}

// parseRecord turns one CSV row into a validated coupon.
func parseRecord(rec []string, source string, now time.Time) (*coupon.Coupon, error) {
	if len(rec) < 3 {
		return nil, errors.Errorf("want at least 3 fields, got %d", len(rec))
	}
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	value, err := decimal.NewFromString(field(2))
	if err != nil {
		return nil, errors.Wrapf(err, "value %q", field(2))
	}

	p := coupon.CreateParams{
		Code:          field(0),
		DiscountType:  field(1),
		DiscountValue: value,
		Description:   "imported from " + source,
	}
	if s := field(3); s != "" {
		if p.MinOrderValue, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "min_order %q", s)
		}
	}
	if s := field(4); s != "" {
		if p.ExpiresOn, err = time.Parse(time.DateOnly, s); err != nil {
			return nil, errors.Wrapf(err, "expires %q", s)
		}
	}

	return coupon.Build(p, now)
}

// streamFeed opens a gzip-compressed CSV file and calls fn for each data row
// with its 1-based line number. A leading header row is skipped.
func streamFeed(ctx context.Context, path string, fn func(line int, rec []string) error) error {
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

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if len(rec) == 0 || rec[0] == "" || (line == 1 && strings.EqualFold(rec[0], "code")) {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// writeBatches upserts coupons in chunks of size.
func writeBatches(ctx context.Context, w couponWriter, coupons []coupon.Coupon, size int) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	for chunk := range slices.Chunk(coupons, size) {
		if err := w.UpsertBatch(ctx, chunk); err != nil {
			return errors.Wrapf(err, "upsert batch starting at %s", chunk[0].Code)
		}
		slog.Info("write progress", slog.Int("written", len(chunk)))
	}
	return nil
}
