// Command customer-import loads customers from a legacy gzipped CSV export.
// The export is split into shards that repeat rows, so IDs are deduplicated
// with a bloom filter before writing. Writes are upserts: rerunning the
// import never clobbers contact details already stored.
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
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the export shards")
	flag.StringVar(&pattern, "pattern", "customers*.csv.gz", "glob pattern for shard files")
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

	if err := run(ctx, dataDir, pattern, databaseURL); err != nil {
		slog.Error("customer import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("customer import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "glob shards")
	}
	if len(files) == 0 {
		return errors.Errorf("no shards matching %s in %s", pattern, dataDir)
	}

	slog.Info("parsing export shards", slog.Int("files", len(files)))

	shards, err := parseShards(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse shards")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeCustomers(ctx, postgres.NewCustomerRepository(pool), shards)
}

// parseShards reads every shard concurrently. Each shard's rows stay in their
// own slice; dedup happens in the single-threaded write pass.
func parseShards(ctx context.Context, files []string) ([][]customer.Customer, error) {
	shards := make([][]customer.Customer, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseShard(ctx, i, f, shards))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return shards, nil
}

func parseShard(ctx context.Context, idx int, path string, shards [][]customer.Customer) func() error {
	return func() error {
		var rows []customer.Customer

		if err := streamGzCSV(ctx, path, func(record []string) error {
			c, ok := parseRecord(record)
			if !ok {
				return nil
			}
			rows = append(rows, c)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse shard %s", path)
		}

		slog.Info("shard parsed",
			slog.String("file", filepath.Base(path)),
			slog.Int("rows", len(rows)),
		)

		shards[idx] = rows
		return nil
	}
}

// parseRecord maps a CSV record (id, name, email, phone) to a customer.
// Header rows and rows without an id are skipped.
func parseRecord(record []string) (customer.Customer, bool) {
	if len(record) < 1 {
		return customer.Customer{}, false
	}
	id := strings.TrimSpace(record[0])
	if id == "" || strings.EqualFold(id, "id") {
		return customer.Customer{}, false
	}

	c := customer.Customer{ID: id}
	if len(record) > 1 {
		c.Name = strings.TrimSpace(record[1])
	}
	if len(record) > 2 {
		c.Email = strings.TrimSpace(record[2])
	}
	if len(record) > 3 {
		c.Phone = strings.TrimSpace(record[3])
	}
	return c, true
}

// streamGzCSV opens a gzip-compressed CSV file and calls fn for each record.
func streamGzCSV(ctx context.Context, path string, fn func(record []string) error) error {
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
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// writeCustomers upserts every customer once. Shards repeat rows verbatim, so
// an ID already seen is skipped; a bloom false positive only skips a
// redundant upsert of an identical row.
func writeCustomers(ctx context.Context, repo *postgres.CustomerRepository, shards [][]customer.Customer) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var total, written int
	for _, rows := range shards {
		total += len(rows)
	}

	slog.Info("writing customers", slog.Int("rows", total))

	for _, rows := range shards {
		for _, c := range rows {
			if seen.TestAndAddString(c.ID) {
				continue
			}

			if _, err := repo.Ensure(ctx, c); err != nil {
				return errors.Wrapf(err, "upsert customer %s", c.ID)
			}
			written++

			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", written), slog.Int("rows", total))
			}
		}
	}

	slog.Info("customers written", slog.Int("written", written), slog.Int("skipped", total-written))
	return nil
}
