// Command seed-db runs migrations and loads the starter data a fresh
// deployment needs: the default discount ladder and a few demo customers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/tier"
	"github.com/washday/laundry-api/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		demoCustomers bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&demoCustomers, "demo-customers", false, "also seed demo customers")
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

	if err := run(ctx, databaseURL, demoCustomers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, demoCustomers bool) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedTiers(ctx, postgres.NewTierRepository(pool)); err != nil {
		return errors.Wrap(err, "seed tiers")
	}

	if demoCustomers {
		if err := seedCustomers(ctx, postgres.NewCustomerRepository(pool)); err != nil {
			return errors.Wrap(err, "seed customers")
		}
	}

	return nil
}

// seedTiers inserts the default ladder. A non-empty active table is left
// untouched so reruns never clobber admin edits.
func seedTiers(ctx context.Context, repo *postgres.TierRepository) error {
	existing, err := repo.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "list active tiers")
	}
	if len(existing) > 0 {
		slog.Info("tier table already populated, skipping", slog.Int("tiers", len(existing)))
		return nil
	}

	slog.Info("seeding default tier ladder")

	for _, d := range tier.DefaultLadder() {
		id, err := repo.Insert(ctx, d, true)
		if err != nil {
			return errors.Wrapf(err, "insert tier %s", d.Name)
		}
		slog.Info("inserted tier",
			slog.Int64("id", id),
			slog.String("name", d.Name),
			slog.String("percentage", d.Percentage.String()),
		)
	}

	return nil
}

func seedCustomers(ctx context.Context, repo *postgres.CustomerRepository) error {
	slog.Info("seeding demo customers")

	demo := []customer.Customer{
		{ID: "demo-ada", Name: "Ada Rojas", Email: "ada@example.com"},
		{ID: "demo-bo", Name: "Bo Lindqvist", Email: "bo@example.com"},
		{ID: "demo-chidi", Name: "Chidi Okafor", Email: "chidi@example.com"},
	}

	for _, c := range demo {
		if _, err := repo.Ensure(ctx, c); err != nil {
			return errors.Wrapf(err, "ensure customer %s", c.ID)
		}
		slog.Info("ensured customer", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}
