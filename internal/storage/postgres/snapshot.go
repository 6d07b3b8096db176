package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/tier"
)

const (
	// uniqueViolation is the PostgreSQL error code raised when a concurrent
	// freezer wins the one-active-snapshot-per-customer race.
	uniqueViolation = "23505"
	// foreignKeyViolation is raised when the snapshot references a customer
	// row that does not exist.
	foreignKeyViolation = "23503"
)

var _ tier.SnapshotStore = (*SnapshotRepository)(nil)

// SnapshotRepository stores per-customer frozen tier ladders. Ladders are
// serialized to JSONB; rows are never updated in place except to clear the
// active flag.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository returns a SnapshotRepository that uses the given pool.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

const findActiveSnapshotSQL = `SELECT tiers, captured_at
	FROM customer_tier_snapshots
	WHERE customer_id = $1 AND active`

// FindActive returns the customer's active snapshot, or tier.ErrNoSnapshot.
func (r *SnapshotRepository) FindActive(ctx context.Context, customerID string) (*tier.Snapshot, error) {
	var (
		raw        []byte
		capturedAt time.Time
	)
	err := r.pool.QueryRow(ctx, findActiveSnapshotSQL, customerID).Scan(&raw, &capturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tier.ErrNoSnapshot
		}
		return nil, errors.Wrapf(err, "finding snapshot for customer %q", customerID)
	}

	var ladder tier.Ladder
	if err := json.Unmarshal(raw, &ladder); err != nil {
		return nil, errors.Wrapf(err, "decoding snapshot for customer %q", customerID)
	}

	return &tier.Snapshot{
		CustomerID: customerID,
		Tiers:      ladder,
		CapturedAt: capturedAt,
		Active:     true,
	}, nil
}

const deactivateSnapshotSQL = `UPDATE customer_tier_snapshots
	SET active = FALSE
	WHERE customer_id = $1 AND active`

const insertSnapshotSQL = `INSERT INTO customer_tier_snapshots (customer_id, tiers, captured_at, active)
	VALUES ($1, $2, $3, TRUE)`

// Replace deactivates the customer's active snapshot and inserts a fresh one
// in a single transaction. Two requests for the same customer may race here;
// both compute the snapshot from the same live table, so the loser simply
// adopts the winner's row instead of failing the order. A customer id with no
// customers row surfaces customer.ErrNotFound.
func (r *SnapshotRepository) Replace(ctx context.Context, customerID string, tiers tier.Ladder, capturedAt time.Time) (tier.Ladder, error) {
	raw, err := json.Marshal(tiers)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deactivateSnapshotSQL, customerID); err != nil {
			return errors.Wrap(err, "deactivating snapshot")
		}
		if _, err := tx.Exec(ctx, insertSnapshotSQL, customerID, raw, capturedAt); err != nil {
			return errors.Wrap(err, "inserting snapshot")
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return r.readWinner(ctx, customerID)
		}
		if isForeignKeyViolation(err) {
			return nil, errors.Wrapf(customer.ErrNotFound, "customer %q", customerID)
		}
		return nil, errors.Wrapf(err, "replacing snapshot for customer %q", customerID)
	}

	return tiers, nil
}

// readWinner loads the snapshot a concurrent writer committed.
func (r *SnapshotRepository) readWinner(ctx context.Context, customerID string) (tier.Ladder, error) {
	snap, err := r.FindActive(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "reading winning snapshot")
	}
	return snap.Tiers, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
