package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washday/laundry-api/internal/domain/tier"
)

var (
	_ tier.Source     = (*TierRepository)(nil)
	_ tier.AdminStore = (*TierRepository)(nil)
)

// TierRepository stores the admin-edited tier table. It backs both the
// resolver's read path and the admin CRUD surface.
type TierRepository struct {
	pool *pgxpool.Pool
}

// NewTierRepository returns a TierRepository that uses the given pool.
func NewTierRepository(pool *pgxpool.Pool) *TierRepository {
	return &TierRepository{pool: pool}
}

const listActiveTiersSQL = `SELECT name, percentage, min_orders, max_orders
	FROM tier_definitions
	WHERE active
	ORDER BY min_orders ASC`

// ListActive returns the live ladder. This is the single query function all
// tier reads go through; nothing caches the result across requests.
func (r *TierRepository) ListActive(ctx context.Context) (tier.Ladder, error) {
	rows, err := r.pool.Query(ctx, listActiveTiersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing active tiers")
	}
	defer rows.Close()

	var ladder tier.Ladder
	for rows.Next() {
		var d tier.Definition
		if err := rows.Scan(&d.Name, &d.Percentage, &d.MinOrders, &d.MaxOrders); err != nil {
			return nil, errors.Wrap(err, "scanning tier")
		}
		ladder = append(ladder, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading tiers")
	}
	return ladder, nil
}

const listAllTiersSQL = `SELECT id, name, percentage, min_orders, max_orders, active
	FROM tier_definitions
	ORDER BY min_orders ASC, id ASC`

// ListAll returns every stored tier definition for the admin view.
func (r *TierRepository) ListAll(ctx context.Context) ([]tier.StoredDefinition, error) {
	rows, err := r.pool.Query(ctx, listAllTiersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing tiers")
	}
	defer rows.Close()

	var defs []tier.StoredDefinition
	for rows.Next() {
		var s tier.StoredDefinition
		if err := rows.Scan(&s.ID, &s.Name, &s.Percentage, &s.MinOrders, &s.MaxOrders, &s.Active); err != nil {
			return nil, errors.Wrap(err, "scanning tier")
		}
		defs = append(defs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading tiers")
	}
	return defs, nil
}

const insertTierSQL = `INSERT INTO tier_definitions (name, percentage, min_orders, max_orders, active)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

// Insert creates a tier definition and returns its id.
func (r *TierRepository) Insert(ctx context.Context, d tier.Definition, active bool) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, insertTierSQL,
		d.Name, d.Percentage, d.MinOrders, d.MaxOrders, active,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "inserting tier %q", d.Name)
	}
	return id, nil
}

const updateTierSQL = `UPDATE tier_definitions
	SET name = $2, percentage = $3, min_orders = $4, max_orders = $5, active = $6, updated_at = now()
	WHERE id = $1`

// Update replaces a tier definition. Returns tier.ErrTierNotFound when the
// id does not exist.
func (r *TierRepository) Update(ctx context.Context, id int64, d tier.Definition, active bool) error {
	tag, err := r.pool.Exec(ctx, updateTierSQL,
		id, d.Name, d.Percentage, d.MinOrders, d.MaxOrders, active,
	)
	if err != nil {
		return errors.Wrapf(err, "updating tier %d", id)
	}
	if tag.RowsAffected() == 0 {
		return tier.ErrTierNotFound
	}
	return nil
}

// Delete removes a tier definition. Returns tier.ErrTierNotFound when the
// id does not exist.
func (r *TierRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tier_definitions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting tier %d", id)
	}
	if tag.RowsAffected() == 0 {
		return tier.ErrTierNotFound
	}
	return nil
}
