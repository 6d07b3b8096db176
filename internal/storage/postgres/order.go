package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washday/laundry-api/internal/domain/order"
	"github.com/washday/laundry-api/internal/domain/tier"
)

var (
	_ order.Repository    = (*OrderRepository)(nil)
	_ tier.ActivitySource = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. It also
// serves as the resolver's activity source, since both counts are plain
// aggregates over the orders table.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const insertOrderSQL = `INSERT INTO orders
	(customer_id, state, stamped_tier, stamped_percent, pickup_address, delivery_address, created_at, promised_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

const setTrackingCodeSQL = `UPDATE orders SET tracking_code = $2 WHERE id = $1`

const insertGarmentLineSQL = `INSERT INTO garment_lines (order_id, type, price, description)
	VALUES ($1, $2, $3, $4)`

const insertReceiptSQL = `INSERT INTO receipts (order_id, customer_id, subtotal, discount_percent, total, issued_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Create persists the order, its garment lines, and its receipt in one
// transaction. Any failure, including a single line insert, rolls back the
// whole attempt; a partially billed order is never observable. On success
// the order's ID and TrackingCode are filled in.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.CustomerID, o.State, o.StampedTier, o.StampedPercent,
			o.PickupAddress, o.DeliveryAddress, o.CreatedAt, o.PromisedAt,
		).Scan(&o.ID)
		if err != nil {
			return errors.Wrap(err, "inserting order")
		}

		o.TrackingCode = order.TrackingCode(o.ID, o.CreatedAt)
		if _, err := tx.Exec(ctx, setTrackingCodeSQL, o.ID, o.TrackingCode); err != nil {
			return errors.Wrap(err, "setting tracking code")
		}

		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
			line := o.Lines[i]
			if _, err := tx.Exec(ctx, insertGarmentLineSQL,
				o.ID, line.Type, line.Price, line.Description,
			); err != nil {
				return errors.Wrapf(err, "inserting garment line %d", i)
			}
		}

		o.Receipt.OrderID = o.ID
		if _, err := tx.Exec(ctx, insertReceiptSQL,
			o.ID, o.Receipt.CustomerID, o.Receipt.Subtotal,
			o.Receipt.DiscountPercent, o.Receipt.Total, o.Receipt.IssuedAt,
		); err != nil {
			return errors.Wrap(err, "inserting receipt")
		}

		return nil
	})
	if err != nil {
		// The aggregate may carry a half-assigned id from the rolled-back
		// attempt; clear it so callers never see a phantom order.
		o.ID = 0
		o.TrackingCode = ""
		return errors.Wrapf(err, "creating order for customer %q", o.CustomerID)
	}

	return nil
}

const getOrderSQL = `SELECT id, customer_id, state, stamped_tier, stamped_percent,
	tracking_code, pickup_address, delivery_address, created_at, promised_at
	FROM orders WHERE id = $1`

const getLinesSQL = `SELECT order_id, type, price, description
	FROM garment_lines WHERE order_id = $1 ORDER BY id ASC`

const getReceiptSQL = `SELECT order_id, customer_id, subtotal, discount_percent, total, issued_at
	FROM receipts WHERE order_id = $1`

// GetByID loads the order with its lines and receipt, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.State, &o.StampedTier, &o.StampedPercent,
		&o.TrackingCode, &o.PickupAddress, &o.DeliveryAddress, &o.CreatedAt, &o.PromisedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "loading order %d", id)
	}

	rows, err := r.pool.Query(ctx, getLinesSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "loading lines for order %d", id)
	}
	defer rows.Close()
	for rows.Next() {
		var line order.GarmentLine
		if err := rows.Scan(&line.OrderID, &line.Type, &line.Price, &line.Description); err != nil {
			return nil, errors.Wrap(err, "scanning garment line")
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading garment lines")
	}

	var rec order.Receipt
	err = r.pool.QueryRow(ctx, getReceiptSQL, id).Scan(
		&rec.OrderID, &rec.CustomerID, &rec.Subtotal, &rec.DiscountPercent, &rec.Total, &rec.IssuedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(err, "loading receipt for order %d", id)
		}
	} else {
		o.Receipt = &rec
	}

	return &o, nil
}

const updateStateSQL = `UPDATE orders SET state = $3 WHERE id = $1 AND state = $2`

// UpdateState moves the order between states, guarded on the expected
// current state so concurrent transitions cannot be silently lost.
func (r *OrderRepository) UpdateState(ctx context.Context, id int64, from, to order.State) error {
	tag, err := r.pool.Exec(ctx, updateStateSQL, id, from, to)
	if err != nil {
		return errors.Wrapf(err, "updating state of order %d", id)
	}
	if tag.RowsAffected() == 0 {
		// Either the order vanished or another transition won the race.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return errors.Wrapf(err, "checking order %d", id)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrStateChanged
	}
	return nil
}

const countBilledSQL = `SELECT count(*) FROM orders
	WHERE customer_id = $1 AND state <> 'cancelled'`

// CountBilled counts the customer's lifetime orders excluding cancelled
// ones. Cancellation must not count toward or against tier progression.
func (r *OrderRepository) CountBilled(ctx context.Context, customerID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countBilledSQL, customerID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting billed orders for customer %q", customerID)
	}
	return n, nil
}

const countActiveSQL = `SELECT count(*) FROM orders
	WHERE customer_id = $1 AND state IN ('pending', 'in_progress')`

// CountActive counts the customer's orders still in flight.
func (r *OrderRepository) CountActive(ctx context.Context, customerID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countActiveSQL, customerID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting active orders for customer %q", customerID)
	}
	return n, nil
}
