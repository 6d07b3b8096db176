package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washday/laundry-api/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const getCustomerSQL = `SELECT id, name, email, phone, created_at
	FROM customers WHERE id = $1`

// GetByID returns the customer, or customer.ErrNotFound.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, getCustomerSQL, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "loading customer %q", id)
	}
	return &c, nil
}

const ensureCustomerSQL = `INSERT INTO customers (id, name, email, phone)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		name  = CASE WHEN customers.name  = '' THEN EXCLUDED.name  ELSE customers.name  END,
		email = CASE WHEN customers.email = '' THEN EXCLUDED.email ELSE customers.email END,
		phone = CASE WHEN customers.phone = '' THEN EXCLUDED.phone ELSE customers.phone END
	RETURNING id, name, email, phone, created_at`

// Ensure lazily provisions the customer record on first order. Contact
// fields already stored win over the incoming ones; only blanks are filled.
func (r *CustomerRepository) Ensure(ctx context.Context, c customer.Customer) (*customer.Customer, error) {
	var out customer.Customer
	err := r.pool.QueryRow(ctx, ensureCustomerSQL,
		c.ID, c.Name, c.Email, c.Phone,
	).Scan(&out.ID, &out.Name, &out.Email, &out.Phone, &out.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "ensuring customer %q", c.ID)
	}
	return &out, nil
}
