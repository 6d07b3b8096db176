// Package customer holds the billing-side customer record. Customers are
// lazily provisioned from the surrounding application's account records the
// first time they place an order.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no customer exists for the given id.
var ErrNotFound = errors.New("customer not found")

// Customer is the billing projection of an account: just enough identity and
// contact info to stamp orders and address notifications.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Repository defines persistence operations for customers.
type Repository interface {
	// GetByID returns the customer, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Customer, error)
	// Ensure upserts the customer record and returns the stored row. Existing
	// contact fields are kept; only missing ones are filled in.
	Ensure(ctx context.Context, c Customer) (*Customer, error)
}
