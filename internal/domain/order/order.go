// Package order implements the billing workflow: atomic order creation with
// per-unit garment lines, a stamped loyalty discount, a receipt, and the
// admin-driven state machine.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// State is the order lifecycle state. Transitions are forward only:
// pending -> in_progress -> completed, with cancellation allowed from any
// non-terminal state.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// ParseState converts a wire value into a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StatePending, StateInProgress, StateCompleted, StateCancelled:
		return State(s), nil
	default:
		return "", errors.Errorf("unknown order state %q", s)
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateInProgress || next == StateCancelled
	case StateInProgress:
		return next == StateCompleted || next == StateCancelled
	default:
		return false
	}
}

// Sentinel errors surfaced by the workflow.
var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	// ErrStateChanged is returned by the repository when a guarded state
	// update matched no row because a concurrent transition won.
	ErrStateChanged = errors.New("order state changed concurrently")
)

// ValidationError rejects bad input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GarmentLine is a single garment unit on an order. Quantity N in a request
// expands to N lines, each carrying the unit price resolved at insertion time.
type GarmentLine struct {
	OrderID     int64
	Type        string
	Price       decimal.Decimal
	Description string
}

// Receipt is issued exactly once per order and never changes.
type Receipt struct {
	OrderID         int64
	CustomerID      string
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	Total           decimal.Decimal
	IssuedAt        time.Time
}

// Order is the billed aggregate. StampedTier and StampedPercent are written
// once at creation; later tier table edits cannot change an already-placed
// order's price.
type Order struct {
	ID              int64
	CustomerID      string
	State           State
	StampedTier     string
	StampedPercent  decimal.Decimal
	TrackingCode    string
	PickupAddress   string
	DeliveryAddress string
	CreatedAt       time.Time
	PromisedAt      time.Time
	Lines           []GarmentLine
	Receipt         *Receipt
}

// TrackingCode derives the human-readable, scannable code for an order. It is
// a pure function of the order id and creation date, so uniqueness follows
// from id uniqueness.
func TrackingCode(id int64, createdAt time.Time) string {
	return fmt.Sprintf("LAV-%s-%06d", createdAt.Format("20060102"), id)
}

// PromisedAt computes the promised completion date from the total garment
// quantity: up to 5 garments in 3 days, up to 15 in 5, anything larger in 7.
func PromisedAt(createdAt time.Time, totalQuantity int) time.Time {
	days := 7
	switch {
	case totalQuantity <= 5:
		days = 3
	case totalQuantity <= 15:
		days = 5
	}
	return createdAt.AddDate(0, 0, days)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order, its garment lines, and its receipt in one
	// transaction, assigning ID, TrackingCode, and CreatedAt on success.
	// Partial writes are never observable.
	Create(ctx context.Context, o *Order) error
	// GetByID loads the order with its lines and receipt, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Order, error)
	// UpdateState moves the order from one state to another. Returns
	// ErrNotFound when the order does not exist and ErrStateChanged when the
	// order is no longer in the expected from state.
	UpdateState(ctx context.Context, id int64, from, to State) error
}
