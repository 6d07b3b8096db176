// Package tier implements the loyalty discount ladder and the resolver that
// decides which tier an order is stamped with. A customer's ladder is frozen
// for the duration of an open order cycle: admin edits to the live table do
// not affect customers with orders still in flight.
package tier

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ladder validation and snapshot lookup.
var (
	ErrNoSnapshot        = errors.New("no active tier snapshot")
	ErrEmptyLadder       = errors.New("ladder has no tiers")
	ErrUnorderedLadder   = errors.New("tiers must be sorted ascending by min orders")
	ErrOverlappingLadder = errors.New("tier order ranges must not overlap")
	ErrUnboundedNotLast  = errors.New("only the last tier may be unbounded")
	ErrInvalidRange      = errors.New("max orders must be >= min orders")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

// Definition is a single rung of the discount ladder: customers whose
// lifetime order count falls in [MinOrders, MaxOrders] get Percentage off.
// A nil MaxOrders means the range is unbounded above.
type Definition struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	MinOrders  int             `json:"min_orders"`
	MaxOrders  *int            `json:"max_orders"`
}

// Unbounded reports whether the tier has no upper order bound.
func (d Definition) Unbounded() bool {
	return d.MaxOrders == nil
}

// Contains reports whether the given lifetime order count falls in the
// tier's range.
func (d Definition) Contains(n int) bool {
	if n < d.MinOrders {
		return false
	}
	return d.MaxOrders == nil || n <= *d.MaxOrders
}

// Validate checks a single tier definition in isolation.
func (d Definition) Validate() error {
	if d.Percentage.IsNegative() || d.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidPercentage
	}
	if d.MinOrders < 0 {
		return errors.Wrap(ErrInvalidRange, "min orders must be >= 0")
	}
	if d.MaxOrders != nil && *d.MaxOrders < d.MinOrders {
		return ErrInvalidRange
	}
	return nil
}

// Ladder is an ordered set of tiers, sorted ascending by MinOrders.
type Ladder []Definition

// Validate checks the ladder invariants: every tier valid on its own, sorted
// ascending by MinOrders, non-overlapping ranges, and an unbounded tier (if
// any) only in the last position.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return ErrEmptyLadder
	}
	for i, d := range l {
		if err := d.Validate(); err != nil {
			return errors.Wrapf(err, "tier %q", d.Name)
		}
		if i == 0 {
			continue
		}
		prev := l[i-1]
		if d.MinOrders < prev.MinOrders {
			return ErrUnorderedLadder
		}
		if prev.MaxOrders == nil {
			return ErrUnboundedNotLast
		}
		if d.MinOrders <= *prev.MaxOrders {
			return errors.Wrapf(ErrOverlappingLadder, "tiers %q and %q", prev.Name, d.Name)
		}
	}
	return nil
}

// Top returns the highest tier of the ladder.
func (l Ladder) Top() Definition {
	return l[len(l)-1]
}

// Locate returns the first tier whose range contains n. The boolean is false
// when n is below every tier's minimum.
func (l Ladder) Locate(n int) (Definition, bool) {
	for _, d := range l {
		if d.Contains(n) {
			return d, true
		}
	}
	return Definition{}, false
}

// DefaultLadder is the built-in fallback schedule used when the admin table
// is empty. An order must never be blocked by missing discount configuration.
func DefaultLadder() Ladder {
	return Ladder{
		{Name: "Bronze", Percentage: decimal.NewFromInt(5), MinOrders: 0, MaxOrders: intPtr(2)},
		{Name: "Silver", Percentage: decimal.NewFromInt(10), MinOrders: 3, MaxOrders: intPtr(5)},
		{Name: "Gold", Percentage: decimal.NewFromInt(15), MinOrders: 6, MaxOrders: intPtr(9)},
		{Name: "Platinum", Percentage: decimal.NewFromInt(20), MinOrders: 10, MaxOrders: nil},
	}
}

func intPtr(v int) *int { return &v }

// Snapshot is the ladder frozen for a customer at the start of their current
// order cycle. Snapshots are never mutated: superseding inserts a new row and
// deactivates the old one.
type Snapshot struct {
	CustomerID string
	Tiers      Ladder
	CapturedAt time.Time
	Active     bool
}

// Assignment is the resolved (tier name, percentage) pair stamped onto an
// order at creation time.
type Assignment struct {
	TierName   string
	Percentage decimal.Decimal
}

// NoTier is returned when the customer's order count is below every tier's
// minimum.
var NoTier = Assignment{TierName: "None", Percentage: decimal.Zero}

// Source lists the live admin-edited tier table. Reads always hit the
// backing store; no caching layer holds the ladder across requests.
type Source interface {
	ListActive(ctx context.Context) (Ladder, error)
}

// SnapshotStore persists per-customer frozen ladders.
type SnapshotStore interface {
	// FindActive returns the customer's active snapshot, or ErrNoSnapshot.
	FindActive(ctx context.Context, customerID string) (*Snapshot, error)
	// Replace deactivates any active snapshot and inserts a fresh one in a
	// single transaction. When a concurrent writer wins the race on the
	// one-active-per-customer constraint, Replace returns the winning
	// snapshot's ladder instead of failing.
	Replace(ctx context.Context, customerID string, tiers Ladder, capturedAt time.Time) (Ladder, error)
}

// ActivitySource reports a customer's order activity.
type ActivitySource interface {
	// CountBilled counts the customer's orders excluding cancelled ones.
	CountBilled(ctx context.Context, customerID string) (int, error)
	// CountActive counts orders in a non-terminal state (pending or in progress).
	CountActive(ctx context.Context, customerID string) (int, error)
}
