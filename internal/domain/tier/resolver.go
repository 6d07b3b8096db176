package tier

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// snapshotStatus classifies the customer's stored snapshot relative to their
// current order count.
type snapshotStatus int

const (
	noSnapshot snapshotStatus = iota
	activeSnapshot
	staleSnapshot
)

// Resolver produces the (tier name, percentage) pair an order is stamped
// with, honoring the freeze rule: while a customer has orders in flight their
// frozen ladder applies; once they have none, the live table takes over.
type Resolver struct {
	tiers     Source
	snapshots SnapshotStore
	activity  ActivitySource
	now       func() time.Time
}

// NewResolver creates a Resolver with the required stores.
func NewResolver(tiers Source, snapshots SnapshotStore, activity ActivitySource) *Resolver {
	return &Resolver{
		tiers:     tiers,
		snapshots: snapshots,
		activity:  activity,
		now:       time.Now,
	}
}

// Resolve determines the tier for the customer's next order. The count is
// taken before that order is inserted, so an order never contributes to its
// own discount eligibility. Repeated calls are idempotent: refreshing twice
// in a row replaces a snapshot with an equivalent one, and a graduated
// customer no longer exceeds the refreshed ladder's top tier.
func (r *Resolver) Resolve(ctx context.Context, customerID string) (Assignment, error) {
	n, err := r.activity.CountBilled(ctx, customerID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "count billed orders")
	}

	active, err := r.activity.CountActive(ctx, customerID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "count active orders")
	}

	if active == 0 {
		// No orders in flight: the live table always applies. Materialize a
		// fresh snapshot so one exists the moment an order is placed.
		ladder, err := r.freshLadder(ctx, customerID)
		if err != nil {
			return Assignment{}, err
		}
		return lookup(ladder, n), nil
	}

	snap, err := r.snapshots.FindActive(ctx, customerID)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return Assignment{}, errors.Wrap(err, "load snapshot")
	}

	switch classify(snap, err, n) {
	case noSnapshot, staleSnapshot:
		ladder, err := r.freshLadder(ctx, customerID)
		if err != nil {
			return Assignment{}, err
		}
		return lookup(ladder, n), nil
	default:
		return lookup(snap.Tiers, n), nil
	}
}

// classify decides whether the stored snapshot still governs the customer.
// An unbounded top tier is terminal: it never refreshes while orders are in
// flight, no matter how high the count climbs. A bounded top tier that the
// count has exceeded means the customer graduated past the frozen ladder.
func classify(snap *Snapshot, lookupErr error, n int) snapshotStatus {
	switch {
	case lookupErr != nil || snap == nil || len(snap.Tiers) == 0:
		return noSnapshot
	case snap.Tiers.Top().Unbounded():
		return activeSnapshot
	case n > *snap.Tiers.Top().MaxOrders:
		return staleSnapshot
	default:
		return activeSnapshot
	}
}

// freshLadder captures the live table (or the built-in default when the
// table is empty) as the customer's new active snapshot and returns the
// ladder that actually won the snapshot race.
func (r *Resolver) freshLadder(ctx context.Context, customerID string) (Ladder, error) {
	live, err := r.tiers.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list live tiers")
	}
	if len(live) == 0 {
		live = DefaultLadder()
	}

	ladder, err := r.snapshots.Replace(ctx, customerID, live, r.now())
	if err != nil {
		return nil, errors.Wrap(err, "replace snapshot")
	}
	return ladder, nil
}

func lookup(ladder Ladder, n int) Assignment {
	d, ok := ladder.Locate(n)
	if !ok {
		return NoTier
	}
	return Assignment{TierName: d.Name, Percentage: d.Percentage}
}
