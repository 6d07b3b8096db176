package tier

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
)

// ErrTierNotFound is returned when no tier definition exists for the given id.
var ErrTierNotFound = errors.New("tier definition not found")

// StoredDefinition is a tier row as persisted, including its id and active
// flag.
type StoredDefinition struct {
	ID     int64
	Active bool
	Definition
}

// AdminStore persists tier definitions for the admin CRUD surface.
type AdminStore interface {
	ListAll(ctx context.Context) ([]StoredDefinition, error)
	Insert(ctx context.Context, d Definition, active bool) (int64, error)
	Update(ctx context.Context, id int64, d Definition, active bool) error
	Delete(ctx context.Context, id int64) error
}

// Admin validates and applies administrator edits to the tier table. Every
// mutation is checked against the ladder invariants of the resulting active
// set, not just the edited row. Order processing never goes through Admin.
type Admin struct {
	store AdminStore
}

// NewAdmin creates an Admin backed by the given store.
func NewAdmin(store AdminStore) *Admin {
	return &Admin{store: store}
}

// List returns every stored tier definition, active or not, sorted ascending
// by MinOrders.
func (a *Admin) List(ctx context.Context) ([]StoredDefinition, error) {
	defs, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tiers")
	}
	sortStored(defs)
	return defs, nil
}

// Create inserts a new tier after validating it against the active ladder.
func (a *Admin) Create(ctx context.Context, d Definition, active bool) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if active {
		if err := a.checkLadder(ctx, 0, &d); err != nil {
			return 0, err
		}
	}

	id, err := a.store.Insert(ctx, d, active)
	if err != nil {
		return 0, errors.Wrap(err, "insert tier")
	}
	return id, nil
}

// Update replaces a tier definition after validating the resulting ladder.
func (a *Admin) Update(ctx context.Context, id int64, d Definition, active bool) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if active {
		if err := a.checkLadder(ctx, id, &d); err != nil {
			return err
		}
	}

	if err := a.store.Update(ctx, id, d, active); err != nil {
		return errors.Wrapf(err, "update tier %d", id)
	}
	return nil
}

// Delete removes a tier definition. Frozen snapshots that captured the tier
// are unaffected.
func (a *Admin) Delete(ctx context.Context, id int64) error {
	if err := a.store.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete tier %d", id)
	}
	return nil
}

// checkLadder validates the active ladder as it would look after replacing
// (or, when replaceID is zero, adding) the given definition.
func (a *Admin) checkLadder(ctx context.Context, replaceID int64, d *Definition) error {
	stored, err := a.store.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list tiers")
	}

	candidate := make(Ladder, 0, len(stored)+1)
	for _, s := range stored {
		if !s.Active || s.ID == replaceID {
			continue
		}
		candidate = append(candidate, s.Definition)
	}
	if d != nil {
		candidate = append(candidate, *d)
	}

	sort.SliceStable(candidate, func(i, j int) bool {
		return candidate[i].MinOrders < candidate[j].MinOrders
	})
	return candidate.Validate()
}

func sortStored(defs []StoredDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].MinOrders < defs[j].MinOrders
	})
}
