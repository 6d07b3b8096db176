package tier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdminStore struct {
	rows   []StoredDefinition
	nextID int64
}

func (m *mockAdminStore) ListAll(_ context.Context) ([]StoredDefinition, error) {
	return append([]StoredDefinition(nil), m.rows...), nil
}

func (m *mockAdminStore) Insert(_ context.Context, d Definition, active bool) (int64, error) {
	m.nextID++
	m.rows = append(m.rows, StoredDefinition{ID: m.nextID, Active: active, Definition: d})
	return m.nextID, nil
}

func (m *mockAdminStore) Update(_ context.Context, id int64, d Definition, active bool) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i] = StoredDefinition{ID: id, Active: active, Definition: d}
			return nil
		}
	}
	return ErrTierNotFound
}

func (m *mockAdminStore) Delete(_ context.Context, id int64) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrTierNotFound
}

func seededStore() *mockAdminStore {
	store := &mockAdminStore{}
	for _, d := range DefaultLadder() {
		_, _ = store.Insert(context.Background(), d, true)
	}
	return store
}

func TestAdminCreateValid(t *testing.T) {
	store := &mockAdminStore{}
	admin := NewAdmin(store)

	id, err := admin.Create(context.Background(), bounded("Bronze", 5, 0, 2), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestAdminCreateRejectsOverlap(t *testing.T) {
	admin := NewAdmin(seededStore())

	// Default ladder already covers 3-5 with Silver.
	_, err := admin.Create(context.Background(), bounded("Steel", 8, 4, 7), true)
	require.ErrorIs(t, err, ErrOverlappingLadder)
}

func TestAdminCreateRejectsSecondUnbounded(t *testing.T) {
	admin := NewAdmin(seededStore())

	_, err := admin.Create(context.Background(), unbounded("Diamond", 25, 20), true)
	require.ErrorIs(t, err, ErrUnboundedNotLast)
}

func TestAdminCreateInactiveSkipsLadderCheck(t *testing.T) {
	admin := NewAdmin(seededStore())

	// Inactive rows are staging entries; they never join the active ladder.
	_, err := admin.Create(context.Background(), bounded("Steel", 8, 4, 7), false)
	require.NoError(t, err)
}

func TestAdminCreateRejectsBadPercentage(t *testing.T) {
	admin := NewAdmin(&mockAdminStore{})

	_, err := admin.Create(context.Background(), bounded("Huge", 150, 0, 5), true)
	require.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestAdminUpdateValidatesResultingLadder(t *testing.T) {
	store := seededStore()
	admin := NewAdmin(store)

	// Shrinking Silver's range to 3-4 leaves a gap before Gold; gaps are fine.
	err := admin.Update(context.Background(), 2, bounded("Silver", 10, 3, 4), true)
	require.NoError(t, err)

	// Stretching Silver over Gold's range is not.
	err = admin.Update(context.Background(), 2, bounded("Silver", 10, 3, 7), true)
	require.ErrorIs(t, err, ErrOverlappingLadder)
}

func TestAdminUpdateUnknownID(t *testing.T) {
	admin := NewAdmin(seededStore())

	err := admin.Update(context.Background(), 99, bounded("Ghost", 5, 100, 200), true)
	require.ErrorIs(t, err, ErrTierNotFound)
}

func TestAdminDelete(t *testing.T) {
	store := seededStore()
	admin := NewAdmin(store)

	require.NoError(t, admin.Delete(context.Background(), 1))

	defs, err := admin.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, 3)

	err = admin.Delete(context.Background(), 99)
	require.ErrorIs(t, err, ErrTierNotFound)
}

func TestAdminListSorted(t *testing.T) {
	store := &mockAdminStore{}
	_, _ = store.Insert(context.Background(), bounded("Gold", 15, 6, 9), true)
	_, _ = store.Insert(context.Background(), bounded("Bronze", 5, 0, 2), true)
	admin := NewAdmin(store)

	defs, err := admin.List(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Bronze", defs[0].Name)
	assert.Equal(t, "Gold", defs[1].Name)
}
