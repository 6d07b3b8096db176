package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/pricing"
	"github.com/washday/laundry-api/internal/domain/tier"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Mock implementations ---

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	if c, ok := m.byID[id]; ok {
		return c, nil
	}
	return nil, customer.ErrNotFound
}

func (m *mockCustomerRepo) Ensure(_ context.Context, c customer.Customer) (*customer.Customer, error) {
	if m.byID == nil {
		m.byID = make(map[string]*customer.Customer)
	}
	if existing, ok := m.byID[c.ID]; ok {
		return existing, nil
	}
	m.byID[c.ID] = &c
	return &c, nil
}

type mockResolver struct {
	assignment tier.Assignment
	err        error
}

func (m *mockResolver) Resolve(_ context.Context, _ string) (tier.Assignment, error) {
	return m.assignment, m.err
}

type mockOrderRepo struct {
	created   *Order
	createErr error
	byID      map[int64]*Order
	stateErr  error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	o.ID = 42
	o.TrackingCode = TrackingCode(o.ID, o.CreatedAt)
	m.created = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*Order, error) {
	if o, ok := m.byID[id]; ok {
		return o, nil
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) UpdateState(_ context.Context, id int64, _, to State) error {
	if m.stateErr != nil {
		return m.stateErr
	}
	if o, ok := m.byID[id]; ok {
		o.State = to
		return nil
	}
	return ErrNotFound
}

type recordedEvent struct {
	kind string
	from State
}

type mockNotifier struct {
	events []recordedEvent
}

func (m *mockNotifier) OrderCreated(_ context.Context, _ *Order, _ *customer.Customer) {
	m.events = append(m.events, recordedEvent{kind: "created"})
}

func (m *mockNotifier) OrderStateChanged(_ context.Context, _ *Order, _ *customer.Customer, from State) {
	m.events = append(m.events, recordedEvent{kind: "state", from: from})
}

// --- Helpers ---

func silverResolver() *mockResolver {
	return &mockResolver{assignment: tier.Assignment{TierName: "Silver", Percentage: d("10")}}
}

func newService(repo *mockOrderRepo, resolver TierResolver, notifier *mockNotifier) *Service {
	svc := NewService(&mockCustomerRepo{}, resolver, pricing.DefaultBook(), repo, notifier)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerID:      "c1",
		Garments:        []GarmentRequest{{Type: "shirt", Quantity: 2}},
		PickupAddress:   "Calle 12 #34-56, Bogota",
		DeliveryAddress: "Carrera 7 #89-10, Bogota",
	}
}

// --- Tests ---

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateOrderRequest)
		wantField string
	}{
		{
			name:      "missing customer id",
			mutate:    func(r *CreateOrderRequest) { r.CustomerID = " " },
			wantField: "customer_id",
		},
		{
			name:      "empty garments",
			mutate:    func(r *CreateOrderRequest) { r.Garments = nil },
			wantField: "garments",
		},
		{
			name:      "zero quantity",
			mutate:    func(r *CreateOrderRequest) { r.Garments[0].Quantity = 0 },
			wantField: "garments",
		},
		{
			name:      "negative quantity",
			mutate:    func(r *CreateOrderRequest) { r.Garments[0].Quantity = -3 },
			wantField: "garments",
		},
		{
			name:      "blank garment type",
			mutate:    func(r *CreateOrderRequest) { r.Garments[0].Type = "  " },
			wantField: "garments",
		},
		{
			name:      "short pickup address",
			mutate:    func(r *CreateOrderRequest) { r.PickupAddress = "Calle 1" },
			wantField: "pickup_address",
		},
		{
			name:      "short delivery address",
			mutate:    func(r *CreateOrderRequest) { r.DeliveryAddress = "  Cra 2  " },
			wantField: "delivery_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{}
			svc := newService(repo, silverResolver(), &mockNotifier{})

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Nil(t, repo.created, "nothing may be persisted on validation failure")
		})
	}
}

func TestCreateOrderBronzeScenario(t *testing.T) {
	// 3 shirts at 5000 with Bronze 5%: subtotal 15000, discount 750, total 14250.
	repo := &mockOrderRepo{}
	notifier := &mockNotifier{}
	resolver := &mockResolver{assignment: tier.Assignment{TierName: "Bronze", Percentage: d("5")}}
	svc := newService(repo, resolver, notifier)

	req := validRequest()
	req.Garments = []GarmentRequest{{Type: "shirt", Quantity: 3}}

	o, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatePending, o.State)
	assert.Equal(t, "Bronze", o.StampedTier)
	assert.Len(t, o.Lines, 3, "quantity expands to one line per unit")
	require.NotNil(t, o.Receipt)
	assert.True(t, d("15000").Equal(o.Receipt.Subtotal))
	assert.True(t, d("750").Equal(o.Receipt.Subtotal.Sub(o.Receipt.Total)))
	assert.True(t, d("14250").Equal(o.Receipt.Total))
	assert.Equal(t, []recordedEvent{{kind: "created"}}, notifier.events)
}

func TestCreateOrderSilverScenario(t *testing.T) {
	// Mixed garments with Silver 10%: 2 blouses (4500) + 1 shirt (5000) = 14000,
	// total 12600.
	repo := &mockOrderRepo{}
	svc := newService(repo, silverResolver(), &mockNotifier{})

	req := validRequest()
	req.Garments = []GarmentRequest{
		{Type: "blouse", Quantity: 2},
		{Type: "shirt", Quantity: 1},
	}

	o, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Silver", o.StampedTier)
	assert.True(t, d("10").Equal(o.StampedPercent))
	assert.True(t, d("14000").Equal(o.Receipt.Subtotal))
	assert.True(t, d("12600").Equal(o.Receipt.Total))
}

func TestCreateOrderUnknownGarmentUsesDefaultPrice(t *testing.T) {
	repo := &mockOrderRepo{}
	resolver := &mockResolver{assignment: tier.NoTier}
	svc := newService(repo, resolver, &mockNotifier{})

	req := validRequest()
	req.Garments = []GarmentRequest{{Type: "spacesuit", Quantity: 1}}

	o, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(o.Receipt.Subtotal))
	assert.True(t, d("5000").Equal(o.Receipt.Total), "no tier means no discount")
}

func TestCreateOrderPromisedDate(t *testing.T) {
	tests := []struct {
		quantity int
		wantDays int
	}{
		{1, 3},
		{5, 3},
		{6, 5},
		{15, 5},
		{16, 7},
		{40, 7},
	}

	for _, tt := range tests {
		repo := &mockOrderRepo{}
		svc := newService(repo, silverResolver(), &mockNotifier{})

		req := validRequest()
		req.Garments = []GarmentRequest{{Type: "shirt", Quantity: tt.quantity}}

		o, err := svc.CreateOrder(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, tt.wantDays, int(o.PromisedAt.Sub(o.CreatedAt).Hours()/24),
			"quantity %d", tt.quantity)
	}
}

func TestCreateOrderTrackingCode(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newService(repo, silverResolver(), &mockNotifier{})

	o, err := svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "LAV-20260314-000042", o.TrackingCode)
}

func TestCreateOrderResolverError(t *testing.T) {
	repo := &mockOrderRepo{}
	resolver := &mockResolver{err: errors.New("tier table unreachable")}
	svc := newService(repo, resolver, &mockNotifier{})

	_, err := svc.CreateOrder(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve tier")
	assert.Nil(t, repo.created)
}

func TestCreateOrderPersistenceErrorSkipsNotification(t *testing.T) {
	repo := &mockOrderRepo{createErr: errors.New("db write failed")}
	notifier := &mockNotifier{}
	svc := newService(repo, silverResolver(), notifier)

	_, err := svc.CreateOrder(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Empty(t, notifier.events, "no notification without a committed order")
}

func TestAdvanceState(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"pending to in_progress", StatePending, StateInProgress, nil},
		{"pending to cancelled", StatePending, StateCancelled, nil},
		{"in_progress to completed", StateInProgress, StateCompleted, nil},
		{"in_progress to cancelled", StateInProgress, StateCancelled, nil},
		{"pending to completed", StatePending, StateCompleted, ErrInvalidTransition},
		{"completed is terminal", StateCompleted, StateCancelled, ErrInvalidTransition},
		{"cancelled is terminal", StateCancelled, StateInProgress, ErrInvalidTransition},
		{"no backwards transition", StateInProgress, StatePending, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{byID: map[int64]*Order{
				7: {ID: 7, CustomerID: "c1", State: tt.from},
			}}
			notifier := &mockNotifier{}
			svc := newService(repo, silverResolver(), notifier)

			o, err := svc.AdvanceState(context.Background(), 7, tt.to)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, notifier.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.State)
			require.Len(t, notifier.events, 1)
			assert.Equal(t, recordedEvent{kind: "state", from: tt.from}, notifier.events[0])
		})
	}
}

func TestAdvanceStateUnknownOrder(t *testing.T) {
	svc := newService(&mockOrderRepo{}, silverResolver(), &mockNotifier{})

	_, err := svc.AdvanceState(context.Background(), 999, StateInProgress)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceStateConcurrentChange(t *testing.T) {
	repo := &mockOrderRepo{
		byID:     map[int64]*Order{7: {ID: 7, CustomerID: "c1", State: StatePending}},
		stateErr: ErrStateChanged,
	}
	svc := newService(repo, silverResolver(), &mockNotifier{})

	_, err := svc.AdvanceState(context.Background(), 7, StateInProgress)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
