package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/order"
)

type captureSink struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *captureSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func testOrder() *order.Order {
	return &order.Order{
		ID:              9,
		CustomerID:      "c1",
		State:           order.StatePending,
		StampedTier:     "Silver",
		StampedPercent:  decimal.NewFromInt(10),
		TrackingCode:    "LAV-20260314-000009",
		PickupAddress:   "Calle 12 #34-56",
		DeliveryAddress: "Carrera 7 #89-10",
		Lines:           []order.GarmentLine{{Type: "shirt", Price: decimal.NewFromInt(5000)}},
		Receipt: &order.Receipt{
			Subtotal:        decimal.NewFromInt(5000),
			DiscountPercent: decimal.NewFromInt(10),
			Total:           decimal.NewFromInt(4500),
		},
	}
}

func TestOrderCreatedDelivers(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, zaptest.NewLogger(t))

	cust := &customer.Customer{ID: "c1", Name: "Ana", Email: "ana@example.com"}
	d.OrderCreated(context.Background(), testOrder(), cust)
	d.Flush()

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ana@example.com", msgs[0].To)
	assert.Equal(t, "Order LAV-20260314-000009 created", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Hello Ana")
	assert.Contains(t, msgs[0].Body, "Total: 4500.00")
}

func TestStateChangeSubjects(t *testing.T) {
	tests := []struct {
		state       order.State
		wantSubject string
	}{
		{order.StateInProgress, "Order LAV-20260314-000009 in progress"},
		{order.StateCompleted, "Order LAV-20260314-000009 ready"},
		{order.StateCancelled, "Order LAV-20260314-000009 cancelled"},
	}

	for _, tt := range tests {
		sink := &captureSink{}
		d := NewDispatcher(sink, zaptest.NewLogger(t))

		o := testOrder()
		o.State = tt.state
		cust := &customer.Customer{ID: "c1", Email: "ana@example.com"}

		d.OrderStateChanged(context.Background(), o, cust, order.StatePending)
		d.Flush()

		msgs := sink.messages()
		require.Len(t, msgs, 1, "state %s", tt.state)
		assert.Equal(t, tt.wantSubject, msgs[0].Subject)
	}
}

func TestMissingRecipientSkipsDelivery(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, zaptest.NewLogger(t))

	d.OrderCreated(context.Background(), testOrder(), &customer.Customer{ID: "c1"})
	d.Flush()

	assert.Empty(t, sink.messages())
}

func TestSinkErrorIsSwallowed(t *testing.T) {
	sink := &captureSink{err: errors.New("smtp unreachable")}
	d := NewDispatcher(sink, zaptest.NewLogger(t))

	cust := &customer.Customer{ID: "c1", Email: "ana@example.com"}
	// Must not panic or propagate anything.
	d.OrderCreated(context.Background(), testOrder(), cust)
	d.Flush()

	assert.Empty(t, sink.messages())
}
