package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/pricing"
	"github.com/washday/laundry-api/internal/domain/tier"
)

// minAddressLen is the floor for pickup and delivery addresses.
const minAddressLen = 10

var hundred = decimal.NewFromInt(100)

// TierResolver yields the (tier name, percentage) pair to stamp on a new
// order.
type TierResolver interface {
	Resolve(ctx context.Context, customerID string) (tier.Assignment, error)
}

// Notifier receives post-commit events. Implementations must be
// fire-and-forget: delivery failures never affect the business outcome.
type Notifier interface {
	OrderCreated(ctx context.Context, o *Order, c *customer.Customer)
	OrderStateChanged(ctx context.Context, o *Order, c *customer.Customer, from State)
}

// GarmentRequest is one requested garment type with a quantity.
type GarmentRequest struct {
	Type        string
	Quantity    int
	Description string
}

// CreateOrderRequest holds the input for creating an order. Name and Email
// are optional contact details used to lazily provision the customer record.
type CreateOrderRequest struct {
	CustomerID      string
	CustomerName    string
	CustomerEmail   string
	Garments        []GarmentRequest
	PickupAddress   string
	DeliveryAddress string
}

// Service orchestrates order creation and state transitions.
type Service struct {
	customers customer.Repository
	tiers     TierResolver
	prices    pricing.Source
	orders    Repository
	notifier  Notifier
	now       func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	customers customer.Repository,
	tiers TierResolver,
	prices pricing.Source,
	orders Repository,
	notifier Notifier,
) *Service {
	return &Service{
		customers: customers,
		tiers:     tiers,
		prices:    prices,
		orders:    orders,
		notifier:  notifier,
		now:       time.Now,
	}
}

// CreateOrder validates the request, resolves the customer's frozen-or-live
// tier, prices each garment unit, and persists order, lines, and receipt as
// one transaction. The discount is resolved before the insert so the new
// order does not count toward its own eligibility. The created notification
// fires after commit and cannot affect the outcome.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	cust, err := s.customers.Ensure(ctx, customer.Customer{
		ID:    req.CustomerID,
		Name:  req.CustomerName,
		Email: req.CustomerEmail,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ensure customer")
	}

	assignment, err := s.tiers.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve tier")
	}

	totalQty := 0
	for _, g := range req.Garments {
		totalQty += g.Quantity
	}

	createdAt := s.now()
	o := &Order{
		CustomerID:      req.CustomerID,
		State:           StatePending,
		StampedTier:     assignment.TierName,
		StampedPercent:  assignment.Percentage,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
		CreatedAt:       createdAt,
		PromisedAt:      PromisedAt(createdAt, totalQty),
	}

	// One line per garment unit, priced at insertion time.
	subtotal := decimal.Zero
	for _, g := range req.Garments {
		price := s.prices.PriceOf(g.Type)
		for range g.Quantity {
			o.Lines = append(o.Lines, GarmentLine{
				Type:        g.Type,
				Price:       price,
				Description: g.Description,
			})
			subtotal = subtotal.Add(price)
		}
	}

	discount := subtotal.Mul(o.StampedPercent).Div(hundred).Round(2)
	o.Receipt = &Receipt{
		CustomerID:      req.CustomerID,
		Subtotal:        subtotal,
		DiscountPercent: o.StampedPercent,
		Total:           subtotal.Sub(discount).Round(2),
		IssuedAt:        createdAt,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.notifier.OrderCreated(ctx, o, cust)

	return o, nil
}

// GetOrder loads an order with its lines and receipt.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// AdvanceState performs an admin-driven state transition and notifies the
// customer. A concurrent transition that invalidates the expected current
// state surfaces as ErrInvalidTransition.
func (s *Service) AdvanceState(ctx context.Context, id int64, next State) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := o.State
	if !from.CanTransition(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, next)
	}

	if err := s.orders.UpdateState(ctx, id, from, next); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, next)
		}
		return nil, errors.Wrap(err, "update state")
	}
	o.State = next

	cust, err := s.customers.GetByID(ctx, o.CustomerID)
	if err != nil {
		// The transition is committed; notification still fires with what we have.
		cust = &customer.Customer{ID: o.CustomerID}
	}
	s.notifier.OrderStateChanged(ctx, o, cust, from)

	return o, nil
}

func validateCreate(req *CreateOrderRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return &ValidationError{Field: "customer_id", Reason: "required"}
	}

	req.PickupAddress = strings.TrimSpace(req.PickupAddress)
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	if len(req.PickupAddress) < minAddressLen {
		return &ValidationError{Field: "pickup_address", Reason: "must be at least 10 characters"}
	}
	if len(req.DeliveryAddress) < minAddressLen {
		return &ValidationError{Field: "delivery_address", Reason: "must be at least 10 characters"}
	}

	if len(req.Garments) == 0 {
		return &ValidationError{Field: "garments", Reason: "at least one garment required"}
	}
	for _, g := range req.Garments {
		if strings.TrimSpace(g.Type) == "" {
			return &ValidationError{Field: "garments", Reason: "garment type required"}
		}
		if g.Quantity <= 0 {
			return &ValidationError{Field: "garments", Reason: "quantity must be greater than 0"}
		}
	}
	return nil
}
