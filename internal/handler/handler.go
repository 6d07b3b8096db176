// Package handler implements the HTTP API: order creation and lookup, admin
// state transitions, customer tier inspection, and tier table management.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/order"
	"github.com/washday/laundry-api/internal/domain/tier"
)

// OrderService is the order workflow surface the handlers call.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	AdvanceState(ctx context.Context, id int64, next order.State) (*order.Order, error)
}

// TierResolver yields a customer's current tier assignment.
type TierResolver interface {
	Resolve(ctx context.Context, customerID string) (tier.Assignment, error)
}

// TierAdmin is the tier table management surface.
type TierAdmin interface {
	List(ctx context.Context) ([]tier.StoredDefinition, error)
	Create(ctx context.Context, d tier.Definition, active bool) (int64, error)
	Update(ctx context.Context, id int64, d tier.Definition, active bool) error
	Delete(ctx context.Context, id int64) error
}

// Handler holds the HTTP API handler state.
type Handler struct {
	orders   OrderService
	resolver TierResolver
	admin    TierAdmin
}

// NewHandler creates the API handler.
func NewHandler(orders OrderService, resolver TierResolver, admin TierAdmin) *Handler {
	return &Handler{orders: orders, resolver: resolver, admin: admin}
}

// Routes mounts the API routes onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/state", h.AdvanceOrderState)
	})
	r.Get("/customers/{id}/tier", h.GetCustomerTier)
	r.Route("/tiers", func(r chi.Router) {
		r.Get("/", h.ListTiers)
		r.Post("/", h.CreateTier)
		r.Put("/{id}", h.UpdateTier)
		r.Delete("/{id}", h.DeleteTier)
	})
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors to HTTP statuses. Anything unmapped is
// a 500 with the detail kept out of the response body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *order.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, tier.ErrTierNotFound):
		writeError(w, http.StatusNotFound, "tier not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case isLadderError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isLadderError(err error) bool {
	for _, target := range []error{
		tier.ErrEmptyLadder,
		tier.ErrUnorderedLadder,
		tier.ErrOverlappingLadder,
		tier.ErrUnboundedNotLast,
		tier.ErrInvalidRange,
		tier.ErrInvalidPercentage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
