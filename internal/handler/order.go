package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/washday/laundry-api/internal/domain/order"
)

// garmentRequest is one garment entry in the create order body.
type garmentRequest struct {
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// createOrderRequest is the JSON body for POST /orders.
type createOrderRequest struct {
	CustomerID      string           `json:"customer_id"`
	CustomerName    string           `json:"customer_name,omitempty"`
	CustomerEmail   string           `json:"customer_email,omitempty"`
	Garments        []garmentRequest `json:"garments"`
	PickupAddress   string           `json:"pickup_address"`
	DeliveryAddress string           `json:"delivery_address"`
}

// advanceStateRequest is the JSON body for POST /orders/{id}/state.
type advanceStateRequest struct {
	State string `json:"state"`
}

type garmentLineResponse struct {
	Type        string          `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
}

type receiptResponse struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
	IssuedAt        time.Time       `json:"issued_at"`
}

type orderResponse struct {
	ID              int64                 `json:"id"`
	CustomerID      string                `json:"customer_id"`
	State           string                `json:"state"`
	Tier            string                `json:"tier"`
	DiscountPercent decimal.Decimal       `json:"discount_percent"`
	TrackingCode    string                `json:"tracking_code"`
	PickupAddress   string                `json:"pickup_address"`
	DeliveryAddress string                `json:"delivery_address"`
	CreatedAt       time.Time             `json:"created_at"`
	PromisedAt      time.Time             `json:"promised_at"`
	Garments        []garmentLineResponse `json:"garments"`
	Receipt         *receiptResponse      `json:"receipt,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		State:           string(o.State),
		Tier:            o.StampedTier,
		DiscountPercent: o.StampedPercent,
		TrackingCode:    o.TrackingCode,
		PickupAddress:   o.PickupAddress,
		DeliveryAddress: o.DeliveryAddress,
		CreatedAt:       o.CreatedAt,
		PromisedAt:      o.PromisedAt,
		Garments:        make([]garmentLineResponse, 0, len(o.Lines)),
	}
	for _, line := range o.Lines {
		resp.Garments = append(resp.Garments, garmentLineResponse{
			Type:        line.Type,
			Price:       line.Price,
			Description: line.Description,
		})
	}
	if o.Receipt != nil {
		resp.Receipt = &receiptResponse{
			Subtotal:        o.Receipt.Subtotal,
			DiscountPercent: o.Receipt.DiscountPercent,
			Total:           o.Receipt.Total,
			IssuedAt:        o.Receipt.IssuedAt,
		}
	}
	return resp
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	garments := make([]order.GarmentRequest, 0, len(req.Garments))
	for _, g := range req.Garments {
		garments = append(garments, order.GarmentRequest{
			Type:        g.Type,
			Quantity:    g.Quantity,
			Description: g.Description,
		})
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Garments:        garments,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// AdvanceOrderState handles POST /orders/{id}/state.
func (h *Handler) AdvanceOrderState(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req advanceStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, err := order.ParseState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.AdvanceState(r.Context(), id, next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// orderID parses the {id} route parameter. A non-numeric id cannot name an
// order, so it reads as not found rather than bad request.
func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "order not found")
		return 0, false
	}
	return id, true
}
