package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/washday/laundry-api/internal/domain/tier"
)

// customerTierResponse is the body for GET /customers/{id}/tier.
type customerTierResponse struct {
	CustomerID string          `json:"customer_id"`
	Tier       string          `json:"tier"`
	Percentage decimal.Decimal `json:"percentage"`
}

// GetCustomerTier handles GET /customers/{id}/tier. It reports the tier the
// customer's next order would be stamped with, which may freeze a snapshot as
// a side effect, exactly as order creation would.
func (h *Handler) GetCustomerTier(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(chi.URLParam(r, "id"))
	if customerID == "" {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}

	assignment, err := h.resolver.Resolve(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, customerTierResponse{
		CustomerID: customerID,
		Tier:       assignment.TierName,
		Percentage: assignment.Percentage,
	})
}

// tierRequest is the JSON body for creating or updating a tier definition.
type tierRequest struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	MinOrders  int             `json:"min_orders"`
	MaxOrders  *int            `json:"max_orders"`
	Active     *bool           `json:"active"`
}

func (req *tierRequest) definition() (tier.Definition, bool) {
	return tier.Definition{
		Name:       req.Name,
		Percentage: req.Percentage,
		MinOrders:  req.MinOrders,
		MaxOrders:  req.MaxOrders,
	}, req.Active == nil || *req.Active
}

type tierResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	MinOrders  int             `json:"min_orders"`
	MaxOrders  *int            `json:"max_orders"`
	Active     bool            `json:"active"`
}

func toTierResponse(s tier.StoredDefinition) tierResponse {
	return tierResponse{
		ID:         s.ID,
		Name:       s.Name,
		Percentage: s.Percentage,
		MinOrders:  s.MinOrders,
		MaxOrders:  s.MaxOrders,
		Active:     s.Active,
	}
}

// ListTiers handles GET /tiers.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	defs, err := h.admin.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]tierResponse, 0, len(defs))
	for _, d := range defs {
		resp = append(resp, toTierResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTier handles POST /tiers.
func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, active := req.definition()
	id, err := h.admin.Create(r.Context(), d, active)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTierResponse(tier.StoredDefinition{
		ID:         id,
		Active:     active,
		Definition: d,
	}))
}

// UpdateTier handles PUT /tiers/{id}.
func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	id, ok := tierID(w, r)
	if !ok {
		return
	}

	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, active := req.definition()
	if err := h.admin.Update(r.Context(), id, d, active); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTierResponse(tier.StoredDefinition{
		ID:         id,
		Active:     active,
		Definition: d,
	}))
}

// DeleteTier handles DELETE /tiers/{id}. Frozen snapshots that captured the
// tier keep serving it.
func (h *Handler) DeleteTier(w http.ResponseWriter, r *http.Request) {
	id, ok := tierID(w, r)
	if !ok {
		return
	}

	if err := h.admin.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func tierID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "tier not found")
		return 0, false
	}
	return id, true
}
