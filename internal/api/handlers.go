package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safar/marketplace-orders/internal/auth"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/service"
	"github.com/safar/marketplace-orders/internal/store"
)

const maxBodyBytes = 1 << 20

type Authenticator interface {
	Authenticate(header string) (auth.Principal, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, principal auth.Principal, req service.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, principal auth.Principal, id uuid.UUID) (*models.Order, error)
	ListMyOrders(ctx context.Context, principal auth.Principal) ([]models.Order, error)
	ListAllOrders(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
}

type Handler struct {
	auth   Authenticator
	orders OrderService
	health func(context.Context) error
}

func NewHandler(authenticator Authenticator, orders OrderService, health func(context.Context) error) *Handler {
	return &Handler{auth: authenticator, orders: orders, health: health}
}

// authorize authenticates the request and, when roles are given, requires
// one of them. On failure it has already written the response.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Principal, bool) {
	principal, err := h.auth.Authenticate(r.Header.Get("Authorization"))
	if err == nil && len(roles) > 0 {
		err = principal.Require(roles...)
	}
	if err != nil {
		writeError(w, r, err)
		return auth.Principal{}, false
	}
	return principal, true
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), principal, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusCreated, "Order created successfully", order)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authorize(w, r, auth.RoleBuyer, auth.RoleAdmin)
	if !ok {
		return
	}

	orders, err := h.orders.ListMyOrders(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, "Orders retrieved successfully", orders)
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.RoleAdmin); !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.orders.ListAllOrders(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if page.NextCursor != "" {
		w.Header().Set("X-Next-Cursor", page.NextCursor)
	}
	respondOK(w, http.StatusOK, "Orders retrieved successfully", page.Items)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authorize(w, r, auth.RoleBuyer, auth.RoleAdmin)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), principal, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, "Order retrieved successfully", order)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	respondOK(w, http.StatusOK, "ok", nil)
}
