package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

// AdminOrderService is the operator-facing order surface: payment settlement,
// refunds, fulfilment and cleanup.
type AdminOrderService interface {
	FindOrder(ctx context.Context, orderID string) (domain.Order, error)
	Capture(ctx context.Context, orderID string) (domain.Order, error)
	MarkAsPaid(ctx context.Context, orderID string) (domain.Order, error)
	MarkAsAuthorized(ctx context.Context, orderID string) (domain.Order, error)
	Refund(ctx context.Context, orderID string) (domain.Order, error)
	RefundOffline(ctx context.Context, orderID string) (domain.Order, error)
	PartiallyRefund(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Order, error)
	PartiallyRefundOffline(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Order, error)
	Void(ctx context.Context, orderID string) (domain.Order, error)
	VoidOffline(ctx context.Context, orderID string) (domain.Order, error)
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
	Ship(ctx context.Context, orderID, trackingNumber string, itemQuantities map[string]int) (domain.Order, error)
	Deliver(ctx context.Context, orderID, shipmentID string) (domain.Order, error)
	AddOrderNote(ctx context.Context, orderID, text string) (domain.OrderNote, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// AdminOrderHandlers exposes the operator order endpoints. Role enforcement
// happens in middleware mounted on the admin route group.
type AdminOrderHandlers struct {
	orders AdminOrderService
}

// NewAdminOrderHandlers validates dependencies and constructs the handlers.
func NewAdminOrderHandlers(orders AdminOrderService) (*AdminOrderHandlers, error) {
	if orders == nil {
		return nil, errors.New("admin order handlers: order service is required")
	}
	return &AdminOrderHandlers{orders: orders}, nil
}

// Register mounts the admin order routes.
func (h *AdminOrderHandlers) Register(r chi.Router) {
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/capture", h.operation(h.orders.Capture))
		r.Post("/mark-paid", h.operation(h.orders.MarkAsPaid))
		r.Post("/mark-authorized", h.operation(h.orders.MarkAsAuthorized))
		r.Post("/refund", h.operation(h.orders.Refund))
		r.Post("/refund-offline", h.operation(h.orders.RefundOffline))
		r.Post("/partial-refund", h.partialRefund(h.orders.PartiallyRefund))
		r.Post("/partial-refund-offline", h.partialRefund(h.orders.PartiallyRefundOffline))
		r.Post("/void", h.operation(h.orders.Void))
		r.Post("/void-offline", h.operation(h.orders.VoidOffline))
		r.Post("/cancel", h.operation(h.orders.Cancel))
		r.Post("/ship", h.Ship)
		r.Post("/shipments/{shipmentID}/deliver", h.Deliver)
		r.Post("/notes", h.AddNote)
	})
}

// Get returns the full order, deleted ones included.
func (h *AdminOrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.FindOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetail(order))
}

// Delete soft-deletes the order and reverses its reward side effects.
func (h *AdminOrderHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// operation adapts the single-argument order transitions to one handler shape.
func (h *AdminOrderHandlers) operation(op func(ctx context.Context, orderID string) (domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		order, err := op(ctx, chi.URLParam(r, "orderID"))
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDetail(order))
	}
}

type partialRefundRequest struct {
	Amount string `json:"amount"`
}

func (h *AdminOrderHandlers) partialRefund(op func(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req partialRefundRequest
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(ctx, w, "the request body must be valid JSON")
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil || !amount.IsPositive() {
			writeBadRequest(ctx, w, "amount must be a positive decimal string")
			return
		}

		order, err := op(ctx, chi.URLParam(r, "orderID"), amount)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDetail(order))
	}
}

type shipRequest struct {
	TrackingNumber string         `json:"trackingNumber,omitempty"`
	Items          map[string]int `json:"items"`
}

// Ship records a shipment of the given item quantities.
func (h *AdminOrderHandlers) Ship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, "the request body must be valid JSON")
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(ctx, w, "items must map order item ids to shipped quantities")
		return
	}

	order, err := h.orders.Ship(ctx, chi.URLParam(r, "orderID"), req.TrackingNumber, req.Items)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetail(order))
}

// Deliver marks a shipment as delivered.
func (h *AdminOrderHandlers) Deliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.Deliver(ctx, chi.URLParam(r, "orderID"), chi.URLParam(r, "shipmentID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetail(order))
}

type addNoteRequest struct {
	Text string `json:"text"`
}

// AddNote appends an operator note to the order's audit log.
func (h *AdminOrderHandlers) AddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, "the request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeBadRequest(ctx, w, "text must not be empty")
		return
	}

	note, err := h.orders.AddOrderNote(ctx, chi.URLParam(r, "orderID"), req.Text)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderNotePayload{ID: note.ID, Text: note.Text, CreatedAt: note.CreatedAt})
}
