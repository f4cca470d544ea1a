package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/auth"
	"github.com/northcart/commerce/internal/platform/httpx"
	"github.com/northcart/commerce/internal/platform/pagination"
	"github.com/northcart/commerce/internal/repositories"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderService is the customer-facing order surface the HTTP layer consumes.
type OrderService interface {
	FindOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error)
	CancelRecurringPayment(ctx context.Context, recurringPaymentID, requestedBy string) (domain.RecurringPayment, error)
}

// OrderHandlers exposes a customer's own orders.
type OrderHandlers struct {
	orders OrderService
}

// NewOrderHandlers validates dependencies and constructs the handlers.
func NewOrderHandlers(orders OrderService) (*OrderHandlers, error) {
	if orders == nil {
		return nil, errors.New("order handlers: order service is required")
	}
	return &OrderHandlers{orders: orders}, nil
}

// Register mounts the customer order routes.
func (h *OrderHandlers) Register(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{orderID}", h.Get)
	r.Post("/recurring/{recurringPaymentID}/cancel", h.CancelRecurring)
}

// List returns a page of the caller's orders, newest first. The nextPageToken
// in the response resumes the listing after the last returned order.
func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		writeUnauthorized(ctx, w)
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	filter, err := parseListFilter(r, params)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	orderList, err := h.orders.ListOrders(ctx, identity.UID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	summaries := make([]orderSummary, 0, len(orderList))
	for _, order := range orderList {
		summaries = append(summaries, toOrderSummary(order))
	}

	response := map[string]any{"orders": summaries}
	if len(orderList) == filter.Limit && filter.Limit > 0 {
		last := orderList[len(orderList)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano)},
		})
		if err == nil && token != "" {
			response["nextPageToken"] = token
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// Get returns one of the caller's orders. Orders owned by someone else are
// indistinguishable from missing ones.
func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		writeUnauthorized(ctx, w)
		return
	}

	order, err := h.orders.FindOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if order.CustomerID != identity.UID || order.Deleted {
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "the requested resource does not exist", http.StatusNotFound))
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetail(order))
}

// CancelRecurring stops the caller's recurring payment schedule.
func (h *OrderHandlers) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		writeUnauthorized(ctx, w)
		return
	}

	payment, err := h.orders.CancelRecurringPayment(ctx, chi.URLParam(r, "recurringPaymentID"), identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     payment.ID,
		"active": payment.Active,
	})
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "authentication is required", http.StatusUnauthorized))
}

func parseListFilter(r *http.Request, params pagination.Params) (repositories.OrderListFilter, error) {
	filter := repositories.OrderListFilter{Limit: params.PageSize}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(raw)
		filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("paymentStatus")); raw != "" {
		status := domain.PaymentStatus(raw)
		filter.PaymentStatus = &status
	}
	if len(params.Cursor.StartAfter) > 0 {
		raw, ok := params.Cursor.StartAfter[0].(string)
		if !ok {
			return filter, errors.New("pageToken cursor is malformed")
		}
		createdBefore, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return filter, errors.New("pageToken cursor is malformed")
		}
		filter.CreatedBefore = &createdBefore
	}
	return filter, nil
}

type orderSummary struct {
	ID             string `json:"id"`
	OrderNumber    string `json:"orderNumber"`
	OrderStatus    string `json:"orderStatus"`
	PaymentStatus  string `json:"paymentStatus"`
	ShippingStatus string `json:"shippingStatus"`
	CurrencyCode   string `json:"currencyCode"`
	Total          string `json:"total"`
	CreatedAt      string `json:"createdAt"`
}

type orderItemPayload struct {
	ID         string             `json:"id"`
	ProductID  string             `json:"productId"`
	SKU        string             `json:"sku,omitempty"`
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	UnitPrice  string             `json:"unitPrice"`
	LineTotal  string             `json:"lineTotal"`
	IsGiftCard bool               `json:"isGiftCard,omitempty"`
	ChildItems []orderItemPayload `json:"childItems,omitempty"`
}

type shipmentPayload struct {
	ID             string         `json:"id"`
	TrackingNumber string         `json:"trackingNumber,omitempty"`
	ItemQuantities map[string]int `json:"itemQuantities"`
	ShippedAt      *time.Time     `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
}

type orderNotePayload struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderDetail struct {
	orderSummary

	SubtotalInclTax   string `json:"subtotalInclTax"`
	ShippingInclTax   string `json:"shippingInclTax"`
	PaymentFeeInclTax string `json:"paymentFeeInclTax"`
	TaxTotal          string `json:"taxTotal"`
	DiscountTotal     string `json:"discountTotal"`
	RefundedAmount    string `json:"refundedAmount"`

	RedeemedRewardPoints int `json:"redeemedRewardPoints,omitempty"`
	RewardPointsEarned   int `json:"rewardPointsEarned,omitempty"`

	PaymentMethod  string `json:"paymentMethod"`
	ShippingMethod string `json:"shippingMethod,omitempty"`
	PickupInStore  bool   `json:"pickupInStore,omitempty"`

	Items     []orderItemPayload `json:"items"`
	Shipments []shipmentPayload  `json:"shipments,omitempty"`
	Notes     []orderNotePayload `json:"notes,omitempty"`

	PaidAt *time.Time `json:"paidAt,omitempty"`
}

func toOrderSummary(order domain.Order) orderSummary {
	return orderSummary{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		OrderStatus:    string(order.OrderStatus),
		PaymentStatus:  string(order.PaymentStatus),
		ShippingStatus: string(order.ShippingStatus),
		CurrencyCode:   order.CurrencyCode,
		Total:          order.Total.String(),
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOrderDetail(order domain.Order) orderDetail {
	detail := orderDetail{
		orderSummary:         toOrderSummary(order),
		SubtotalInclTax:      order.SubtotalInclTax.String(),
		ShippingInclTax:      order.ShippingInclTax.String(),
		PaymentFeeInclTax:    order.PaymentFeeInclTax.String(),
		TaxTotal:             order.TaxTotal.String(),
		DiscountTotal:        order.DiscountTotal.String(),
		RefundedAmount:       order.RefundedAmount.String(),
		RedeemedRewardPoints: order.RedeemedRewardPoints,
		RewardPointsEarned:   order.RewardPointsEarned,
		PaymentMethod:        order.PaymentMethodSystemName,
		ShippingMethod:       order.ShippingMethod,
		PickupInStore:        order.PickupInStore,
		PaidAt:               order.PaidAt,
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, toOrderItemPayload(item))
	}
	for _, shipment := range order.Shipments {
		detail.Shipments = append(detail.Shipments, shipmentPayload{
			ID:             shipment.ID,
			TrackingNumber: shipment.TrackingNumber,
			ItemQuantities: shipment.ItemQuantities,
			ShippedAt:      shipment.ShippedAt,
			DeliveredAt:    shipment.DeliveredAt,
		})
	}
	for _, note := range order.Notes {
		detail.Notes = append(detail.Notes, orderNotePayload{ID: note.ID, Text: note.Text, CreatedAt: note.CreatedAt})
	}
	return detail
}

func toOrderItemPayload(item domain.OrderItem) orderItemPayload {
	payload := orderItemPayload{
		ID:         item.ID,
		ProductID:  item.ProductID,
		SKU:        item.SKU,
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPriceInclTax.String(),
		LineTotal:  item.PriceInclTax.String(),
		IsGiftCard: item.IsGiftCard,
	}
	for _, child := range item.ChildItems {
		payload.ChildItems = append(payload.ChildItems, toOrderItemPayload(child))
	}
	return payload
}
