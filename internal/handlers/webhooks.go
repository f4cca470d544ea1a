package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/orders"
	"github.com/northcart/commerce/internal/platform/httpx"
)

const maxWebhookBodyBytes = 64 << 10

// WebhookOrderService applies externally confirmed payment outcomes.
type WebhookOrderService interface {
	MarkAsPaid(ctx context.Context, orderID string) (domain.Order, error)
	MarkAsAuthorized(ctx context.Context, orderID string) (domain.Order, error)
}

// StripeWebhookHandlers settles orders from Stripe event callbacks. Events
// are correlated through the order_id metadata stamped on payment intents at
// placement time.
type StripeWebhookHandlers struct {
	orders WebhookOrderService
	secret string
}

// NewStripeWebhookHandlers validates dependencies and constructs the handlers.
func NewStripeWebhookHandlers(orderSvc WebhookOrderService, secret string) (*StripeWebhookHandlers, error) {
	if orderSvc == nil {
		return nil, errors.New("stripe webhooks: order service is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("stripe webhooks: signing secret is required")
	}
	return &StripeWebhookHandlers{orders: orderSvc, secret: secret}, nil
}

// Register mounts the webhook routes.
func (h *StripeWebhookHandlers) Register(r chi.Router) {
	r.Post("/stripe", h.HandleStripe)
}

// HandleStripe verifies the event signature and applies the payment outcome.
// Replays and events for unknown or already settled orders are acknowledged
// so Stripe stops retrying them.
func (h *StripeWebhookHandlers) HandleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeBadRequest(ctx, w, "request body could not be read")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		h.applyIntent(ctx, w, event, h.orders.MarkAsPaid)
	case "payment_intent.amount_capturable_updated":
		h.applyIntent(ctx, w, event, h.orders.MarkAsAuthorized)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}

func (h *StripeWebhookHandlers) applyIntent(ctx context.Context, w http.ResponseWriter, event stripe.Event, apply func(context.Context, string) (domain.Order, error)) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		writeBadRequest(ctx, w, "event payload is malformed")
		return
	}

	orderID := strings.TrimSpace(intent.Metadata["order_id"])
	if orderID == "" {
		// Not one of ours.
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	order, err := apply(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOperationNotAllowed) || isNotFound(err) {
			writeJSON(w, http.StatusOK, map[string]any{"received": true})
			return
		}
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received":      true,
		"orderId":       order.ID,
		"paymentStatus": string(order.PaymentStatus),
	})
}
