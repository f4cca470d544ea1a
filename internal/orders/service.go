// Package orders implements order placement, the order lifecycle state
// machine and the payment operations driving it.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
	"github.com/northcart/commerce/internal/pricing"
	"github.com/northcart/commerce/internal/repositories"
)

var tracer = otel.Tracer("github.com/northcart/commerce/internal/orders")

var (
	// ErrOperationNotAllowed indicates a mutating operation was invoked
	// without its guard being satisfied. This is a programming error.
	ErrOperationNotAllowed = errors.New("orders: operation not allowed in current state")
	// ErrRecurringNotSupported indicates the payment method cannot run the
	// cart's recurring schedule.
	ErrRecurringNotSupported = errors.New("orders: payment method does not support recurring payments")
	// ErrRecurringInactive indicates the recurring schedule is cancelled or
	// exhausted.
	ErrRecurringInactive = errors.New("orders: recurring payment is not active")
)

// ValidationError aggregates the user-facing warnings that blocked an
// operation before any mutation happened.
type ValidationError struct {
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("orders: validation failed: %s", strings.Join(e.Warnings, "; "))
}

// DeclineError reports that the gateway refused a payment operation. The
// order keeps its previous status apart from the audit note recording the
// refusal.
type DeclineError struct {
	Op      string
	Reasons []string
}

// Error implements the error interface.
func (e *DeclineError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("orders: %s declined by gateway", e.Op)
	}
	return fmt.Sprintf("orders: %s declined: %s", e.Op, strings.Join(e.Reasons, "; "))
}

// GatewayResolver resolves the gateway registered under a payment method
// system name.
type GatewayResolver interface {
	Gateway(name string) (payments.Gateway, error)
}

// Notification events raised by the order services.
const (
	EventOrderPlaced    = "order_placed"
	EventOrderPaid      = "order_paid"
	EventOrderCompleted = "order_completed"
	EventOrderCancelled = "order_cancelled"
	EventOrderShipped   = "order_shipped"
	EventOrderDelivered = "order_delivered"
	EventOrderRefunded  = "order_refunded"
)

// Notifier is the outbound notification boundary. Failures are tolerated
// silently at this layer; the services only record queued message ids.
type Notifier interface {
	NotifyCustomer(ctx context.Context, event string, order domain.Order) (string, error)
	NotifyStoreOwner(ctx context.Context, event string, order domain.Order) (string, error)
}

// Calculator is the slice of the pricing engine the placement pipeline uses.
type Calculator interface {
	CartSubTotal(ctx context.Context, cart domain.Cart, customer domain.Customer, inclTax bool) (pricing.SubTotal, error)
	CartShippingTotal(ctx context.Context, cart domain.Cart, customer domain.Customer) (*pricing.ShippingTotal, error)
	CartTaxTotal(ctx context.Context, cart domain.Cart, customer domain.Customer, paymentMethod string) (pricing.TaxTotal, error)
	CartGrandTotal(ctx context.Context, cart domain.Cart, customer domain.Customer) (pricing.GrandTotal, error)
	ItemUnitPrices(ctx context.Context, item domain.CartItem, customer domain.Customer, currencyCode string) (excl, incl, rate decimal.Decimal, err error)
}

// Settings carries the order-management policy knobs.
type Settings struct {
	PrimaryCurrency string

	// MinOrderTotal / MaxOrderTotal bound the placeable order total. Zero
	// disables the respective bound.
	MinOrderTotal decimal.Decimal
	MaxOrderTotal decimal.Decimal

	// Trigger statuses for lifecycle side effects.
	GiftCardActivationStatus   domain.OrderStatus
	GiftCardDeactivationStatus domain.OrderStatus
	RewardPointsAwardStatus    domain.OrderStatus
	RewardPointsClawbackStatus domain.OrderStatus

	// RecurringMaxFailures deactivates a schedule after this many consecutive
	// failed cycles.
	RecurringMaxFailures int

	RewardPoints pricing.RewardPointsPolicy
}

// Service owns order placement, lifecycle transitions and payment operations.
type Service struct {
	repos    repositories.Registry
	calc     Calculator
	gateways GatewayResolver
	notifier Notifier
	settings Settings
	now      func() time.Time
	idGen    func(prefix string) string
	logger   func(ctx context.Context, event string, fields map[string]any)

	// Optional boundaries, see SetInventoryAdjuster and SetEventPublisher.
	inventory InventoryAdjuster
	events    EventPublisher
}

// Deps wires the order service's collaborators.
type Deps struct {
	Repos    repositories.Registry
	Calc     Calculator
	Gateways GatewayResolver
	Notifier Notifier
	Settings Settings
	Clock    func() time.Time
	IDGen    func(prefix string) string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewService validates dependencies and constructs the order service.
func NewService(deps Deps) (*Service, error) {
	if deps.Repos == nil {
		return nil, errors.New("order service: repositories are required")
	}
	if deps.Calc == nil {
		return nil, errors.New("order service: pricing calculator is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("order service: gateway resolver is required")
	}

	settings := deps.Settings
	if settings.PrimaryCurrency == "" {
		settings.PrimaryCurrency = "USD"
	}
	if settings.RecurringMaxFailures <= 0 {
		settings.RecurringMaxFailures = 3
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func(prefix string) string { return prefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Service{
		repos:    deps.Repos,
		calc:     deps.Calc,
		gateways: deps.Gateways,
		notifier: deps.Notifier,
		settings: settings,
		now:      func() time.Time { return clock().UTC() },
		idGen:    idGen,
		logger:   logger,
	}, nil
}

// newNote builds an audit note stamped with the service clock.
func (s *Service) newNote(orderID, text string) domain.OrderNote {
	return domain.OrderNote{
		ID:        s.idGen("note_"),
		OrderID:   orderID,
		Text:      text,
		CreatedAt: s.now(),
	}
}

// addNote appends an audit note, tolerating persistence failures with a log
// line so the calling operation is never failed by its audit trail.
func (s *Service) addNote(ctx context.Context, order *domain.Order, text string) {
	note := s.newNote(order.ID, text)
	order.Notes = append(order.Notes, note)
	if err := s.repos.Orders().AddNote(ctx, order.ID, note); err != nil {
		s.logger(ctx, "orders.note.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

// notifyCustomer fires a customer notification and records the queued message
// as an order note. Notification failures are swallowed by design here.
func (s *Service) notifyCustomer(ctx context.Context, order *domain.Order, event string) {
	if s.notifier == nil {
		return
	}
	messageID, err := s.notifier.NotifyCustomer(ctx, event, *order)
	if err != nil {
		s.logger(ctx, "orders.notify.failed", map[string]any{
			"order_id": order.ID,
			"event":    event,
			"error":    err.Error(),
		})
		return
	}
	if messageID != "" {
		s.addNote(ctx, order, fmt.Sprintf("%q customer notification queued (message %s)", event, messageID))
	}
}

func (s *Service) notifyStoreOwner(ctx context.Context, order *domain.Order, event string) {
	if s.notifier == nil {
		return
	}
	messageID, err := s.notifier.NotifyStoreOwner(ctx, event, *order)
	if err != nil {
		s.logger(ctx, "orders.notify.failed", map[string]any{
			"order_id": order.ID,
			"event":    event,
			"error":    err.Error(),
		})
		return
	}
	if messageID != "" {
		s.addNote(ctx, order, fmt.Sprintf("%q store owner notification queued (message %s)", event, messageID))
	}
}
