package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed but not yet processed.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates payment or shipping progress was made.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusComplete indicates the order is paid and fully delivered.
	OrderStatusComplete OrderStatus = "complete"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates payment states for an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no payment has been confirmed yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusAuthorized indicates funds are authorized but not captured.
	PaymentStatusAuthorized PaymentStatus = "authorized"
	// PaymentStatusPaid indicates the payment was captured in full.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusPartiallyRefunded indicates part of the payment was returned.
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	// PaymentStatusRefunded indicates the full payment was returned.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusVoided indicates the authorization was voided.
	PaymentStatusVoided PaymentStatus = "voided"
)

// ShippingStatus enumerates shipping states for an order.
type ShippingStatus string

const (
	// ShippingStatusNotRequired indicates the order has no shippable items.
	ShippingStatusNotRequired ShippingStatus = "not_required"
	// ShippingStatusNotYetShipped indicates no shipment has left yet.
	ShippingStatusNotYetShipped ShippingStatus = "not_yet_shipped"
	// ShippingStatusPartiallyShipped indicates some items have shipped.
	ShippingStatusPartiallyShipped ShippingStatus = "partially_shipped"
	// ShippingStatusShipped indicates all items have shipped.
	ShippingStatusShipped ShippingStatus = "shipped"
	// ShippingStatusDelivered indicates all shipments were delivered.
	ShippingStatusDelivered ShippingStatus = "delivered"
)

// OrderItem is a materialized order line. Monetary fields are stored in both
// tax views; TaxRate is a decimal fraction (0.19 for 19%).
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	SKU       string
	Name      string
	Quantity  int

	UnitPriceExclTax decimal.Decimal
	UnitPriceInclTax decimal.Decimal
	PriceExclTax     decimal.Decimal
	PriceInclTax     decimal.Decimal
	DiscountExclTax  decimal.Decimal
	DiscountInclTax  decimal.Decimal
	TaxRate          decimal.Decimal

	IsShippable bool
	IsGiftCard  bool
	ChildItems  []OrderItem

	Attributes map[string]string
}

// OrderNote is one append-only audit log entry on an order.
type OrderNote struct {
	ID        string
	OrderID   string
	Text      string
	CreatedAt time.Time
}

// Shipment tracks one physical shipment of order items.
type Shipment struct {
	ID             string
	OrderID        string
	TrackingNumber string
	// ItemQuantities maps order item ids to the quantity included.
	ItemQuantities map[string]int
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// Order is the aggregate root produced by the placement pipeline.
type Order struct {
	ID          string
	OrderNumber string
	CustomerID  string
	StoreID     string

	CurrencyCode string
	// CurrencyRate converts the order currency to the store primary currency.
	CurrencyRate decimal.Decimal

	OrderStatus    OrderStatus
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus

	SubtotalExclTax         decimal.Decimal
	SubtotalInclTax         decimal.Decimal
	SubtotalDiscountExclTax decimal.Decimal
	SubtotalDiscountInclTax decimal.Decimal
	ShippingExclTax         decimal.Decimal
	ShippingInclTax         decimal.Decimal
	PaymentFeeExclTax       decimal.Decimal
	PaymentFeeInclTax       decimal.Decimal
	TaxTotal                decimal.Decimal
	// TaxRates serializes the per-rate tax buckets as "rate:amount;...".
	TaxRates       string
	DiscountTotal  decimal.Decimal
	RoundingDiff   decimal.Decimal
	Total          decimal.Decimal
	RefundedAmount decimal.Decimal

	RedeemedRewardPoints       int
	RedeemedRewardPointsAmount decimal.Decimal
	RewardPointsWereAdded      bool
	RewardPointsEarned         int

	UsedCreditBalance decimal.Decimal

	PaymentMethodSystemName    string
	AuthorizationTransactionID string
	CaptureTransactionID       string
	SubscriptionTransactionID  string

	BillingAddress  *Address
	ShippingAddress *Address
	ShippingMethod  string
	PickupInStore   bool

	CheckoutAttributeDescription string
	VATNumber                    string

	Items     []OrderItem
	Notes     []OrderNote
	Shipments []Shipment

	Deleted bool

	PaidAt      *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasItemsToShip reports whether any shippable quantity has not shipped yet.
func (o Order) HasItemsToShip() bool {
	if o.ShippingStatus == ShippingStatusNotRequired {
		return false
	}
	shipped := make(map[string]int)
	for _, s := range o.Shipments {
		for itemID, qty := range s.ItemQuantities {
			shipped[itemID] += qty
		}
	}
	for _, item := range o.Items {
		if item.IsShippable && shipped[item.ID] < item.Quantity {
			return true
		}
	}
	return false
}

// RemainingAmount is the captured amount not yet refunded.
func (o Order) RemainingAmount() decimal.Decimal {
	remaining := o.Total.Sub(o.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RecurringPaymentHistoryEntry records one executed recurring cycle.
type RecurringPaymentHistoryEntry struct {
	OrderID   string
	CycleNum  int
	CreatedAt time.Time
}

// RecurringPayment is a subscription driven off an initial order template.
type RecurringPayment struct {
	ID             string
	InitialOrderID string
	CustomerID     string
	CycleLength    int
	CyclePeriod    RecurringCyclePeriod
	TotalCycles    int
	Active         bool
	// LastPaymentFailed flags the most recent cycle attempt for retry handling.
	LastPaymentFailed bool
	// FailedAttempts counts consecutive failed cycles; a successful cycle
	// resets it.
	FailedAttempts int
	StartedAt      time.Time
	History        []RecurringPaymentHistoryEntry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CyclesRemaining returns how many cycles are still to be processed.
func (rp RecurringPayment) CyclesRemaining() int {
	remaining := rp.TotalCycles - len(rp.History)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextCycleAt computes when the next cycle is due based on the last processed
// cycle (or the start time when none has run yet).
func (rp RecurringPayment) NextCycleAt() time.Time {
	base := rp.StartedAt
	if n := len(rp.History); n > 0 {
		base = rp.History[n-1].CreatedAt
	}
	switch rp.CyclePeriod {
	case RecurringPeriodDays:
		return base.AddDate(0, 0, rp.CycleLength)
	case RecurringPeriodWeeks:
		return base.AddDate(0, 0, 7*rp.CycleLength)
	case RecurringPeriodMonths:
		return base.AddDate(0, rp.CycleLength, 0)
	case RecurringPeriodYears:
		return base.AddDate(rp.CycleLength, 0, 0)
	default:
		return base
	}
}

// DiscountUsage records that a discount was consumed by an order.
type DiscountUsage struct {
	ID         string
	DiscountID string
	OrderID    string
	CustomerID string
	CreatedAt  time.Time
}

// GiftCardUsage records a gift card debit made by an order.
type GiftCardUsage struct {
	ID         string
	GiftCardID string
	OrderID    string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}
