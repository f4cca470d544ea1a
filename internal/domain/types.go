package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Route identifies a checkout page by its routing triple. Action comparison is
// case-insensitive everywhere routes are matched.
type Route struct {
	Area       string
	Controller string
	Action     string
}

// Equal reports whether two routes identify the same page.
func (r Route) Equal(other Route) bool {
	return strings.EqualFold(r.Area, other.Area) &&
		strings.EqualFold(r.Controller, other.Controller) &&
		strings.EqualFold(r.Action, other.Action)
}

// IsZero reports whether the route carries no identity at all.
func (r Route) IsZero() bool {
	return r.Area == "" && r.Controller == "" && r.Action == ""
}

// CartRequirement flags which checkout steps apply to a cart.
type CartRequirement uint8

const (
	// RequireBillingAddress marks carts that need a billing address step.
	RequireBillingAddress CartRequirement = 1 << iota
	// RequireShippingAddress marks carts containing shippable items.
	RequireShippingAddress
	// RequireShippingMethod marks carts that need a shipping method selection.
	RequireShippingMethod
	// RequirePayment marks carts with a non-zero amount due.
	RequirePayment

	// RequireAll is the default requirement set for a fresh cart.
	RequireAll = RequireBillingAddress | RequireShippingAddress | RequireShippingMethod | RequirePayment
)

// Has reports whether the requirement set contains the given flag.
func (r CartRequirement) Has(flag CartRequirement) bool {
	return r&flag != 0
}

// Without returns the requirement set with the given flag cleared.
func (r CartRequirement) Without(flag CartRequirement) CartRequirement {
	return r &^ flag
}

// RecurringCyclePeriod enumerates the unit of a recurring item's cycle length.
type RecurringCyclePeriod string

const (
	// RecurringPeriodDays cycles in days.
	RecurringPeriodDays RecurringCyclePeriod = "days"
	// RecurringPeriodWeeks cycles in weeks.
	RecurringPeriodWeeks RecurringCyclePeriod = "weeks"
	// RecurringPeriodMonths cycles in months.
	RecurringPeriodMonths RecurringCyclePeriod = "months"
	// RecurringPeriodYears cycles in years.
	RecurringPeriodYears RecurringCyclePeriod = "years"
)

// Address is the postal address snapshot stored on carts and orders.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
	Email      string
}

// ShippingOption is a customer-selected shipping quote.
type ShippingOption struct {
	Name       string
	SystemName string
	Rate       decimal.Decimal
}

// CheckoutAttribute is an order-level attribute selected during checkout
// (gift wrap, engraving, ...) that can carry a price adjustment.
type CheckoutAttribute struct {
	Name            string
	Value           string
	PriceAdjustment decimal.Decimal
	TaxCategoryID   string
}

// CartItem is one line of a shopping cart. Bundle components are carried as
// child items and priced through their parent.
type CartItem struct {
	ID            string
	ProductID     string
	SKU           string
	Name          string
	Quantity      int
	UnitPrice     decimal.Decimal
	TaxCategoryID string
	WeightGrams   int

	IsShippable              bool
	IsGiftCard               bool
	AdditionalShippingCharge decimal.Decimal

	IsRecurring          bool
	RecurringCycleLength int
	RecurringCyclePeriod RecurringCyclePeriod
	RecurringTotalCycles int

	Attributes map[string]string
	ChildItems []CartItem
}

// Cart aggregates the mutable shopping cart state for a customer in a store.
type Cart struct {
	ID                 string
	CustomerID         string
	StoreID            string
	Currency           string
	Items              []CartItem
	Requirements       CartRequirement
	CheckoutAttributes []CheckoutAttribute
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequiresShipping reports whether any item in the cart is shippable.
func (c Cart) RequiresShipping() bool {
	for _, item := range c.Items {
		if item.IsShippable {
			return true
		}
	}
	return false
}

// ContainsRecurringItem reports whether any item recurs.
func (c Cart) ContainsRecurringItem() bool {
	for _, item := range c.Items {
		if item.IsRecurring {
			return true
		}
	}
	return false
}

// RecurringCycleInfo returns the cycle parameters of the first recurring item.
// All recurring items in one cart are expected to share a cycle; validation
// rejects mixed cycles before placement.
func (c Cart) RecurringCycleInfo() (length int, period RecurringCyclePeriod, totalCycles int, ok bool) {
	for _, item := range c.Items {
		if item.IsRecurring {
			return item.RecurringCycleLength, item.RecurringCyclePeriod, item.RecurringTotalCycles, true
		}
	}
	return 0, "", 0, false
}

// Customer carries the slice of customer state the checkout core needs.
type Customer struct {
	ID           string
	Email        string
	IsRegistered bool

	CurrencyCode     string
	LanguageCode     string
	PricesIncludeTax bool

	IsTaxExempt    bool
	VATNumber      string
	VATNumberValid bool

	HasFreeShipping bool

	UseRewardPoints     bool
	RewardPointsBalance int

	CreditBalance    decimal.Decimal
	UseCreditBalance decimal.Decimal

	BillingAddress  *Address
	ShippingAddress *Address

	SelectedShippingOption    *ShippingOption
	SelectedPaymentMethod     string
	SelectedPickupInStore     bool
	CheckoutAttributesDesc    string
	LastOrderPlacedAt         *time.Time
	MinOrderPlacementExempted bool
}

// DiscountType scopes a discount to one calculation stage.
type DiscountType string

const (
	// DiscountTypeSubTotal applies against the order subtotal.
	DiscountTypeSubTotal DiscountType = "subtotal"
	// DiscountTypeShipping applies against the shipping total.
	DiscountTypeShipping DiscountType = "shipping"
	// DiscountTypeOrderTotal applies against the order grand total.
	DiscountTypeOrderTotal DiscountType = "order_total"
)

// Discount is a candidate discount returned by the discount provider.
type Discount struct {
	ID            string
	Name          string
	Type          DiscountType
	UsePercentage bool
	Percentage    decimal.Decimal
	Amount        decimal.Decimal
	CouponCode    string
}

// AmountFor returns the monetary value of the discount against a base amount.
func (d Discount) AmountFor(base decimal.Decimal) decimal.Decimal {
	if d.UsePercentage {
		return base.Mul(d.Percentage).Div(decimal.NewFromInt(100))
	}
	return d.Amount
}

// GiftCard is an issued gift card with a usable remaining balance. CustomerID
// is empty for anonymous cards redeemable by code only.
type GiftCard struct {
	ID                       string
	Code                     string
	CustomerID               string
	InitialValue             decimal.Decimal
	RemainingValue           decimal.Decimal
	Active                   bool
	PurchasedWithOrderItemID string
	CreatedAt                time.Time
}

// UsableAmount is the balance an active card can contribute right now.
func (g GiftCard) UsableAmount() decimal.Decimal {
	if !g.Active || g.RemainingValue.IsNegative() {
		return decimal.Zero
	}
	return g.RemainingValue
}

// AppliedGiftCard records how much of a gift card a total calculation consumed.
type AppliedGiftCard struct {
	GiftCard   GiftCard
	AmountUsed decimal.Decimal
}
