package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

// DiscountProvider supplies the discount candidates valid for a customer and
// calculation stage. The engine picks the single best one per stage.
type DiscountProvider interface {
	DiscountsFor(ctx context.Context, discountType domain.DiscountType, customer domain.Customer) ([]domain.Discount, error)
}

// TaxProvider resolves the tax rate for a tax category as a decimal fraction
// (0.19 for 19%).
type TaxProvider interface {
	Rate(ctx context.Context, taxCategoryID string, customer domain.Customer) (decimal.Decimal, error)
}

// ShippingRateMethod is one active shipping-rate computation method.
type ShippingRateMethod interface {
	SystemName() string
	// FixedRate quotes the method's flat rate for the cart.
	FixedRate(ctx context.Context, cart domain.Cart) (decimal.Decimal, error)
}

// ShippingRateProvider lists the shipping-rate computation methods currently
// active for the store.
type ShippingRateProvider interface {
	ActiveMethods(ctx context.Context) ([]ShippingRateMethod, error)
}

// GiftCardProvider returns the customer's usable gift cards, most valid first.
// The engine consumes them in the returned order.
type GiftCardProvider interface {
	ActiveGiftCards(ctx context.Context, customer domain.Customer) ([]domain.GiftCard, error)
}

// PaymentFeeProvider exposes payment-method pricing facts the engine needs.
type PaymentFeeProvider interface {
	AdditionalFee(ctx context.Context, methodSystemName string, cart domain.Cart) (decimal.Decimal, error)
	// RoundTotalEnabled reports whether the method opts into order-total
	// rounding to the currency denomination.
	RoundTotalEnabled(methodSystemName string) bool
}

// AncillaryTaxPolicy selects the tax category applied to shipping and payment
// fees when the cart mixes categories.
type AncillaryTaxPolicy string

const (
	// TaxPolicyHighestCartAmount taxes ancillary charges like the item with
	// the largest pre-discount line amount.
	TaxPolicyHighestCartAmount AncillaryTaxPolicy = "highest_cart_amount"
	// TaxPolicyHighestTaxRate taxes ancillary charges at the highest rate in
	// the cart.
	TaxPolicyHighestTaxRate AncillaryTaxPolicy = "highest_tax_rate"
	// TaxPolicySpecifiedCategory taxes ancillary charges with a configured
	// category.
	TaxPolicySpecifiedCategory AncillaryTaxPolicy = "specified_category"
)

// Settings carries the store-level pricing policy knobs.
type Settings struct {
	// RoundUnitPrices rounds each unit price before multiplying by quantity;
	// otherwise only aggregates are rounded.
	RoundUnitPrices bool

	FreeShippingOverAmountEnabled bool
	FreeShippingOverAmount        decimal.Decimal
	// AdditionalShippingCharge is a store-wide surcharge added to every
	// calculated shipping total.
	AdditionalShippingCharge decimal.Decimal

	AncillaryTaxPolicy     AncillaryTaxPolicy
	SpecifiedTaxCategoryID string

	// RoundTotalDenomination enables order-total rounding to the nearest
	// multiple when positive and the payment method opts in.
	RoundTotalDenomination decimal.Decimal

	RewardPoints RewardPointsPolicy
}
