package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/money"
)

// TaxTotal is the tax stage result: the overall amount plus the per-rate
// breakdown persisted on orders.
type TaxTotal struct {
	Amount decimal.Decimal
	Rates  RateBuckets
}

// CartTaxTotal aggregates tax from the discounted subtotal, the shipping
// charge and the payment method fee. Buckets are rounded individually so the
// serialized breakdown sums to the total.
func (e *Engine) CartTaxTotal(ctx context.Context, cart domain.Cart, customer domain.Customer, paymentMethod string) (TaxTotal, error) {
	cur := cart.Currency

	if customer.IsTaxExempt {
		buckets := NewRateBuckets()
		buckets.EnsureNonEmpty()
		return TaxTotal{Amount: decimal.Zero, Rates: buckets}, nil
	}

	calc, _, err := e.cartSubTotals(ctx, cart, customer)
	if err != nil {
		return TaxTotal{}, err
	}
	buckets := calc.bucketsAfterDiscount.Clone()

	shipping, err := e.CartShippingTotal(ctx, cart, customer)
	if err != nil {
		return TaxTotal{}, err
	}
	if shipping != nil {
		shippingTax := shipping.InclTax.Sub(shipping.ExclTax)
		if shippingTax.Sign() > 0 {
			buckets.Add(shipping.TaxRate, shippingTax)
		}
	}

	if paymentMethod != "" && e.paymentFees != nil {
		fee, err := e.paymentFees.AdditionalFee(ctx, paymentMethod, cart)
		if err != nil {
			return TaxTotal{}, err
		}
		if fee.Sign() > 0 {
			rate, err := e.ancillaryTaxRate(ctx, cart, customer)
			if err != nil {
				return TaxTotal{}, err
			}
			feeExcl := money.Round(fee, cur)
			feeIncl := money.Round(fee.Mul(decimal.NewFromInt(1).Add(rate)), cur)
			feeTax := feeIncl.Sub(feeExcl)
			if feeTax.Sign() > 0 {
				buckets.Add(rate, feeTax)
			}
		}
	}

	rounded := NewRateBuckets()
	for _, rate := range buckets.Rates() {
		rounded.Add(rate, money.ClampZero(money.Round(buckets.Amount(rate), cur)))
	}
	rounded.EnsureNonEmpty()

	return TaxTotal{Amount: money.ClampZero(rounded.Sum()), Rates: rounded}, nil
}

// itemTaxAmounts returns the excl and incl tax unit prices for a single order
// line. Used by order placement when snapshotting cart items.
func (e *Engine) ItemUnitPrices(ctx context.Context, item domain.CartItem, customer domain.Customer, currencyCode string) (excl, incl, rate decimal.Decimal, err error) {
	rate, err = e.itemTaxRate(ctx, item.TaxCategoryID, customer)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	excl = item.UnitPrice
	if e.settings.RoundUnitPrices {
		excl = money.Round(excl, currencyCode)
	}
	incl = money.Round(excl.Mul(decimal.NewFromInt(1).Add(rate)), currencyCode)
	return excl, incl, rate, nil
}
