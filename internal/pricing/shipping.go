package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/money"
)

// ShippingTotal is the shipping stage result. A nil *ShippingTotal from
// CartShippingTotal means the total cannot be calculated yet (no method
// selected while several are active).
type ShippingTotal struct {
	ExclTax         decimal.Decimal
	InclTax         decimal.Decimal
	TaxRate         decimal.Decimal
	AppliedDiscount *domain.Discount
}

// CartShippingTotal computes the shipping charge for a cart. It returns
// (nil, nil) when the charge is not yet determinable, which is distinct from
// a zero charge for free or non-shippable carts.
func (e *Engine) CartShippingTotal(ctx context.Context, cart domain.Cart, customer domain.Customer) (*ShippingTotal, error) {
	cur := cart.Currency
	zero := &ShippingTotal{}

	if !cart.RequiresShipping() {
		return zero, nil
	}
	if customer.HasFreeShipping {
		return zero, nil
	}
	if e.settings.FreeShippingOverAmountEnabled {
		sub, err := e.CartSubTotal(ctx, cart, customer, false)
		if err != nil {
			return nil, err
		}
		if sub.WithDiscount.GreaterThan(e.settings.FreeShippingOverAmount) {
			return zero, nil
		}
	}

	base, ok, err := e.shippingBaseRate(ctx, cart, customer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	base = base.Add(e.shippingSurcharges(cart)).Add(e.settings.AdditionalShippingCharge)

	discount, applied, err := e.preferredDiscount(ctx, domain.DiscountTypeShipping, customer, base)
	if err != nil {
		return nil, err
	}
	excl := money.ClampZero(money.Round(base.Sub(discount), cur))

	rate, err := e.ancillaryTaxRate(ctx, cart, customer)
	if err != nil {
		return nil, err
	}
	incl := money.Round(excl.Mul(decimal.NewFromInt(1).Add(rate)), cur)

	return &ShippingTotal{
		ExclTax:         excl,
		InclTax:         incl,
		TaxRate:         rate,
		AppliedDiscount: applied,
	}, nil
}

// shippingBaseRate resolves the raw rate before surcharges and discounts.
// ok is false when the rate is ambiguous pending a customer selection.
func (e *Engine) shippingBaseRate(ctx context.Context, cart domain.Cart, customer domain.Customer) (decimal.Decimal, bool, error) {
	if opt := customer.SelectedShippingOption; opt != nil {
		return opt.Rate, true, nil
	}
	if e.shipping == nil {
		return decimal.Zero, false, ErrNoShippingMethods
	}
	methods, err := e.shipping.ActiveMethods(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	switch len(methods) {
	case 0:
		return decimal.Zero, false, ErrNoShippingMethods
	case 1:
		rate, err := methods[0].FixedRate(ctx, cart)
		if err != nil {
			return decimal.Zero, false, err
		}
		return rate, true, nil
	default:
		// Several methods and no selection yet. The caller has to wait for
		// the shipping-method checkout step.
		return decimal.Zero, false, nil
	}
}

func (e *Engine) shippingSurcharges(cart domain.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		if !item.IsShippable {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.AdditionalShippingCharge.Mul(qty))
		for _, child := range item.ChildItems {
			if !child.IsShippable {
				continue
			}
			childQty := decimal.NewFromInt(int64(child.Quantity)).Mul(qty)
			total = total.Add(child.AdditionalShippingCharge.Mul(childQty))
		}
	}
	return total
}
