// Package pricing implements the order total calculation engine: the cascading
// subtotal -> discount -> shipping -> tax -> gift card -> reward points ->
// rounding computation over a shopping cart.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/money"
)

var (
	// ErrPricingInvalidInput signals bad cart data such as non-positive quantities.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrNoShippingMethods indicates no shipping-rate computation method is active.
	ErrNoShippingMethods = errors.New("pricing: no active shipping rate methods")
)

// Engine computes cart totals. All public operations are side-effect free; the
// per-item taxing annotations the ancillary policy needs are kept in an
// explicit per-call map rather than written onto cart items.
type Engine struct {
	discounts   DiscountProvider
	tax         TaxProvider
	shipping    ShippingRateProvider
	giftCards   GiftCardProvider
	paymentFees PaymentFeeProvider
	settings    Settings
	now         func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// EngineDeps wires the collaborators required to construct an Engine.
type EngineDeps struct {
	Discounts   DiscountProvider
	Tax         TaxProvider
	Shipping    ShippingRateProvider
	GiftCards   GiftCardProvider
	PaymentFees PaymentFeeProvider
	Settings    Settings
	Now         func() time.Time
	Logger      func(context.Context, string, map[string]any)
}

// NewEngine validates dependencies and constructs the calculation engine.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Tax == nil {
		return nil, errors.New("pricing engine: tax provider is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("pricing engine: discount provider is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	if deps.Settings.AncillaryTaxPolicy == "" {
		deps.Settings.AncillaryTaxPolicy = TaxPolicyHighestCartAmount
	}
	return &Engine{
		discounts:   deps.Discounts,
		tax:         deps.Tax,
		shipping:    deps.Shipping,
		giftCards:   deps.GiftCards,
		paymentFees: deps.PaymentFees,
		settings:    deps.Settings,
		now:         func() time.Time { return now().UTC() },
		logger:      logger,
	}, nil
}

// SubTotal is the result of the subtotal stage, expressed in a single tax
// view (incl or excl, whichever was requested).
type SubTotal struct {
	WithoutDiscount decimal.Decimal
	Discount        decimal.Decimal
	WithDiscount    decimal.Decimal
	AppliedDiscount *domain.Discount
	TaxRates        RateBuckets
}

// itemTaxingInfo is the ephemeral per-item annotation used to pick the tax
// category for ancillary charges (shipping, payment fee).
type itemTaxingInfo struct {
	subTotalWithoutDiscount decimal.Decimal
	taxCategoryID           string
	rate                    decimal.Decimal
	highestCartAmount       bool
	highestTaxRate          bool
}

// subTotalCalc carries both tax views of the subtotal stage.
type subTotalCalc struct {
	exclWithoutDiscount  decimal.Decimal
	inclWithoutDiscount  decimal.Decimal
	discountExcl         decimal.Decimal
	discountIncl         decimal.Decimal
	buckets              RateBuckets
	bucketsAfterDiscount RateBuckets
	applied              *domain.Discount
}

// CartSubTotal computes the cart subtotal in the requested tax view, applying
// the single best subtotal discount.
func (e *Engine) CartSubTotal(ctx context.Context, cart domain.Cart, customer domain.Customer, inclTax bool) (SubTotal, error) {
	calc, _, err := e.cartSubTotals(ctx, cart, customer)
	if err != nil {
		return SubTotal{}, err
	}

	cur := cart.Currency
	out := SubTotal{AppliedDiscount: calc.applied, TaxRates: NewRateBuckets()}
	for _, rate := range calc.bucketsAfterDiscount.Rates() {
		out.TaxRates.Add(rate, money.ClampZero(money.Round(calc.bucketsAfterDiscount.Amount(rate), cur)))
	}

	if inclTax {
		out.WithoutDiscount = money.ClampZero(money.Round(calc.inclWithoutDiscount, cur))
		out.Discount = money.ClampZero(money.Round(calc.discountIncl, cur))
		out.WithDiscount = money.ClampZero(money.Round(calc.inclWithoutDiscount.Sub(calc.discountIncl), cur))
	} else {
		out.WithoutDiscount = money.ClampZero(money.Round(calc.exclWithoutDiscount, cur))
		out.Discount = money.ClampZero(money.Round(calc.discountExcl, cur))
		out.WithDiscount = money.ClampZero(money.Round(calc.exclWithoutDiscount.Sub(calc.discountExcl), cur))
	}
	return out, nil
}

func (e *Engine) cartSubTotals(ctx context.Context, cart domain.Cart, customer domain.Customer) (subTotalCalc, map[string]*itemTaxingInfo, error) {
	calc := subTotalCalc{
		buckets:              NewRateBuckets(),
		bucketsAfterDiscount: NewRateBuckets(),
	}
	infos := make(map[string]*itemTaxingInfo, len(cart.Items))
	cur := cart.Currency
	one := decimal.NewFromInt(1)

	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			return subTotalCalc{}, nil, ErrPricingInvalidInput
		}
		rate, err := e.itemTaxRate(ctx, item.TaxCategoryID, customer)
		if err != nil {
			return subTotalCalc{}, nil, err
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		var lineExcl, lineIncl decimal.Decimal
		if e.settings.RoundUnitPrices {
			unitExcl := money.Round(item.UnitPrice, cur)
			unitIncl := money.Round(item.UnitPrice.Mul(one.Add(rate)), cur)
			lineExcl = unitExcl.Mul(qty)
			lineIncl = unitIncl.Mul(qty)
		} else {
			lineExcl = item.UnitPrice.Mul(qty)
			lineIncl = lineExcl.Mul(one.Add(rate))
		}

		calc.exclWithoutDiscount = calc.exclWithoutDiscount.Add(lineExcl)
		calc.inclWithoutDiscount = calc.inclWithoutDiscount.Add(lineIncl)
		if rate.Sign() > 0 {
			calc.buckets.Add(rate, lineIncl.Sub(lineExcl))
		}

		infos[item.ID] = &itemTaxingInfo{
			subTotalWithoutDiscount: lineExcl,
			taxCategoryID:           item.TaxCategoryID,
			rate:                    rate,
		}
	}

	for _, attr := range cart.CheckoutAttributes {
		if attr.PriceAdjustment.IsZero() {
			continue
		}
		rate, err := e.itemTaxRate(ctx, attr.TaxCategoryID, customer)
		if err != nil {
			return subTotalCalc{}, nil, err
		}
		excl := attr.PriceAdjustment
		incl := excl.Mul(one.Add(rate))
		calc.exclWithoutDiscount = calc.exclWithoutDiscount.Add(excl)
		calc.inclWithoutDiscount = calc.inclWithoutDiscount.Add(incl)
		if rate.Sign() > 0 {
			calc.buckets.Add(rate, incl.Sub(excl))
		}
	}

	markTaxingExtremes(infos)

	discountExcl, applied, err := e.preferredDiscount(ctx, domain.DiscountTypeSubTotal, customer, calc.exclWithoutDiscount)
	if err != nil {
		return subTotalCalc{}, nil, err
	}
	calc.discountExcl = discountExcl
	calc.applied = applied

	// Prorate the discount across tax buckets to derive the incl-tax view.
	// Division is skipped for a zero subtotal.
	calc.discountIncl = discountExcl
	calc.bucketsAfterDiscount = calc.buckets.Clone()
	if discountExcl.Sign() > 0 && calc.exclWithoutDiscount.Sign() > 0 {
		proportion := discountExcl.Div(calc.exclWithoutDiscount)
		for _, rate := range calc.buckets.Rates() {
			bucketTax := calc.buckets.Amount(rate)
			discountTax := bucketTax.Mul(proportion)
			calc.discountIncl = calc.discountIncl.Add(discountTax)
			calc.bucketsAfterDiscount[rate.String()] = bucketTax.Sub(discountTax)
		}
	}

	return calc, infos, nil
}

func (e *Engine) itemTaxRate(ctx context.Context, taxCategoryID string, customer domain.Customer) (decimal.Decimal, error) {
	if customer.IsTaxExempt {
		return decimal.Zero, nil
	}
	rate, err := e.tax.Rate(ctx, taxCategoryID, customer)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() {
		return decimal.Zero, ErrPricingInvalidInput
	}
	return rate, nil
}

// preferredDiscount enumerates the candidates for a discount type and picks
// the numerically largest applicable one. Ties keep the candidate the
// provider returned first.
func (e *Engine) preferredDiscount(ctx context.Context, discountType domain.DiscountType, customer domain.Customer, base decimal.Decimal) (decimal.Decimal, *domain.Discount, error) {
	candidates, err := e.discounts.DiscountsFor(ctx, discountType, customer)
	if err != nil {
		return decimal.Zero, nil, err
	}
	var best *domain.Discount
	bestAmount := decimal.Zero
	for i := range candidates {
		amount := candidates[i].AmountFor(base)
		if amount.GreaterThan(bestAmount) {
			bestAmount = amount
			best = &candidates[i]
		}
	}
	if best == nil {
		return decimal.Zero, nil, nil
	}
	if bestAmount.GreaterThan(base) {
		bestAmount = base
	}
	return money.ClampZero(bestAmount), best, nil
}

func markTaxingExtremes(infos map[string]*itemTaxingInfo) {
	var maxAmount, maxRate *itemTaxingInfo
	for _, info := range infos {
		if maxAmount == nil || info.subTotalWithoutDiscount.GreaterThan(maxAmount.subTotalWithoutDiscount) {
			maxAmount = info
		}
		if maxRate == nil || info.rate.GreaterThan(maxRate.rate) {
			maxRate = info
		}
	}
	if maxAmount != nil {
		maxAmount.highestCartAmount = true
	}
	if maxRate != nil {
		maxRate.highestTaxRate = true
	}
}

// ancillaryTaxRate resolves the tax rate applied to shipping and payment fee
// charges under the configured ancillary-services taxing policy.
func (e *Engine) ancillaryTaxRate(ctx context.Context, cart domain.Cart, customer domain.Customer) (decimal.Decimal, error) {
	if customer.IsTaxExempt {
		return decimal.Zero, nil
	}

	if e.settings.AncillaryTaxPolicy == TaxPolicySpecifiedCategory {
		return e.itemTaxRate(ctx, e.settings.SpecifiedTaxCategoryID, customer)
	}

	_, infos, err := e.cartSubTotals(ctx, cart, customer)
	if err != nil {
		return decimal.Zero, err
	}
	for _, info := range infos {
		switch e.settings.AncillaryTaxPolicy {
		case TaxPolicyHighestCartAmount:
			if info.highestCartAmount {
				return info.rate, nil
			}
		case TaxPolicyHighestTaxRate:
			if info.highestTaxRate {
				return info.rate, nil
			}
		}
	}
	return decimal.Zero, nil
}
