package di

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/checkout"
	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/orders"
	"github.com/northcart/commerce/internal/pricing"
	"github.com/northcart/commerce/internal/repositories"
)

// DiscountRule couples a discount definition with its redemption limits.
// Rules with a coupon code only apply when the customer entered that code.
type DiscountRule struct {
	Discount domain.Discount

	// TotalLimit caps redemptions store-wide, PerCustomerLimit per customer.
	// Zero means unlimited.
	TotalLimit       int
	PerCustomerLimit int
}

// CouponResolver reports the coupon code the customer entered during
// checkout, or empty when none was entered.
type CouponResolver func(ctx context.Context, customer domain.Customer) string

// discountProvider serves the configured rules, filtering out the ones whose
// usage limits are exhausted.
type discountProvider struct {
	rules  []DiscountRule
	usage  repositories.DiscountUsageRepository
	coupon CouponResolver
}

func (p *discountProvider) DiscountsFor(ctx context.Context, discountType domain.DiscountType, customer domain.Customer) ([]domain.Discount, error) {
	var out []domain.Discount
	for _, rule := range p.rules {
		if rule.Discount.Type != discountType {
			continue
		}
		if rule.Discount.CouponCode != "" {
			if p.coupon == nil || p.coupon(ctx, customer) != rule.Discount.CouponCode {
				continue
			}
		}
		ok, err := p.withinLimits(ctx, rule, customer)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rule.Discount)
		}
	}
	return out, nil
}

func (p *discountProvider) withinLimits(ctx context.Context, rule DiscountRule, customer domain.Customer) (bool, error) {
	if p.usage == nil || (rule.TotalLimit <= 0 && rule.PerCustomerLimit <= 0) {
		return true, nil
	}
	if rule.TotalLimit > 0 {
		count, err := p.usage.CountByDiscount(ctx, rule.Discount.ID)
		if err != nil {
			return false, fmt.Errorf("count discount usage %s: %w", rule.Discount.ID, err)
		}
		if count >= rule.TotalLimit {
			return false, nil
		}
	}
	if rule.PerCustomerLimit > 0 && customer.ID != "" {
		count, err := p.usage.CountByDiscountAndCustomer(ctx, rule.Discount.ID, customer.ID)
		if err != nil {
			return false, fmt.Errorf("count discount usage %s for %s: %w", rule.Discount.ID, customer.ID, err)
		}
		if count >= rule.PerCustomerLimit {
			return false, nil
		}
	}
	return true, nil
}

// taxProvider resolves rates from a static category table. Tax-exempt
// customers always get a zero rate.
type taxProvider struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

func (p *taxProvider) Rate(_ context.Context, taxCategoryID string, customer domain.Customer) (decimal.Decimal, error) {
	if customer.IsTaxExempt {
		return decimal.Zero, nil
	}
	if rate, ok := p.rates[taxCategoryID]; ok {
		return rate, nil
	}
	return p.defaultRate, nil
}

// ShippingMethod configures one flat-rate shipping option. Per-item
// surcharges and the store-wide additional charge are layered on top by the
// pricing engine, so Rate is the base rate only.
type ShippingMethod struct {
	SystemName string
	Rate       decimal.Decimal
}

type flatRateMethod struct {
	name string
	rate decimal.Decimal
}

func (m flatRateMethod) SystemName() string { return m.name }

func (m flatRateMethod) FixedRate(context.Context, domain.Cart) (decimal.Decimal, error) {
	return m.rate, nil
}

type shippingProvider struct {
	methods []pricing.ShippingRateMethod
}

func (p *shippingProvider) ActiveMethods(context.Context) ([]pricing.ShippingRateMethod, error) {
	return p.methods, nil
}

func newShippingProvider(methods []ShippingMethod) *shippingProvider {
	provider := &shippingProvider{}
	for _, m := range methods {
		if m.SystemName == "" {
			continue
		}
		provider.methods = append(provider.methods, flatRateMethod{name: m.SystemName, rate: m.Rate})
	}
	return provider
}

// giftCardProvider surfaces the customer's stored cards to the pricing
// engine. Anonymous customers have none on file.
type giftCardProvider struct {
	cards repositories.GiftCardRepository
}

func (p *giftCardProvider) ActiveGiftCards(ctx context.Context, customer domain.Customer) ([]domain.GiftCard, error) {
	if customer.ID == "" {
		return nil, nil
	}
	return p.cards.ListUsableByCustomer(ctx, customer.ID)
}

// orderPlacer adapts the order service's placement pipeline to the checkout
// orchestrator's confirmation step.
type orderPlacer struct {
	orders *orders.Service
}

func (p orderPlacer) PlaceFromCheckout(ctx context.Context, cart domain.Cart, customer domain.Customer) (checkout.PlacementResult, error) {
	result, err := p.orders.Place(ctx, orders.PlaceRequest{Cart: cart, Customer: customer})
	if err != nil {
		return checkout.PlacementResult{}, err
	}
	out := checkout.PlacementResult{
		Approved:       result.Approved,
		DeclineReasons: result.DeclineReasons,
		RedirectURL:    result.RedirectURL,
	}
	if result.Order != nil {
		out.OrderID = result.Order.ID
	}
	return out, nil
}
