package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/money"
)

// GrandTotal is the final stage result. Total is nil when the shipping charge
// cannot be determined yet; every other field is still populated so the
// checkout summary can render partial numbers.
type GrandTotal struct {
	// Total is the payable amount after every deduction, or nil when not yet
	// calculable.
	Total *decimal.Decimal

	Discount        decimal.Decimal
	AppliedDiscount *domain.Discount

	AppliedGiftCards []domain.AppliedGiftCard

	// RedeemedRewardPoints and RedeemedRewardAmount describe the reward point
	// deduction applied when the customer opted in.
	RedeemedRewardPoints int
	RedeemedRewardAmount decimal.Decimal

	// UseCreditBalance is the slice of the customer's store credit consumed
	// by this total, capped at the remaining amount.
	UseCreditBalance decimal.Decimal

	// RoundingDifference is the signed adjustment applied when the order
	// total is snapped to the currency denomination.
	RoundingDifference decimal.Decimal
}

// CartGrandTotal runs the full cascade: discounted subtotal, shipping,
// payment fee, tax, order-total discount, gift cards, reward points, credit
// balance, then denomination rounding. The running total is clamped at zero
// after every deduction.
func (e *Engine) CartGrandTotal(ctx context.Context, cart domain.Cart, customer domain.Customer) (GrandTotal, error) {
	cur := cart.Currency
	method := customer.SelectedPaymentMethod

	sub, err := e.CartSubTotal(ctx, cart, customer, false)
	if err != nil {
		return GrandTotal{}, err
	}

	shipping, err := e.CartShippingTotal(ctx, cart, customer)
	if err != nil {
		return GrandTotal{}, err
	}

	var feeExcl decimal.Decimal
	if method != "" && e.paymentFees != nil {
		fee, err := e.paymentFees.AdditionalFee(ctx, method, cart)
		if err != nil {
			return GrandTotal{}, err
		}
		feeExcl = money.Round(fee, cur)
	}

	tax, err := e.CartTaxTotal(ctx, cart, customer, method)
	if err != nil {
		return GrandTotal{}, err
	}

	out := GrandTotal{}

	if shipping == nil {
		// The shipping charge is still ambiguous. Surface what we can and
		// leave Total unset.
		e.logger(ctx, "pricing.grand_total.shipping_pending", map[string]any{
			"cart_id": cart.ID,
		})
		return out, nil
	}

	running := sub.WithDiscount.Add(shipping.ExclTax).Add(feeExcl).Add(tax.Amount)
	running = money.ClampZero(money.Round(running, cur))

	discount, applied, err := e.preferredDiscount(ctx, domain.DiscountTypeOrderTotal, customer, running)
	if err != nil {
		return GrandTotal{}, err
	}
	out.Discount = money.Round(discount, cur)
	out.AppliedDiscount = applied
	running = money.ClampZero(running.Sub(out.Discount))

	// Gift cards never fund recurring carts; nothing would cover the
	// follow-up cycles.
	if e.giftCards != nil && !cart.ContainsRecurringItem() {
		cards, err := e.giftCards.ActiveGiftCards(ctx, customer)
		if err != nil {
			return GrandTotal{}, err
		}
		for _, card := range cards {
			if running.Sign() <= 0 {
				break
			}
			use := money.Min(running, card.UsableAmount())
			if use.Sign() <= 0 {
				continue
			}
			out.AppliedGiftCards = append(out.AppliedGiftCards, domain.AppliedGiftCard{
				GiftCard:   card,
				AmountUsed: use,
			})
			running = money.ClampZero(running.Sub(use))
		}
	}

	if customer.UseRewardPoints && e.settings.RewardPoints.Enabled() && running.Sign() > 0 {
		policy := e.settings.RewardPoints
		needed := policy.PointsNeededFor(running)
		points := needed
		if points > customer.RewardPointsBalance {
			points = customer.RewardPointsBalance
		}
		if points > 0 {
			amount := money.Min(running, policy.PointsToAmount(points, cur))
			out.RedeemedRewardPoints = points
			out.RedeemedRewardAmount = amount
			running = money.ClampZero(running.Sub(amount))
		}
	}

	if customer.UseCreditBalance.Sign() > 0 && running.Sign() > 0 {
		// The requested credit slice is normalized down to whatever the
		// customer actually has and the total can absorb.
		use := money.Min(customer.UseCreditBalance, customer.CreditBalance)
		use = money.Min(use, running)
		if use.Sign() > 0 {
			out.UseCreditBalance = use
			running = money.ClampZero(running.Sub(use))
		}
	}

	if e.settings.RoundTotalDenomination.Sign() > 0 &&
		method != "" && e.paymentFees != nil && e.paymentFees.RoundTotalEnabled(method) {
		snapped, diff := money.RoundToNearest(running, e.settings.RoundTotalDenomination)
		running = money.ClampZero(snapped)
		out.RoundingDifference = diff
	}

	out.Total = &running
	return out, nil
}
