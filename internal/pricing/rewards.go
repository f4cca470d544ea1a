package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/platform/money"
)

// RewardPointsPolicy converts between reward points and money.
//
// Awarding and spending deliberately use different rounding rules: awarding
// honours the RoundDown flag, while spending always charges the exact point
// count needed to cover an amount. Do not unify the two call sites.
type RewardPointsPolicy struct {
	// ExchangeRate is the monetary value of a single point.
	ExchangeRate decimal.Decimal
	// RoundDown floors fractional point counts when awarding; otherwise they
	// are rounded up.
	RoundDown bool
}

// Enabled reports whether the programme is usable at all.
func (p RewardPointsPolicy) Enabled() bool {
	return p.ExchangeRate.Sign() > 0
}

// PointsToAmount converts a point count to its monetary equivalent in the
// given currency.
func (p RewardPointsPolicy) PointsToAmount(points int, currencyCode string) decimal.Decimal {
	if points <= 0 || !p.Enabled() {
		return decimal.Zero
	}
	return money.Round(decimal.NewFromInt(int64(points)).Mul(p.ExchangeRate), currencyCode)
}

// AmountToPoints converts an amount to points for awarding, applying the
// configured RoundDown policy at the fractional boundary.
func (p RewardPointsPolicy) AmountToPoints(amount decimal.Decimal) int {
	if !p.Enabled() || amount.Sign() <= 0 {
		return 0
	}
	points := amount.Div(p.ExchangeRate)
	if p.RoundDown {
		return int(points.Floor().IntPart())
	}
	return int(points.Ceil().IntPart())
}

// PointsNeededFor returns the exact point count required to cover an amount
// when redeeming. This is the spend-side conversion and always rounds up so
// the redeemed value is never short of the amount it covers.
func (p RewardPointsPolicy) PointsNeededFor(amount decimal.Decimal) int {
	if !p.Enabled() || amount.Sign() <= 0 {
		return 0
	}
	return int(amount.Div(p.ExchangeRate).Ceil().IntPart())
}
