package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RateBuckets accumulates tax amounts per distinct tax rate. Keys are the
// canonical string form of the rate fraction ("0.19" for 19%).
type RateBuckets map[string]decimal.Decimal

// NewRateBuckets returns an empty bucket set.
func NewRateBuckets() RateBuckets {
	return make(RateBuckets)
}

// Add accumulates an amount under the given rate.
func (b RateBuckets) Add(rate, amount decimal.Decimal) {
	key := rate.String()
	b[key] = b[key].Add(amount)
}

// Amount returns the accumulated amount for a rate.
func (b RateBuckets) Amount(rate decimal.Decimal) decimal.Decimal {
	return b[rate.String()]
}

// Rates returns the distinct rates in ascending order.
func (b RateBuckets) Rates() []decimal.Decimal {
	rates := make([]decimal.Decimal, 0, len(b))
	for key := range b {
		rate, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].LessThan(rates[j]) })
	return rates
}

// Sum totals all bucket amounts.
func (b RateBuckets) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range b {
		total = total.Add(amount)
	}
	return total
}

// Clone returns an independent copy.
func (b RateBuckets) Clone() RateBuckets {
	out := make(RateBuckets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// EnsureNonEmpty guarantees at least one bucket exists (0% -> 0).
func (b RateBuckets) EnsureNonEmpty() {
	if len(b) == 0 {
		b[decimal.Zero.String()] = decimal.Zero
	}
}

// Serialize renders the buckets as "rate:amount;..." for order persistence.
func (b RateBuckets) Serialize() string {
	rates := b.Rates()
	parts := make([]string, 0, len(rates))
	for _, rate := range rates {
		parts = append(parts, rate.String()+":"+b.Amount(rate).String())
	}
	return strings.Join(parts, ";")
}
