package di

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

type stubUsageRepo struct {
	total       map[string]int
	perCustomer map[string]int
}

func (r *stubUsageRepo) Record(context.Context, domain.DiscountUsage) error { return nil }

func (r *stubUsageRepo) CountByDiscount(_ context.Context, discountID string) (int, error) {
	return r.total[discountID], nil
}

func (r *stubUsageRepo) CountByDiscountAndCustomer(_ context.Context, discountID, customerID string) (int, error) {
	return r.perCustomer[discountID+"/"+customerID], nil
}

func TestDiscountProviderEnforcesLimits(t *testing.T) {
	ctx := context.Background()
	usage := &stubUsageRepo{
		total:       map[string]int{"disc_spent": 5},
		perCustomer: map[string]int{"disc_mine/cust_1": 1},
	}
	provider := &discountProvider{
		rules: []DiscountRule{
			{Discount: domain.Discount{ID: "disc_open", Type: domain.DiscountTypeSubTotal}},
			{Discount: domain.Discount{ID: "disc_spent", Type: domain.DiscountTypeSubTotal}, TotalLimit: 5},
			{Discount: domain.Discount{ID: "disc_mine", Type: domain.DiscountTypeSubTotal}, PerCustomerLimit: 1},
			{Discount: domain.Discount{ID: "disc_ship", Type: domain.DiscountTypeShipping}},
		},
		usage: usage,
	}

	got, err := provider.DiscountsFor(ctx, domain.DiscountTypeSubTotal, domain.Customer{ID: "cust_1"})
	if err != nil {
		t.Fatalf("DiscountsFor: %v", err)
	}
	if len(got) != 1 || got[0].ID != "disc_open" {
		t.Fatalf("expected only the unlimited discount, got %v", got)
	}

	got, err = provider.DiscountsFor(ctx, domain.DiscountTypeSubTotal, domain.Customer{ID: "cust_2"})
	if err != nil {
		t.Fatalf("DiscountsFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the per-customer limit to clear for another customer, got %v", got)
	}
}

func TestDiscountProviderGatesCouponRules(t *testing.T) {
	ctx := context.Background()
	provider := &discountProvider{
		rules: []DiscountRule{
			{Discount: domain.Discount{ID: "disc_coupon", Type: domain.DiscountTypeOrderTotal, CouponCode: "SAVE10"}},
		},
		coupon: func(_ context.Context, customer domain.Customer) string {
			if customer.ID == "cust_1" {
				return "SAVE10"
			}
			return ""
		},
	}

	got, err := provider.DiscountsFor(ctx, domain.DiscountTypeOrderTotal, domain.Customer{ID: "cust_1"})
	if err != nil {
		t.Fatalf("DiscountsFor: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the coupon discount for the entering customer, got %v", got)
	}

	got, err = provider.DiscountsFor(ctx, domain.DiscountTypeOrderTotal, domain.Customer{ID: "cust_2"})
	if err != nil {
		t.Fatalf("DiscountsFor: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no discounts without the coupon, got %v", got)
	}
}

func TestTaxProviderResolvesRates(t *testing.T) {
	ctx := context.Background()
	provider := &taxProvider{
		rates:       map[string]decimal.Decimal{"reduced": decimal.RequireFromString("0.07")},
		defaultRate: decimal.RequireFromString("0.19"),
	}

	rate, err := provider.Rate(ctx, "reduced", domain.Customer{})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.07")) {
		t.Fatalf("unexpected reduced rate %s", rate)
	}

	rate, err = provider.Rate(ctx, "unknown", domain.Customer{})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.19")) {
		t.Fatalf("unexpected default rate %s", rate)
	}

	rate, err = provider.Rate(ctx, "reduced", domain.Customer{IsTaxExempt: true})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.IsZero() {
		t.Fatalf("exempt customers must get a zero rate, got %s", rate)
	}
}

func TestShippingProviderSkipsUnnamedMethods(t *testing.T) {
	provider := newShippingProvider([]ShippingMethod{
		{SystemName: "shipping.flat", Rate: decimal.RequireFromString("4.90")},
		{SystemName: ""},
	})

	methods, err := provider.ActiveMethods(context.Background())
	if err != nil {
		t.Fatalf("ActiveMethods: %v", err)
	}
	if len(methods) != 1 || methods[0].SystemName() != "shipping.flat" {
		t.Fatalf("unexpected methods %v", methods)
	}

	rate, err := methods[0].FixedRate(context.Background(), domain.Cart{})
	if err != nil {
		t.Fatalf("FixedRate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("4.90")) {
		t.Fatalf("unexpected rate %s", rate)
	}
}

func TestGiftCardProviderSkipsAnonymousCustomers(t *testing.T) {
	provider := &giftCardProvider{}
	cards, err := provider.ActiveGiftCards(context.Background(), domain.Customer{})
	if err != nil {
		t.Fatalf("ActiveGiftCards: %v", err)
	}
	if cards != nil {
		t.Fatalf("expected no cards for an anonymous customer, got %v", cards)
	}
}
