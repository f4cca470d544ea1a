package di

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/config"
	"github.com/northcart/commerce/internal/repositories"
)

type stubRegistry struct{}

func (stubRegistry) Close(context.Context) error                       { return nil }
func (stubRegistry) Carts() repositories.CartRepository                { return nil }
func (stubRegistry) Customers() repositories.CustomerRepository        { return nil }
func (stubRegistry) Orders() repositories.OrderRepository              { return nil }
func (stubRegistry) GiftCards() repositories.GiftCardRepository        { return nil }
func (stubRegistry) DiscountUsage() repositories.DiscountUsageRepository {
	return nil
}
func (stubRegistry) RecurringPayments() repositories.RecurringPaymentRepository {
	return nil
}
func (stubRegistry) Counters() repositories.CounterRepository { return nil }
func (stubRegistry) Health() repositories.HealthRepository    { return nil }
func (stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		Payments: config.PaymentsConfig{ManualTransactMode: "pending"},
		Pricing: config.PricingConfig{
			Currency:           "USD",
			AncillaryTaxPolicy: "highest_cart_amount",
		},
		Checkout: config.CheckoutConfig{AnonymousCheckoutAllowed: true},
		Orders: config.OrdersConfig{
			GiftCardActivationStatus:   "complete",
			GiftCardDeactivationStatus: "cancelled",
			RewardPointsAwardStatus:    "complete",
			RewardPointsClawbackStatus: "cancelled",
			RecurringMaxFailures:       3,
		},
	}
}

func TestNewContainerWiresServices(t *testing.T) {
	container, err := NewContainer(context.Background(), testConfig(), stubRegistry{}, Options{
		TaxRates:        map[string]decimal.Decimal{"standard": decimal.RequireFromString("0.19")},
		ShippingMethods: []ShippingMethod{{SystemName: "shipping.flat", Rate: decimal.RequireFromString("4.90")}},
	})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Payments == nil || container.Pricing == nil || container.Orders == nil || container.Checkout == nil {
		t.Fatalf("expected every service to be wired, got %#v", container)
	}
	if _, err := container.Payments.Gateway("payments.manual"); err != nil {
		t.Fatalf("expected the manual gateway to be registered: %v", err)
	}
	if _, err := container.Payments.Gateway("payments.stripe"); err == nil {
		t.Fatalf("stripe must stay unregistered without an API key")
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig(), nil, Options{}); err == nil {
		t.Fatalf("expected an error for a nil registry")
	}
}

func TestNewContainerRegistersStripeWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.StripeAPIKey = "sk_test_123"

	container, err := NewContainer(context.Background(), cfg, stubRegistry{}, Options{})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if _, err := container.Payments.Gateway("payments.stripe"); err != nil {
		t.Fatalf("expected the stripe gateway to be registered: %v", err)
	}
	names := container.Payments.ActiveMethodNames()
	if len(names) != 2 {
		t.Fatalf("expected two active methods, got %v", names)
	}
}

func TestOrderSettingsMapping(t *testing.T) {
	cfg := testConfig()
	cfg.Orders.MinOrderTotal = decimal.RequireFromString("5")
	cfg.Pricing.RewardPointsExchangeRate = decimal.RequireFromString("10")

	settings := orderSettings(cfg)
	if settings.PrimaryCurrency != "USD" {
		t.Fatalf("unexpected currency %q", settings.PrimaryCurrency)
	}
	if settings.GiftCardActivationStatus != domain.OrderStatusComplete {
		t.Fatalf("unexpected activation status %q", settings.GiftCardActivationStatus)
	}
	if !settings.MinOrderTotal.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected min total %s", settings.MinOrderTotal)
	}
	if !settings.RewardPoints.ExchangeRate.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected exchange rate %s", settings.RewardPoints.ExchangeRate)
	}
}
