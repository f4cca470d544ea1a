package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"COMMERCE_FIRESTORE_PROJECT_ID": "demo-project",
		}),
	)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %s", cfg.Server.Port)
	}
	if cfg.Pricing.Currency != "USD" {
		t.Fatalf("currency = %s", cfg.Pricing.Currency)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Fatalf("pubsub project should default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.EventsTopic != "commerce-order-events" {
		t.Fatalf("events topic = %s", cfg.PubSub.EventsTopic)
	}
	if cfg.Orders.RecurringMaxFailures != 3 {
		t.Fatalf("recurring max failures = %d", cfg.Orders.RecurringMaxFailures)
	}
	if cfg.Checkout.MinOrderPlacementInterval != time.Minute {
		t.Fatalf("min order interval = %s", cfg.Checkout.MinOrderPlacementInterval)
	}
	if cfg.Checkout.MaxValidationWarnings != 10 {
		t.Fatalf("max validation warnings = %d", cfg.Checkout.MaxValidationWarnings)
	}
}

func TestLoadOverridesAndDecimals(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"COMMERCE_FIRESTORE_PROJECT_ID":               "demo-project",
			"COMMERCE_PRICING_CURRENCY":                   "jpy",
			"COMMERCE_PRICING_FREE_SHIPPING_ENABLED":      "true",
			"COMMERCE_PRICING_FREE_SHIPPING_OVER":         "5000",
			"COMMERCE_PRICING_ROUND_TOTAL_DENOMINATION":   "0.05",
			"COMMERCE_REWARD_POINTS_EXCHANGE_RATE":        "1.25",
			"COMMERCE_ORDERS_RECURRING_RETRY_INTERVAL":    "12h",
			"COMMERCE_CHECKOUT_MAX_WARNINGS":              "3",
			"COMMERCE_PRICING_ANCILLARY_TAX_POLICY":       "specified_category",
			"COMMERCE_PRICING_ANCILLARY_TAX_CATEGORY":     "cat_services",
		}),
	)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Pricing.Currency != "JPY" {
		t.Fatalf("currency = %s", cfg.Pricing.Currency)
	}
	if !cfg.Pricing.FreeShippingOverAmountEnabled || cfg.Pricing.FreeShippingOverAmount.String() != "5000" {
		t.Fatalf("free shipping = %v over %s", cfg.Pricing.FreeShippingOverAmountEnabled, cfg.Pricing.FreeShippingOverAmount)
	}
	if cfg.Pricing.RoundTotalDenomination.String() != "0.05" {
		t.Fatalf("denomination = %s", cfg.Pricing.RoundTotalDenomination)
	}
	if cfg.Pricing.RewardPointsExchangeRate.String() != "1.25" {
		t.Fatalf("exchange rate = %s", cfg.Pricing.RewardPointsExchangeRate)
	}
	if cfg.Orders.RecurringRetryInterval != 12*time.Hour {
		t.Fatalf("retry interval = %s", cfg.Orders.RecurringRetryInterval)
	}
	if cfg.Checkout.MaxValidationWarnings != 3 {
		t.Fatalf("max validation warnings = %d", cfg.Checkout.MaxValidationWarnings)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"COMMERCE_FIRESTORE_PROJECT_ID":         "demo-project",
			"COMMERCE_PRICING_ANCILLARY_TAX_POLICY": "specified_category",
		}),
	)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	found := false
	for _, field := range validationErr.Fields() {
		if field == "Pricing.SpecifiedTaxCategoryID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("fields = %v", validationErr.Fields())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"COMMERCE_FIRESTORE_PROJECT_ID": "demo-project",
			"COMMERCE_STRIPE_API_KEY":       "sm://projects/demo/secrets/stripe",
		}),
		WithSecretResolver(SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			if ref != "secret://projects/demo/secrets/stripe" {
				return "", errors.New("unexpected ref " + ref)
			}
			return "sk_test_123", nil
		})),
	)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Payments.StripeAPIKey != "sk_test_123" {
		t.Fatalf("stripe key = %s", cfg.Payments.StripeAPIKey)
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"COMMERCE_FIRESTORE_PROJECT_ID": "demo-project",
			"COMMERCE_STRIPE_API_KEY":       "secret://projects/demo/secrets/stripe",
		}),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
}
