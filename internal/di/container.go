// Package di assembles the runtime object graph: payment gateways, the
// pricing engine, the order service and the checkout orchestrator, all wired
// over one repository registry.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/checkout"
	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/orders"
	"github.com/northcart/commerce/internal/payments"
	"github.com/northcart/commerce/internal/platform/config"
	"github.com/northcart/commerce/internal/pricing"
	"github.com/northcart/commerce/internal/repositories"
)

// Options carries the pluggable collaborators NewContainer cannot derive
// from configuration alone. Every field is optional.
type Options struct {
	// Notifier delivers order notifications; Events receives order domain
	// events. Both default to off.
	Notifier orders.Notifier
	Events   orders.EventPublisher
	// Inventory adjusts stock on placement and cancellation.
	Inventory orders.InventoryAdjuster

	Logger func(ctx context.Context, event string, fields map[string]any)
	Clock  func() time.Time
	IDGen  func(prefix string) string

	// DiscountRules are the store's active discounts; Coupon resolves the
	// code a customer entered, gating coupon-bound rules.
	DiscountRules []DiscountRule
	Coupon        CouponResolver

	// TaxRates maps tax category ids to rates; DefaultTaxRate covers
	// unmapped categories.
	TaxRates       map[string]decimal.Decimal
	DefaultTaxRate decimal.Decimal

	ShippingMethods []ShippingMethod

	// ExtraGateways register beside the configured manual and Stripe ones.
	ExtraGateways []GatewayRegistration
}

// GatewayRegistration pairs a gateway with its method configuration.
type GatewayRegistration struct {
	Gateway payments.Gateway
	Config  payments.MethodConfig
}

// Container wires repositories, the payment manager, the pricing engine and
// the order and checkout services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Payments     *payments.Manager
	Pricing      *pricing.Engine
	Orders       *orders.Service
	Checkout     *checkout.Orchestrator
}

// NewContainer constructs the runtime dependencies. Tests can supply
// in-memory registries and stub gateways through opts.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, opts Options) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger

	manager, err := buildPaymentManager(cfg.Payments, clock, logger, opts.ExtraGateways)
	if err != nil {
		return nil, err
	}

	engine, err := buildPricingEngine(cfg.Pricing, reg, manager, clock, logger, opts)
	if err != nil {
		return nil, err
	}

	orderSvc, err := orders.NewService(orders.Deps{
		Repos:    reg,
		Calc:     engine,
		Gateways: manager,
		Notifier: opts.Notifier,
		Settings: orderSettings(cfg),
		Clock:    clock,
		IDGen:    opts.IDGen,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}
	if opts.Inventory != nil {
		orderSvc.SetInventoryAdjuster(opts.Inventory)
	}
	if opts.Events != nil {
		orderSvc.SetEventPublisher(opts.Events)
	}

	orchestrator, err := buildCheckout(cfg.Checkout, reg, manager, engine, orderSvc, clock, logger, opts)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Payments:     manager,
		Pricing:      engine,
		Orders:       orderSvc,
		Checkout:     orchestrator,
	}, nil
}

// Close releases repository clients and any other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildPaymentManager(cfg config.PaymentsConfig, clock func() time.Time, logger func(context.Context, string, map[string]any), extra []GatewayRegistration) (*payments.Manager, error) {
	manager := payments.NewManager()

	manual, err := payments.NewManualGateway(payments.ManualGatewayConfig{
		TransactMode: payments.ManualTransactMode(cfg.ManualTransactMode),
		Logger:       logger,
		Clock:        clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build manual gateway: %w", err)
	}
	if err := manager.Register(manual, payments.MethodConfig{Active: true}); err != nil {
		return nil, fmt.Errorf("register manual gateway: %w", err)
	}

	if cfg.StripeAPIKey != "" {
		stripeGw, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
			APIKey:        cfg.StripeAPIKey,
			AccountID:     cfg.StripeAccountID,
			AuthorizeOnly: cfg.StripeAuthorizeOnly,
			Logger:        logger,
			Clock:         clock,
		})
		if err != nil {
			return nil, fmt.Errorf("build stripe gateway: %w", err)
		}
		if err := manager.Register(stripeGw, payments.MethodConfig{Active: true}); err != nil {
			return nil, fmt.Errorf("register stripe gateway: %w", err)
		}
	}

	for _, registration := range extra {
		if err := manager.Register(registration.Gateway, registration.Config); err != nil {
			return nil, fmt.Errorf("register extra gateway: %w", err)
		}
	}
	return manager, nil
}

func buildPricingEngine(cfg config.PricingConfig, reg repositories.Registry, manager *payments.Manager, clock func() time.Time, logger func(context.Context, string, map[string]any), opts Options) (*pricing.Engine, error) {
	engine, err := pricing.NewEngine(pricing.EngineDeps{
		Discounts: &discountProvider{
			rules:  opts.DiscountRules,
			usage:  reg.DiscountUsage(),
			coupon: opts.Coupon,
		},
		Tax: &taxProvider{
			rates:       opts.TaxRates,
			defaultRate: opts.DefaultTaxRate,
		},
		Shipping:    newShippingProvider(opts.ShippingMethods),
		GiftCards:   &giftCardProvider{cards: reg.GiftCards()},
		PaymentFees: manager,
		Settings:    pricingSettings(cfg),
		Now:         clock,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build pricing engine: %w", err)
	}
	return engine, nil
}

func buildCheckout(cfg config.CheckoutConfig, reg repositories.Registry, manager *payments.Manager, engine *pricing.Engine, orderSvc *orders.Service, clock func() time.Time, logger func(context.Context, string, map[string]any), opts Options) (*checkout.Orchestrator, error) {
	registry := checkout.NewRegistry(cfg.OnePageCheckout)
	if err := checkout.RegisterDefaultSteps(registry, newShippingProvider(opts.ShippingMethods), engine, manager); err != nil {
		return nil, fmt.Errorf("register checkout steps: %w", err)
	}

	orchestrator, err := checkout.NewOrchestrator(checkout.OrchestratorDeps{
		Registry:  registry,
		Validator: orderSvc,
		Placer:    orderPlacer{orders: orderSvc},
		Customers: reg.Customers(),
		Settings: checkout.Settings{
			AnonymousCheckoutAllowed: cfg.AnonymousCheckoutAllowed,
			QuickCheckout:            cfg.QuickCheckoutEnabled,
			MinOrderInterval:         cfg.MinOrderPlacementInterval,
			MaxWarnings:              cfg.MaxValidationWarnings,
		},
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build checkout orchestrator: %w", err)
	}
	return orchestrator, nil
}

func pricingSettings(cfg config.PricingConfig) pricing.Settings {
	return pricing.Settings{
		RoundUnitPrices:               cfg.RoundUnitPrices,
		FreeShippingOverAmountEnabled: cfg.FreeShippingOverAmountEnabled,
		FreeShippingOverAmount:        cfg.FreeShippingOverAmount,
		AdditionalShippingCharge:      cfg.AdditionalShippingCharge,
		AncillaryTaxPolicy:            pricing.AncillaryTaxPolicy(cfg.AncillaryTaxPolicy),
		SpecifiedTaxCategoryID:        cfg.SpecifiedTaxCategoryID,
		RoundTotalDenomination:        cfg.RoundTotalDenomination,
		RewardPoints: pricing.RewardPointsPolicy{
			ExchangeRate: cfg.RewardPointsExchangeRate,
			RoundDown:    cfg.RewardPointsRoundDown,
		},
	}
}

func orderSettings(cfg config.Config) orders.Settings {
	return orders.Settings{
		PrimaryCurrency:            cfg.Pricing.Currency,
		MinOrderTotal:              cfg.Orders.MinOrderTotal,
		MaxOrderTotal:              cfg.Orders.MaxOrderTotal,
		GiftCardActivationStatus:   domain.OrderStatus(cfg.Orders.GiftCardActivationStatus),
		GiftCardDeactivationStatus: domain.OrderStatus(cfg.Orders.GiftCardDeactivationStatus),
		RewardPointsAwardStatus:    domain.OrderStatus(cfg.Orders.RewardPointsAwardStatus),
		RewardPointsClawbackStatus: domain.OrderStatus(cfg.Orders.RewardPointsClawbackStatus),
		RecurringMaxFailures:       cfg.Orders.RecurringMaxFailures,
		RewardPoints: pricing.RewardPointsPolicy{
			ExchangeRate: cfg.Pricing.RewardPointsExchangeRate,
			RoundDown:    cfg.Pricing.RewardPointsRoundDown,
		},
	}
}
