package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCurrency               = "USD"
	defaultMinOrderInterval       = time.Minute
	defaultRecurringRetryInterval = 24 * time.Hour
	defaultRecurringMaxFailures   = 3
	defaultMaxWarnings            = 10
	defaultEventsTopic            = "commerce-order-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Payments  PaymentsConfig
	Pricing   PricingConfig
	Checkout  CheckoutConfig
	Orders    OrdersConfig
	Auth      AuthConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topic order events are published to.
type PubSubConfig struct {
	ProjectID   string
	EventsTopic string
}

// PaymentsConfig collects gateway credentials and behaviour toggles.
type PaymentsConfig struct {
	StripeAPIKey        string
	StripeAccountID     string
	StripeAuthorizeOnly bool
	StripeWebhookSecret string
	ManualTransactMode  string
}

// PricingConfig carries the store-level calculation policy.
type PricingConfig struct {
	Currency        string
	RoundUnitPrices bool

	FreeShippingOverAmountEnabled bool
	FreeShippingOverAmount        decimal.Decimal
	AdditionalShippingCharge      decimal.Decimal

	AncillaryTaxPolicy     string
	SpecifiedTaxCategoryID string

	RoundTotalDenomination decimal.Decimal

	RewardPointsExchangeRate decimal.Decimal
	RewardPointsRoundDown    bool

	// DefaultTaxRate covers tax categories without an explicit rate.
	DefaultTaxRate decimal.Decimal

	// FlatShippingMethodName and FlatShippingRate configure the built-in
	// flat-rate shipping method.
	FlatShippingMethodName string
	FlatShippingRate       decimal.Decimal
}

// CheckoutConfig controls checkout flow behaviour.
type CheckoutConfig struct {
	QuickCheckoutEnabled bool
	// OnePageCheckout collapses the flow to the final confirmation step.
	OnePageCheckout           bool
	AnonymousCheckoutAllowed  bool
	MinOrderPlacementInterval time.Duration
	// MaxValidationWarnings caps the warnings surfaced by a single checkout
	// step validation.
	MaxValidationWarnings int
}

// OrdersConfig controls order lifecycle behaviour.
type OrdersConfig struct {
	// GiftCardActivationStatus and GiftCardDeactivationStatus name the order
	// statuses that flip purchased gift cards on and off. Empty disables the
	// trigger.
	GiftCardActivationStatus   string
	GiftCardDeactivationStatus string

	// RewardPointsAwardStatus and RewardPointsClawbackStatus work the same
	// way for the points earned on an order.
	RewardPointsAwardStatus    string
	RewardPointsClawbackStatus string

	RecurringRetryInterval time.Duration
	RecurringMaxFailures   int

	// MinOrderTotal and MaxOrderTotal bound the placeable order total. Zero
	// disables the respective bound.
	MinOrderTotal decimal.Decimal
	MaxOrderTotal decimal.Decimal
}

// AuthConfig holds credential verification settings.
type AuthConfig struct {
	// TokenSecret verifies customer bearer tokens (HS256). Empty disables
	// authenticated routes.
	TokenSecret string
	TokenIssuer string

	// InternalHMACSecret signs scheduler calls on internal routes.
	InternalHMACSecret string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "COMMERCE_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "COMMERCE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "COMMERCE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "COMMERCE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "COMMERCE_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "COMMERCE_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:   stringWithDefault(lookup, "COMMERCE_PUBSUB_PROJECT_ID", ""),
			EventsTopic: stringWithDefault(lookup, "COMMERCE_PUBSUB_EVENTS_TOPIC", defaultEventsTopic),
		},
		Payments: PaymentsConfig{
			StripeAPIKey:        stringWithDefault(lookup, "COMMERCE_STRIPE_API_KEY", ""),
			StripeAccountID:     stringWithDefault(lookup, "COMMERCE_STRIPE_ACCOUNT_ID", ""),
			StripeAuthorizeOnly: boolWithDefault(lookup, "COMMERCE_STRIPE_AUTHORIZE_ONLY", false),
			StripeWebhookSecret: stringWithDefault(lookup, "COMMERCE_STRIPE_WEBHOOK_SECRET", ""),
			ManualTransactMode:  stringWithDefault(lookup, "COMMERCE_MANUAL_TRANSACT_MODE", "pending"),
		},
		Pricing: PricingConfig{
			Currency:                      strings.ToUpper(stringWithDefault(lookup, "COMMERCE_PRICING_CURRENCY", defaultCurrency)),
			RoundUnitPrices:               boolWithDefault(lookup, "COMMERCE_PRICING_ROUND_UNIT_PRICES", false),
			FreeShippingOverAmountEnabled: boolWithDefault(lookup, "COMMERCE_PRICING_FREE_SHIPPING_ENABLED", false),
			FreeShippingOverAmount:        decimalWithDefault(lookup, "COMMERCE_PRICING_FREE_SHIPPING_OVER", decimal.Zero),
			AdditionalShippingCharge:      decimalWithDefault(lookup, "COMMERCE_PRICING_ADDITIONAL_SHIPPING_CHARGE", decimal.Zero),
			AncillaryTaxPolicy:            stringWithDefault(lookup, "COMMERCE_PRICING_ANCILLARY_TAX_POLICY", "highest_cart_amount"),
			SpecifiedTaxCategoryID:        stringWithDefault(lookup, "COMMERCE_PRICING_ANCILLARY_TAX_CATEGORY", ""),
			RoundTotalDenomination:        decimalWithDefault(lookup, "COMMERCE_PRICING_ROUND_TOTAL_DENOMINATION", decimal.Zero),
			RewardPointsExchangeRate:      decimalWithDefault(lookup, "COMMERCE_REWARD_POINTS_EXCHANGE_RATE", decimal.Zero),
			RewardPointsRoundDown:         boolWithDefault(lookup, "COMMERCE_REWARD_POINTS_ROUND_DOWN", false),
			DefaultTaxRate:                decimalWithDefault(lookup, "COMMERCE_PRICING_DEFAULT_TAX_RATE", decimal.Zero),
			FlatShippingMethodName:        stringWithDefault(lookup, "COMMERCE_SHIPPING_METHOD_NAME", "shipping.flat_rate"),
			FlatShippingRate:              decimalWithDefault(lookup, "COMMERCE_SHIPPING_FLAT_RATE", decimal.Zero),
		},
		Checkout: CheckoutConfig{
			QuickCheckoutEnabled:      boolWithDefault(lookup, "COMMERCE_CHECKOUT_QUICK_ENABLED", false),
			OnePageCheckout:           boolWithDefault(lookup, "COMMERCE_CHECKOUT_ONE_PAGE", false),
			AnonymousCheckoutAllowed:  boolWithDefault(lookup, "COMMERCE_CHECKOUT_ANONYMOUS_ALLOWED", true),
			MinOrderPlacementInterval: durationWithDefault(lookup, "COMMERCE_CHECKOUT_MIN_ORDER_INTERVAL", defaultMinOrderInterval),
			MaxValidationWarnings:     intWithDefault(lookup, "COMMERCE_CHECKOUT_MAX_WARNINGS", defaultMaxWarnings),
		},
		Orders: OrdersConfig{
			GiftCardActivationStatus:   stringWithDefault(lookup, "COMMERCE_ORDERS_GIFTCARD_ACTIVATION_STATUS", "complete"),
			GiftCardDeactivationStatus: stringWithDefault(lookup, "COMMERCE_ORDERS_GIFTCARD_DEACTIVATION_STATUS", "cancelled"),
			RewardPointsAwardStatus:    stringWithDefault(lookup, "COMMERCE_ORDERS_REWARD_AWARD_STATUS", "complete"),
			RewardPointsClawbackStatus: stringWithDefault(lookup, "COMMERCE_ORDERS_REWARD_CLAWBACK_STATUS", "cancelled"),
			RecurringRetryInterval:     durationWithDefault(lookup, "COMMERCE_ORDERS_RECURRING_RETRY_INTERVAL", defaultRecurringRetryInterval),
			RecurringMaxFailures:       intWithDefault(lookup, "COMMERCE_ORDERS_RECURRING_MAX_FAILURES", defaultRecurringMaxFailures),
			MinOrderTotal:              decimalWithDefault(lookup, "COMMERCE_ORDERS_MIN_TOTAL", decimal.Zero),
			MaxOrderTotal:              decimalWithDefault(lookup, "COMMERCE_ORDERS_MAX_TOTAL", decimal.Zero),
		},
		Auth: AuthConfig{
			TokenSecret:        stringWithDefault(lookup, "COMMERCE_AUTH_TOKEN_SECRET", ""),
			TokenIssuer:        stringWithDefault(lookup, "COMMERCE_AUTH_TOKEN_ISSUER", ""),
			InternalHMACSecret: stringWithDefault(lookup, "COMMERCE_AUTH_INTERNAL_HMAC_SECRET", ""),
		},
	}

	// PubSub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	// Resolve credentials when values reference a secret store.
	for _, slot := range []*string{&cfg.Payments.StripeAPIKey, &cfg.Payments.StripeWebhookSecret, &cfg.Auth.TokenSecret, &cfg.Auth.InternalHMACSecret} {
		resolved, err := resolveSecret(ctx, *slot, options.secret)
		if err != nil {
			return Config{}, err
		}
		*slot = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Pricing.Currency == "" {
		missing = append(missing, "Pricing.Currency")
	}
	switch cfg.Pricing.AncillaryTaxPolicy {
	case "highest_cart_amount", "highest_tax_rate":
	case "specified_category":
		if cfg.Pricing.SpecifiedTaxCategoryID == "" {
			missing = append(missing, "Pricing.SpecifiedTaxCategoryID")
		}
	default:
		missing = append(missing, "Pricing.AncillaryTaxPolicy")
	}
	if cfg.Orders.RecurringMaxFailures <= 0 {
		missing = append(missing, "Orders.RecurringMaxFailures")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func decimalWithDefault(lookup func(string) (string, bool), key string, fallback decimal.Decimal) decimal.Decimal {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return fallback
}
