package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/money"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
}

// StripeGatewayConfig configures the Stripe gateway.
type StripeGatewayConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends

	// AuthorizeOnly defers capture: charges land authorized and are settled
	// through the capture operation.
	AuthorizeOnly bool

	Logger  func(ctx context.Context, event string, fields map[string]any)
	Clock   func() time.Time
	Clients *stripeClients
}

// StripeGateway implements the Gateway contract on Stripe Payment Intents.
type StripeGateway struct {
	api           stripeClients
	account       string
	authorizeOnly bool
	clock         func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// NewStripeGateway constructs the gateway from configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		api:           clients,
		account:       strings.TrimSpace(cfg.AccountID),
		authorizeOnly: cfg.AuthorizeOnly,
		clock:         func() time.Time { return clock().UTC() },
		logger:        logger,
	}, nil
}

func (g *StripeGateway) SystemName() string { return "payments.stripe" }

// Process creates and confirms a payment intent for the order amount.
func (g *StripeGateway) Process(ctx context.Context, req ProcessRequest) (Result, error) {
	params := g.intentParams(ctx, req.Amount, req.Currency, req.IdempotencyKey, req.Metadata)
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if g.authorizeOnly {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}

	intent, err := g.api.intents.New(params)
	if err != nil {
		return g.classifyError(ctx, "payments.stripe.process", req.OrderID, err)
	}
	g.logger(ctx, "payments.stripe.processed", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
		"status":        string(intent.Status),
	})
	return g.intentResult(intent), nil
}

// ProcessRecurring charges a follow-up cycle off-session against the stored
// customer.
func (g *StripeGateway) ProcessRecurring(ctx context.Context, req RecurringProcessRequest) (Result, error) {
	params := g.intentParams(ctx, req.Amount, req.Currency, req.IdempotencyKey, map[string]string{
		"initial_order_id": req.InitialOrderID,
		"order_id":         req.OrderID,
	})
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.OffSession = stripe.Bool(true)

	intent, err := g.api.intents.New(params)
	if err != nil {
		return g.classifyError(ctx, "payments.stripe.recurring", req.OrderID, err)
	}
	result := g.intentResult(intent)
	result.SubscriptionTransactionID = req.SubscriptionTransactionID
	return result, nil
}

// Capture settles a previously authorized intent.
func (g *StripeGateway) Capture(ctx context.Context, req CaptureRequest) (Result, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	params.AmountToCapture = stripe.Int64(minorUnits(req.Amount, req.Currency))

	intent, err := g.api.intents.Capture(req.AuthorizationTransactionID, params)
	if err != nil {
		return g.classifyError(ctx, "payments.stripe.capture", req.OrderID, err)
	}
	g.logger(ctx, "payments.stripe.captured", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
	})
	result := approved(domain.PaymentStatusPaid)
	result.CaptureTransactionID = intent.ID
	return result, nil
}

// Refund returns money on a captured intent.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.CaptureTransactionID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if req.IsPartial {
		params.Amount = stripe.Int64(minorUnits(req.Amount, req.Currency))
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	if _, err := g.api.refunds.New(params); err != nil {
		return g.classifyError(ctx, "payments.stripe.refund", req.OrderID, err)
	}
	g.logger(ctx, "payments.stripe.refunded", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": req.CaptureTransactionID,
		"partial":       req.IsPartial,
	})
	status := domain.PaymentStatusRefunded
	if req.IsPartial {
		status = domain.PaymentStatusPartiallyRefunded
	}
	return approved(status), nil
}

// Void cancels an authorization that was never captured.
func (g *StripeGateway) Void(ctx context.Context, req VoidRequest) (Result, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}

	intent, err := g.api.intents.Cancel(req.AuthorizationTransactionID, params)
	if err != nil {
		return g.classifyError(ctx, "payments.stripe.void", req.OrderID, err)
	}
	g.logger(ctx, "payments.stripe.voided", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
	})
	return approved(domain.PaymentStatusVoided), nil
}

func (g *StripeGateway) SupportsCapture() bool       { return true }
func (g *StripeGateway) SupportsRefund() bool        { return true }
func (g *StripeGateway) SupportsPartialRefund() bool { return true }
func (g *StripeGateway) SupportsVoid() bool          { return true }

func (g *StripeGateway) RecurringSupport() RecurringSupport { return RecurringManual }

func (g *StripeGateway) intentParams(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string, metadata map[string]string) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(amount, currency)),
		Currency: stripe.String(strings.ToLower(currency)),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if len(metadata) > 0 {
		params.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			params.Metadata[k] = v
		}
	}
	return params
}

// classifyError separates card declines (domain outcome) from gateway faults.
func (g *StripeGateway) classifyError(ctx context.Context, event, orderID string, err error) (Result, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		reason := stripeErr.Msg
		if stripeErr.DeclineCode != "" {
			reason = fmt.Sprintf("%s (%s)", stripeErr.Msg, stripeErr.DeclineCode)
		}
		g.logger(ctx, event+".declined", map[string]any{
			"orderId": orderID,
			"code":    string(stripeErr.Code),
		})
		return declined(reason), nil
	}
	return Result{}, fmt.Errorf("stripe: %s: %w", event, err)
}

func (g *StripeGateway) intentResult(intent *stripe.PaymentIntent) Result {
	if intent == nil {
		return declined("stripe returned no payment intent")
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result := approved(domain.PaymentStatusPaid)
		result.CaptureTransactionID = intent.ID
		return result
	case stripe.PaymentIntentStatusRequiresCapture:
		result := approved(domain.PaymentStatusAuthorized)
		result.AuthorizationTransactionID = intent.ID
		return result
	case stripe.PaymentIntentStatusProcessing:
		result := approved(domain.PaymentStatusPending)
		result.AuthorizationTransactionID = intent.ID
		return result
	default:
		return declined(fmt.Sprintf("payment intent in state %s", intent.Status))
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}

// minorUnits converts a decimal amount into the currency's smallest unit, the
// representation Stripe expects.
func minorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(money.Scale(currency)).Round(0).IntPart()
}
