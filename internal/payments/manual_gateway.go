package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/northcart/commerce/internal/domain"
)

// ManualTransactMode decides the payment status a manual charge lands in.
type ManualTransactMode string

const (
	// ManualTransactPending leaves the order awaiting an out-of-band payment.
	ManualTransactPending ManualTransactMode = "pending"
	// ManualTransactAuthorize marks the order authorized for later capture.
	ManualTransactAuthorize ManualTransactMode = "authorize"
	// ManualTransactPaid marks the order paid immediately.
	ManualTransactPaid ManualTransactMode = "paid"
)

// ManualGatewayConfig configures the offline gateway.
type ManualGatewayConfig struct {
	SystemName   string
	TransactMode ManualTransactMode
	Logger       func(ctx context.Context, event string, fields map[string]any)
	Clock        func() time.Time
}

// ManualGateway processes payments outside the system (bank transfer, cash on
// delivery). It never talks to a processor; transactions get locally minted
// identifiers so downstream bookkeeping stays uniform.
type ManualGateway struct {
	systemName string
	mode       ManualTransactMode
	logger     func(ctx context.Context, event string, fields map[string]any)
	clock      func() time.Time
}

// NewManualGateway constructs the offline gateway.
func NewManualGateway(cfg ManualGatewayConfig) (*ManualGateway, error) {
	if cfg.SystemName == "" {
		cfg.SystemName = "payments.manual"
	}
	switch cfg.TransactMode {
	case "":
		cfg.TransactMode = ManualTransactPending
	case ManualTransactPending, ManualTransactAuthorize, ManualTransactPaid:
	default:
		return nil, errors.New("payments: invalid manual transact mode")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ManualGateway{
		systemName: cfg.SystemName,
		mode:       cfg.TransactMode,
		logger:     logger,
		clock:      func() time.Time { return clock().UTC() },
	}, nil
}

func (g *ManualGateway) SystemName() string { return g.systemName }

// Process records the charge locally according to the transact mode.
func (g *ManualGateway) Process(ctx context.Context, req ProcessRequest) (Result, error) {
	result := Result{Outcome: OutcomeApproved}
	switch g.mode {
	case ManualTransactAuthorize:
		result.PaymentStatus = domain.PaymentStatusAuthorized
		result.AuthorizationTransactionID = uuid.NewString()
	case ManualTransactPaid:
		result.PaymentStatus = domain.PaymentStatusPaid
		result.CaptureTransactionID = uuid.NewString()
	default:
		result.PaymentStatus = domain.PaymentStatusPending
	}
	g.logger(ctx, "payments.manual.processed", map[string]any{
		"orderId": req.OrderID,
		"mode":    string(g.mode),
		"status":  string(result.PaymentStatus),
	})
	return result, nil
}

// ProcessRecurring repeats the initial charge locally for the next cycle.
func (g *ManualGateway) ProcessRecurring(ctx context.Context, req RecurringProcessRequest) (Result, error) {
	result, err := g.Process(ctx, ProcessRequest{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		return Result{}, err
	}
	result.SubscriptionTransactionID = req.SubscriptionTransactionID
	return result, nil
}

// Capture is not available; manual settlement happens out of band via the
// offline order operations.
func (g *ManualGateway) Capture(context.Context, CaptureRequest) (Result, error) {
	return Result{}, ErrOperationNotSupported
}

// Refund is not available through the gateway.
func (g *ManualGateway) Refund(context.Context, RefundRequest) (Result, error) {
	return Result{}, ErrOperationNotSupported
}

// Void is not available through the gateway.
func (g *ManualGateway) Void(context.Context, VoidRequest) (Result, error) {
	return Result{}, ErrOperationNotSupported
}

func (g *ManualGateway) SupportsCapture() bool       { return false }
func (g *ManualGateway) SupportsRefund() bool        { return false }
func (g *ManualGateway) SupportsPartialRefund() bool { return false }
func (g *ManualGateway) SupportsVoid() bool          { return false }

// RecurringSupport is manual: the store triggers every follow-up cycle.
func (g *ManualGateway) RecurringSupport() RecurringSupport { return RecurringManual }
