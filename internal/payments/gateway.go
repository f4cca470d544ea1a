// Package payments defines the gateway contract payment methods implement and
// the manager that routes payment operations to the configured method.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

var (
	// ErrUnsupportedMethod is returned when no gateway is registered under the
	// requested system name.
	ErrUnsupportedMethod = errors.New("payments: unsupported payment method")
	// ErrOperationNotSupported is returned when a gateway does not implement
	// the requested operation.
	ErrOperationNotSupported = errors.New("payments: operation not supported by gateway")
)

// Outcome tags a gateway result. A Declined result is a normal domain
// response (card refused, insufficient funds) and never an error; errors are
// reserved for transport and gateway faults.
type Outcome string

const (
	// OutcomeApproved means the gateway accepted the operation.
	OutcomeApproved Outcome = "approved"
	// OutcomeDeclined means the gateway processed the request and refused it.
	OutcomeDeclined Outcome = "declined"
)

// Result is the normalized response of any gateway operation.
type Result struct {
	Outcome       Outcome
	PaymentStatus domain.PaymentStatus

	// AuthorizationTransactionID and CaptureTransactionID mirror what the
	// gateway returned for this operation; unset fields keep their previous
	// order values.
	AuthorizationTransactionID string
	CaptureTransactionID       string
	SubscriptionTransactionID  string

	// DeclineReasons carries gateway messages for a declined outcome.
	DeclineReasons []string

	Raw map[string]any
}

// Approved reports whether the gateway accepted the operation.
func (r Result) Approved() bool { return r.Outcome == OutcomeApproved }

// RecurringSupport enumerates how a gateway handles recurring payments.
type RecurringSupport string

const (
	// RecurringNotSupported means the gateway cannot charge follow-up cycles.
	RecurringNotSupported RecurringSupport = "not_supported"
	// RecurringManual means the store triggers each cycle through the gateway.
	RecurringManual RecurringSupport = "manual"
	// RecurringAutomatic means the gateway schedules cycles on its own.
	RecurringAutomatic RecurringSupport = "automatic"
)

// ProcessRequest describes the initial charge for an order.
type ProcessRequest struct {
	OrderID        string
	CustomerID     string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// RecurringProcessRequest charges a follow-up cycle of a recurring order.
type RecurringProcessRequest struct {
	InitialOrderID             string
	OrderID                    string
	CustomerID                 string
	Amount                     decimal.Decimal
	Currency                   string
	AuthorizationTransactionID string
	SubscriptionTransactionID  string
	IdempotencyKey             string
}

// CaptureRequest settles a previously authorized charge.
type CaptureRequest struct {
	OrderID                    string
	AuthorizationTransactionID string
	Amount                     decimal.Decimal
	Currency                   string
	IdempotencyKey             string
}

// RefundRequest returns money for a captured charge, possibly partially.
type RefundRequest struct {
	OrderID              string
	CaptureTransactionID string
	Amount               decimal.Decimal
	Currency             string
	IsPartial            bool
	Reason               string
	IdempotencyKey       string
}

// VoidRequest cancels an authorization that was never captured.
type VoidRequest struct {
	OrderID                    string
	AuthorizationTransactionID string
	IdempotencyKey             string
}

// Gateway is the contract a payment method implements. Operations return a
// tagged Result for domain responses and an error only for faults.
type Gateway interface {
	SystemName() string

	Process(ctx context.Context, req ProcessRequest) (Result, error)
	ProcessRecurring(ctx context.Context, req RecurringProcessRequest) (Result, error)
	Capture(ctx context.Context, req CaptureRequest) (Result, error)
	Refund(ctx context.Context, req RefundRequest) (Result, error)
	Void(ctx context.Context, req VoidRequest) (Result, error)

	SupportsCapture() bool
	SupportsRefund() bool
	SupportsPartialRefund() bool
	SupportsVoid() bool
	RecurringSupport() RecurringSupport
}

func approved(status domain.PaymentStatus) Result {
	return Result{Outcome: OutcomeApproved, PaymentStatus: status}
}

func declined(reasons ...string) Result {
	return Result{Outcome: OutcomeDeclined, DeclineReasons: reasons}
}
