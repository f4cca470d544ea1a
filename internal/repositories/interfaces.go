// Package repositories declares the persistence contracts the services layer
// depends on. Implementations live in the firestore subpackage.
package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for
// dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Customers() CustomerRepository
	Orders() OrderRepository
	GiftCards() GiftCardRepository
	DiscountUsage() DiscountUsageRepository
	RecurringPayments() RecurringPaymentRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional
// boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository owns shopping cart persistence.
type CartRepository interface {
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	FindByCustomer(ctx context.Context, customerID string) (domain.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// CustomerRepository persists customer checkout state and balances.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) error
	// AdjustRewardPoints changes the balance by delta (negative to deduct)
	// and returns the new balance. The adjustment is atomic.
	AdjustRewardPoints(ctx context.Context, customerID string, delta int, reason string) (int, error)
	// AdjustCreditBalance works like AdjustRewardPoints for store credit.
	AdjustCreditBalance(ctx context.Context, customerID string, delta decimal.Decimal, reason string) (decimal.Decimal, error)
}

// OrderListFilter narrows order queries. CreatedBefore acts as the page
// cursor: only orders created strictly before it are returned.
type OrderListFilter struct {
	Status         *domain.OrderStatus
	PaymentStatus  *domain.PaymentStatus
	IncludeDeleted bool
	CreatedBefore  *time.Time
	Limit          int
}

// OrderRepository persists order aggregates including items, notes and
// shipments.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, filter OrderListFilter) ([]domain.Order, error)
	AddNote(ctx context.Context, orderID string, note domain.OrderNote) error
	// SoftDelete flags the order as deleted without removing the document.
	SoftDelete(ctx context.Context, orderID string, deletedAt time.Time) error
}

// GiftCardRepository persists gift cards and their usage history.
type GiftCardRepository interface {
	Insert(ctx context.Context, card domain.GiftCard) error
	Update(ctx context.Context, card domain.GiftCard) error
	FindByID(ctx context.Context, cardID string) (domain.GiftCard, error)
	FindByCode(ctx context.Context, code string) (domain.GiftCard, error)
	// ListUsableByCustomer returns the customer's active cards with a
	// positive remaining value, most recently issued first.
	ListUsableByCustomer(ctx context.Context, customerID string) ([]domain.GiftCard, error)
	// ListByPurchasedWithOrderItem finds cards issued when an order item was
	// purchased, used by lifecycle activation.
	ListByPurchasedWithOrderItem(ctx context.Context, orderItemIDs []string) ([]domain.GiftCard, error)
	RecordUsage(ctx context.Context, usage domain.GiftCardUsage) error
}

// DiscountUsageRepository records discount redemptions for limit enforcement.
type DiscountUsageRepository interface {
	Record(ctx context.Context, usage domain.DiscountUsage) error
	CountByDiscount(ctx context.Context, discountID string) (int, error)
	CountByDiscountAndCustomer(ctx context.Context, discountID, customerID string) (int, error)
}

// RecurringPaymentRepository persists recurring payment schedules.
type RecurringPaymentRepository interface {
	Insert(ctx context.Context, payment domain.RecurringPayment) error
	Update(ctx context.Context, payment domain.RecurringPayment) error
	FindByID(ctx context.Context, paymentID string) (domain.RecurringPayment, error)
	FindByInitialOrder(ctx context.Context, orderID string) (domain.RecurringPayment, error)
	// ListDue returns active schedules whose next cycle is at or before the
	// given instant.
	ListDue(ctx context.Context, before time.Time, limit int) ([]domain.RecurringPayment, error)
}

// CounterRepository issues monotonically increasing sequence numbers, used
// for customer-facing order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository verifies backend connectivity for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
