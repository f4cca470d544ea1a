package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
	"github.com/northcart/commerce/internal/repositories"
)

// Registry bundles the Firestore-backed repository implementations behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	carts         *CartRepository
	customers     *CustomerRepository
	orders        *OrderRepository
	giftCards     *GiftCardRepository
	discountUsage *DiscountUsageRepository
	recurring     *RecurringPaymentRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the full repository set on a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("cart repository: %w", err)
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("customer repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}
	giftCards, err := NewGiftCardRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("gift card repository: %w", err)
	}
	discountUsage, err := NewDiscountUsageRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("discount usage repository: %w", err)
	}
	recurring, err := NewRecurringPaymentRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("recurring payment repository: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("counter repository: %w", err)
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("health repository: %w", err)
	}

	return &Registry{
		provider:      provider,
		carts:         carts,
		customers:     customers,
		orders:        orders,
		giftCards:     giftCards,
		discountUsage: discountUsage,
		recurring:     recurring,
		counters:      counters,
		health:        health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Customers returns the customer repository.
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// GiftCards returns the gift card repository.
func (r *Registry) GiftCards() repositories.GiftCardRepository { return r.giftCards }

// DiscountUsage returns the discount usage repository.
func (r *Registry) DiscountUsage() repositories.DiscountUsageRepository { return r.discountUsage }

// RecurringPayments returns the recurring payment repository.
func (r *Registry) RecurringPayments() repositories.RecurringPaymentRepository { return r.recurring }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the readiness probe repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside one Firestore transaction. Repository calls made
// with the derived context join the transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("transaction function is required")
	}
	if pfirestore.TxFrom(ctx) != nil {
		return fn(ctx)
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(pfirestore.WithTx(ctx, tx))
	})
}
