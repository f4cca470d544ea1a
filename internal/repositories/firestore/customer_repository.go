package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
)

const (
	customersCollection          = "customers"
	balanceAdjustmentsCollection = "balanceAdjustments"
)

// balanceAdjustmentDocument is an append-only audit entry written alongside
// every reward point or credit balance change.
type balanceAdjustmentDocument struct {
	CustomerID  string    `firestore:"customerId"`
	Kind        string    `firestore:"kind"`
	PointsDelta int       `firestore:"pointsDelta,omitempty"`
	AmountDelta string    `firestore:"amountDelta,omitempty"`
	Reason      string    `firestore:"reason,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// CustomerRepository implements repositories.CustomerRepository backed by Firestore.
type CustomerRepository struct {
	provider  *pfirestore.Provider
	customers *pfirestore.BaseRepository[customerDocument]
	now       func() time.Time
}

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{
		provider:  provider,
		customers: pfirestore.NewBaseRepository[customerDocument](provider, customersCollection, nil, nil),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// FindByID fetches one customer by id.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	ref, err := r.customers.DocumentRef(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	snap, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Customer{}, pfirestore.WrapError("customers.get", err)
	}
	var doc customerDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Customer{}, pfirestore.WrapError("customers.decode", err)
	}
	return customerFromDocument(snap.Ref.ID, doc), nil
}

// Update overwrites the customer document with the given state.
func (r *CustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	ref, err := r.customers.DocumentRef(ctx, customer.ID)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, customerToDocument(customer)); err != nil {
		return pfirestore.WrapError("customers.update", err)
	}
	return nil
}

// AdjustRewardPoints atomically changes the reward point balance by delta and
// returns the new balance. Deductions below zero are rejected.
func (r *CustomerRepository) AdjustRewardPoints(ctx context.Context, customerID string, delta int, reason string) (int, error) {
	if strings.TrimSpace(customerID) == "" {
		return 0, errors.New("customer id is required")
	}

	var newBalance int
	err := r.runAtomic(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.customers.DocumentRef(ctx, customerID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc customerDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore customers decode %s: %w", customerID, err)
		}

		balance := doc.RewardPointsBalance + delta
		if balance < 0 {
			return fmt.Errorf("reward points balance of %s cannot go below zero (have %d, delta %d)",
				customerID, doc.RewardPointsBalance, delta)
		}

		if err := tx.Update(ref, []firestore.Update{{Path: "rewardPointsBalance", Value: balance}}); err != nil {
			return err
		}
		if err := r.appendAdjustment(ctx, tx, balanceAdjustmentDocument{
			CustomerID:  customerID,
			Kind:        "reward_points",
			PointsDelta: delta,
			Reason:      reason,
			CreatedAt:   r.now(),
		}); err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, pfirestore.WrapError("customers.adjust_reward_points", err)
	}
	return newBalance, nil
}

// AdjustCreditBalance atomically changes the store credit balance by delta and
// returns the new balance. Deductions below zero are rejected.
func (r *CustomerRepository) AdjustCreditBalance(ctx context.Context, customerID string, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	if strings.TrimSpace(customerID) == "" {
		return decimal.Zero, errors.New("customer id is required")
	}

	var newBalance decimal.Decimal
	err := r.runAtomic(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.customers.DocumentRef(ctx, customerID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc customerDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore customers decode %s: %w", customerID, err)
		}

		balance := parseDec(doc.CreditBalance).Add(delta)
		if balance.IsNegative() {
			return fmt.Errorf("credit balance of %s cannot go below zero (have %s, delta %s)",
				customerID, doc.CreditBalance, delta)
		}

		if err := tx.Update(ref, []firestore.Update{{Path: "creditBalance", Value: decString(balance)}}); err != nil {
			return err
		}
		if err := r.appendAdjustment(ctx, tx, balanceAdjustmentDocument{
			CustomerID:  customerID,
			Kind:        "credit_balance",
			AmountDelta: decString(delta),
			Reason:      reason,
			CreatedAt:   r.now(),
		}); err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return decimal.Zero, pfirestore.WrapError("customers.adjust_credit_balance", err)
	}
	return newBalance, nil
}

// runAtomic joins the transaction already carried by the context, or starts a
// fresh one when called outside a unit of work.
func (r *CustomerRepository) runAtomic(ctx context.Context, fn pfirestore.TxFunc) error {
	if tx := pfirestore.TxFrom(ctx); tx != nil {
		return fn(ctx, tx)
	}
	return r.provider.RunTransaction(ctx, fn)
}

func (r *CustomerRepository) appendAdjustment(ctx context.Context, tx *firestore.Transaction, doc balanceAdjustmentDocument) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(balanceAdjustmentsCollection).NewDoc()
	return tx.Create(ref, doc)
}
