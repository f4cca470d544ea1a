package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/northcart/commerce/internal/domain"
	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
)

const recurringPaymentsCollection = "recurringPayments"

// RecurringPaymentRepository implements repositories.RecurringPaymentRepository
// backed by Firestore. NextCycleAt is denormalised into the document so due
// schedules can be queried directly.
type RecurringPaymentRepository struct {
	provider *pfirestore.Provider
	payments *pfirestore.BaseRepository[recurringPaymentDocument]
}

// NewRecurringPaymentRepository constructs a Firestore-backed recurring payment repository.
func NewRecurringPaymentRepository(provider *pfirestore.Provider) (*RecurringPaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("recurring payment repository requires firestore provider")
	}
	return &RecurringPaymentRepository{
		provider: provider,
		payments: pfirestore.NewBaseRepository[recurringPaymentDocument](provider, recurringPaymentsCollection, nil, nil),
	}, nil
}

// Insert creates the schedule document, failing when the id already exists.
func (r *RecurringPaymentRepository) Insert(ctx context.Context, payment domain.RecurringPayment) error {
	ref, err := r.payments.DocumentRef(ctx, payment.ID)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, recurringToDocument(payment)); err != nil {
		return pfirestore.WrapError("recurring_payments.insert", err)
	}
	return nil
}

// Update overwrites the schedule document, recomputing the denormalised next
// cycle timestamp.
func (r *RecurringPaymentRepository) Update(ctx context.Context, payment domain.RecurringPayment) error {
	ref, err := r.payments.DocumentRef(ctx, payment.ID)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, recurringToDocument(payment)); err != nil {
		return pfirestore.WrapError("recurring_payments.update", err)
	}
	return nil
}

// FindByID fetches one schedule by id.
func (r *RecurringPaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.RecurringPayment, error) {
	ref, err := r.payments.DocumentRef(ctx, paymentID)
	if err != nil {
		return domain.RecurringPayment{}, err
	}
	snap, err := getDoc(ctx, ref)
	if err != nil {
		return domain.RecurringPayment{}, pfirestore.WrapError("recurring_payments.get", err)
	}
	var doc recurringPaymentDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.RecurringPayment{}, pfirestore.WrapError("recurring_payments.decode", err)
	}
	return recurringFromDocument(snap.Ref.ID, doc), nil
}

// FindByInitialOrder finds the schedule created from the given initial order.
func (r *RecurringPaymentRepository) FindByInitialOrder(ctx context.Context, orderID string) (domain.RecurringPayment, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.RecurringPayment{}, errors.New("order id is required")
	}
	docs, err := r.payments.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("initialOrderId", "==", orderID).Limit(1)
	})
	if err != nil {
		return domain.RecurringPayment{}, err
	}
	if len(docs) == 0 {
		return domain.RecurringPayment{}, pfirestore.WrapError("recurring_payments.find_by_initial_order", notFound("recurring payment"))
	}
	return recurringFromDocument(docs[0].ID, docs[0].Data), nil
}

// ListDue returns active schedules whose next cycle is at or before the given
// instant, oldest first.
func (r *RecurringPaymentRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.RecurringPayment, error) {
	docs, err := r.payments.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("active", "==", true).
			Where("nextCycleAt", "<=", before.UTC()).
			OrderBy("nextCycleAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	payments := make([]domain.RecurringPayment, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, recurringFromDocument(doc.ID, doc.Data))
	}
	return payments, nil
}
