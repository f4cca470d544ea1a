package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/northcart/commerce/internal/domain"
	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
	"github.com/northcart/commerce/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository implements repositories.OrderRepository backed by Firestore.
// The order aggregate (items, notes, shipments) is stored as one document.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates the order document, failing when the id already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the order document with the given state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches one order by id, soft-deleted orders included.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	ref, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	snap, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.decode", err)
	}
	return orderFromDocument(snap.Ref.ID, doc), nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("customerId", "==", customerID)
		if filter.Status != nil {
			q = q.Where("orderStatus", "==", string(*filter.Status))
		}
		if filter.PaymentStatus != nil {
			q = q.Where("paymentStatus", "==", string(*filter.PaymentStatus))
		}
		if !filter.IncludeDeleted {
			q = q.Where("deleted", "==", false)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.CreatedBefore != nil {
			q = q.StartAfter(filter.CreatedBefore.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

// AddNote appends an audit note to the order without rewriting the aggregate.
func (r *OrderRepository) AddNote(ctx context.Context, orderID string, note domain.OrderNote) error {
	ref, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	entry := orderNoteDocument{ID: note.ID, Text: note.Text, CreatedAt: note.CreatedAt}
	updates := []firestore.Update{
		{Path: "notes", Value: firestore.ArrayUnion(entry)},
		{Path: "updatedAt", Value: note.CreatedAt.UTC()},
	}
	if err := updateDoc(ctx, ref, updates); err != nil {
		return pfirestore.WrapError("orders.add_note", err)
	}
	return nil
}

// SoftDelete flags the order as deleted without removing the document.
func (r *OrderRepository) SoftDelete(ctx context.Context, orderID string, deletedAt time.Time) error {
	ref, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "deleted", Value: true},
		{Path: "updatedAt", Value: deletedAt.UTC()},
	}
	if err := updateDoc(ctx, ref, updates); err != nil {
		return pfirestore.WrapError("orders.soft_delete", err)
	}
	return nil
}
