package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	"github.com/northcart/commerce/internal/domain"
	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
)

const cartsCollection = "carts"

// CartRepository implements repositories.CartRepository backed by Firestore.
type CartRepository struct {
	provider *pfirestore.Provider
	carts    *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		carts:    pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

// Save upserts the cart, assigning an id when the cart is new.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if strings.TrimSpace(cart.CustomerID) == "" {
		return domain.Cart{}, errors.New("cart customer id is required")
	}
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = ulid.Make().String()
	}

	ref, err := r.carts.DocumentRef(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := setDoc(ctx, ref, cartToDocument(cart)); err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.save", err)
	}
	return cart, nil
}

// FindByID fetches one cart by its document id.
func (r *CartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	ref, err := r.carts.DocumentRef(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	snap, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.get", err)
	}
	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.decode", err)
	}
	return cartFromDocument(snap.Ref.ID, doc), nil
}

// FindByCustomer returns the customer's current cart. At most one cart per
// customer is expected; the most recently updated wins otherwise.
func (r *CartRepository) FindByCustomer(ctx context.Context, customerID string) (domain.Cart, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Cart{}, errors.New("customer id is required")
	}
	docs, err := r.carts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID).
			OrderBy("updatedAt", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(docs) == 0 {
		return domain.Cart{}, pfirestore.WrapError("carts.find_by_customer", notFound("cart"))
	}
	return cartFromDocument(docs[0].ID, docs[0].Data), nil
}

// Delete removes the cart document.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	ref, err := r.carts.DocumentRef(ctx, cartID)
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, ref); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}
