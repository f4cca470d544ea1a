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

const discountUsageCollection = "discountUsage"

// DiscountUsageRepository implements repositories.DiscountUsageRepository
// backed by Firestore.
type DiscountUsageRepository struct {
	provider *pfirestore.Provider
	usage    *pfirestore.BaseRepository[discountUsageDocument]
}

// NewDiscountUsageRepository constructs a Firestore-backed discount usage repository.
func NewDiscountUsageRepository(provider *pfirestore.Provider) (*DiscountUsageRepository, error) {
	if provider == nil {
		return nil, errors.New("discount usage repository requires firestore provider")
	}
	return &DiscountUsageRepository{
		provider: provider,
		usage:    pfirestore.NewBaseRepository[discountUsageDocument](provider, discountUsageCollection, nil, nil),
	}, nil
}

// Record appends one redemption entry.
func (r *DiscountUsageRepository) Record(ctx context.Context, usage domain.DiscountUsage) error {
	if strings.TrimSpace(usage.DiscountID) == "" {
		return errors.New("discount id is required")
	}
	id := strings.TrimSpace(usage.ID)
	if id == "" {
		id = ulid.Make().String()
	}
	ref, err := r.usage.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := discountUsageDocument{
		DiscountID: usage.DiscountID,
		OrderID:    usage.OrderID,
		CustomerID: usage.CustomerID,
		CreatedAt:  usage.CreatedAt.UTC(),
	}
	if err := createDoc(ctx, ref, doc); err != nil {
		return pfirestore.WrapError("discount_usage.record", err)
	}
	return nil
}

// CountByDiscount returns how many times the discount was redeemed overall.
func (r *DiscountUsageRepository) CountByDiscount(ctx context.Context, discountID string) (int, error) {
	return r.count(ctx, discountID, "")
}

// CountByDiscountAndCustomer returns how many times one customer redeemed the
// discount.
func (r *DiscountUsageRepository) CountByDiscountAndCustomer(ctx context.Context, discountID, customerID string) (int, error) {
	if strings.TrimSpace(customerID) == "" {
		return 0, errors.New("customer id is required")
	}
	return r.count(ctx, discountID, customerID)
}

func (r *DiscountUsageRepository) count(ctx context.Context, discountID, customerID string) (int, error) {
	if strings.TrimSpace(discountID) == "" {
		return 0, errors.New("discount id is required")
	}
	docs, err := r.usage.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("discountId", "==", discountID)
		if customerID != "" {
			q = q.Where("customerId", "==", customerID)
		}
		return q
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
