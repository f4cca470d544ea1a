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

const (
	giftCardsCollection     = "giftCards"
	giftCardUsageCollection = "giftCardUsage"
)

// GiftCardRepository implements repositories.GiftCardRepository backed by Firestore.
type GiftCardRepository struct {
	provider *pfirestore.Provider
	cards    *pfirestore.BaseRepository[giftCardDocument]
	usage    *pfirestore.BaseRepository[giftCardUsageDocument]
}

// NewGiftCardRepository constructs a Firestore-backed gift card repository.
func NewGiftCardRepository(provider *pfirestore.Provider) (*GiftCardRepository, error) {
	if provider == nil {
		return nil, errors.New("gift card repository requires firestore provider")
	}
	return &GiftCardRepository{
		provider: provider,
		cards:    pfirestore.NewBaseRepository[giftCardDocument](provider, giftCardsCollection, nil, nil),
		usage:    pfirestore.NewBaseRepository[giftCardUsageDocument](provider, giftCardUsageCollection, nil, nil),
	}, nil
}

// Insert creates the gift card document, failing when the id already exists.
func (r *GiftCardRepository) Insert(ctx context.Context, card domain.GiftCard) error {
	if strings.TrimSpace(card.Code) == "" {
		return errors.New("gift card code is required")
	}
	ref, err := r.cards.DocumentRef(ctx, card.ID)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, giftCardToDocument(card)); err != nil {
		return pfirestore.WrapError("gift_cards.insert", err)
	}
	return nil
}

// Update overwrites the gift card document with the given state.
func (r *GiftCardRepository) Update(ctx context.Context, card domain.GiftCard) error {
	ref, err := r.cards.DocumentRef(ctx, card.ID)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, giftCardToDocument(card)); err != nil {
		return pfirestore.WrapError("gift_cards.update", err)
	}
	return nil
}

// FindByID fetches one gift card by id.
func (r *GiftCardRepository) FindByID(ctx context.Context, cardID string) (domain.GiftCard, error) {
	ref, err := r.cards.DocumentRef(ctx, cardID)
	if err != nil {
		return domain.GiftCard{}, err
	}
	snap, err := getDoc(ctx, ref)
	if err != nil {
		return domain.GiftCard{}, pfirestore.WrapError("gift_cards.get", err)
	}
	var doc giftCardDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.GiftCard{}, pfirestore.WrapError("gift_cards.decode", err)
	}
	return giftCardFromDocument(snap.Ref.ID, doc), nil
}

// FindByCode looks a gift card up by its redemption code.
func (r *GiftCardRepository) FindByCode(ctx context.Context, code string) (domain.GiftCard, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return domain.GiftCard{}, errors.New("gift card code is required")
	}
	docs, err := r.cards.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.GiftCard{}, err
	}
	if len(docs) == 0 {
		return domain.GiftCard{}, pfirestore.WrapError("gift_cards.find_by_code", notFound("gift card"))
	}
	return giftCardFromDocument(docs[0].ID, docs[0].Data), nil
}

// ListUsableByCustomer returns the customer's active cards with a positive
// remaining value, most recently issued first.
func (r *GiftCardRepository) ListUsableByCustomer(ctx context.Context, customerID string) ([]domain.GiftCard, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	docs, err := r.cards.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID).
			Where("active", "==", true).
			OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	var cards []domain.GiftCard
	for _, doc := range docs {
		card := giftCardFromDocument(doc.ID, doc.Data)
		if card.RemainingValue.IsPositive() {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

// ListByPurchasedWithOrderItem finds cards issued when any of the given order
// items was purchased.
func (r *GiftCardRepository) ListByPurchasedWithOrderItem(ctx context.Context, orderItemIDs []string) ([]domain.GiftCard, error) {
	ids := make([]string, 0, len(orderItemIDs))
	for _, id := range orderItemIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	docs, err := r.cards.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("purchasedWithOrderItemId", "in", ids)
	})
	if err != nil {
		return nil, err
	}

	cards := make([]domain.GiftCard, 0, len(docs))
	for _, doc := range docs {
		cards = append(cards, giftCardFromDocument(doc.ID, doc.Data))
	}
	return cards, nil
}

// RecordUsage appends a debit entry for the card.
func (r *GiftCardRepository) RecordUsage(ctx context.Context, usage domain.GiftCardUsage) error {
	id := strings.TrimSpace(usage.ID)
	if id == "" {
		id = ulid.Make().String()
	}
	ref, err := r.usage.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := giftCardUsageDocument{
		GiftCardID: usage.GiftCardID,
		OrderID:    usage.OrderID,
		Amount:     decString(usage.Amount),
		CreatedAt:  usage.CreatedAt.UTC(),
	}
	if err := createDoc(ctx, ref, doc); err != nil {
		return pfirestore.WrapError("gift_cards.record_usage", err)
	}
	return nil
}
