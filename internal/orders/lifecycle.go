package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/northcart/commerce/internal/domain"
)

// changeSet is the full set of field mutations and side-effect requests one
// lifecycle evaluation produced. It is computed first, then applied as one
// unit; the decision function itself writes nothing.
type changeSet struct {
	paidAt      *time.Time
	orderStatus *domain.OrderStatus

	notes []string

	notifyCustomerEvent string

	awardRewardPoints    bool
	clawbackRewardPoints bool
	activateGiftCards    bool
	deactivateGiftCards  bool
}

func (c changeSet) empty() bool {
	return c.paidAt == nil && c.orderStatus == nil && len(c.notes) == 0 &&
		c.notifyCustomerEvent == "" &&
		!c.awardRewardPoints && !c.clawbackRewardPoints &&
		!c.activateGiftCards && !c.deactivateGiftCards
}

// deriveChanges evaluates the lifecycle rules against the order as-is. Pure:
// no I/O, no mutation.
func (s *Service) deriveChanges(order domain.Order, now time.Time) changeSet {
	var cs changeSet
	status := order.OrderStatus

	if order.PaymentStatus == domain.PaymentStatusPaid && order.PaidAt == nil {
		stamp := now
		cs.paidAt = &stamp
	}

	if status == domain.OrderStatusPending &&
		(order.PaymentStatus == domain.PaymentStatusAuthorized || order.PaymentStatus == domain.PaymentStatusPaid) {
		status = domain.OrderStatusProcessing
	}
	if status == domain.OrderStatusPending &&
		(order.ShippingStatus == domain.ShippingStatusPartiallyShipped ||
			order.ShippingStatus == domain.ShippingStatusShipped ||
			order.ShippingStatus == domain.ShippingStatusDelivered) {
		status = domain.OrderStatusProcessing
	}
	if status != domain.OrderStatusCancelled && status != domain.OrderStatusComplete &&
		order.PaymentStatus == domain.PaymentStatusPaid &&
		(order.ShippingStatus == domain.ShippingStatusNotRequired ||
			order.ShippingStatus == domain.ShippingStatusDelivered) {
		status = domain.OrderStatusComplete
	}

	if status != order.OrderStatus {
		cs.merge(s.statusChangeSet(order, status))
	}
	return cs
}

// statusChangeSet builds the change set for one genuine status transition,
// including the side effects the configured trigger statuses request.
func (s *Service) statusChangeSet(order domain.Order, target domain.OrderStatus) changeSet {
	cs := changeSet{orderStatus: &target}
	cs.notes = append(cs.notes, fmt.Sprintf("order status changed from %s to %s", order.OrderStatus, target))

	switch target {
	case domain.OrderStatusComplete:
		cs.notifyCustomerEvent = EventOrderCompleted
	case domain.OrderStatusCancelled:
		cs.notifyCustomerEvent = EventOrderCancelled
	}

	if target == s.settings.RewardPointsAwardStatus && !order.RewardPointsWereAdded {
		cs.awardRewardPoints = true
	}
	if target == s.settings.RewardPointsClawbackStatus && order.RewardPointsWereAdded {
		cs.clawbackRewardPoints = true
	}
	if target == s.settings.GiftCardActivationStatus {
		cs.activateGiftCards = true
	}
	if target == s.settings.GiftCardDeactivationStatus {
		cs.deactivateGiftCards = true
	}
	return cs
}

func (c *changeSet) merge(other changeSet) {
	if other.paidAt != nil {
		c.paidAt = other.paidAt
	}
	if other.orderStatus != nil {
		c.orderStatus = other.orderStatus
	}
	c.notes = append(c.notes, other.notes...)
	if other.notifyCustomerEvent != "" {
		c.notifyCustomerEvent = other.notifyCustomerEvent
	}
	c.awardRewardPoints = c.awardRewardPoints || other.awardRewardPoints
	c.clawbackRewardPoints = c.clawbackRewardPoints || other.clawbackRewardPoints
	c.activateGiftCards = c.activateGiftCards || other.activateGiftCards
	c.deactivateGiftCards = c.deactivateGiftCards || other.deactivateGiftCards
}

// checkOrderStatus re-evaluates the lifecycle rules and flushes the derived
// changes as one unit. Invoked after every payment or shipping status write.
func (s *Service) checkOrderStatus(ctx context.Context, order *domain.Order) error {
	cs := s.deriveChanges(*order, s.now())
	if cs.empty() {
		return nil
	}
	return s.applyChanges(ctx, order, cs)
}

// applyChanges flushes a change set: all field writes and balance mutations
// commit in one transaction; notifications fire afterwards and never fail the
// transition.
func (s *Service) applyChanges(ctx context.Context, order *domain.Order, cs changeSet) error {
	now := s.now()

	if cs.paidAt != nil {
		order.PaidAt = cs.paidAt
	}
	if cs.orderStatus != nil {
		order.OrderStatus = *cs.orderStatus
		if *cs.orderStatus == domain.OrderStatusCancelled {
			cancelled := now
			order.CancelledAt = &cancelled
		}
	}
	if cs.awardRewardPoints {
		points := s.settings.RewardPoints.AmountToPoints(order.Total)
		order.RewardPointsEarned = points
		order.RewardPointsWereAdded = true
	}
	if cs.clawbackRewardPoints {
		order.RewardPointsWereAdded = false
	}
	order.UpdatedAt = now

	for _, text := range cs.notes {
		order.Notes = append(order.Notes, s.newNote(order.ID, text))
	}

	err := s.repos.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Orders().Update(ctx, *order); err != nil {
			return err
		}
		if cs.awardRewardPoints && order.RewardPointsEarned > 0 {
			if _, err := s.repos.Customers().AdjustRewardPoints(ctx, order.CustomerID, order.RewardPointsEarned,
				fmt.Sprintf("earned on order %s", order.OrderNumber)); err != nil {
				return err
			}
		}
		if cs.clawbackRewardPoints && order.RewardPointsEarned > 0 {
			if _, err := s.repos.Customers().AdjustRewardPoints(ctx, order.CustomerID, -order.RewardPointsEarned,
				fmt.Sprintf("clawed back on order %s", order.OrderNumber)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply lifecycle changes to %s: %w", order.ID, err)
	}

	if cs.activateGiftCards {
		s.toggleGiftCards(ctx, order, true)
	}
	if cs.deactivateGiftCards {
		s.toggleGiftCards(ctx, order, false)
	}
	if cs.notifyCustomerEvent != "" {
		s.notifyCustomer(ctx, order, cs.notifyCustomerEvent)
	}
	return nil
}

// toggleGiftCards flips the active flag on every card issued by this order's
// items. Failures degrade to a log line; the status transition stands.
func (s *Service) toggleGiftCards(ctx context.Context, order *domain.Order, active bool) {
	itemIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if item.IsGiftCard {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	if len(itemIDs) == 0 {
		return
	}

	cards, err := s.repos.GiftCards().ListByPurchasedWithOrderItem(ctx, itemIDs)
	if err != nil {
		s.logger(ctx, "orders.gift_cards.lookup_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return
	}
	for _, card := range cards {
		if card.Active == active {
			continue
		}
		card.Active = active
		if err := s.repos.GiftCards().Update(ctx, card); err != nil {
			s.logger(ctx, "orders.gift_cards.toggle_failed", map[string]any{
				"order_id":     order.ID,
				"gift_card_id": card.ID,
				"error":        err.Error(),
			})
		}
	}
}

// setOrderStatus applies an explicit status transition (Cancel, forced
// Complete). A no-op when the status is unchanged.
func (s *Service) setOrderStatus(ctx context.Context, order *domain.Order, target domain.OrderStatus) error {
	if order.OrderStatus == target {
		return nil
	}
	return s.applyChanges(ctx, order, s.statusChangeSet(*order, target))
}
