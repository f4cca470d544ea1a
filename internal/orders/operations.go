package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
	"github.com/northcart/commerce/internal/repositories"
)

// Guard predicates. Each mutating operation has a matching Can function the
// admin surface uses to decide which actions to offer; the operations
// themselves re-check the guard and fail with ErrOperationNotAllowed.

// CanCapture reports whether the authorized amount can be captured.
func (s *Service) CanCapture(order domain.Order) bool {
	if order.OrderStatus == domain.OrderStatusCancelled {
		return false
	}
	if order.PaymentStatus != domain.PaymentStatusAuthorized {
		return false
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	return err == nil && gateway.SupportsCapture()
}

// CanMarkAsPaid reports whether the order can be settled outside a gateway.
func (s *Service) CanMarkAsPaid(order domain.Order) bool {
	if order.OrderStatus == domain.OrderStatusCancelled {
		return false
	}
	switch order.PaymentStatus {
	case domain.PaymentStatusPending, domain.PaymentStatusAuthorized:
		return true
	}
	return false
}

// CanRefund reports whether the full captured amount can be refunded through
// the gateway.
func (s *Service) CanRefund(order domain.Order) bool {
	if order.PaymentStatus != domain.PaymentStatusPaid || !order.Total.IsPositive() {
		return false
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	return err == nil && gateway.SupportsRefund()
}

// CanRefundOffline reports whether the order can be flagged refunded without
// touching a gateway.
func (s *Service) CanRefundOffline(order domain.Order) bool {
	return order.PaymentStatus == domain.PaymentStatusPaid && order.Total.IsPositive()
}

// CanPartiallyRefund reports whether the given amount can be refunded through
// the gateway.
func (s *Service) CanPartiallyRefund(order domain.Order, amount decimal.Decimal) bool {
	if !s.canPartiallyRefundOffline(order, amount) {
		return false
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	return err == nil && gateway.SupportsPartialRefund()
}

func (s *Service) canPartiallyRefundOffline(order domain.Order, amount decimal.Decimal) bool {
	if order.PaymentStatus != domain.PaymentStatusPaid && order.PaymentStatus != domain.PaymentStatusPartiallyRefunded {
		return false
	}
	return amount.IsPositive() && amount.LessThanOrEqual(order.RemainingAmount())
}

// CanVoid reports whether the authorization can be voided through the gateway.
func (s *Service) CanVoid(order domain.Order) bool {
	if order.PaymentStatus != domain.PaymentStatusAuthorized {
		return false
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	return err == nil && gateway.SupportsVoid()
}

// CanVoidOffline reports whether the authorization can be flagged voided
// without touching a gateway.
func (s *Service) CanVoidOffline(order domain.Order) bool {
	return order.PaymentStatus == domain.PaymentStatusAuthorized
}

// CanCancel reports whether the order can still be cancelled.
func (s *Service) CanCancel(order domain.Order) bool {
	return order.OrderStatus != domain.OrderStatusCancelled && order.OrderStatus != domain.OrderStatusComplete
}

// CanShip reports whether a new shipment can be registered.
func (s *Service) CanShip(order domain.Order) bool {
	return order.OrderStatus != domain.OrderStatusCancelled && order.HasItemsToShip()
}

// Capture settles the authorized amount through the gateway. A gateway fault
// leaves the payment status untouched and records an error note.
func (s *Service) Capture(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.capture", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanCapture(order) {
		return order, ErrOperationNotAllowed
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	if err != nil {
		return order, err
	}

	result, err := gateway.Capture(ctx, payments.CaptureRequest{
		OrderID:                    order.ID,
		AuthorizationTransactionID: order.AuthorizationTransactionID,
		Amount:                     order.Total,
		Currency:                   order.CurrencyCode,
		IdempotencyKey:             s.idGen("cap_"),
	})
	if err != nil {
		s.addNote(ctx, &order, fmt.Sprintf("capture failed: %v", err))
		return order, fmt.Errorf("capture order %s: %w", order.ID, err)
	}
	if !result.Approved() {
		s.addNote(ctx, &order, fmt.Sprintf("capture declined: %v", result.DeclineReasons))
		return order, &DeclineError{Op: "capture", Reasons: result.DeclineReasons}
	}

	order.PaymentStatus = domain.PaymentStatusPaid
	if result.CaptureTransactionID != "" {
		order.CaptureTransactionID = result.CaptureTransactionID
	}
	s.addNote(ctx, &order, "payment captured")
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	if err := s.repos.Orders().Update(ctx, order); err != nil {
		return order, err
	}
	s.publishEvent(ctx, EventOrderPaid, order)
	return order, nil
}

// MarkAsPaid settles the order without a gateway round trip, for offline
// payment methods.
func (s *Service) MarkAsPaid(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanMarkAsPaid(order) {
		return order, ErrOperationNotAllowed
	}

	order.PaymentStatus = domain.PaymentStatusPaid
	s.addNote(ctx, &order, "order marked as paid")
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	if err := s.repos.Orders().Update(ctx, order); err != nil {
		return order, err
	}
	s.publishEvent(ctx, EventOrderPaid, order)
	return order, nil
}

// MarkAsAuthorized flags the payment as authorized, for gateways that confirm
// asynchronously.
func (s *Service) MarkAsAuthorized(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return order, ErrOperationNotAllowed
	}

	order.PaymentStatus = domain.PaymentStatusAuthorized
	s.addNote(ctx, &order, "payment authorized")
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	return order, s.repos.Orders().Update(ctx, order)
}

// Refund returns the full remaining amount through the gateway.
func (s *Service) Refund(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.refund", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanRefund(order) {
		return order, ErrOperationNotAllowed
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	if err != nil {
		return order, err
	}

	amount := order.RemainingAmount()
	result, err := gateway.Refund(ctx, payments.RefundRequest{
		OrderID:              order.ID,
		CaptureTransactionID: order.CaptureTransactionID,
		Amount:               amount,
		Currency:             order.CurrencyCode,
		IsPartial:            false,
		IdempotencyKey:       s.idGen("ref_"),
	})
	if err != nil {
		s.addNote(ctx, &order, fmt.Sprintf("refund failed: %v", err))
		return order, fmt.Errorf("refund order %s: %w", order.ID, err)
	}
	if !result.Approved() {
		s.addNote(ctx, &order, fmt.Sprintf("refund declined: %v", result.DeclineReasons))
		return order, &DeclineError{Op: "refund", Reasons: result.DeclineReasons}
	}
	return s.applyRefund(ctx, order, amount)
}

// RefundOffline flags the full remaining amount as refunded without a gateway
// round trip.
func (s *Service) RefundOffline(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanRefundOffline(order) {
		return order, ErrOperationNotAllowed
	}
	return s.applyRefund(ctx, order, order.RemainingAmount())
}

// PartiallyRefund returns part of the captured amount through the gateway.
func (s *Service) PartiallyRefund(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanPartiallyRefund(order, amount) {
		return order, ErrOperationNotAllowed
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	if err != nil {
		return order, err
	}

	result, err := gateway.Refund(ctx, payments.RefundRequest{
		OrderID:              order.ID,
		CaptureTransactionID: order.CaptureTransactionID,
		Amount:               amount,
		Currency:             order.CurrencyCode,
		IsPartial:            true,
		IdempotencyKey:       s.idGen("ref_"),
	})
	if err != nil {
		s.addNote(ctx, &order, fmt.Sprintf("partial refund failed: %v", err))
		return order, fmt.Errorf("partially refund order %s: %w", order.ID, err)
	}
	if !result.Approved() {
		s.addNote(ctx, &order, fmt.Sprintf("partial refund declined: %v", result.DeclineReasons))
		return order, &DeclineError{Op: "partial refund", Reasons: result.DeclineReasons}
	}
	return s.applyRefund(ctx, order, amount)
}

// PartiallyRefundOffline flags part of the captured amount as refunded without
// a gateway round trip.
func (s *Service) PartiallyRefundOffline(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.canPartiallyRefundOffline(order, amount) {
		return order, ErrOperationNotAllowed
	}
	return s.applyRefund(ctx, order, amount)
}

// applyRefund records the refunded amount and moves the payment status to
// partially or fully refunded.
func (s *Service) applyRefund(ctx context.Context, order domain.Order, amount decimal.Decimal) (domain.Order, error) {
	order.RefundedAmount = order.RefundedAmount.Add(amount)
	if order.RefundedAmount.GreaterThanOrEqual(order.Total) {
		order.PaymentStatus = domain.PaymentStatusRefunded
	} else {
		order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
	}
	s.addNote(ctx, &order, fmt.Sprintf("refunded %s %s", amount, order.CurrencyCode))
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	if err := s.repos.Orders().Update(ctx, order); err != nil {
		return order, err
	}
	s.notifyCustomer(ctx, &order, EventOrderRefunded)
	s.publishEvent(ctx, EventOrderRefunded, order)
	return order, nil
}

// Void cancels the standing authorization through the gateway.
func (s *Service) Void(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanVoid(order) {
		return order, ErrOperationNotAllowed
	}
	gateway, err := s.gateways.Gateway(order.PaymentMethodSystemName)
	if err != nil {
		return order, err
	}

	result, err := gateway.Void(ctx, payments.VoidRequest{
		OrderID:                    order.ID,
		AuthorizationTransactionID: order.AuthorizationTransactionID,
		IdempotencyKey:             s.idGen("void_"),
	})
	if err != nil {
		s.addNote(ctx, &order, fmt.Sprintf("void failed: %v", err))
		return order, fmt.Errorf("void order %s: %w", order.ID, err)
	}
	if !result.Approved() {
		s.addNote(ctx, &order, fmt.Sprintf("void declined: %v", result.DeclineReasons))
		return order, &DeclineError{Op: "void", Reasons: result.DeclineReasons}
	}
	return s.applyVoid(ctx, order)
}

// VoidOffline flags the authorization as voided without a gateway round trip.
func (s *Service) VoidOffline(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanVoidOffline(order) {
		return order, ErrOperationNotAllowed
	}
	return s.applyVoid(ctx, order)
}

func (s *Service) applyVoid(ctx context.Context, order domain.Order) (domain.Order, error) {
	order.PaymentStatus = domain.PaymentStatusVoided
	s.addNote(ctx, &order, "authorization voided")
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	return order, s.repos.Orders().Update(ctx, order)
}

// Cancel moves the order to cancelled and restocks its items. Standing
// authorizations are voided when the gateway supports it.
func (s *Service) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanCancel(order) {
		return order, ErrOperationNotAllowed
	}

	if s.CanVoid(order) {
		if order, err = s.Void(ctx, orderID); err != nil {
			s.logger(ctx, "orders.cancel.void_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	if err := s.setOrderStatus(ctx, &order, domain.OrderStatusCancelled); err != nil {
		return order, err
	}

	for _, item := range order.Items {
		s.adjustStock(ctx, &order, item.ProductID, item.Quantity)
		for _, child := range item.ChildItems {
			s.adjustStock(ctx, &order, child.ProductID, child.Quantity*item.Quantity)
		}
	}
	s.publishEvent(ctx, EventOrderCancelled, order)
	return order, nil
}

// Ship registers a shipment of order items and advances the shipping status.
func (s *Service) Ship(ctx context.Context, orderID, trackingNumber string, itemQuantities map[string]int) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.CanShip(order) {
		return order, ErrOperationNotAllowed
	}
	if len(itemQuantities) == 0 {
		return order, &ValidationError{Warnings: []string{"a shipment needs at least one item"}}
	}
	for itemID, qty := range itemQuantities {
		if qty <= 0 {
			return order, &ValidationError{Warnings: []string{fmt.Sprintf("item %s has an invalid shipment quantity", itemID)}}
		}
	}

	now := s.now()
	shipment := domain.Shipment{
		ID:             s.idGen("shp_"),
		OrderID:        order.ID,
		TrackingNumber: trackingNumber,
		ItemQuantities: itemQuantities,
		ShippedAt:      &now,
		CreatedAt:      now,
	}
	order.Shipments = append(order.Shipments, shipment)

	if order.HasItemsToShip() {
		order.ShippingStatus = domain.ShippingStatusPartiallyShipped
	} else {
		order.ShippingStatus = domain.ShippingStatusShipped
	}
	s.addNote(ctx, &order, fmt.Sprintf("shipment %s registered", shipment.ID))
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	if err := s.repos.Orders().Update(ctx, order); err != nil {
		return order, err
	}
	s.notifyCustomer(ctx, &order, EventOrderShipped)
	s.publishEvent(ctx, EventOrderShipped, order)
	return order, nil
}

// Deliver marks a shipment as delivered. When every shipment has arrived and
// nothing remains to ship the order moves to delivered, which can complete it.
func (s *Service) Deliver(ctx context.Context, orderID, shipmentID string) (domain.Order, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	found := false
	allDelivered := true
	for i := range order.Shipments {
		if order.Shipments[i].ID == shipmentID {
			found = true
			if order.Shipments[i].DeliveredAt == nil {
				order.Shipments[i].DeliveredAt = &now
			}
		}
		if order.Shipments[i].DeliveredAt == nil {
			allDelivered = false
		}
	}
	if !found {
		return order, ErrOperationNotAllowed
	}

	if allDelivered && !order.HasItemsToShip() {
		order.ShippingStatus = domain.ShippingStatusDelivered
	}
	s.addNote(ctx, &order, fmt.Sprintf("shipment %s delivered", shipmentID))
	if err := s.checkOrderStatus(ctx, &order); err != nil {
		return order, err
	}
	if err := s.repos.Orders().Update(ctx, order); err != nil {
		return order, err
	}
	s.notifyCustomer(ctx, &order, EventOrderDelivered)
	s.publishEvent(ctx, EventOrderDelivered, order)
	return order, nil
}

// FindOrder loads one order aggregate.
func (s *Service) FindOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repos.Orders().FindByID(ctx, orderID)
}

// ListOrders lists a customer's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	return s.repos.Orders().ListByCustomer(ctx, customerID, filter)
}

// AddOrderNote appends a manual note to the order's audit trail.
func (s *Service) AddOrderNote(ctx context.Context, orderID, text string) (domain.OrderNote, error) {
	note := s.newNote(orderID, text)
	if err := s.repos.Orders().AddNote(ctx, orderID, note); err != nil {
		return domain.OrderNote{}, err
	}
	return note, nil
}

// DeleteOrder soft-deletes the order after reversing its customer-visible
// side effects: earned reward points are clawed back and issued gift cards
// are deactivated.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Deleted {
		return nil
	}

	if order.RewardPointsWereAdded && order.RewardPointsEarned > 0 {
		if _, err := s.repos.Customers().AdjustRewardPoints(ctx, order.CustomerID, -order.RewardPointsEarned,
			fmt.Sprintf("order %s deleted", order.OrderNumber)); err != nil {
			s.logger(ctx, "orders.delete.clawback_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}
	s.toggleGiftCards(ctx, &order, false)

	return s.repos.Orders().SoftDelete(ctx, orderID, s.now())
}
