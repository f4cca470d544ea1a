package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
)

func approvedGateway(status domain.PaymentStatus) *stubGateway {
	return &stubGateway{
		name:   "payments.manual",
		result: payments.Result{Outcome: payments.OutcomeApproved, PaymentStatus: status},
	}
}

func TestCaptureRequiresAuthorization(t *testing.T) {
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: approvedGateway(domain.PaymentStatusPaid)}})
	seedOrder(registry, nil) // payment still pending

	if _, err := service.Capture(context.Background(), "ord_1"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestCaptureSettlesAuthorizedOrder(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusPaid)
	gateway.result.CaptureTransactionID = "cap_tx_1"
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusAuthorized
		o.PaymentMethodSystemName = "payments.manual"
	})

	order, err := service.Capture(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %q", order.PaymentStatus)
	}
	if order.CaptureTransactionID != "cap_tx_1" {
		t.Fatalf("expected the capture transaction id to be recorded")
	}
	if len(gateway.captured) != 1 || !gateway.captured[0].Amount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected capture request %+v", gateway.captured)
	}
	// A captured virtual order completes through the lifecycle rules.
	if registry.orders.orders["ord_1"].OrderStatus != domain.OrderStatusComplete {
		t.Fatalf("expected the order to complete, got %q", registry.orders.orders["ord_1"].OrderStatus)
	}
}

func TestCaptureFaultLeavesStatusUntouched(t *testing.T) {
	gateway := &stubGateway{name: "payments.manual", err: errors.New("gateway down")}
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusAuthorized
		o.PaymentMethodSystemName = "payments.manual"
	})

	if _, err := service.Capture(context.Background(), "ord_1"); err == nil {
		t.Fatalf("expected the gateway fault to surface")
	}
	persisted := registry.orders.orders["ord_1"]
	if persisted.PaymentStatus != domain.PaymentStatusAuthorized {
		t.Fatalf("a faulted capture must not change the payment status, got %q", persisted.PaymentStatus)
	}
	if len(persisted.Notes) == 0 {
		t.Fatalf("expected an error note on the order")
	}
}

func TestCaptureDeclineSurfacesTypedError(t *testing.T) {
	gateway := &stubGateway{
		name:   "payments.manual",
		result: payments.Result{Outcome: payments.OutcomeDeclined, DeclineReasons: []string{"insufficient funds"}},
	}
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusAuthorized
		o.PaymentMethodSystemName = "payments.manual"
	})

	_, err := service.Capture(context.Background(), "ord_1")
	var decline *DeclineError
	if !errors.As(err, &decline) {
		t.Fatalf("expected a DeclineError, got %v", err)
	}
	if len(decline.Reasons) != 1 || decline.Reasons[0] != "insufficient funds" {
		t.Fatalf("unexpected decline reasons %v", decline.Reasons)
	}
	persisted := registry.orders.orders["ord_1"]
	if persisted.PaymentStatus != domain.PaymentStatusAuthorized {
		t.Fatalf("a declined capture must not change the payment status, got %q", persisted.PaymentStatus)
	}
	if len(persisted.Notes) == 0 {
		t.Fatalf("expected a decline note on the order")
	}
}

func TestRefundDeclineSurfacesTypedError(t *testing.T) {
	gateway := &stubGateway{
		name:   "payments.manual",
		result: payments.Result{Outcome: payments.OutcomeDeclined, DeclineReasons: []string{"refund window closed"}},
	}
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentMethodSystemName = "payments.manual"
	})

	_, err := service.Refund(context.Background(), "ord_1")
	var decline *DeclineError
	if !errors.As(err, &decline) {
		t.Fatalf("expected a DeclineError, got %v", err)
	}
	persisted := registry.orders.orders["ord_1"]
	if persisted.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("a declined refund must not change the payment status, got %q", persisted.PaymentStatus)
	}
	if !persisted.RefundedAmount.IsZero() {
		t.Fatalf("a declined refund must not record a refunded amount, got %s", persisted.RefundedAmount)
	}
}

func TestMarkAsPaid(t *testing.T) {
	service, registry := testService(t, Deps{})
	seedOrder(registry, nil)

	order, err := service.MarkAsPaid(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("MarkAsPaid: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid || order.PaidAt == nil {
		t.Fatalf("expected a settled order, got %+v", order.PaymentStatus)
	}

	// Settled orders cannot be marked again.
	if _, err := service.MarkAsPaid(context.Background(), "ord_1"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestRefundMovesToRefunded(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusRefunded)
	notifier := &recordingNotifier{}
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}, Notifier: notifier})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentMethodSystemName = "payments.manual"
	})

	order, err := service.Refund(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %q", order.PaymentStatus)
	}
	if !order.RefundedAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected refunded amount %s", order.RefundedAmount)
	}
	if len(gateway.refunded) != 1 || gateway.refunded[0].IsPartial {
		t.Fatalf("unexpected refund request %+v", gateway.refunded)
	}
	if len(notifier.customerEvents) == 0 || notifier.customerEvents[len(notifier.customerEvents)-1] != EventOrderRefunded {
		t.Fatalf("expected a refund notification, got %v", notifier.customerEvents)
	}
}

func TestPartialRefundAccumulates(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusPartiallyRefunded)
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentMethodSystemName = "payments.manual"
	})

	order, err := service.PartiallyRefund(context.Background(), "ord_1", decimal.RequireFromString("20.00"))
	if err != nil {
		t.Fatalf("PartiallyRefund: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially refunded, got %q", order.PaymentStatus)
	}

	// Refunding the remainder flips to fully refunded.
	order, err = service.PartiallyRefund(context.Background(), "ord_1", decimal.RequireFromString("30.00"))
	if err != nil {
		t.Fatalf("second PartiallyRefund: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded after the remainder, got %q", order.PaymentStatus)
	}

	// Nothing remains to refund.
	if _, err := service.PartiallyRefund(context.Background(), "ord_1", decimal.RequireFromString("0.01")); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestPartialRefundRejectsExcessiveAmount(t *testing.T) {
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: approvedGateway(domain.PaymentStatusPartiallyRefunded)}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentMethodSystemName = "payments.manual"
	})

	if _, err := service.PartiallyRefund(context.Background(), "ord_1", decimal.RequireFromString("50.01")); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestVoidCancelsAuthorization(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusVoided)
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusAuthorized
		o.PaymentMethodSystemName = "payments.manual"
	})

	order, err := service.Void(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Void: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusVoided {
		t.Fatalf("expected voided, got %q", order.PaymentStatus)
	}
	if len(gateway.voided) != 1 {
		t.Fatalf("expected one void request")
	}
}

func TestCancelRestocksAndCannotRepeat(t *testing.T) {
	service, registry := testService(t, Deps{})
	adjuster := &recordingAdjuster{}
	service.SetInventoryAdjuster(adjuster)
	seedOrder(registry, func(o *domain.Order) {
		o.Items = []domain.OrderItem{{ID: "item_1", ProductID: "prod_1", Quantity: 3}}
	})

	order, err := service.Cancel(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if order.OrderStatus != domain.OrderStatusCancelled || order.CancelledAt == nil {
		t.Fatalf("expected a cancelled order, got %+v", order.OrderStatus)
	}
	if len(adjuster.calls) != 1 || adjuster.calls[0].delta != 3 {
		t.Fatalf("expected the stock to be returned, got %+v", adjuster.calls)
	}

	if _, err := service.Cancel(context.Background(), "ord_1"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestShipAndDeliverDriveShippingStatus(t *testing.T) {
	service, registry := testService(t, Deps{})
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.ShippingStatus = domain.ShippingStatusNotYetShipped
		o.Items = []domain.OrderItem{
			{ID: "item_1", ProductID: "prod_1", Quantity: 2, IsShippable: true},
			{ID: "item_2", ProductID: "prod_2", Quantity: 1, IsShippable: true},
		}
	})

	order, err := service.Ship(context.Background(), "ord_1", "TRACK-1", map[string]int{"item_1": 2})
	if err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if order.ShippingStatus != domain.ShippingStatusPartiallyShipped {
		t.Fatalf("expected partially shipped, got %q", order.ShippingStatus)
	}

	order, err = service.Ship(context.Background(), "ord_1", "TRACK-2", map[string]int{"item_2": 1})
	if err != nil {
		t.Fatalf("second Ship: %v", err)
	}
	if order.ShippingStatus != domain.ShippingStatusShipped {
		t.Fatalf("expected shipped, got %q", order.ShippingStatus)
	}

	// Nothing left to ship.
	if _, err := service.Ship(context.Background(), "ord_1", "TRACK-3", map[string]int{"item_1": 1}); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}

	for _, shipment := range order.Shipments {
		if _, err := service.Deliver(context.Background(), "ord_1", shipment.ID); err != nil {
			t.Fatalf("Deliver %s: %v", shipment.ID, err)
		}
	}
	final := registry.orders.orders["ord_1"]
	if final.ShippingStatus != domain.ShippingStatusDelivered {
		t.Fatalf("expected delivered, got %q", final.ShippingStatus)
	}
	// Paid and delivered completes the order.
	if final.OrderStatus != domain.OrderStatusComplete {
		t.Fatalf("expected complete, got %q", final.OrderStatus)
	}
}

func TestDeleteOrderReversesSideEffects(t *testing.T) {
	service, registry := testService(t, Deps{})
	seedOrder(registry, func(o *domain.Order) {
		o.RewardPointsWereAdded = true
		o.RewardPointsEarned = 5
		o.Items = []domain.OrderItem{{ID: "item_1", IsGiftCard: true, Quantity: 1}}
	})
	registry.customers.customers["cust_1"] = domain.Customer{ID: "cust_1", RewardPointsBalance: 5}
	registry.giftCards.cards["gc_1"] = domain.GiftCard{
		ID: "gc_1", Code: "CODE", Active: true,
		RemainingValue:           decimal.RequireFromString("25.00"),
		PurchasedWithOrderItemID: "item_1",
	}

	if err := service.DeleteOrder(context.Background(), "ord_1"); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if !registry.orders.orders["ord_1"].Deleted {
		t.Fatalf("expected a soft delete")
	}
	if registry.customers.customers["cust_1"].RewardPointsBalance != 0 {
		t.Fatalf("expected the earned points to be clawed back")
	}
	if registry.giftCards.cards["gc_1"].Active {
		t.Fatalf("expected the issued card to be deactivated")
	}
}

type recordingAdjuster struct {
	calls []struct {
		productID string
		delta     int
	}
	err error
}

func (a *recordingAdjuster) AdjustStock(_ context.Context, productID string, delta int) error {
	a.calls = append(a.calls, struct {
		productID string
		delta     int
	}{productID, delta})
	return a.err
}
