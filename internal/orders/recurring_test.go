package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
)

func seedRecurring(registry *memRegistry, mutate func(*domain.RecurringPayment)) domain.RecurringPayment {
	registry.customers.customers["cust_1"] = placementCustomer()
	seedOrder(registry, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentMethodSystemName = "payments.manual"
		o.Items = []domain.OrderItem{{
			ID: "item_1", ProductID: "prod_1", Name: "Subscription", Quantity: 1,
			UnitPriceExclTax: decimal.RequireFromString("50.00"),
			UnitPriceInclTax: decimal.RequireFromString("50.00"),
		}}
	})

	payment := domain.RecurringPayment{
		ID:             "rp_1",
		InitialOrderID: "ord_1",
		CustomerID:     "cust_1",
		CycleLength:    1,
		CyclePeriod:    domain.RecurringPeriodMonths,
		TotalCycles:    3,
		Active:         true,
		StartedAt:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&payment)
	}
	registry.recurring.payments[payment.ID] = payment
	return payment
}

func TestProcessNextCycleChargesAndRecordsHistory(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusPaid)
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedRecurring(registry, nil)

	result, err := service.ProcessNextCycle(context.Background(), "rp_1")
	if err != nil {
		t.Fatalf("ProcessNextCycle: %v", err)
	}
	if !result.Approved || result.Order == nil {
		t.Fatalf("expected an approved cycle, got %+v", result)
	}
	if result.Order.ID == "ord_1" {
		t.Fatalf("a cycle must create a new order")
	}
	if !result.Order.Total.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("a cycle must recharge the template amount, got %s", result.Order.Total)
	}
	if len(gateway.recurred) != 1 || gateway.recurred[0].InitialOrderID != "ord_1" {
		t.Fatalf("unexpected recurring charge %+v", gateway.recurred)
	}

	payment := registry.recurring.payments["rp_1"]
	if len(payment.History) != 1 || payment.History[0].CycleNum != 1 {
		t.Fatalf("unexpected history %+v", payment.History)
	}
	if payment.History[0].OrderID != result.Order.ID {
		t.Fatalf("history must reference the cycle order")
	}
	if !payment.Active {
		t.Fatalf("a schedule with remaining cycles must stay active")
	}
}

func TestProcessNextCycleDeactivatesAfterFinalCycle(t *testing.T) {
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: approvedGateway(domain.PaymentStatusPaid)}})
	seedRecurring(registry, func(p *domain.RecurringPayment) {
		p.TotalCycles = 1
	})

	if _, err := service.ProcessNextCycle(context.Background(), "rp_1"); err != nil {
		t.Fatalf("ProcessNextCycle: %v", err)
	}
	if registry.recurring.payments["rp_1"].Active {
		t.Fatalf("expected the schedule to deactivate after the final cycle")
	}

	if _, err := service.ProcessNextCycle(context.Background(), "rp_1"); !errors.Is(err, ErrRecurringInactive) {
		t.Fatalf("expected ErrRecurringInactive, got %v", err)
	}
}

func TestProcessNextCycleCountsFailures(t *testing.T) {
	gateway := &stubGateway{
		name:   "payments.manual",
		result: payments.Result{Outcome: payments.OutcomeDeclined, DeclineReasons: []string{"expired card"}},
	}
	service, registry := testService(t, Deps{
		Gateways: stubResolver{gateway: gateway},
		Settings: Settings{RecurringMaxFailures: 2},
	})
	seedRecurring(registry, nil)

	result, err := service.ProcessNextCycle(context.Background(), "rp_1")
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if result.Approved {
		t.Fatalf("expected a declined cycle")
	}
	payment := registry.recurring.payments["rp_1"]
	if !payment.LastPaymentFailed || payment.FailedAttempts != 1 || !payment.Active {
		t.Fatalf("unexpected failure state %+v", payment)
	}

	if _, err := service.ProcessNextCycle(context.Background(), "rp_1"); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	payment = registry.recurring.payments["rp_1"]
	if payment.Active {
		t.Fatalf("expected the schedule to deactivate after reaching the failure limit")
	}
	if payment.FailedAttempts != 2 {
		t.Fatalf("expected two recorded failures, got %d", payment.FailedAttempts)
	}
}

func TestProcessNextCycleResetsFailuresOnSuccess(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusPaid)
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedRecurring(registry, func(p *domain.RecurringPayment) {
		p.LastPaymentFailed = true
		p.FailedAttempts = 2
	})

	if _, err := service.ProcessNextCycle(context.Background(), "rp_1"); err != nil {
		t.Fatalf("ProcessNextCycle: %v", err)
	}
	payment := registry.recurring.payments["rp_1"]
	if payment.LastPaymentFailed || payment.FailedAttempts != 0 {
		t.Fatalf("a successful cycle must reset the failure state, got %+v", payment)
	}
}

func TestCancelRecurringPaymentChecksOwnership(t *testing.T) {
	service, registry := testService(t, Deps{})
	seedRecurring(registry, nil)

	if _, err := service.CancelRecurringPayment(context.Background(), "rp_1", "cust_2"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed for a foreign customer, got %v", err)
	}

	payment, err := service.CancelRecurringPayment(context.Background(), "rp_1", "cust_1")
	if err != nil {
		t.Fatalf("CancelRecurringPayment: %v", err)
	}
	if payment.Active {
		t.Fatalf("expected the schedule to deactivate")
	}

	// Cancelling again is a no-op.
	if _, err := service.CancelRecurringPayment(context.Background(), "rp_1", "cust_1"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestProcessDueCyclesSkipsFailingSchedules(t *testing.T) {
	gateway := approvedGateway(domain.PaymentStatusPaid)
	service, registry := testService(t, Deps{Gateways: stubResolver{gateway: gateway}})
	seedRecurring(registry, nil)
	// A schedule pointing at a missing order fails without blocking the rest.
	registry.recurring.payments["rp_2"] = domain.RecurringPayment{
		ID:             "rp_2",
		InitialOrderID: "ord_missing",
		CustomerID:     "cust_1",
		CycleLength:    1,
		CyclePeriod:    domain.RecurringPeriodMonths,
		TotalCycles:    3,
		Active:         true,
		StartedAt:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	processed, err := service.ProcessDueCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessDueCycles: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected one processed cycle, got %d", processed)
	}
}
