package orders

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
)

// ProcessNextCycle charges one due cycle of a recurring payment by replaying
// the initial order through the placement pipeline. A failed or declined
// charge increments the failure counter; reaching the configured maximum
// deactivates the schedule.
func (s *Service) ProcessNextCycle(ctx context.Context, recurringPaymentID string) (PlaceResult, error) {
	ctx, span := tracer.Start(ctx, "orders.recurring.process_cycle",
		trace.WithAttributes(attribute.String("recurring_payment.id", recurringPaymentID)))
	defer span.End()

	payment, err := s.repos.RecurringPayments().FindByID(ctx, recurringPaymentID)
	if err != nil {
		return PlaceResult{}, err
	}
	if !payment.Active || payment.CyclesRemaining() == 0 {
		return PlaceResult{}, ErrRecurringInactive
	}

	initial, err := s.repos.Orders().FindByID(ctx, payment.InitialOrderID)
	if err != nil {
		return PlaceResult{}, fmt.Errorf("load initial order %s: %w", payment.InitialOrderID, err)
	}

	gateway, err := s.gateways.Gateway(initial.PaymentMethodSystemName)
	if err != nil {
		return PlaceResult{}, err
	}
	if gateway.RecurringSupport() == payments.RecurringNotSupported {
		return PlaceResult{}, ErrRecurringNotSupported
	}
	if gateway.RecurringSupport() == payments.RecurringAutomatic {
		// The gateway schedules cycles itself; this side only records them.
		return PlaceResult{}, fmt.Errorf("recurring payment %s: %w for store-triggered cycles",
			recurringPaymentID, ErrRecurringNotSupported)
	}

	customer, err := s.repos.Customers().FindByID(ctx, payment.CustomerID)
	if err != nil {
		return PlaceResult{}, fmt.Errorf("load customer %s: %w", payment.CustomerID, err)
	}

	result, err := s.Place(ctx, PlaceRequest{
		Customer:     customer,
		InitialOrder: &initial,
	})
	if err != nil || !result.Approved {
		s.recordCycleFailure(ctx, &payment)
		if err != nil {
			return PlaceResult{}, fmt.Errorf("process cycle of %s: %w", recurringPaymentID, err)
		}
		return result, nil
	}

	now := s.now()
	payment.LastPaymentFailed = false
	payment.FailedAttempts = 0
	payment.History = append(payment.History, domain.RecurringPaymentHistoryEntry{
		OrderID:   result.Order.ID,
		CycleNum:  len(payment.History) + 1,
		CreatedAt: now,
	})
	if payment.CyclesRemaining() == 0 {
		payment.Active = false
	}
	payment.UpdatedAt = now
	if err := s.repos.RecurringPayments().Update(ctx, payment); err != nil {
		return result, fmt.Errorf("record cycle of %s: %w", recurringPaymentID, err)
	}
	return result, nil
}

// recordCycleFailure bumps the failure counter and deactivates the schedule
// once the limit is hit. Persistence failures here degrade to a log line so
// the caller sees the original charge failure.
func (s *Service) recordCycleFailure(ctx context.Context, payment *domain.RecurringPayment) {
	payment.LastPaymentFailed = true
	payment.FailedAttempts++
	if payment.FailedAttempts >= s.settings.RecurringMaxFailures {
		payment.Active = false
		s.logger(ctx, "orders.recurring.deactivated", map[string]any{
			"recurring_payment_id": payment.ID,
			"failed_attempts":      payment.FailedAttempts,
		})
	}
	payment.UpdatedAt = s.now()
	if err := s.repos.RecurringPayments().Update(ctx, *payment); err != nil {
		s.logger(ctx, "orders.recurring.update_failed", map[string]any{
			"recurring_payment_id": payment.ID,
			"error":                err.Error(),
		})
	}
}

// ProcessDueCycles charges every schedule due at the given limit, for the
// periodic background task. Failures on one schedule never block the rest.
func (s *Service) ProcessDueCycles(ctx context.Context, limit int) (processed int, err error) {
	due, err := s.repos.RecurringPayments().ListDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	for _, payment := range due {
		if _, err := s.ProcessNextCycle(ctx, payment.ID); err != nil {
			s.logger(ctx, "orders.recurring.cycle_failed", map[string]any{
				"recurring_payment_id": payment.ID,
				"error":                err.Error(),
			})
			continue
		}
		processed++
	}
	return processed, nil
}

// CancelRecurringPayment deactivates a schedule. Customers may cancel their
// own schedules; an empty requestedBy skips the ownership check for admin use.
func (s *Service) CancelRecurringPayment(ctx context.Context, recurringPaymentID, requestedBy string) (domain.RecurringPayment, error) {
	payment, err := s.repos.RecurringPayments().FindByID(ctx, recurringPaymentID)
	if err != nil {
		return domain.RecurringPayment{}, err
	}
	if requestedBy != "" && payment.CustomerID != requestedBy {
		return payment, ErrOperationNotAllowed
	}
	if !payment.Active {
		return payment, nil
	}

	payment.Active = false
	payment.UpdatedAt = s.now()
	if err := s.repos.RecurringPayments().Update(ctx, payment); err != nil {
		return payment, err
	}

	if initial, err := s.repos.Orders().FindByID(ctx, payment.InitialOrderID); err == nil {
		s.addNote(ctx, &initial, "recurring payment cancelled")
	}
	return payment, nil
}
