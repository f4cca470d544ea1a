package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/orders"
)

type stubAdminService struct {
	order   domain.Order
	err     error
	calls   []string
	amounts []decimal.Decimal
}

func (s *stubAdminService) record(name, orderID string) (domain.Order, error) {
	s.calls = append(s.calls, name+":"+orderID)
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return s.order, nil
}

func (s *stubAdminService) FindOrder(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("find", orderID)
}

func (s *stubAdminService) Capture(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("capture", orderID)
}

func (s *stubAdminService) MarkAsPaid(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("mark-paid", orderID)
}

func (s *stubAdminService) MarkAsAuthorized(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("mark-authorized", orderID)
}

func (s *stubAdminService) Refund(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("refund", orderID)
}

func (s *stubAdminService) RefundOffline(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("refund-offline", orderID)
}

func (s *stubAdminService) PartiallyRefund(_ context.Context, orderID string, amount decimal.Decimal) (domain.Order, error) {
	s.amounts = append(s.amounts, amount)
	return s.record("partial-refund", orderID)
}

func (s *stubAdminService) PartiallyRefundOffline(_ context.Context, orderID string, amount decimal.Decimal) (domain.Order, error) {
	s.amounts = append(s.amounts, amount)
	return s.record("partial-refund-offline", orderID)
}

func (s *stubAdminService) Void(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("void", orderID)
}

func (s *stubAdminService) VoidOffline(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("void-offline", orderID)
}

func (s *stubAdminService) Cancel(_ context.Context, orderID string) (domain.Order, error) {
	return s.record("cancel", orderID)
}

func (s *stubAdminService) Ship(_ context.Context, orderID, trackingNumber string, itemQuantities map[string]int) (domain.Order, error) {
	return s.record("ship:"+trackingNumber, orderID)
}

func (s *stubAdminService) Deliver(_ context.Context, orderID, shipmentID string) (domain.Order, error) {
	return s.record("deliver:"+shipmentID, orderID)
}

func (s *stubAdminService) AddOrderNote(_ context.Context, orderID, text string) (domain.OrderNote, error) {
	s.calls = append(s.calls, "note:"+orderID)
	return domain.OrderNote{ID: "note_1", OrderID: orderID, Text: text}, nil
}

func (s *stubAdminService) DeleteOrder(_ context.Context, orderID string) error {
	s.calls = append(s.calls, "delete:"+orderID)
	return s.err
}

func adminRouter(t *testing.T, svc *stubAdminService) chi.Router {
	t.Helper()
	handlers, err := NewAdminOrderHandlers(svc)
	if err != nil {
		t.Fatalf("NewAdminOrderHandlers: %v", err)
	}
	r := chi.NewRouter()
	handlers.Register(r)
	return r
}

func TestAdminCaptureInvokesService(t *testing.T) {
	svc := &stubAdminService{order: domain.Order{ID: "ord_1", Total: decimal.Zero}}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/ord_1/capture", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.calls) != 1 || svc.calls[0] != "capture:ord_1" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}

func TestAdminOperationNotAllowedMapsToConflict(t *testing.T) {
	svc := &stubAdminService{err: orders.ErrOperationNotAllowed}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/ord_1/void", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminCaptureDeclineMapsToUnprocessable(t *testing.T) {
	svc := &stubAdminService{err: &orders.DeclineError{Op: "capture", Reasons: []string{"insufficient funds"}}}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/ord_1/capture", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "payment_declined") {
		t.Fatalf("expected a payment_declined code, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "insufficient funds") {
		t.Fatalf("expected the decline reason in the details, got %s", rec.Body.String())
	}
}

func TestAdminPartialRefundValidatesAmount(t *testing.T) {
	svc := &stubAdminService{order: domain.Order{ID: "ord_1", Total: decimal.Zero}}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/partial-refund", strings.NewReader(`{"amount":"-5"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative amount, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/orders/ord_1/partial-refund", strings.NewReader(`{"amount":"12.50"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.amounts) != 1 || !svc.amounts[0].Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected amounts %v", svc.amounts)
	}
}

func TestAdminShipRequiresItems(t *testing.T) {
	svc := &stubAdminService{order: domain.Order{ID: "ord_1", Total: decimal.Zero}}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/ship", strings.NewReader(`{"trackingNumber":"TRK1"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without items, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/orders/ord_1/ship", strings.NewReader(`{"trackingNumber":"TRK1","items":{"itm_1":2}}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.calls[len(svc.calls)-1] != "ship:TRK1:ord_1" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}

func TestAdminAddNoteRejectsEmptyText(t *testing.T) {
	svc := &stubAdminService{}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/notes", strings.NewReader(`{"text":"  "}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/orders/ord_1/notes", strings.NewReader(`{"text":"called the customer"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminDeleteReturnsNoContent(t *testing.T) {
	svc := &stubAdminService{}
	r := adminRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/ord_1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "delete:ord_1" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}
