package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/orders"
)

const webhookTestSecret = "whsec_test"

type stubWebhookOrderService struct {
	paid       []string
	authorized []string
	err        error
}

func (s *stubWebhookOrderService) MarkAsPaid(_ context.Context, orderID string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	s.paid = append(s.paid, orderID)
	return domain.Order{ID: orderID, PaymentStatus: domain.PaymentStatusPaid}, nil
}

func (s *stubWebhookOrderService) MarkAsAuthorized(_ context.Context, orderID string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	s.authorized = append(s.authorized, orderID)
	return domain.Order{ID: orderID, PaymentStatus: domain.PaymentStatusAuthorized}, nil
}

func webhookRouter(t *testing.T, svc *stubWebhookOrderService) chi.Router {
	t.Helper()
	handlers, err := NewStripeWebhookHandlers(svc, webhookTestSecret)
	if err != nil {
		t.Fatalf("NewStripeWebhookHandlers: %v", err)
	}
	r := chi.NewRouter()
	handlers.Register(r)
	return r
}

func signStripePayload(payload string, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventBody(eventType, orderID string) string {
	return fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":{"id":"pi_1","metadata":{"order_id":%q}}}}`, stripe.APIVersion, eventType, orderID)
}

func postStripeEvent(r chi.Router, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookMarksOrderPaid(t *testing.T) {
	svc := &stubWebhookOrderService{}
	r := webhookRouter(t, svc)

	body := stripeEventBody("payment_intent.succeeded", "ord_1")
	rec := postStripeEvent(r, body, signStripePayload(body, webhookTestSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.paid) != 1 || svc.paid[0] != "ord_1" {
		t.Fatalf("unexpected paid calls %v", svc.paid)
	}
}

func TestStripeWebhookMarksOrderAuthorized(t *testing.T) {
	svc := &stubWebhookOrderService{}
	r := webhookRouter(t, svc)

	body := stripeEventBody("payment_intent.amount_capturable_updated", "ord_1")
	rec := postStripeEvent(r, body, signStripePayload(body, webhookTestSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.authorized) != 1 || svc.authorized[0] != "ord_1" {
		t.Fatalf("unexpected authorized calls %v", svc.authorized)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookOrderService{}
	r := webhookRouter(t, svc)

	body := stripeEventBody("payment_intent.succeeded", "ord_1")
	rec := postStripeEvent(r, body, signStripePayload(body, "whsec_other", time.Now()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.paid) != 0 {
		t.Fatalf("order must not be touched on a bad signature, got %v", svc.paid)
	}
}

func TestStripeWebhookAcknowledgesReplays(t *testing.T) {
	svc := &stubWebhookOrderService{err: orders.ErrOperationNotAllowed}
	r := webhookRouter(t, svc)

	body := stripeEventBody("payment_intent.succeeded", "ord_1")
	rec := postStripeEvent(r, body, signStripePayload(body, webhookTestSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a replayed event to be acknowledged, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStripeWebhookIgnoresForeignIntents(t *testing.T) {
	svc := &stubWebhookOrderService{}
	r := webhookRouter(t, svc)

	body := stripeEventBody("payment_intent.succeeded", "")
	rec := postStripeEvent(r, body, signStripePayload(body, webhookTestSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.paid) != 0 {
		t.Fatalf("no order should be settled without metadata, got %v", svc.paid)
	}
}
