package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/northcart/commerce/internal/domain"
)

func TestPubSubPublisherPublishesOrderMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "commerce-order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	order := domain.Order{
		ID:            "ord_1",
		OrderNumber:   "000042",
		CustomerID:    "cust_1",
		CurrencyCode:  "USD",
		Total:         decimal.RequireFromString("79.90"),
		OrderStatus:   domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusPaid,
		BillingAddress: &domain.Address{
			Recipient: "Jo Doe",
			Email:     "jo@example.com",
		},
	}

	if _, err := publisher.NotifyCustomer(ctx, "order_placed", order); err != nil {
		t.Fatalf("NotifyCustomer: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload orderMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Event != "order_placed" || payload.Recipient != RecipientCustomer {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.OrderNumber != "000042" || payload.Total != "79.9" {
		t.Fatalf("unexpected order summary %#v", payload)
	}
	if payload.CustomerEmail != "jo@example.com" {
		t.Fatalf("expected the billing email to be carried, got %q", payload.CustomerEmail)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "ord_1" {
		t.Fatalf("expected the order id attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["recipient"]; !ok {
		t.Fatalf("expected the recipient attribute")
	}
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublisher(nil); err == nil {
		t.Fatalf("expected an error for a nil topic")
	}
}

func TestPublishOrderEventOmitsRecipient(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "commerce-order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	if _, err := publisher.PublishOrderEvent(ctx, "order_paid", domain.Order{ID: "ord_2", Total: decimal.Zero}); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if _, ok := messages[0].Attributes["recipient"]; ok {
		t.Fatalf("events must not carry a recipient attribute")
	}
}
