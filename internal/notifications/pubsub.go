// Package notifications publishes order notifications and domain events to
// Pub/Sub topics for downstream mail and integration workers.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/northcart/commerce/internal/domain"
)

// Recipient tags who a notification message is addressed to.
const (
	RecipientCustomer   = "customer"
	RecipientStoreOwner = "store_owner"
)

// orderMessage is the JSON payload published for every order notification and
// event. It carries a denormalised summary so consumers need no follow-up read.
type orderMessage struct {
	Event         string    `json:"event"`
	Recipient     string    `json:"recipient,omitempty"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	CustomerID    string    `json:"customerId"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
	CurrencyCode  string    `json:"currencyCode"`
	Total         string    `json:"total"`
	OrderStatus   string    `json:"orderStatus"`
	PaymentStatus string    `json:"paymentStatus"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// PubSubPublisher publishes order notifications and events on a topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	now     func() time.Time
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a publisher bound to the given topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		now:     time.Now,
		marshal: json.Marshal,
	}, nil
}

// NotifyCustomer queues a customer-facing notification and returns the
// Pub/Sub message id.
func (p *PubSubPublisher) NotifyCustomer(ctx context.Context, event string, order domain.Order) (string, error) {
	return p.publish(ctx, event, RecipientCustomer, order)
}

// NotifyStoreOwner queues a store-owner notification.
func (p *PubSubPublisher) NotifyStoreOwner(ctx context.Context, event string, order domain.Order) (string, error) {
	return p.publish(ctx, event, RecipientStoreOwner, order)
}

// PublishOrderEvent raises an order domain event with no recipient, for
// integration consumers.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event string, order domain.Order) (string, error) {
	return p.publish(ctx, event, "", order)
}

func (p *PubSubPublisher) publish(ctx context.Context, event, recipient string, order domain.Order) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}

	email := ""
	if order.BillingAddress != nil {
		email = order.BillingAddress.Email
	}
	message := orderMessage{
		Event:         event,
		Recipient:     recipient,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		CustomerEmail: email,
		CurrencyCode:  order.CurrencyCode,
		Total:         order.Total.String(),
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: string(order.PaymentStatus),
		OccurredAt:    p.now().UTC(),
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", event)
	setAttr(attrs, "recipient", recipient)
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "customerId", order.CustomerID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order message: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
