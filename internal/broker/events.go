package broker

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
)

// EventPublisher handles publishing notification events. Delivery is
// best-effort; callers log publish errors and move on.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatus publishes an OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentReviewed publishes a PaymentReviewed event
func (ep *EventPublisher) PublishPaymentReviewed(ctx context.Context, event *models.PaymentReviewedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}
