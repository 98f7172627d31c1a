package worker

import (
	"context"
	"encoding/json"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationWorker consumes order events and dispatches customer/seller
// notifications. Dispatch is best-effort; the processed_events table keeps
// redelivered messages from notifying twice.
type NotificationWorker struct {
	consumer *broker.Consumer
	store    *store.Store
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, store *store.Store) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		w.logger.Warn("Skipping malformed event", zap.Error(err))
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	switch base.EventType {
	case models.EventTypeOrderCreated:
		var event models.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("Skipping malformed OrderCreated event", zap.Error(err))
			return nil
		}
		w.notifySeller(event.SellerID, "New order received", event.OrderID)

	case models.EventTypeOrderStatus:
		var event models.OrderStatusEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("Skipping malformed OrderStatus event", zap.Error(err))
			return nil
		}
		w.notifyCustomer(event.CustomerID, "Order status: "+string(event.To), event.OrderID)

	case models.EventTypePaymentReviewed:
		var event models.PaymentReviewedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("Skipping malformed PaymentReviewed event", zap.Error(err))
			return nil
		}
		w.notifyCustomer(event.CustomerID, "Payment "+event.Outcome, event.OrderID)

	default:
		w.logger.Debug("Ignoring event type", zap.String("event_type", base.EventType))
		return nil
	}

	util.NotificationsSentTotal.WithLabelValues(base.EventType).Inc()
	return w.store.MarkEventProcessed(ctx, base.EventID, base.EventType)
}

// notifySeller is the dispatch point for seller-facing notifications. The
// actual push channel lives outside this service; here we log the intent.
func (w *NotificationWorker) notifySeller(sellerID int64, message string, orderID int64) {
	w.logger.Info("Notify seller",
		zap.Int64("seller_id", sellerID),
		zap.Int64("order_id", orderID),
		zap.String("message", message))
}

func (w *NotificationWorker) notifyCustomer(customerID int64, message string, orderID int64) {
	w.logger.Info("Notify customer",
		zap.Int64("customer_id", customerID),
		zap.Int64("order_id", orderID),
		zap.String("message", message))
}
