package models

import "time"

// Event types for outbound notifications. Delivery is best-effort: a failed
// publish never fails the operation that produced it.
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderStatus     = "ORDER_STATUS_CHANGED"
	EventTypePaymentReviewed = "PAYMENT_REVIEWED"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published once per order created by a checkout.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64     `json:"order_id"`
	CustomerID  int64     `json:"customer_id"`
	SellerID    int64     `json:"seller_id"`
	StoreID     int64     `json:"store_id"`
	OrderType   OrderType `json:"order_type"`
	TotalAmount int64     `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
}

// OrderStatusEvent is published on every status transition.
type OrderStatusEvent struct {
	BaseEvent
	OrderID    int64       `json:"order_id"`
	CustomerID int64       `json:"customer_id"`
	SellerID   int64       `json:"seller_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	Note       string      `json:"note,omitempty"`
}

// PaymentReviewedEvent is published when a seller approves or rejects a
// manual payment proof.
type PaymentReviewedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	SellerID   int64  `json:"seller_id"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
}
