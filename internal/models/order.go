package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderType distinguishes delivery orders from pickup orders; the populated
// detail block must match.
type OrderType string

const (
	OrderTypeDelivery OrderType = "Delivery"
	OrderTypePickup   OrderType = "Pickup"
)

// Payment methods. GCash goes through the hosted gateway; GCashManual is the
// offline transfer that requires customer-submitted proof and seller review.
const (
	PaymentCashOnDelivery = "Cash on Delivery"
	PaymentCashOnPickup   = "Cash on Pickup"
	PaymentGCash          = "GCash"
	PaymentGCashManual    = "GCash_Manual"
)

// Payment statuses.
const (
	PaymentStatusPending = "Pending"
	PaymentStatusPaid    = "Paid"
	PaymentStatusFailed  = "Failed"
)

// Payment proof review statuses.
const (
	ProofPendingVerification = "pending_verification"
	ProofApproved            = "approved"
	ProofRejected            = "rejected"
)

// OrderItem is the immutable, order-scoped counterpart of a cart line,
// snapshotted at order-creation time and never re-priced.
type OrderItem struct {
	ProductID  int64              `json:"product_id"`
	Name       string             `json:"name"`
	Image      string             `json:"image,omitempty"`
	Selections []VariantSelection `json:"selections,omitempty"`
	Quantity   int                `json:"quantity"`
	UnitPrice  int64              `json:"unit_price"`
	Subtotal   int64              `json:"subtotal"`
}

// OrderItems is stored as a JSONB column on the orders table.
type OrderItems []OrderItem

func (oi OrderItems) Value() (driver.Value, error) {
	if oi == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(oi)
}

func (oi *OrderItems) Scan(src interface{}) error {
	return scanJSON(src, oi)
}

// StatusEntry is one row of the append-only transition log.
type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// StatusHistory is stored as a JSONB column on the orders table.
type StatusHistory []StatusEntry

func (sh StatusHistory) Value() (driver.Value, error) {
	if sh == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(sh)
}

func (sh *StatusHistory) Scan(src interface{}) error {
	return scanJSON(src, sh)
}

// DeliveryDetails is required on Delivery orders.
type DeliveryDetails struct {
	ReceiverName           string `json:"receiver_name"`
	ContactNumber          string `json:"contact_number"`
	Building               string `json:"building"`
	RoomNumber             string `json:"room_number"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

func (d DeliveryDetails) Value() (driver.Value, error) { return json.Marshal(d) }
func (d *DeliveryDetails) Scan(src interface{}) error  { return scanJSON(src, d) }

// Validate reports the missing required delivery fields.
func (d *DeliveryDetails) Validate() error {
	var missing []string
	if d == nil {
		return fmt.Errorf("delivery details are required for delivery orders")
	}
	if strings.TrimSpace(d.ReceiverName) == "" {
		missing = append(missing, "receiver name")
	}
	if strings.TrimSpace(d.ContactNumber) == "" {
		missing = append(missing, "contact number")
	}
	if strings.TrimSpace(d.Building) == "" {
		missing = append(missing, "building")
	}
	if strings.TrimSpace(d.RoomNumber) == "" {
		missing = append(missing, "room number")
	}
	if len(missing) > 0 {
		return fmt.Errorf("delivery details incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// PickupDetails is required on Pickup orders. PickupTime must be in the
// future at order creation.
type PickupDetails struct {
	ContactNumber string    `json:"contact_number"`
	PickupTime    time.Time `json:"pickup_time"`
}

func (d PickupDetails) Value() (driver.Value, error) { return json.Marshal(d) }
func (d *PickupDetails) Scan(src interface{}) error  { return scanJSON(src, d) }

// Validate reports missing or invalid pickup fields.
func (d *PickupDetails) Validate(now time.Time) error {
	if d == nil {
		return fmt.Errorf("pickup details are required for pickup orders")
	}
	if strings.TrimSpace(d.ContactNumber) == "" {
		return fmt.Errorf("pickup details incomplete: missing contact number")
	}
	if d.PickupTime.IsZero() {
		return fmt.Errorf("pickup details incomplete: missing pickup time")
	}
	if !d.PickupTime.After(now) {
		return fmt.Errorf("pickup time must be in the future")
	}
	return nil
}

// PaymentProof is the manual-transfer payment evidence embedded in an order.
type PaymentProof struct {
	Reference       string     `json:"reference"`
	ProofImage      string     `json:"proof_image"`
	Status          string     `json:"status"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      int64      `json:"reviewed_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

func (p PaymentProof) Value() (driver.Value, error) { return json.Marshal(p) }
func (p *PaymentProof) Scan(src interface{}) error  { return scanJSON(src, p) }

// Order is one per (checkout event, store). Items and amounts are snapshots;
// the status field walks the transition table in status.go.
type Order struct {
	ID                 int64            `db:"id" json:"id"`
	CustomerID         int64            `db:"customer_id" json:"customer_id"`
	SellerID           int64            `db:"seller_id" json:"seller_id"`
	StoreID            int64            `db:"store_id" json:"store_id"`
	Items              OrderItems       `db:"items" json:"items"`
	TotalAmount        int64            `db:"total_amount" json:"total_amount"`
	OrderType          OrderType        `db:"order_type" json:"order_type"`
	ShippingFee        int64            `db:"shipping_fee" json:"shipping_fee"`
	Status             OrderStatus      `db:"status" json:"status"`
	StatusHistory      StatusHistory    `db:"status_history" json:"status_history"`
	PaymentStatus      string           `db:"payment_status" json:"payment_status"`
	PaymentMethod      string           `db:"payment_method" json:"payment_method"`
	DeliveryDetails    *DeliveryDetails `db:"delivery_details" json:"delivery_details,omitempty"`
	PickupDetails      *PickupDetails   `db:"pickup_details" json:"pickup_details,omitempty"`
	EstimatedMinutes   int              `db:"estimated_minutes" json:"estimated_minutes,omitempty"`
	PaymentProof       *PaymentProof    `db:"payment_proof" json:"payment_proof,omitempty"`
	Notes              string           `db:"notes" json:"notes,omitempty"`
	AcceptedAt         *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
	CanceledAt         *time.Time       `db:"canceled_at" json:"canceled_at,omitempty"`
	CancellationReason string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Transition moves the order to the next status after consulting the legal
// transition table, appending to the status history.
func (o *Order) Transition(next OrderStatus, note string) error {
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("invalid status transition from %s to %s", o.Status, next)
	}
	o.Status = next
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    next,
		Timestamp: time.Now(),
		Note:      note,
	})
	return nil
}

// ValidateDetails checks that exactly the detail block matching the order
// type is populated and complete.
func (o *Order) ValidateDetails(now time.Time) error {
	switch o.OrderType {
	case OrderTypeDelivery:
		if o.PickupDetails != nil {
			return fmt.Errorf("delivery order must not carry pickup details")
		}
		return o.DeliveryDetails.Validate()
	case OrderTypePickup:
		if o.DeliveryDetails != nil {
			return fmt.Errorf("pickup order must not carry delivery details")
		}
		return o.PickupDetails.Validate(now)
	default:
		return fmt.Errorf("unknown order type %q", o.OrderType)
	}
}

// DefaultPaymentMethod returns the cash method matching the order type.
func DefaultPaymentMethod(orderType OrderType) string {
	if orderType == OrderTypePickup {
		return PaymentCashOnPickup
	}
	return PaymentCashOnDelivery
}

// ValidPaymentMethod reports whether the method is one the engine knows.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCashOnDelivery, PaymentCashOnPickup, PaymentGCash, PaymentGCashManual:
		return true
	}
	return false
}
