package models

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "Pending"
	StatusAccepted       OrderStatus = "Accepted"
	StatusRejected       OrderStatus = "Rejected"
	StatusPreparing      OrderStatus = "Preparing"
	StatusReady          OrderStatus = "Ready"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusReadyForPickup OrderStatus = "Ready for Pickup"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCanceled       OrderStatus = "Canceled"
)

// statusTransitions is the legal-transition table, keyed by current status.
// Anything absent is rejected. Pickup orders branch at Preparing into
// ReadyForPickup; delivery orders go through Ready and OutForDelivery.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusAccepted, StatusRejected, StatusCanceled},
	StatusAccepted:       {StatusPreparing},
	StatusPreparing:      {StatusReady, StatusReadyForPickup},
	StatusReady:          {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusReadyForPickup: {StatusDelivered},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal next statuses for the given status. The
// returned slice is a copy.
func NextStatuses(from OrderStatus) []OrderStatus {
	next := statusTransitions[from]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(status OrderStatus) bool {
	return len(statusTransitions[status]) == 0
}

// ValidStatus reports whether the value names a known status.
func ValidStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusAccepted, StatusRejected, StatusPreparing,
		StatusReady, StatusOutForDelivery, StatusReadyForPickup,
		StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// AllStatuses lists every known status, for exhaustive checks.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPending, StatusAccepted, StatusRejected, StatusPreparing,
		StatusReady, StatusOutForDelivery, StatusReadyForPickup,
		StatusDelivered, StatusCanceled,
	}
}
