package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionAppendsHistory(t *testing.T) {
	order := &Order{
		Status:        StatusPending,
		StatusHistory: StatusHistory{{Status: StatusPending, Timestamp: time.Now()}},
	}

	require.NoError(t, order.Transition(StatusAccepted, "on it"))
	assert.Equal(t, StatusAccepted, order.Status)
	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, StatusAccepted, order.StatusHistory[1].Status)
	assert.Equal(t, "on it", order.StatusHistory[1].Note)
}

func TestTransitionIllegal(t *testing.T) {
	order := &Order{Status: StatusPending}

	err := order.Transition(StatusDelivered, "")
	assert.Error(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.Empty(t, order.StatusHistory)
}

func TestValidateDetailsDelivery(t *testing.T) {
	now := time.Now()

	order := &Order{OrderType: OrderTypeDelivery}
	assert.Error(t, order.ValidateDetails(now))

	order.DeliveryDetails = &DeliveryDetails{
		ReceiverName:  "Ana",
		ContactNumber: "09170000000",
		Building:      "Tower B",
	}
	err := order.ValidateDetails(now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room number")

	order.DeliveryDetails.RoomNumber = "1204"
	assert.NoError(t, order.ValidateDetails(now))

	// A delivery order must not also carry pickup details.
	order.PickupDetails = &PickupDetails{ContactNumber: "09170000000", PickupTime: now.Add(time.Hour)}
	assert.Error(t, order.ValidateDetails(now))
}

func TestValidateDetailsPickup(t *testing.T) {
	now := time.Now()

	order := &Order{OrderType: OrderTypePickup}
	assert.Error(t, order.ValidateDetails(now))

	order.PickupDetails = &PickupDetails{
		ContactNumber: "09170000000",
		PickupTime:    now.Add(-time.Minute),
	}
	err := order.ValidateDetails(now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")

	order.PickupDetails.PickupTime = now.Add(30 * time.Minute)
	assert.NoError(t, order.ValidateDetails(now))
}

func TestDefaultPaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentCashOnDelivery, DefaultPaymentMethod(OrderTypeDelivery))
	assert.Equal(t, PaymentCashOnPickup, DefaultPaymentMethod(OrderTypePickup))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentCashOnDelivery))
	assert.True(t, ValidPaymentMethod(PaymentGCash))
	assert.True(t, ValidPaymentMethod(PaymentGCashManual))
	assert.False(t, ValidPaymentMethod("Barter"))
}
