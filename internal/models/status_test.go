package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTable(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		StatusPending:        {StatusAccepted, StatusRejected, StatusCanceled},
		StatusAccepted:       {StatusPreparing},
		StatusPreparing:      {StatusReady, StatusReadyForPickup},
		StatusReady:          {StatusOutForDelivery},
		StatusOutForDelivery: {StatusDelivered},
		StatusReadyForPickup: {StatusDelivered},
		StatusRejected:       {},
		StatusDelivered:      {},
		StatusCanceled:       {},
	}

	// Exhaustive check: everything in the table is allowed, everything
	// else is rejected.
	for _, from := range AllStatuses() {
		legal := map[OrderStatus]bool{}
		for _, to := range allowed[from] {
			legal[to] = true
		}
		for _, to := range AllStatuses() {
			assert.Equal(t, legal[to], CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestNoSkippingToDelivered(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, StatusDelivered))
	assert.False(t, CanTransition(StatusAccepted, StatusDelivered))
	assert.False(t, CanTransition(StatusPreparing, StatusDelivered))
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminal(StatusRejected))
	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCanceled))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusPreparing))
}

func TestValidStatus(t *testing.T) {
	for _, status := range AllStatuses() {
		assert.True(t, ValidStatus(status))
	}
	assert.False(t, ValidStatus("Shipped"))
	assert.False(t, ValidStatus(""))
}
