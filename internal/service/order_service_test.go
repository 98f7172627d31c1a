package service

import (
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() map[int64]*models.Product {
	return map[int64]*models.Product{
		1: {ID: 1, SellerID: 10, StoreID: 100, ShippingFee: 1000, EstimatedTime: 20},
		2: {ID: 2, SellerID: 10, StoreID: 100, ShippingFee: 500, EstimatedTime: 45},
		3: {ID: 3, SellerID: 20, StoreID: 200, ShippingFee: 2000},
	}
}

func testLines() []models.CartLine {
	return []models.CartLine{
		{ID: "l1", ProductID: 1, Snapshot: models.ProductSnapshot{Name: "A"}, Quantity: 2, UnitPrice: 1000, Subtotal: 2000},
		{ID: "l2", ProductID: 3, Snapshot: models.ProductSnapshot{Name: "C"}, Quantity: 1, UnitPrice: 700, Subtotal: 700},
		{ID: "l3", ProductID: 2, Snapshot: models.ProductSnapshot{Name: "B"}, Quantity: 1, UnitPrice: 500, Subtotal: 500},
	}
}

func TestGroupByStore(t *testing.T) {
	groups := groupByStore(testLines(), testProducts())

	require.Len(t, groups, 2)
	// Groups come out ordered by store id; cart order is kept within each.
	require.Len(t, groups[0], 2)
	assert.Equal(t, "l1", groups[0][0].ID)
	assert.Equal(t, "l3", groups[0][1].ID)
	require.Len(t, groups[1], 1)
	assert.Equal(t, "l2", groups[1][0].ID)
}

func TestBuildOrderDelivery(t *testing.T) {
	os := &OrderService{etaBuffer: 15}
	products := testProducts()
	details := &CheckoutDetails{
		OrderType:       models.OrderTypeDelivery,
		PaymentMethod:   models.PaymentCashOnDelivery,
		DeliveryDetails: &models.DeliveryDetails{ReceiverName: "Ana"},
	}

	lines := []models.CartLine{
		{ProductID: 1, Snapshot: models.ProductSnapshot{Name: "A"}, Quantity: 2, UnitPrice: 1000, Subtotal: 2000},
		{ProductID: 2, Snapshot: models.ProductSnapshot{Name: "B"}, Quantity: 1, UnitPrice: 500, Subtotal: 500},
	}

	order := os.buildOrder(7, products, lines, details)

	assert.Equal(t, int64(7), order.CustomerID)
	assert.Equal(t, int64(10), order.SellerID)
	assert.Equal(t, int64(100), order.StoreID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	// Amounts come from line snapshots: 2500 subtotal + 1500 shipping.
	assert.Equal(t, int64(1500), order.ShippingFee)
	assert.Equal(t, int64(4000), order.TotalAmount)

	// ETA = slowest prep (45) + buffer (15).
	assert.Equal(t, 60, order.EstimatedMinutes)

	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, order.StatusHistory[0].Status)
}

func TestBuildOrderPickupNoShippingNoEta(t *testing.T) {
	os := &OrderService{etaBuffer: 15}
	products := testProducts()
	details := &CheckoutDetails{
		OrderType:     models.OrderTypePickup,
		PaymentMethod: models.PaymentCashOnPickup,
	}

	lines := []models.CartLine{
		{ProductID: 1, Quantity: 1, UnitPrice: 1000, Subtotal: 1000},
	}

	order := os.buildOrder(7, products, lines, details)
	assert.Equal(t, int64(0), order.ShippingFee)
	assert.Equal(t, int64(1000), order.TotalAmount)
	assert.Equal(t, 0, order.EstimatedMinutes)
}

func TestBuildOrderDefaultPrepTime(t *testing.T) {
	os := &OrderService{etaBuffer: 15}
	products := testProducts()
	details := &CheckoutDetails{
		OrderType:       models.OrderTypeDelivery,
		DeliveryDetails: &models.DeliveryDetails{},
	}

	// Product 3 has no preparation estimate; the default of 30 applies.
	lines := []models.CartLine{
		{ProductID: 3, Quantity: 1, UnitPrice: 700, Subtotal: 700},
	}

	order := os.buildOrder(7, products, lines, details)
	assert.Equal(t, 45, order.EstimatedMinutes)
}

func TestResolveDetailsDefaultsPaymentMethod(t *testing.T) {
	os := &OrderService{}
	now := time.Now()

	details := &CheckoutDetails{
		OrderType:       models.OrderTypeDelivery,
		DeliveryDetails: &models.DeliveryDetails{ReceiverName: "Ana", ContactNumber: "0917", Building: "B", RoomNumber: "1"},
	}
	require.NoError(t, os.resolveDetails(details, now))
	assert.Equal(t, models.PaymentCashOnDelivery, details.PaymentMethod)

	details = &CheckoutDetails{
		OrderType:     models.OrderTypePickup,
		PickupDetails: &models.PickupDetails{ContactNumber: "0917", PickupTime: now.Add(time.Hour)},
	}
	require.NoError(t, os.resolveDetails(details, now))
	assert.Equal(t, models.PaymentCashOnPickup, details.PaymentMethod)
}

func TestResolveDetailsRejectsBadInput(t *testing.T) {
	os := &OrderService{}
	now := time.Now()

	err := os.resolveDetails(&CheckoutDetails{OrderType: "Teleport"}, now)
	assert.Error(t, err)

	err = os.resolveDetails(&CheckoutDetails{
		OrderType:       models.OrderTypeDelivery,
		PaymentMethod:   "Barter",
		DeliveryDetails: &models.DeliveryDetails{ReceiverName: "Ana", ContactNumber: "0917", Building: "B", RoomNumber: "1"},
	}, now)
	assert.Error(t, err)

	// Missing detail block for the order type.
	err = os.resolveDetails(&CheckoutDetails{OrderType: models.OrderTypePickup}, now)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestClassify(t *testing.T) {
	conflict := conflictErr("stock gone")
	assert.Equal(t, conflict, classify(conflict))

	notFound := notFoundErr("order 1 not found")
	assert.Equal(t, notFound, classify(notFound))

	var te *TransientError
	assert.ErrorAs(t, classify(errors.New("connection reset")), &te)
}

func TestCreateFromCartConcurrency(t *testing.T) {
	// Requires a database: two concurrent checkouts of the same cart line
	// must produce exactly one order between them.
	t.Skip("Integration test - requires database")
}
