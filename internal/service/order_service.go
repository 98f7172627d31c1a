package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// OrderService converts cart lines into per-store orders and drives the
// fulfillment state machine. Stock deduction is deferred to acceptance for
// both checkout paths, so a Pending order never holds stock.
type OrderService struct {
	store          *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	etaBuffer      int
	logger         *zap.Logger
}

// NewOrderService creates a new order service. etaBufferMinutes is added on
// top of the slowest item's preparation estimate for delivery orders.
func NewOrderService(
	store *store.Store,
	cache *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	etaBufferMinutes int,
) *OrderService {
	return &OrderService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		etaBuffer:      etaBufferMinutes,
		logger:         util.GetLogger(),
	}
}

// CheckoutDetails carries the order-type-specific fields shared by both
// checkout paths.
type CheckoutDetails struct {
	OrderType       models.OrderType        `json:"order_type" binding:"required"`
	PaymentMethod   string                  `json:"payment_method,omitempty"`
	DeliveryDetails *models.DeliveryDetails `json:"delivery_details,omitempty"`
	PickupDetails   *models.PickupDetails   `json:"pickup_details,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
}

// CreateFromCartRequest represents a cart checkout.
type CreateFromCartRequest struct {
	CheckoutDetails
	SelectedProductIDs []int64 `json:"selected_product_ids" binding:"required,min=1"`
	IdempotencyKey     string  `json:"idempotency_key,omitempty"`
}

// DirectOrderItem is one {product, quantity} pair of a direct order.
type DirectOrderItem struct {
	ProductID  int64                     `json:"product_id" binding:"required"`
	Quantity   int                       `json:"quantity" binding:"required,min=1"`
	Selections []models.VariantSelection `json:"selections,omitempty"`
}

// CreateDirectRequest represents a checkout that bypasses the cart.
type CreateDirectRequest struct {
	CheckoutDetails
	Items []DirectOrderItem `json:"items" binding:"required,min=1,dive"`
}

// resolveDetails validates the checkout details and fills the default
// payment method. Runs before any transaction starts.
func (os *OrderService) resolveDetails(details *CheckoutDetails, now time.Time) error {
	if details.OrderType != models.OrderTypeDelivery && details.OrderType != models.OrderTypePickup {
		return validationErr("order type must be %s or %s", models.OrderTypeDelivery, models.OrderTypePickup)
	}
	if details.PaymentMethod == "" {
		details.PaymentMethod = models.DefaultPaymentMethod(details.OrderType)
	}
	if !models.ValidPaymentMethod(details.PaymentMethod) {
		return validationErr("unknown payment method %q", details.PaymentMethod)
	}

	probe := models.Order{
		OrderType:       details.OrderType,
		DeliveryDetails: details.DeliveryDetails,
		PickupDetails:   details.PickupDetails,
	}
	if err := probe.ValidateDetails(now); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// buildOrder assembles one Pending order for a group of lines that belong to
// a single store. Subtotals come from the line snapshots, never re-priced.
func (os *OrderService) buildOrder(customerID int64, product map[int64]*models.Product, lines []models.CartLine, details *CheckoutDetails) *models.Order {
	first := product[lines[0].ProductID]

	var subtotal, shipping int64
	maxPrep := 0
	items := make(models.OrderItems, 0, len(lines))
	for _, line := range lines {
		p := product[line.ProductID]
		items = append(items, models.OrderItem{
			ProductID:  line.ProductID,
			Name:       line.Snapshot.Name,
			Image:      line.Snapshot.Image,
			Selections: line.Selections,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Subtotal:   line.Subtotal,
		})
		subtotal += line.Subtotal
		if details.OrderType == models.OrderTypeDelivery {
			shipping += p.ShippingFee
		}
		prep := p.EstimatedTime
		if prep <= 0 {
			prep = 30
		}
		if prep > maxPrep {
			maxPrep = prep
		}
	}

	order := &models.Order{
		CustomerID:      customerID,
		SellerID:        first.SellerID,
		StoreID:         first.StoreID,
		Items:           items,
		TotalAmount:     subtotal + shipping,
		OrderType:       details.OrderType,
		ShippingFee:     shipping,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   details.PaymentMethod,
		DeliveryDetails: details.DeliveryDetails,
		PickupDetails:   details.PickupDetails,
		Notes:           details.Notes,
		StatusHistory: models.StatusHistory{{
			Status:    models.StatusPending,
			Timestamp: time.Now(),
		}},
	}
	if details.OrderType == models.OrderTypeDelivery {
		order.EstimatedMinutes = maxPrep + os.etaBuffer
	}
	return order
}

// groupByStore partitions lines into per-store groups, preserving cart
// order within each group and ordering groups by store id for determinism.
func groupByStore(lines []models.CartLine, product map[int64]*models.Product) [][]models.CartLine {
	byStore := make(map[int64][]models.CartLine)
	for _, line := range lines {
		p := product[line.ProductID]
		byStore[p.StoreID] = append(byStore[p.StoreID], line)
	}

	storeIDs := make([]int64, 0, len(byStore))
	for id := range byStore {
		storeIDs = append(storeIDs, id)
	}
	sort.Slice(storeIDs, func(i, j int) bool { return storeIDs[i] < storeIDs[j] })

	groups := make([][]models.CartLine, 0, len(byStore))
	for _, id := range storeIDs {
		groups = append(groups, byStore[id])
	}
	return groups
}

// CreateFromCart atomically converts the selected cart lines into one
// Pending order per store and removes the consumed lines from the cart. Any
// failure rolls back every order and the cart mutation together.
func (os *OrderService) CreateFromCart(ctx context.Context, customerID int64, req *CreateFromCartRequest) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateFromCart")
	defer span.End()

	now := time.Now()
	if err := os.resolveDetails(&req.CheckoutDetails, now); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		seen, err := os.cache.CheckIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			os.logger.Warn("Idempotency check failed", zap.Error(err))
		} else if seen {
			return nil, conflictErr("duplicate checkout request")
		}
	}

	selected := make(map[int64]bool, len(req.SelectedProductIDs))
	for _, id := range req.SelectedProductIDs {
		selected[id] = true
	}

	var orders []models.Order
	err := os.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		cart, err := os.store.GetCartByOwnerTx(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if cart == nil || cart.IsEmpty() {
			return validationErr("cart is empty")
		}

		var lines []models.CartLine
		consumed := make(map[string]bool)
		for _, line := range cart.Lines {
			if selected[line.ProductID] {
				lines = append(lines, line)
				consumed[line.ID] = true
			}
		}
		if len(lines) == 0 {
			return validationErr("none of the selected products are in the cart")
		}

		products, err := os.loadProducts(ctx, tx, lines)
		if err != nil {
			return err
		}

		for _, group := range groupByStore(lines, products) {
			order := os.buildOrder(customerID, products, group, &req.CheckoutDetails)
			if err := os.store.CreateOrderTx(ctx, tx, order); err != nil {
				return fmt.Errorf("failed to create order: %w", err)
			}
			orders = append(orders, *order)
		}

		cart.RemoveLinesByID(consumed)
		if cart.IsEmpty() {
			return os.store.DeleteCartTx(ctx, tx, customerID)
		}
		return os.store.SaveCartTx(ctx, tx, cart)
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("checkout").Inc()
		return nil, classify(err)
	}

	if req.IdempotencyKey != "" {
		if err := os.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, 24*time.Hour); err != nil {
			os.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}
	os.afterCreate(ctx, customerID, orders)
	return orders, nil
}

// CreateDirect creates orders from explicit {product, quantity} pairs with
// no cart involvement. Like the cart path, stock is only checked in an
// advisory fashion here; deduction happens at acceptance.
func (os *OrderService) CreateDirect(ctx context.Context, customerID int64, req *CreateDirectRequest) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateDirect")
	defer span.End()

	now := time.Now()
	if err := os.resolveDetails(&req.CheckoutDetails, now); err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, validationErr("quantity must be at least 1 for product %d", item.ProductID)
		}
	}

	var orders []models.Order
	err := os.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make([]int64, 0, len(req.Items))
		for _, item := range req.Items {
			ids = append(ids, item.ProductID)
		}
		loaded, err := os.store.GetProductsByIDsTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		products := make(map[int64]*models.Product, len(loaded))
		for i := range loaded {
			products[loaded[i].ID] = &loaded[i]
		}

		var lines []models.CartLine
		for _, item := range req.Items {
			p, ok := products[item.ProductID]
			if !ok {
				return notFoundErr("product %d not found", item.ProductID)
			}
			if p.HasVariants() {
				if validation := p.ValidateSelections(item.Selections); !validation.Valid {
					return &ValidationError{Message: "invalid variant selections", Fields: validation.Errors}
				}
			}
			selections := p.ResolveSelections(item.Selections)
			if check := p.CheckStock(selections, item.Quantity); !check.Available {
				return conflictErr("%s", check.Message)
			}
			unitPrice := p.CalculatePrice(selections)
			lines = append(lines, models.CartLine{
				ProductID: p.ID,
				Snapshot: models.ProductSnapshot{
					Name:      p.Name,
					Image:     p.Image,
					BasePrice: p.BasePrice,
				},
				Selections: selections,
				Quantity:   item.Quantity,
				UnitPrice:  unitPrice,
				Subtotal:   unitPrice * int64(item.Quantity),
			})
		}

		for _, group := range groupByStore(lines, products) {
			order := os.buildOrder(customerID, products, group, &req.CheckoutDetails)
			if err := os.store.CreateOrderTx(ctx, tx, order); err != nil {
				return fmt.Errorf("failed to create order: %w", err)
			}
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("direct_checkout").Inc()
		return nil, classify(err)
	}

	os.afterCreate(ctx, customerID, orders)
	return orders, nil
}

// AcceptOrder is the authoritative stock commitment: inside one transaction
// every item's product is re-validated and deducted, and the order moves to
// Accepted. One failing item aborts the whole acceptance.
func (os *OrderService) AcceptOrder(ctx context.Context, sellerID, orderID int64, prepMinutes int, note string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AcceptOrder")
	defer span.End()

	var order *models.Order
	err := os.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = os.store.GetOrderForUpdate(ctx, tx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			return authErr("only the order's seller can accept it")
		}
		if order.Status != models.StatusPending {
			return conflictErr("invalid status transition from %s to %s", order.Status, models.StatusAccepted)
		}

		// Products are locked in id order so two concurrent acceptances
		// touching the same stock cannot deadlock.
		ids := make([]int64, 0, len(order.Items))
		seen := make(map[int64]bool)
		for _, item := range order.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				ids = append(ids, item.ProductID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		products := make(map[int64]*models.Product, len(ids))
		for _, id := range ids {
			p, err := os.store.GetProductForUpdate(ctx, tx, id)
			if errors.Is(err, store.ErrNotFound) {
				util.StockConflictsTotal.Inc()
				return conflictErr("product %d is no longer available", id)
			}
			if err != nil {
				return err
			}
			products[id] = p
		}

		for _, item := range order.Items {
			p := products[item.ProductID]
			if !p.Available {
				util.StockConflictsTotal.Inc()
				return conflictErr("product %s is no longer available", item.Name)
			}
			if err := p.ApplyDeduction(item.Selections, item.Quantity); err != nil {
				util.StockConflictsTotal.Inc()
				return conflictErr("%s", err.Error())
			}
		}
		for _, id := range ids {
			if err := os.store.SaveProductStock(ctx, tx, products[id]); err != nil {
				return fmt.Errorf("failed to persist stock deduction: %w", err)
			}
		}

		if err := order.Transition(models.StatusAccepted, note); err != nil {
			return conflictErr("%s", err.Error())
		}
		now := time.Now()
		order.AcceptedAt = &now
		if prepMinutes > 0 {
			order.EstimatedMinutes = prepMinutes
		}
		return os.store.SaveOrderTx(ctx, tx, order)
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("accept").Inc()
		return nil, classify(err)
	}

	util.OrdersAcceptedTotal.Inc()
	os.publishStatus(ctx, order, models.StatusPending, models.StatusAccepted, note)
	os.logger.Info("Order accepted",
		zap.Int64("order_id", order.ID),
		zap.Int64("seller_id", sellerID))
	return order, nil
}

// CancelOrder cancels a Pending order and merges its items back into the
// customer's cart, summing quantities into matching lines. Stock is not
// restored: a Pending order never deducted any.
func (os *OrderService) CancelOrder(ctx context.Context, customerID, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	var order *models.Order
	err := os.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = os.store.GetOrderForUpdate(ctx, tx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if order.CustomerID != customerID {
			return authErr("only the order's customer can cancel it")
		}
		if order.Status != models.StatusPending {
			return conflictErr("invalid status transition from %s to %s", order.Status, models.StatusCanceled)
		}

		if err := order.Transition(models.StatusCanceled, reason); err != nil {
			return conflictErr("%s", err.Error())
		}
		now := time.Now()
		order.CanceledAt = &now
		order.CancellationReason = reason
		if err := os.store.SaveOrderTx(ctx, tx, order); err != nil {
			return err
		}

		cart, err := os.store.GetCartByOwnerTx(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = &models.Cart{OwnerID: customerID}
		}
		for _, item := range order.Items {
			snapshot := models.ProductSnapshot{
				Name:      item.Name,
				Image:     item.Image,
				BasePrice: item.UnitPrice,
			}
			cart.AddLine(item.ProductID, snapshot, item.Selections, item.UnitPrice, item.Quantity)
		}
		return os.store.SaveCartTx(ctx, tx, cart)
	})
	if err != nil {
		return nil, classify(err)
	}

	util.OrdersCancelledTotal.Inc()
	os.invalidateCartCount(ctx, customerID)
	os.publishStatus(ctx, order, models.StatusPending, models.StatusCanceled, reason)
	return order, nil
}

// UpdateStatus applies a seller-driven transition from the legal-transition
// table. Accept and cancel have dedicated operations; an estimated time may
// ride along only into Preparing or OutForDelivery.
func (os *OrderService) UpdateStatus(ctx context.Context, sellerID, orderID int64, next models.OrderStatus, note string, estimatedMinutes int) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.ValidStatus(next) {
		return nil, validationErr("unknown status %q", next)
	}
	if next == models.StatusAccepted {
		return nil, validationErr("use the accept operation to accept an order")
	}
	if next == models.StatusCanceled {
		return nil, authErr("only the customer can cancel an order")
	}

	var order *models.Order
	var prev models.OrderStatus
	err := os.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = os.store.GetOrderForUpdate(ctx, tx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			return authErr("only the order's seller can update its status")
		}

		if next == models.StatusReadyForPickup && order.OrderType != models.OrderTypePickup {
			return conflictErr("invalid status transition from %s to %s for a %s order", order.Status, next, order.OrderType)
		}
		if (next == models.StatusReady || next == models.StatusOutForDelivery) && order.OrderType != models.OrderTypeDelivery {
			return conflictErr("invalid status transition from %s to %s for a %s order", order.Status, next, order.OrderType)
		}

		prev = order.Status
		if err := order.Transition(next, note); err != nil {
			return conflictErr("%s", err.Error())
		}
		if estimatedMinutes > 0 &&
			(next == models.StatusPreparing || next == models.StatusOutForDelivery) {
			order.EstimatedMinutes = estimatedMinutes
		}
		// Pickup orders are paid in cash when handed over.
		if order.OrderType == models.OrderTypePickup && next == models.StatusDelivered {
			order.PaymentStatus = models.PaymentStatusPaid
		}
		return os.store.SaveOrderTx(ctx, tx, order)
	})
	if err != nil {
		return nil, classify(err)
	}

	if next == models.StatusRejected {
		util.OrdersRejectedTotal.Inc()
	}
	os.publishStatus(ctx, order, prev, next, note)
	return order, nil
}

// GetOrder retrieves an order, visible only to its customer or seller.
func (os *OrderService) GetOrder(ctx context.Context, callerID, orderID int64) (*models.Order, error) {
	order, err := os.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("order %d not found", orderID)
	}
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if order.CustomerID != callerID && order.SellerID != callerID {
		return nil, authErr("not authorized to view this order")
	}
	return order, nil
}

// ListCustomerOrders lists the caller's own orders.
func (os *OrderService) ListCustomerOrders(ctx context.Context, customerID int64, filter store.OrderFilter) ([]models.Order, int, error) {
	filter.CustomerID = customerID
	filter.SellerID = 0
	return os.list(ctx, filter)
}

// ListSellerOrders lists orders addressed to the calling seller.
func (os *OrderService) ListSellerOrders(ctx context.Context, sellerID int64, filter store.OrderFilter) ([]models.Order, int, error) {
	filter.SellerID = sellerID
	filter.CustomerID = 0
	return os.list(ctx, filter)
}

func (os *OrderService) list(ctx context.Context, filter store.OrderFilter) ([]models.Order, int, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, 0, validationErr("unknown status %q", filter.Status)
	}
	orders, err := os.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, &TransientError{Err: err}
	}
	total, err := os.store.CountOrders(ctx, filter)
	if err != nil {
		return nil, 0, &TransientError{Err: err}
	}
	return orders, total, nil
}

func (os *OrderService) afterCreate(ctx context.Context, customerID int64, orders []models.Order) {
	os.invalidateCartCount(ctx, customerID)
	for i := range orders {
		util.OrdersCreatedTotal.Inc()
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:     orders[i].ID,
			CustomerID:  orders[i].CustomerID,
			SellerID:    orders[i].SellerID,
			StoreID:     orders[i].StoreID,
			OrderType:   orders[i].OrderType,
			TotalAmount: orders[i].TotalAmount,
			ItemCount:   len(orders[i].Items),
		}
		if err := os.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
			os.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
		os.logger.Info("Order created",
			zap.Int64("order_id", orders[i].ID),
			zap.Int64("store_id", orders[i].StoreID),
			zap.Int64("total_amount", orders[i].TotalAmount))
	}
}

func (os *OrderService) publishStatus(ctx context.Context, order *models.Order, from, to models.OrderStatus, note string) {
	event := &models.OrderStatusEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatus,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		SellerID:   order.SellerID,
		From:       from,
		To:         to,
		Note:       note,
	}
	if err := os.eventPublisher.PublishOrderStatus(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderStatus event", zap.Error(err))
	}
}

func (os *OrderService) invalidateCartCount(ctx context.Context, ownerID int64) {
	if err := os.cache.InvalidateCartCount(ctx, ownerID); err != nil {
		os.logger.Warn("Failed to invalidate cart count cache",
			zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

// loadProducts resolves every line's product inside the transaction.
func (os *OrderService) loadProducts(ctx context.Context, tx *sqlx.Tx, lines []models.CartLine) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool)
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	loaded, err := os.store.GetProductsByIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[int64]*models.Product, len(loaded))
	for i := range loaded {
		products[loaded[i].ID] = &loaded[i]
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, notFoundErr("product %d not found", id)
		}
	}
	return products, nil
}

// classify wraps untyped errors as transient so the caller knows the whole
// operation was rolled back and may retry.
func classify(err error) error {
	var ve *ValidationError
	var ae *AuthorizationError
	var ce *ConflictError
	var ne *NotFoundError
	var te *TransientError
	if errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &ce) ||
		errors.As(err, &ne) || errors.As(err, &te) {
		return err
	}
	return &TransientError{Err: err}
}
