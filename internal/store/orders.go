package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, customer_id, seller_id, store_id, items, total_amount,
	order_type, shipping_fee, status, status_history, payment_status, payment_method,
	delivery_details, pickup_details, estimated_minutes, payment_proof, notes,
	accepted_at, canceled_at, cancellation_reason, created_at, updated_at`

// CreateOrderTx inserts an order inside tx. Checkout creates one order per
// store group; a failure on any of them aborts the whole transaction.
func (s *Store) CreateOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, seller_id, store_id, items, total_amount,
			order_type, shipping_fee, status, status_history, payment_status,
			payment_method, delivery_details, pickup_details, estimated_minutes, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, order, query,
		order.CustomerID, order.SellerID, order.StoreID, order.Items, order.TotalAmount,
		order.OrderType, order.ShippingFee, order.Status, order.StatusHistory,
		order.PaymentStatus, order.PaymentMethod, order.DeliveryDetails,
		order.PickupDetails, order.EstimatedMinutes, order.Notes)
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &order, nil
}

// GetOrderForUpdate loads an order inside tx with a row lock, so concurrent
// acceptances of the same order serialize.
func (s *Store) GetOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &order, nil
}

// SaveOrder persists the mutable fields of an order.
func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	return s.saveOrder(ctx, s.db, order)
}

// SaveOrderTx is SaveOrder inside a transaction.
func (s *Store) SaveOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	return s.saveOrder(ctx, tx, order)
}

func (s *Store) saveOrder(ctx context.Context, q sqlx.ExtContext, order *models.Order) error {
	_, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, status_history = $2, payment_status = $3, payment_proof = $4,
			estimated_minutes = $5, notes = $6, accepted_at = $7, canceled_at = $8,
			cancellation_reason = $9, updated_at = NOW()
		WHERE id = $10`,
		order.Status, order.StatusHistory, order.PaymentStatus, order.PaymentProof,
		order.EstimatedMinutes, order.Notes, order.AcceptedAt, order.CanceledAt,
		order.CancellationReason, order.ID)
	return err
}

// OrderFilter narrows and paginates order listings.
type OrderFilter struct {
	CustomerID int64
	SellerID   int64
	Status     models.OrderStatus
	OrderType  models.OrderType
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
	SortAsc    bool
}

// ListOrders retrieves orders matching the filter, newest first unless
// SortAsc is set.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.SellerID != 0 {
		add("seller_id = $%d", filter.SellerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.OrderType != "" {
		add("order_type = $%d", filter.OrderType)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.SortAsc {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// CountOrders returns the number of orders matching the filter's identity
// and status fields, for pagination metadata.
func (s *Store) CountOrders(ctx context.Context, filter OrderFilter) (int, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.SellerID != 0 {
		add("seller_id = $%d", filter.SellerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.OrderType != "" {
		add("order_type = $%d", filter.OrderType)
	}

	query := "SELECT COUNT(*) FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	err := s.db.GetContext(ctx, &count, query, args...)
	return count, err
}
