package store

import (
	"context"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, seller_id, store_id, name, description, image, category,
	base_price, stock, available, estimated_time, shipping_fee, total_sold,
	variants, created_at, updated_at`

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductsByIDsTx retrieves multiple products inside a transaction.
func (s *Store) GetProductsByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var products []models.Product
	err = tx.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductForUpdate loads a product inside tx with a row lock, so two
// concurrent acceptances serialize on the same stock.
func (s *Store) GetProductForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &product, nil
}

// SaveProductStock persists the stock-bearing fields of a product inside tx.
// Only ever called from the order-acceptance deduction path.
func (s *Store) SaveProductStock(ctx context.Context, tx *sqlx.Tx, p *models.Product) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $1, variants = $2, available = $3, total_sold = $4, updated_at = NOW()
		WHERE id = $5`,
		p.Stock, p.Variants, p.Available, p.TotalSold, p.ID)
	return err
}

// CreateProduct inserts a new catalog entry.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (seller_id, store_id, name, description, image, category,
			base_price, stock, available, estimated_time, shipping_fee, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.SellerID, p.StoreID, p.Name, p.Description, p.Image, p.Category,
		p.BasePrice, p.Stock, p.Available, p.EstimatedTime, p.ShippingFee, p.Variants)
}

// UpdateProduct persists seller edits to a catalog entry.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, image = $3, category = $4, base_price = $5,
			stock = $6, available = $7, estimated_time = $8, shipping_fee = $9,
			variants = $10, updated_at = NOW()
		WHERE id = $11 AND seller_id = $12`,
		p.Name, p.Description, p.Image, p.Category, p.BasePrice,
		p.Stock, p.Available, p.EstimatedTime, p.ShippingFee,
		p.Variants, p.ID, p.SellerID)
	return err
}

// ListProductsByStore retrieves a store's catalog, newest first.
func (s *Store) ListProductsByStore(ctx context.Context, storeID int64) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE store_id = $1 ORDER BY created_at DESC", storeID)
	return products, err
}
