package store

import (
	"context"
	"database/sql"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartColumns = `id, owner_id, lines, total, line_count, updated_at`

// GetCartByOwner retrieves the owner's cart, or nil when none exists.
// Callers treat "no cart" and "empty cart" the same.
func (s *Store) GetCartByOwner(ctx context.Context, ownerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT "+cartColumns+" FROM carts WHERE owner_id = $1", ownerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartByOwnerTx is GetCartByOwner inside a transaction, with a row lock.
func (s *Store) GetCartByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := tx.GetContext(ctx, &cart,
		"SELECT "+cartColumns+" FROM carts WHERE owner_id = $1 FOR UPDATE", ownerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// SaveCart upserts the cart document keyed by owner id. The caller must have
// run Recompute; totals are persisted as given.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	query := `
		INSERT INTO carts (owner_id, lines, total, line_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET lines = EXCLUDED.lines, total = EXCLUDED.total,
			line_count = EXCLUDED.line_count, updated_at = NOW()
		RETURNING id, updated_at`

	return s.db.GetContext(ctx, cart, query,
		cart.OwnerID, cart.Lines, cart.Total, cart.LineCount)
}

// SaveCartTx is SaveCart inside a transaction.
func (s *Store) SaveCartTx(ctx context.Context, tx *sqlx.Tx, cart *models.Cart) error {
	query := `
		INSERT INTO carts (owner_id, lines, total, line_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET lines = EXCLUDED.lines, total = EXCLUDED.total,
			line_count = EXCLUDED.line_count, updated_at = NOW()
		RETURNING id, updated_at`

	return tx.GetContext(ctx, cart, query,
		cart.OwnerID, cart.Lines, cart.Total, cart.LineCount)
}

// DeleteCart removes the owner's cart document entirely.
func (s *Store) DeleteCart(ctx context.Context, ownerID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM carts WHERE owner_id = $1", ownerID)
	return err
}

// DeleteCartTx is DeleteCart inside a transaction.
func (s *Store) DeleteCartTx(ctx context.Context, tx *sqlx.Tx, ownerID int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM carts WHERE owner_id = $1", ownerID)
	return err
}
