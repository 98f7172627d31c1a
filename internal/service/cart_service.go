package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// CartService handles cart mutations. Stock checks here are advisory; the
// authoritative check happens at order acceptance.
type CartService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store, cache *redisclient.Client) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// AddItemRequest represents a request to add a product to the cart
type AddItemRequest struct {
	ProductID  int64                     `json:"product_id" binding:"required"`
	Selections []models.VariantSelection `json:"selections,omitempty"`
	Quantity   int                       `json:"quantity" binding:"required,min=1"`
}

// AddItem looks up or creates the caller's cart and merges the product into
// it, deduplicating by (product, variant-selection) identity. The price
// snapshot of an existing line is preserved on merge.
func (cs *CartService) AddItem(ctx context.Context, ownerID int64, req *AddItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if req.Quantity < 1 {
		return nil, validationErr("quantity must be at least 1")
	}

	product, err := cs.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("product %d not found", req.ProductID)
		}
		return nil, &TransientError{Err: err}
	}

	if product.HasVariants() {
		validation := product.ValidateSelections(req.Selections)
		if !validation.Valid {
			return nil, &ValidationError{
				Message: "invalid variant selections",
				Fields:  validation.Errors,
			}
		}
	}

	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if cart == nil {
		cart = &models.Cart{OwnerID: ownerID}
	}

	selections := product.ResolveSelections(req.Selections)

	// Stock is checked against the merged quantity when the line exists.
	checkQty := req.Quantity
	if existing := cart.FindLineByKey(models.SelectionKey(product.ID, selections)); existing != nil {
		checkQty += existing.Quantity
	}
	if check := product.CheckStock(selections, checkQty); !check.Available {
		return nil, conflictErr("%s", check.Message)
	}

	snapshot := models.ProductSnapshot{
		Name:      product.Name,
		Image:     product.Image,
		BasePrice: product.BasePrice,
	}
	for _, sel := range selections {
		if sel.Image != "" {
			snapshot.Image = sel.Image
			break
		}
	}

	unitPrice := product.CalculatePrice(selections)
	line, merged := cart.AddLine(product.ID, snapshot, selections, unitPrice, req.Quantity)

	if err := cs.store.SaveCart(ctx, cart); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to save cart: %w", err)}
	}

	cs.invalidateCount(ctx, ownerID)
	util.CartItemsAddedTotal.Inc()
	cs.logger.Info("Cart item added",
		zap.Int64("owner_id", ownerID),
		zap.Int64("product_id", product.ID),
		zap.String("line_id", line.ID),
		zap.Bool("merged", merged))

	return cart, nil
}

// GetCart returns the caller's cart; a missing cart is returned empty.
func (cs *CartService) GetCart(ctx context.Context, ownerID int64) (*models.Cart, error) {
	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if cart == nil {
		cart = &models.Cart{OwnerID: ownerID, Lines: models.CartLines{}}
	}
	return cart, nil
}

// SetQuantity updates one line's quantity; zero or less removes the line.
// Raising the quantity re-validates stock for the new amount.
func (cs *CartService) SetQuantity(ctx context.Context, ownerID int64, lineID string, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.SetQuantity")
	defer span.End()

	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if cart == nil {
		return nil, notFoundErr("cart not found")
	}

	line := cart.FindLine(lineID)
	if line == nil {
		return nil, notFoundErr("item not found in cart")
	}

	if quantity > 0 {
		product, err := cs.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, notFoundErr("product no longer available")
			}
			return nil, &TransientError{Err: err}
		}
		if check := product.CheckStock(line.Selections, quantity); !check.Available {
			return nil, conflictErr("%s", check.Message)
		}
	}

	cart.SetLineQuantity(lineID, quantity)
	if err := cs.persist(ctx, cart); err != nil {
		return nil, err
	}
	cs.invalidateCount(ctx, ownerID)
	return cart, nil
}

// RemoveItem removes one line from the cart.
func (cs *CartService) RemoveItem(ctx context.Context, ownerID int64, lineID string) (*models.Cart, error) {
	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if cart == nil {
		return nil, notFoundErr("cart not found")
	}
	if !cart.RemoveLine(lineID) {
		return nil, notFoundErr("item not found in cart")
	}
	if err := cs.persist(ctx, cart); err != nil {
		return nil, err
	}
	cs.invalidateCount(ctx, ownerID)
	return cart, nil
}

// ClearCart removes every line and deletes the cart document.
func (cs *CartService) ClearCart(ctx context.Context, ownerID int64) error {
	if err := cs.store.DeleteCart(ctx, ownerID); err != nil {
		return &TransientError{Err: err}
	}
	cs.invalidateCount(ctx, ownerID)
	return nil
}

// Count returns the cart line-count summary, served from cache when warm.
func (cs *CartService) Count(ctx context.Context, ownerID int64) (int, error) {
	if count, ok := cs.cache.GetCartCount(ctx, ownerID); ok {
		return count, nil
	}

	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return 0, &TransientError{Err: err}
	}
	count := 0
	if cart != nil {
		count = cart.LineCount
	}
	if err := cs.cache.SetCartCount(ctx, ownerID, count); err != nil {
		cs.logger.Warn("Failed to cache cart count", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
	return count, nil
}

// CartIssue describes one problem found while re-validating a cart line.
type CartIssue struct {
	LineID string `json:"line_id"`
	Issue  string `json:"issue"`
	Action string `json:"action"`
}

// ValidateItems re-resolves every line's product and marks lines whose
// product vanished, whose selections became invalid, or whose stock no
// longer covers the quantity. Quantities are never auto-corrected.
func (cs *CartService) ValidateItems(ctx context.Context, ownerID int64) ([]CartIssue, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ValidateItems")
	defer span.End()

	cart, err := cs.store.GetCartByOwner(ctx, ownerID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if cart == nil || cart.IsEmpty() {
		return nil, nil
	}

	var issues []CartIssue
	for i := range cart.Lines {
		line := &cart.Lines[i]

		product, err := cs.store.GetProduct(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			line.IsModified = true
			line.ModificationNote = "Product no longer available"
			issues = append(issues, CartIssue{LineID: line.ID, Issue: "Product deleted", Action: "remove"})
			continue
		}
		if err != nil {
			return nil, &TransientError{Err: err}
		}

		if validation := product.ValidateSelections(line.Selections); !validation.Valid {
			note := fmt.Sprintf("%v", validation.Errors)
			line.IsModified = true
			line.ModificationNote = note
			issues = append(issues, CartIssue{LineID: line.ID, Issue: note, Action: "review"})
			continue
		}

		if check := product.CheckStock(line.Selections, line.Quantity); !check.Available {
			line.IsModified = true
			line.ModificationNote = check.Message
			issues = append(issues, CartIssue{LineID: line.ID, Issue: check.Message, Action: "reduce_quantity"})
		}
	}

	if len(issues) > 0 {
		if err := cs.persist(ctx, cart); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

// persist saves the cart, deleting the document when it went empty so that
// "no cart" and "empty cart" stay observably equivalent.
func (cs *CartService) persist(ctx context.Context, cart *models.Cart) error {
	if cart.IsEmpty() {
		if err := cs.store.DeleteCart(ctx, cart.OwnerID); err != nil {
			return &TransientError{Err: err}
		}
		return nil
	}
	cart.Recompute()
	if err := cs.store.SaveCart(ctx, cart); err != nil {
		return &TransientError{Err: fmt.Errorf("failed to save cart: %w", err)}
	}
	return nil
}

func (cs *CartService) invalidateCount(ctx context.Context, ownerID int64) {
	if err := cs.cache.InvalidateCartCount(ctx, ownerID); err != nil {
		cs.logger.Warn("Failed to invalidate cart count cache",
			zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}
