package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VariantChoice is one selectable option within a variant category
// (e.g. "Large"). Price is the absolute unit price when the choice is
// selected; PriceAdjustment is a delta relative to the base price. A choice
// defines one or the other: Price > 0 replaces the running price,
// PriceAdjustment adds to it.
type VariantChoice struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Image           string `json:"image,omitempty"`
	Price           int64  `json:"price"`
	PriceAdjustment int64  `json:"price_adjustment"`
	Stock           int    `json:"stock"`
	IsAvailable     bool   `json:"is_available"`
}

// VariantCategory is a named axis of customization (e.g. "Size") with an
// ordered list of choices.
type VariantCategory struct {
	Name          string          `json:"name"`
	IsRequired    bool            `json:"is_required"`
	AllowMultiple bool            `json:"allow_multiple"`
	Choices       []VariantChoice `json:"choices"`
}

// VariantCategories is stored as a JSONB column on the products table.
type VariantCategories []VariantCategory

func (vc VariantCategories) Value() (driver.Value, error) {
	if vc == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(vc)
}

func (vc *VariantCategories) Scan(src interface{}) error {
	return scanJSON(src, vc)
}

// Product is a catalog entry owned by one seller/store. Stock is the flat
// product-level count, used only when the product has no variants; otherwise
// stock lives per choice.
type Product struct {
	ID            int64             `db:"id" json:"id"`
	SellerID      int64             `db:"seller_id" json:"seller_id"`
	StoreID       int64             `db:"store_id" json:"store_id"`
	Name          string            `db:"name" json:"name"`
	Description   string            `db:"description" json:"description,omitempty"`
	Image         string            `db:"image" json:"image,omitempty"`
	Category      string            `db:"category" json:"category"`
	BasePrice     int64             `db:"base_price" json:"base_price"`
	Stock         int               `db:"stock" json:"stock"`
	Available     bool              `db:"available" json:"available"`
	EstimatedTime int               `db:"estimated_time" json:"estimated_time"`
	ShippingFee   int64             `db:"shipping_fee" json:"shipping_fee"`
	TotalSold     int               `db:"total_sold" json:"total_sold"`
	Variants      VariantCategories `db:"variants" json:"variants"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// VariantSelection is a customer's pick of one choice within a category.
type VariantSelection struct {
	Category string `json:"category"`
	Choice   string `json:"choice"`
	ChoiceID string `json:"choice_id,omitempty"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
}

// SelectionValidation is the result of ValidateSelections. It never carries
// an error value; rule violations are human-readable messages.
type SelectionValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// StockCheck is the result of CheckStock.
type StockCheck struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

func (p *Product) findChoice(category, choice string) *VariantChoice {
	for i := range p.Variants {
		if p.Variants[i].Name != category {
			continue
		}
		for j := range p.Variants[i].Choices {
			if p.Variants[i].Choices[j].Name == choice {
				return &p.Variants[i].Choices[j]
			}
		}
	}
	return nil
}

func (p *Product) category(name string) *VariantCategory {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i]
		}
	}
	return nil
}

// CalculatePrice computes the unit price for a set of selections. A choice
// with an absolute price replaces the running total; a choice with a
// price adjustment adds its delta. Selections that match nothing are
// ignored.
func (p *Product) CalculatePrice(selections []VariantSelection) int64 {
	price := p.BasePrice
	for _, sel := range selections {
		choice := p.findChoice(sel.Category, sel.Choice)
		if choice == nil {
			continue
		}
		if choice.Price > 0 {
			price = choice.Price
		}
		if choice.PriceAdjustment != 0 {
			price += choice.PriceAdjustment
		}
	}
	return price
}

// ValidateSelections checks that every required category has a selection
// referencing an existing, available, in-stock choice.
func (p *Product) ValidateSelections(selections []VariantSelection) SelectionValidation {
	var errs []string
	for _, cat := range p.Variants {
		if !cat.IsRequired {
			continue
		}
		var selected *VariantSelection
		for i := range selections {
			if selections[i].Category == cat.Name {
				selected = &selections[i]
				break
			}
		}
		if selected == nil {
			errs = append(errs, fmt.Sprintf("Please select a %s", cat.Name))
			continue
		}
		choice := p.findChoice(cat.Name, selected.Choice)
		if choice == nil {
			errs = append(errs, fmt.Sprintf("Invalid choice for %s", cat.Name))
			continue
		}
		if !choice.IsAvailable || choice.Stock <= 0 {
			errs = append(errs, fmt.Sprintf("%s is out of stock", selected.Choice))
		}
	}
	return SelectionValidation{Valid: len(errs) == 0, Errors: errs}
}

// CheckStock compares the requested quantity against flat stock (no
// selections) or against each selected choice's stock independently. The
// quantity must fit every selected choice, not their sum.
func (p *Product) CheckStock(selections []VariantSelection, quantity int) StockCheck {
	if len(selections) == 0 {
		if p.Stock < quantity {
			return StockCheck{
				Available: false,
				Message:   fmt.Sprintf("Only %d items available", p.Stock),
			}
		}
		return StockCheck{Available: true}
	}
	for _, sel := range selections {
		choice := p.findChoice(sel.Category, sel.Choice)
		if choice != nil && choice.Stock < quantity {
			return StockCheck{
				Available: false,
				Message:   fmt.Sprintf("Only %d units of %s available", choice.Stock, choice.Name),
			}
		}
	}
	return StockCheck{Available: true}
}

// ApplyDeduction decrements flat stock or the matching choices' stock in
// memory and refreshes availability. The caller persists the product inside
// the order-acceptance transaction; it returns an error when the requested
// quantity no longer fits so the enclosing transaction can abort.
func (p *Product) ApplyDeduction(selections []VariantSelection, quantity int) error {
	if check := p.CheckStock(selections, quantity); !check.Available {
		return fmt.Errorf("insufficient stock for product %d: %s", p.ID, check.Message)
	}
	if len(selections) == 0 {
		p.Stock -= quantity
	} else {
		for _, sel := range selections {
			choice := p.findChoice(sel.Category, sel.Choice)
			if choice == nil {
				continue
			}
			choice.Stock -= quantity
			if choice.Stock == 0 {
				choice.IsAvailable = false
			}
		}
	}
	p.TotalSold += quantity
	p.RefreshAvailability()
	return nil
}

// RefreshAvailability recomputes the derived availability flag. A product
// with required categories is available iff every required category still
// has at least one in-stock, available choice. Without variants,
// availability mirrors flat stock.
func (p *Product) RefreshAvailability() {
	hasRequired := false
	for _, cat := range p.Variants {
		if !cat.IsRequired {
			continue
		}
		hasRequired = true
		open := false
		for _, choice := range cat.Choices {
			if choice.Stock > 0 && choice.IsAvailable {
				open = true
				break
			}
		}
		if !open {
			p.Available = false
			return
		}
	}
	if hasRequired {
		p.Available = true
		return
	}
	p.Available = p.Stock > 0
}

// HasVariants reports whether the product carries any variant categories.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// ResolveSelections fills choice ids, snapshot prices and images on the
// given selections from the current product document. Unknown selections are
// left untouched.
func (p *Product) ResolveSelections(selections []VariantSelection) []VariantSelection {
	resolved := make([]VariantSelection, len(selections))
	for i, sel := range selections {
		if choice := p.findChoice(sel.Category, sel.Choice); choice != nil {
			sel.ChoiceID = choice.ID
			sel.Price = choice.Price
			if choice.PriceAdjustment != 0 && choice.Price == 0 {
				sel.Price = p.BasePrice + choice.PriceAdjustment
			}
			sel.Image = choice.Image
		}
		resolved[i] = sel
	}
	return resolved
}
