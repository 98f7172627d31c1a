package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductSnapshot preserves display fields from add-time so a cart line
// survives product edits and deletions.
type ProductSnapshot struct {
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	BasePrice int64  `json:"base_price"`
}

// CartLine is one row in a cart: a product plus a specific variant-selection
// combination. UnitPrice and Subtotal are snapshots, never recomputed from
// live product data.
type CartLine struct {
	ID               string             `json:"id"`
	ProductID        int64              `json:"product_id"`
	Snapshot         ProductSnapshot    `json:"snapshot"`
	Selections       []VariantSelection `json:"selections,omitempty"`
	Quantity         int                `json:"quantity"`
	UnitPrice        int64              `json:"unit_price"`
	Subtotal         int64              `json:"subtotal"`
	AddedAt          time.Time          `json:"added_at"`
	IsModified       bool               `json:"is_modified,omitempty"`
	ModificationNote string             `json:"modification_note,omitempty"`
}

// CartLines is stored as a JSONB column on the carts table.
type CartLines []CartLine

func (cl CartLines) Value() (driver.Value, error) {
	if cl == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(cl)
}

func (cl *CartLines) Scan(src interface{}) error {
	return scanJSON(src, cl)
}

// Cart holds the single cart of one customer. Total and LineCount are
// derived; Recompute runs before every persist.
type Cart struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Lines     CartLines `db:"lines" json:"lines"`
	Total     int64     `db:"total" json:"total"`
	LineCount int       `db:"line_count" json:"line_count"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SelectionKey derives the order-independent dedup identity of a line:
// the product id plus the sorted set of category:choice pairs. Two lines
// with the same key are the same line.
func SelectionKey(productID int64, selections []VariantSelection) string {
	pairs := make([]string, 0, len(selections))
	for _, sel := range selections {
		id := sel.ChoiceID
		if id == "" {
			id = sel.Choice
		}
		pairs = append(pairs, sel.Category+":"+id)
	}
	sort.Strings(pairs)
	return fmt.Sprintf("%d|%s", productID, strings.Join(pairs, "|"))
}

// Key returns the dedup key of an existing line.
func (l *CartLine) Key() string {
	return SelectionKey(l.ProductID, l.Selections)
}

// FindLine returns the line with the given id, or nil.
func (c *Cart) FindLine(lineID string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// FindLineByKey returns the line matching a dedup key, or nil.
func (c *Cart) FindLineByKey(key string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			return &c.Lines[i]
		}
	}
	return nil
}

// AddLine merges the given line data into the cart. When a line with the
// same (product, selections) identity exists its quantity grows and the
// original price snapshot is preserved; otherwise a new line is appended.
// Returns the affected line and whether it was merged.
func (c *Cart) AddLine(productID int64, snapshot ProductSnapshot, selections []VariantSelection, unitPrice int64, quantity int) (*CartLine, bool) {
	key := SelectionKey(productID, selections)
	if existing := c.FindLineByKey(key); existing != nil {
		existing.Quantity += quantity
		c.Recompute()
		return existing, true
	}
	line := CartLine{
		ID:         uuid.New().String(),
		ProductID:  productID,
		Snapshot:   snapshot,
		Selections: selections,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		AddedAt:    time.Now(),
	}
	c.Lines = append(c.Lines, line)
	c.Recompute()
	return &c.Lines[len(c.Lines)-1], false
}

// SetLineQuantity updates a line's quantity; zero or negative removes the
// line. Reports whether the line existed.
func (c *Cart) SetLineQuantity(lineID string, quantity int) bool {
	line := c.FindLine(lineID)
	if line == nil {
		return false
	}
	if quantity <= 0 {
		c.RemoveLine(lineID)
		return true
	}
	line.Quantity = quantity
	c.Recompute()
	return true
}

// RemoveLine removes one line by id. Reports whether it was present.
func (c *Cart) RemoveLine(lineID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.Recompute()
			return true
		}
	}
	return false
}

// RemoveLinesByID drops every line whose id is in the given set, returning
// the removed lines in cart order.
func (c *Cart) RemoveLinesByID(ids map[string]bool) []CartLine {
	var kept CartLines
	var removed []CartLine
	for _, line := range c.Lines {
		if ids[line.ID] {
			removed = append(removed, line)
		} else {
			kept = append(kept, line)
		}
	}
	c.Lines = kept
	c.Recompute()
	return removed
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
	c.Recompute()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Recompute restores the derived-totals invariant: every subtotal equals
// unit price times quantity and the cart total equals the sum of subtotals.
func (c *Cart) Recompute() {
	var total int64
	count := 0
	for i := range c.Lines {
		c.Lines[i].Subtotal = c.Lines[i].UnitPrice * int64(c.Lines[i].Quantity)
		total += c.Lines[i].Subtotal
		count += c.Lines[i].Quantity
	}
	c.Total = total
	c.LineCount = count
}
