package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionKeyOrderIndependent(t *testing.T) {
	a := SelectionKey(1, []VariantSelection{
		{Category: "Size", ChoiceID: "sz-l"},
		{Category: "Add-ons", ChoiceID: "ao-p"},
	})
	b := SelectionKey(1, []VariantSelection{
		{Category: "Add-ons", ChoiceID: "ao-p"},
		{Category: "Size", ChoiceID: "sz-l"},
	})
	assert.Equal(t, a, b)

	c := SelectionKey(1, []VariantSelection{
		{Category: "Size", ChoiceID: "sz-m"},
		{Category: "Add-ons", ChoiceID: "ao-p"},
	})
	assert.NotEqual(t, a, c)
}

func TestAddLineMergesSameIdentity(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	snapshot := ProductSnapshot{Name: "Milk Tea", BasePrice: 10000}
	selections := []VariantSelection{{Category: "Size", ChoiceID: "sz-l"}}

	line, merged := cart.AddLine(1, snapshot, selections, 12000, 2)
	assert.False(t, merged)
	require.Len(t, cart.Lines, 1)

	// Same product + same selections merges; the original price snapshot
	// survives even if the caller passes a newer price.
	line2, merged := cart.AddLine(1, snapshot, selections, 13000, 1)
	assert.True(t, merged)
	assert.Equal(t, line.ID, line2.ID)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.Equal(t, int64(12000), cart.Lines[0].UnitPrice)
}

func TestAddLineDifferentSelectionsNewLine(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	snapshot := ProductSnapshot{Name: "Milk Tea", BasePrice: 10000}

	cart.AddLine(1, snapshot, []VariantSelection{{Category: "Size", ChoiceID: "sz-m"}}, 10000, 1)
	cart.AddLine(1, snapshot, []VariantSelection{{Category: "Size", ChoiceID: "sz-l"}}, 12000, 1)

	assert.Len(t, cart.Lines, 2)
}

func TestRecomputeDerivedTotals(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	cart.AddLine(1, ProductSnapshot{Name: "A"}, nil, 1000, 2)
	cart.AddLine(2, ProductSnapshot{Name: "B"}, nil, 500, 3)

	assert.Equal(t, int64(2000), cart.Lines[0].Subtotal)
	assert.Equal(t, int64(1500), cart.Lines[1].Subtotal)
	assert.Equal(t, int64(3500), cart.Total)
	assert.Equal(t, 5, cart.LineCount)
}

func TestSetLineQuantityZeroRemoves(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	line, _ := cart.AddLine(1, ProductSnapshot{Name: "A"}, nil, 1000, 2)

	ok := cart.SetLineQuantity(line.ID, 0)
	assert.True(t, ok)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, int64(0), cart.Total)
}

func TestSetLineQuantityUnknownLine(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	assert.False(t, cart.SetLineQuantity("missing", 2))
}

func TestRemoveLinesByID(t *testing.T) {
	cart := &Cart{OwnerID: 1}
	a, _ := cart.AddLine(1, ProductSnapshot{Name: "A"}, nil, 1000, 1)
	b, _ := cart.AddLine(2, ProductSnapshot{Name: "B"}, nil, 500, 2)
	c, _ := cart.AddLine(3, ProductSnapshot{Name: "C"}, nil, 200, 1)

	removed := cart.RemoveLinesByID(map[string]bool{a.ID: true, c.ID: true})
	require.Len(t, removed, 2)
	assert.Equal(t, int64(1000), removed[0].Subtotal)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, b.ID, cart.Lines[0].ID)
	assert.Equal(t, int64(1000), cart.Total)
	assert.Equal(t, 2, cart.LineCount)
}
