package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func milkTea() *Product {
	return &Product{
		ID:        1,
		SellerID:  10,
		StoreID:   100,
		Name:      "Milk Tea",
		BasePrice: 10000, // 100.00 in centavos
		Available: true,
		Variants: VariantCategories{
			{
				Name:       "Size",
				IsRequired: true,
				Choices: []VariantChoice{
					{ID: "sz-m", Name: "Medium", Price: 10000, Stock: 10, IsAvailable: true},
					{ID: "sz-l", Name: "Large", Price: 12000, Stock: 5, IsAvailable: true},
				},
			},
			{
				Name: "Add-ons",
				Choices: []VariantChoice{
					{ID: "ao-p", Name: "Pearls", PriceAdjustment: 1500, Stock: 20, IsAvailable: true},
				},
			},
		},
	}
}

func TestCalculatePriceAbsoluteReplaces(t *testing.T) {
	p := milkTea()

	// An absolute choice price replaces the base, it does not add to it.
	price := p.CalculatePrice([]VariantSelection{
		{Category: "Size", Choice: "Large"},
	})
	assert.Equal(t, int64(12000), price)
}

func TestCalculatePriceAdjustmentAdds(t *testing.T) {
	p := milkTea()

	price := p.CalculatePrice([]VariantSelection{
		{Category: "Size", Choice: "Large"},
		{Category: "Add-ons", Choice: "Pearls"},
	})
	assert.Equal(t, int64(13500), price)
}

func TestCalculatePriceIgnoresUnknownSelection(t *testing.T) {
	p := milkTea()

	price := p.CalculatePrice([]VariantSelection{
		{Category: "Size", Choice: "Gigantic"},
	})
	assert.Equal(t, p.BasePrice, price)
}

func TestValidateSelectionsMissingRequired(t *testing.T) {
	p := milkTea()

	v := p.ValidateSelections(nil)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors, "Please select a Size")
}

func TestValidateSelectionsOutOfStockChoice(t *testing.T) {
	p := milkTea()
	p.Variants[0].Choices[1].Stock = 0

	v := p.ValidateSelections([]VariantSelection{
		{Category: "Size", Choice: "Large"},
	})
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors, "Large is out of stock")
}

func TestValidateSelectionsOptionalCategoryNotRequired(t *testing.T) {
	p := milkTea()

	v := p.ValidateSelections([]VariantSelection{
		{Category: "Size", Choice: "Medium"},
	})
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
}

func TestCheckStockFlat(t *testing.T) {
	p := &Product{ID: 2, Stock: 3, Available: true}

	check := p.CheckStock(nil, 3)
	assert.True(t, check.Available)

	check = p.CheckStock(nil, 4)
	assert.False(t, check.Available)
	assert.Equal(t, "Only 3 items available", check.Message)
}

func TestCheckStockPerChoice(t *testing.T) {
	p := milkTea()

	// Quantity must fit every selected choice independently.
	check := p.CheckStock([]VariantSelection{
		{Category: "Size", Choice: "Large"},
		{Category: "Add-ons", Choice: "Pearls"},
	}, 6)
	assert.False(t, check.Available)
	assert.Equal(t, "Only 5 units of Large available", check.Message)
}

func TestApplyDeductionFlat(t *testing.T) {
	p := &Product{ID: 2, Stock: 3, Available: true}

	require.NoError(t, p.ApplyDeduction(nil, 2))
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, 2, p.TotalSold)
	assert.True(t, p.Available)

	require.NoError(t, p.ApplyDeduction(nil, 1))
	assert.Equal(t, 0, p.Stock)
	assert.False(t, p.Available)
}

func TestApplyDeductionInsufficient(t *testing.T) {
	p := &Product{ID: 2, Stock: 1, Available: true}

	err := p.ApplyDeduction(nil, 2)
	assert.Error(t, err)
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, 0, p.TotalSold)
}

func TestApplyDeductionExhaustsChoice(t *testing.T) {
	p := milkTea()

	require.NoError(t, p.ApplyDeduction([]VariantSelection{
		{Category: "Size", Choice: "Large"},
	}, 5))

	large := p.Variants[0].Choices[1]
	assert.Equal(t, 0, large.Stock)
	assert.False(t, large.IsAvailable)
	assert.Equal(t, 5, p.TotalSold)

	// Medium still has stock, so the product stays available.
	assert.True(t, p.Available)
}

func TestRefreshAvailabilityRequiredCategoryExhausted(t *testing.T) {
	p := milkTea()
	for i := range p.Variants[0].Choices {
		p.Variants[0].Choices[i].Stock = 0
	}

	p.RefreshAvailability()
	assert.False(t, p.Available)
}

func TestResolveSelectionsSnapshotsChoiceData(t *testing.T) {
	p := milkTea()

	resolved := p.ResolveSelections([]VariantSelection{
		{Category: "Size", Choice: "Large"},
		{Category: "Add-ons", Choice: "Pearls"},
	})
	require.Len(t, resolved, 2)

	assert.Equal(t, "sz-l", resolved[0].ChoiceID)
	assert.Equal(t, int64(12000), resolved[0].Price)

	// Adjustment-only choices snapshot base + delta.
	assert.Equal(t, "ao-p", resolved[1].ChoiceID)
	assert.Equal(t, int64(11500), resolved[1].Price)
}
