package analysis

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resit/internal/core"
)

func TestBreakdownCategories(t *testing.T) {
	in := []core.CategoryTotal{
		{Category: str("Transportation"), TotalSpent: decimal.RequireFromString("25")},
		{Category: nil, TotalSpent: decimal.RequireFromString("25")},
		{Category: str("Office Supplies"), TotalSpent: decimal.RequireFromString("50")},
	}
	got := BreakdownCategories(in)

	assert.True(t, got.GrandTotal.Equal(decimal.NewFromInt(100)))
	require.Len(t, got.Categories, 3)
	assert.Equal(t, "Office Supplies", got.Categories[0].Category)
	assert.Equal(t, "50.0", got.Categories[0].Percentage.StringFixed(1))
	assert.Equal(t, "Transportation", got.Categories[1].Category)
	assert.Equal(t, "Uncategorized", got.Categories[2].Category)
	assert.Equal(t, "25.0", got.Categories[2].Percentage.StringFixed(1))
}

func TestBreakdownCategoriesZeroTotal(t *testing.T) {
	got := BreakdownCategories([]core.CategoryTotal{{Category: str("Food"), TotalSpent: decimal.Zero}})
	assert.True(t, got.GrandTotal.IsZero())
	require.Len(t, got.Categories, 1)
	assert.True(t, got.Categories[0].Percentage.IsZero())

	empty := BreakdownCategories(nil)
	assert.True(t, empty.GrandTotal.IsZero())
	assert.Empty(t, empty.Categories)
}
