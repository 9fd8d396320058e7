package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"resit/internal/core"
)

var hundred = decimal.NewFromInt(100)

// BreakdownCategories computes the grand total over pre-aggregated category
// totals and each category's share of it, largest first.
func BreakdownCategories(totals []core.CategoryTotal) core.CategoryBreakdown {
	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.TotalSpent)
	}

	shares := make([]core.CategoryShare, 0, len(totals))
	for _, t := range totals {
		pct := decimal.Zero
		if !grand.IsZero() {
			pct = t.TotalSpent.Mul(hundred).Div(grand).Round(1)
		}
		shares = append(shares, core.CategoryShare{
			Category:   core.ResolveDisplayValue(t.Category, core.Uncategorized),
			Amount:     t.TotalSpent,
			Percentage: pct,
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Amount.GreaterThan(shares[j].Amount)
	})

	return core.CategoryBreakdown{GrandTotal: grand, Categories: shares}
}
