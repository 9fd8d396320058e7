package core

import "github.com/shopspring/decimal"

// DailyAggregate is the per-calendar-day rollup of receipts.
type DailyAggregate struct {
	Date             string          `json:"date"`
	Total            decimal.Decimal `json:"total"`
	ReceiptIDs       []string        `json:"receiptIds"`
	TopMerchant      string          `json:"topMerchant"`
	TopPaymentMethod string          `json:"topPaymentMethod"`
}

// Metrics are range-wide reductions over a set of daily aggregates.
type Metrics struct {
	TotalSpending     decimal.Decimal `json:"totalSpending"`
	TotalReceiptCount int             `json:"totalReceiptCount"`
	NumberOfDays      int             `json:"numberOfDays"`
	AveragePerReceipt decimal.Decimal `json:"averagePerReceipt"`
	AverageDailySpend decimal.Decimal `json:"averageDailySpend"`
	PeakDay           *DailyAggregate `json:"peakDay,omitempty"`
}

// CategoryTotal is a pre-aggregated spend per category from the data source.
type CategoryTotal struct {
	Category   *string         `json:"category"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// CategoryShare is one row of a category breakdown.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// CategoryBreakdown is the category view of a range.
type CategoryBreakdown struct {
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Categories []CategoryShare `json:"categories"`
}
