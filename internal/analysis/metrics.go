package analysis

import (
	"github.com/shopspring/decimal"

	"resit/internal/core"
)

// Display precision for derived averages.
const averagePlaces = 2

// Derive reduces daily aggregates to range-wide metrics. Averages are zero
// when there is nothing to divide by. The peak day is the first day with
// the greatest total.
func Derive(days []core.DailyAggregate) core.Metrics {
	m := core.Metrics{
		TotalSpending:     decimal.Zero,
		AveragePerReceipt: decimal.Zero,
		AverageDailySpend: decimal.Zero,
		NumberOfDays:      len(days),
	}

	var peak *core.DailyAggregate
	for i := range days {
		d := &days[i]
		m.TotalSpending = m.TotalSpending.Add(d.Total)
		m.TotalReceiptCount += len(d.ReceiptIDs)
		if peak == nil || d.Total.GreaterThan(peak.Total) {
			peak = d
		}
	}

	if m.TotalReceiptCount > 0 {
		m.AveragePerReceipt = m.TotalSpending.
			Div(decimal.NewFromInt(int64(m.TotalReceiptCount))).
			Round(averagePlaces)
	}
	if m.NumberOfDays > 0 {
		m.AverageDailySpend = m.TotalSpending.
			Div(decimal.NewFromInt(int64(m.NumberOfDays))).
			Round(averagePlaces)
	}
	if peak != nil {
		p := *peak
		p.ReceiptIDs = append([]string(nil), peak.ReceiptIDs...)
		m.PeakDay = &p
	}
	return m
}
