// Package analysis turns fetched receipt summaries into the per-day rollups,
// range metrics and category breakdowns shown on the analysis dashboard.
//
// Every function here is pure: inputs are never mutated and no errors are
// returned. Data-quality problems (bad dates, missing totals or names) are
// resolved by policy rather than reported.
package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"resit/internal/core"
)

type bucket struct {
	key   string
	total decimal.Decimal
	ids   []string
	top   *core.ReceiptSummary
}

// Aggregate groups receipts by calendar day and returns one DailyAggregate
// per day, most recent first. Receipts with an empty or unparseable date are
// skipped. Within a day the top receipt is the first one with the strictly
// greatest total.
func Aggregate(receipts []core.ReceiptSummary) []core.DailyAggregate {
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for i := range receipts {
		r := &receipts[i]
		key, ok := core.DayKey(r.Date)
		if !ok {
			continue
		}
		b, exists := buckets[key]
		if !exists {
			b = &bucket{key: key, total: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		amount := r.Amount()
		b.total = b.total.Add(amount)
		b.ids = append(b.ids, r.ID)
		if b.top == nil || amount.GreaterThan(b.top.Amount()) {
			b.top = r
		}
	}

	out := make([]core.DailyAggregate, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, core.DailyAggregate{
			Date:             b.key,
			Total:            b.total,
			ReceiptIDs:       b.ids,
			TopMerchant:      core.ResolveDisplayValue(b.top.Merchant, core.UnknownMerchant),
			TopPaymentMethod: core.ResolveDisplayValue(b.top.PaymentMethod, core.NoPaymentMethod),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
