package analysis

import (
	"fmt"
	"sort"
	"strings"

	"resit/internal/core"
)

// SortField names a column of the daily table.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByTotal    SortField = "total"
	SortByReceipts SortField = "receipts"
	SortByMerchant SortField = "merchant"
)

// ParseSort validates table sort parameters. Empty values fall back to the
// default date-descending order.
func ParseSort(field, order string) (SortField, bool, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(field)))
	if f == "" {
		f = SortByDate
	}
	switch f {
	case SortByDate, SortByTotal, SortByReceipts, SortByMerchant:
	default:
		return "", false, fmt.Errorf("unsupported sort field %q", field)
	}

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc":
		return f, true, nil
	case "asc":
		return f, false, nil
	default:
		return "", false, fmt.Errorf("unsupported sort order %q", order)
	}
}

// SortDays returns a sorted copy of days. Ties keep the date-descending
// default order.
func SortDays(days []core.DailyAggregate, field SortField, desc bool) []core.DailyAggregate {
	out := append([]core.DailyAggregate(nil), days...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	var less func(a, b core.DailyAggregate) bool
	switch field {
	case SortByTotal:
		less = func(a, b core.DailyAggregate) bool { return a.Total.LessThan(b.Total) }
	case SortByReceipts:
		less = func(a, b core.DailyAggregate) bool { return len(a.ReceiptIDs) < len(b.ReceiptIDs) }
	case SortByMerchant:
		less = func(a, b core.DailyAggregate) bool {
			return strings.ToLower(a.TopMerchant) < strings.ToLower(b.TopMerchant)
		}
	default:
		less = func(a, b core.DailyAggregate) bool { return a.Date < b.Date }
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
