package receipts

import (
	"context"
	"errors"
	"strings"
	"time"

	"resit/internal/core"
)

// ErrNotFound is returned when a receipt id does not exist.
var ErrNotFound = errors.New("receipt not found")

// Query bounds a range fetch. End is exclusive; nil bounds are open. A
// blank Currency matches every currency.
type Query struct {
	Start    *time.Time
	End      *time.Time
	Currency string
}

// Includes reports whether t falls inside the query bounds.
func (q Query) Includes(t time.Time) bool {
	if q.Start != nil && t.Before(*q.Start) {
		return false
	}
	if q.End != nil && !t.Before(*q.End) {
		return false
	}
	return true
}

// Matches reports whether r falls inside the query bounds and currency.
func (q Query) Matches(r core.Receipt) bool {
	if q.Currency != "" && !strings.EqualFold(r.Currency, q.Currency) {
		return false
	}
	return q.Includes(r.Date.Time)
}

// Sort options for receipt listings.
const (
	SortByDate     = "date"
	SortByTotal    = "total"
	SortByMerchant = "merchant"
)

// ListFilter selects a page of receipts.
type ListFilter struct {
	Query
	Merchant  string // case-insensitive substring
	Category  string // exact, case-insensitive
	TeamID    string // exact
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string // asc | desc
}

// Page is one page of a receipt listing.
type Page struct {
	Receipts []core.Receipt
	Total    int
	Limit    int
	Offset   int
}

// Ports for outbound adapters.
type (
	// SummaryFetcher returns receipt summaries for a range ordered by
	// (date, id) so that first-occurrence tie-breaks are deterministic.
	SummaryFetcher interface {
		FetchSummaries(ctx context.Context, q Query) ([]core.ReceiptSummary, error)
	}

	// CategoryFetcher returns spend per category for a range.
	CategoryFetcher interface {
		CategoryTotals(ctx context.Context, q Query) ([]core.CategoryTotal, error)
	}

	ReceiptWriter interface {
		Create(ctx context.Context, r core.Receipt) (core.Receipt, error)
		Update(ctx context.Context, r core.Receipt) (core.Receipt, error)
		Delete(ctx context.Context, id string) (core.Receipt, error)
	}

	ReceiptReader interface {
		Get(ctx context.Context, id string) (core.Receipt, error)
		List(ctx context.Context, f ListFilter) (Page, error)
	}

	// Store is everything a backend provides.
	Store interface {
		SummaryFetcher
		CategoryFetcher
		ReceiptWriter
		ReceiptReader
	}
)
