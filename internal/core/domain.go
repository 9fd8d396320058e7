package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to receipts created without a currency.
const DefaultCurrency = "USD"

// DayLayout is the calendar-day key format used for grouping.
const DayLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Receipt is a stored purchase record extracted from an uploaded image.
	Receipt struct {
		ID            string
		Merchant      string
		Date          Date
		Total         decimal.Decimal
		Currency      string
		PaymentMethod string // optional
		Category      string // optional
		FullText      string // optional OCR text
		TeamID        string // optional
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// ReceiptSummary is the projection of a receipt consumed by the analysis
	// pipeline. Nullable fields mirror what the fetch boundary may return.
	ReceiptSummary struct {
		ID            string              `json:"id"`
		Date          string              `json:"date"`
		Total         decimal.NullDecimal `json:"total"`
		Merchant      *string             `json:"merchant"`
		PaymentMethod *string             `json:"payment_method"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyMerchant    = errors.New("empty merchant")
	ErrMerchantTooLong  = errors.New("merchant too long (max 200 characters)")
	ErrFullTextTooLarge = errors.New("full text too large (max 64KB)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Key returns the YYYY-MM-DD form of the date.
func (d Date) Key() string {
	return d.Format(DayLayout)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Validate checks a receipt before it is written.
func (r Receipt) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	merchant := strings.TrimSpace(r.Merchant)
	if merchant == "" {
		return ErrEmptyMerchant
	}
	if len(merchant) > 200 {
		return ErrMerchantTooLong
	}
	if r.Total.IsNegative() {
		return ErrInvalidAmount
	}
	if c := strings.TrimSpace(r.Currency); c != "" && !isCurrencyCode(c) {
		return ErrInvalidCurrency
	}
	if len(r.FullText) > 64<<10 {
		return ErrFullTextTooLarge
	}
	return nil
}

// Summary projects the receipt onto the shape used by aggregation.
func (r Receipt) Summary() ReceiptSummary {
	s := ReceiptSummary{
		ID:    r.ID,
		Date:  r.Date.Key(),
		Total: decimal.NewNullDecimal(r.Total),
	}
	if m := strings.TrimSpace(r.Merchant); m != "" {
		s.Merchant = &m
	}
	if p := strings.TrimSpace(r.PaymentMethod); p != "" {
		s.PaymentMethod = &p
	}
	return s
}

// Amount returns the receipt total, treating a missing value as zero.
func (s ReceiptSummary) Amount() decimal.Decimal {
	if !s.Total.Valid {
		return decimal.Zero
	}
	return s.Total.Decimal
}

var dayKeyLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	DayLayout,
}

// DayKey returns the calendar day (YYYY-MM-DD) of an ISO-8601 timestamp.
// The day is taken in the timestamp's own offset. ok is false for empty or
// unparseable input.
func DayKey(date string) (key string, ok bool) {
	s := strings.TrimSpace(date)
	if s == "" {
		return "", false
	}
	for _, layout := range dayKeyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DayLayout), true
		}
	}
	return "", false
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
