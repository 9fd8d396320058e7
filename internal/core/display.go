package core

import "strings"

// Fallback labels for optional receipt fields.
const (
	UnknownMerchant = "Unknown"
	NoPaymentMethod = "N/A"
	Uncategorized   = "Uncategorized"
)

// ResolveDisplayValue returns the trimmed value, or fallback when the value
// is nil or blank.
func ResolveDisplayValue(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	if v := strings.TrimSpace(*value); v != "" {
		return v
	}
	return fallback
}
