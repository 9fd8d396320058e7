// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding: JSON bodies checked with
// go-playground/validator, and query strings for listings and ranges.
package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"resit/internal/analysis"
	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/receipts"
)

// maxBodyBytes bounds JSON request bodies. Full text may be up to 64KB per
// receipt and a batch carries up to 100 receipts.
const maxBodyBytes = 8 << 20

var errEmptyBody = errors.New("request body is empty")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *ResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		return BadRequestError("invalid JSON body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return ValidationError(validationMessage(err))
	}
	return nil
}

// validationMessage renders validator errors as one human readable line.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, fe.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("field %s must have length %s", field, fe.Param()))
		case "alpha":
			msgs = append(msgs, fmt.Sprintf("field %s can contain only letters", field))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("field %s must be a date in format YYYY-MM-DD", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

// ParseRangeParams reads from/to (YYYY-MM-DD) and an optional currency from
// the query. start_date and end_date are accepted when from and to are
// absent. Missing bounds fall back to the default range ending at now.
func ParseRangeParams(query url.Values, now time.Time) (dashboard.Range, error) {
	rng, err := dashboard.ParseRange(
		firstParam(query, "from", "start_date"),
		firstParam(query, "to", "end_date"),
		dashboard.DefaultRange(now),
	)
	if err != nil {
		return rng, err
	}
	rng.Currency, err = currencyParam(query)
	return rng, err
}

// firstParam returns the first non-blank value among names.
func firstParam(query url.Values, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(query.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func currencyParam(query url.Values) (string, error) {
	c, err := core.NormalizeCurrency(query.Get("currency"))
	if err != nil {
		return "", errors.New("currency must be a 3-letter code")
	}
	return c, nil
}

// ParseDailySort reads the sort_by and sort_order of the daily table.
func ParseDailySort(query url.Values) (analysis.SortField, bool, error) {
	return analysis.ParseSort(query.Get("sort_by"), query.Get("sort_order"))
}

// ParseListFilter reads receipt listing parameters. Dates are inclusive
// calendar days; limits are bounded later by the service.
func ParseListFilter(query url.Values) (receipts.ListFilter, error) {
	var f receipts.ListFilter

	rng, err := dashboard.ParseRange(
		strings.TrimSpace(query.Get("start_date")),
		strings.TrimSpace(query.Get("end_date")),
		dashboard.Range{},
	)
	if err != nil {
		return f, err
	}
	f.Query = rng.Query()
	if f.Currency, err = currencyParam(query); err != nil {
		return f, err
	}

	if f.Limit, err = intParam(query, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(query, "offset"); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		return f, errors.New("offset must not be negative")
	}

	f.Merchant = strings.TrimSpace(query.Get("merchant"))
	f.Category = strings.TrimSpace(query.Get("category"))
	f.TeamID = strings.TrimSpace(query.Get("team_id"))

	switch f.SortBy = strings.ToLower(strings.TrimSpace(query.Get("sort_by"))); f.SortBy {
	case "", receipts.SortByDate, receipts.SortByTotal, receipts.SortByMerchant:
	default:
		return f, fmt.Errorf("unsupported sort_by %q", f.SortBy)
	}
	switch f.SortOrder = strings.ToLower(strings.TrimSpace(query.Get("sort_order"))); f.SortOrder {
	case "", "asc", "desc":
	default:
		return f, fmt.Errorf("unsupported sort_order %q", f.SortOrder)
	}
	return f, nil
}

// ParseClaimFilter reads claim listing parameters.
func ParseClaimFilter(query url.Values) (claims.Filter, error) {
	f := claims.Filter{
		TeamID:   strings.TrimSpace(query.Get("team_id")),
		Status:   strings.ToLower(strings.TrimSpace(query.Get("status"))),
		Priority: strings.ToLower(strings.TrimSpace(query.Get("priority"))),
	}
	if f.Status != "" && !core.IsClaimStatus(f.Status) {
		return f, fmt.Errorf("unsupported status %q", f.Status)
	}
	if f.Priority != "" && !core.IsPriority(f.Priority) {
		return f, fmt.Errorf("unsupported priority %q", f.Priority)
	}
	var err error
	if f.Limit, err = intParam(query, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(query, "offset"); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		return f, errors.New("offset must not be negative")
	}
	return f, nil
}

func intParam(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
