package http

import (
	"time"

	"github.com/shopspring/decimal"

	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/receipts"
	"resit/internal/services"
)

// ReceiptRequest is the body of POST /receipts and of each batch item.
type ReceiptRequest struct {
	Merchant      string           `json:"merchant" validate:"required,max=200"`
	Date          string           `json:"date" validate:"required,datetime=2006-01-02"`
	Total         *decimal.Decimal `json:"total" validate:"required"`
	Currency      string           `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod string           `json:"paymentMethod" validate:"omitempty,max=100"`
	Category      string           `json:"category" validate:"omitempty,max=100"`
	FullText      string           `json:"fullText" validate:"omitempty,max=65536"`
	TeamID        string           `json:"teamId" validate:"omitempty,max=64"`
}

// BatchRequest is the body of POST /receipts/batch. Items are validated one
// by one so that a bad item does not reject the batch.
type BatchRequest struct {
	Receipts []ReceiptRequest `json:"receipts" validate:"required,min=1,max=100"`
}

// ReceiptPatchRequest is the body of PUT /receipts/{id}. Absent fields are
// left unchanged.
type ReceiptPatchRequest struct {
	Merchant      *string          `json:"merchant" validate:"omitempty,max=200"`
	Date          *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Total         *decimal.Decimal `json:"total"`
	Currency      *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod *string          `json:"paymentMethod" validate:"omitempty,max=100"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	FullText      *string          `json:"fullText" validate:"omitempty,max=65536"`
	TeamID        *string          `json:"teamId" validate:"omitempty,max=64"`
}

// ReceiptResponse is the wire form of a stored receipt.
type ReceiptResponse struct {
	ID            string    `json:"id"`
	Merchant      string    `json:"merchant"`
	Date          string    `json:"date"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Category      string    `json:"category,omitempty"`
	FullText      string    `json:"fullText,omitempty"`
	TeamID        string    `json:"teamId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListResponse is one page of receipts.
type ListResponse struct {
	Receipts []ReceiptResponse `json:"receipts"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// BatchResponse reports created receipts and rejected items by index.
type BatchResponse struct {
	Created []ReceiptResponse     `json:"created"`
	Errors  []services.BatchError `json:"errors"`
}

// SummaryResponse is the metrics-only view of a range. TotalAmount and
// AverageAmount repeat the matching metrics at the top level.
type SummaryResponse struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	Currency      string          `json:"currency,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
	Metrics       core.Metrics    `json:"metrics"`
}

// CategoriesResponse is the category view of a range.
type CategoriesResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Currency string `json:"currency,omitempty"`
	core.CategoryBreakdown
}

// AnalyticsSummary is the headline of the combined analytics view.
type AnalyticsSummary struct {
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalReceipts int             `json:"totalReceipts"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
	NumberOfDays  int             `json:"numberOfDays"`
	AverageDaily  decimal.Decimal `json:"averageDailySpend"`
}

// AnalyticsResponse combines the summary and category views of a range.
type AnalyticsResponse struct {
	From              string               `json:"from"`
	To                string               `json:"to"`
	Currency          string               `json:"currency,omitempty"`
	Summary           AnalyticsSummary     `json:"summary"`
	CategoryBreakdown []core.CategoryShare `json:"categoryBreakdown"`
	PeakDay           *core.DailyAggregate `json:"peakDay,omitempty"`
}

// TeamRequest is the body of POST /teams.
type TeamRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type TeamResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClaimRequest is the body of POST /claims.
type ClaimRequest struct {
	TeamID      string           `json:"teamId" validate:"required,max=64"`
	Title       string           `json:"title" validate:"required,max=200"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Currency    string           `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string           `json:"description" validate:"omitempty,max=2000"`
	Category    string           `json:"category" validate:"omitempty,max=100"`
	Priority    string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// ClaimStatusRequest is the body of PUT /claims/{id}/status.
type ClaimStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type ClaimResponse struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	Title       string    `json:"title"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ClaimListResponse struct {
	Claims []ClaimResponse `json:"claims"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (req ReceiptRequest) toReceipt() (core.Receipt, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Receipt{}, err
	}
	total, err := amount(*req.Total)
	if err != nil {
		return core.Receipt{}, err
	}
	return core.Receipt{
		Merchant:      req.Merchant,
		Date:          date,
		Total:         total,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Category:      req.Category,
		FullText:      req.FullText,
		TeamID:        req.TeamID,
	}, nil
}

func (req ReceiptPatchRequest) toPatch() (services.ReceiptPatch, error) {
	patch := services.ReceiptPatch{
		Merchant:      req.Merchant,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Category:      req.Category,
		FullText:      req.FullText,
		TeamID:        req.TeamID,
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &date
	}
	if req.Total != nil {
		total, err := amount(*req.Total)
		if err != nil {
			return patch, err
		}
		patch.Total = &total
	}
	return patch, nil
}

// amount applies the rounding and sign rules of typed-in amounts to a JSON
// number.
func amount(d decimal.Decimal) (decimal.Decimal, error) {
	return core.ParseAmount(d.String())
}

func toReceiptResponse(r core.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:            r.ID,
		Merchant:      r.Merchant,
		Date:          r.Date.Key(),
		Total:         r.Total.StringFixed(2),
		Currency:      r.Currency,
		PaymentMethod: r.PaymentMethod,
		Category:      r.Category,
		FullText:      r.FullText,
		TeamID:        r.TeamID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toReceiptResponses(rs []core.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReceiptResponse(r))
	}
	return out
}

func toListResponse(p receipts.Page) ListResponse {
	return ListResponse{
		Receipts: toReceiptResponses(p.Receipts),
		Total:    p.Total,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
}

func (req ClaimRequest) toClaim() (core.Claim, error) {
	amt, err := amount(*req.Amount)
	if err != nil {
		return core.Claim{}, err
	}
	return core.Claim{
		TeamID:      req.TeamID,
		Title:       req.Title,
		Amount:      amt,
		Currency:    req.Currency,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	}, nil
}

func toTeamResponse(t core.Team) TeamResponse {
	return TeamResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func toClaimResponse(c core.Claim) ClaimResponse {
	return ClaimResponse{
		ID:          c.ID,
		TeamID:      c.TeamID,
		Title:       c.Title,
		Amount:      c.Amount.StringFixed(2),
		Currency:    c.Currency,
		Description: c.Description,
		Category:    c.Category,
		Priority:    c.Priority,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toClaimListResponse(p claims.Page) ClaimListResponse {
	out := ClaimListResponse{Claims: make([]ClaimResponse, 0, len(p.Claims)), Total: p.Total, Limit: p.Limit, Offset: p.Offset}
	for _, c := range p.Claims {
		out.Claims = append(out.Claims, toClaimResponse(c))
	}
	return out
}

func toAnalyticsResponse(rep services.Report, breakdown core.CategoryBreakdown) AnalyticsResponse {
	return AnalyticsResponse{
		From:     rep.From,
		To:       rep.To,
		Currency: rep.Currency,
		Summary: AnalyticsSummary{
			TotalAmount:   rep.Metrics.TotalSpending,
			TotalReceipts: rep.Metrics.TotalReceiptCount,
			AverageAmount: rep.Metrics.AveragePerReceipt,
			NumberOfDays:  rep.Metrics.NumberOfDays,
			AverageDaily:  rep.Metrics.AverageDailySpend,
		},
		CategoryBreakdown: breakdown.Categories,
		PeakDay:           rep.Metrics.PeakDay,
	}
}
