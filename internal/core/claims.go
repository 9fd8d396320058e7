package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Claim priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Claim statuses. A claim starts pending and is decided once.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
)

type (
	// Team groups receipts and expense claims.
	Team struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	// Claim is a reimbursement request filed against a team.
	Claim struct {
		ID          string
		TeamID      string
		Title       string
		Amount      decimal.Decimal
		Currency    string
		Description string // optional
		Category    string // optional
		Priority    string
		Status      string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// TeamStats summarizes the receipts and claims of one team.
	TeamStats struct {
		TeamID         string          `json:"teamId"`
		ReceiptCount   int             `json:"receiptCount"`
		ReceiptTotal   decimal.Decimal `json:"receiptTotal"`
		ClaimCount     int             `json:"claimCount"`
		ClaimTotal     decimal.Decimal `json:"claimTotal"`
		ClaimsByStatus map[string]int  `json:"claimsByStatus"`
	}
)

var (
	ErrEmptyTeamName     = errors.New("empty team name")
	ErrTeamNameTooLong   = errors.New("team name too long (max 100 characters)")
	ErrEmptyTitle        = errors.New("empty claim title")
	ErrTitleTooLong      = errors.New("claim title too long (max 200 characters)")
	ErrMissingTeam       = errors.New("claim requires a team")
	ErrInvalidPriority   = errors.New("invalid claim priority")
	ErrInvalidStatus     = errors.New("invalid claim status")
	ErrClaimAlreadyFinal = errors.New("claim already decided")
)

// Validate checks a team before it is written.
func (t Team) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyTeamName
	}
	if len(name) > 100 {
		return ErrTeamNameTooLong
	}
	return nil
}

// Validate checks a claim before it is written.
func (c Claim) Validate() error {
	if strings.TrimSpace(c.TeamID) == "" {
		return ErrMissingTeam
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > 200 {
		return ErrTitleTooLong
	}
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if cur := strings.TrimSpace(c.Currency); cur != "" && !isCurrencyCode(cur) {
		return ErrInvalidCurrency
	}
	if !IsPriority(c.Priority) {
		return ErrInvalidPriority
	}
	if !IsClaimStatus(c.Status) {
		return ErrInvalidStatus
	}
	return nil
}

func IsPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func IsClaimStatus(s string) bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	}
	return false
}

// Decide moves a pending claim to status. Decided claims are final.
func (c Claim) Decide(status string) (Claim, error) {
	if status != ClaimApproved && status != ClaimRejected {
		return c, ErrInvalidStatus
	}
	if c.Status != ClaimPending {
		return c, ErrClaimAlreadyFinal
	}
	c.Status = status
	return c, nil
}

// NormalizeCurrency upper-cases a currency code. Blank input stays blank.
func NormalizeCurrency(s string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if c != "" && !isCurrencyCode(c) {
		return "", ErrInvalidCurrency
	}
	return c, nil
}
