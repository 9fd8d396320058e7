package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validClaim() Claim {
	return Claim{
		TeamID:   "team-1",
		Title:    "Client dinner",
		Amount:   decimal.RequireFromString("42.50"),
		Currency: "USD",
		Priority: PriorityMedium,
		Status:   ClaimPending,
	}
}

func TestClaimValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Claim)
		want   error
	}{
		{"valid", func(*Claim) {}, nil},
		{"no team", func(c *Claim) { c.TeamID = " " }, ErrMissingTeam},
		{"no title", func(c *Claim) { c.Title = "" }, ErrEmptyTitle},
		{"zero amount", func(c *Claim) { c.Amount = decimal.Zero }, ErrInvalidAmount},
		{"bad currency", func(c *Claim) { c.Currency = "usd1" }, ErrInvalidCurrency},
		{"bad priority", func(c *Claim) { c.Priority = "whenever" }, ErrInvalidPriority},
		{"bad status", func(c *Claim) { c.Status = "paid" }, ErrInvalidStatus},
	}
	for _, tc := range cases {
		c := validClaim()
		tc.mutate(&c)
		if err := c.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestClaimDecide(t *testing.T) {
	c := validClaim()
	approved, err := c.Decide(ClaimApproved)
	if err != nil || approved.Status != ClaimApproved {
		t.Fatalf("unexpected decide: %v %v", approved.Status, err)
	}
	if _, err := approved.Decide(ClaimRejected); err != ErrClaimAlreadyFinal {
		t.Fatalf("expected ErrClaimAlreadyFinal, got %v", err)
	}
	if _, err := c.Decide(ClaimPending); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestTeamValidate(t *testing.T) {
	if err := (Team{Name: "  "}).Validate(); err != ErrEmptyTeamName {
		t.Fatalf("expected ErrEmptyTeamName, got %v", err)
	}
	if err := (Team{Name: "Finance"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if c, err := NormalizeCurrency(" eur "); err != nil || c != "EUR" {
		t.Fatalf("unexpected normalize: %q %v", c, err)
	}
	if c, err := NormalizeCurrency(""); err != nil || c != "" {
		t.Fatalf("blank should stay blank: %q %v", c, err)
	}
	if _, err := NormalizeCurrency("euro"); err != ErrInvalidCurrency {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}
