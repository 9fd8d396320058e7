// Package claims defines the storage ports for teams and the expense claims
// filed against them.
package claims

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"resit/internal/core"
)

var (
	ErrTeamNotFound  = errors.New("team not found")
	ErrClaimNotFound = errors.New("claim not found")
)

// Filter selects a page of claims. Blank fields match everything.
type Filter struct {
	TeamID   string
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// Page is one page of a claim listing, newest first.
type Page struct {
	Claims []core.Claim
	Total  int
	Limit  int
	Offset int
}

type (
	TeamStore interface {
		CreateTeam(ctx context.Context, t core.Team) (core.Team, error)
		GetTeam(ctx context.Context, id string) (core.Team, error)
		// ListTeams returns teams ordered by name.
		ListTeams(ctx context.Context) ([]core.Team, error)
		// TeamStats counts the receipts and claims of a team. Every claim
		// status is present in ClaimsByStatus.
		TeamStats(ctx context.Context, id string) (core.TeamStats, error)
	}

	ClaimStore interface {
		CreateClaim(ctx context.Context, c core.Claim) (core.Claim, error)
		GetClaim(ctx context.Context, id string) (core.Claim, error)
		ListClaims(ctx context.Context, f Filter) (Page, error)
		UpdateClaim(ctx context.Context, c core.Claim) (core.Claim, error)
	}

	Store interface {
		TeamStore
		ClaimStore
	}
)

// NewStats returns empty stats for a team.
func NewStats(teamID string) core.TeamStats {
	return core.TeamStats{
		TeamID:       teamID,
		ReceiptTotal: decimal.Zero,
		ClaimTotal:   decimal.Zero,
		ClaimsByStatus: map[string]int{
			core.ClaimPending:  0,
			core.ClaimApproved: 0,
			core.ClaimRejected: 0,
		},
	}
}
