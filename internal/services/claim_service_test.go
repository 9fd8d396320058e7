package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/log"
	"resit/internal/receipts/memory"
)

func newClaimService(t *testing.T) (*ClaimService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewClaimService(store, log.Discard())
	n := 0
	svc.newID = func() string {
		n++
		return "id" + string(rune('0'+n))
	}
	return svc, store
}

func TestClaimService_CreateClaimDefaults(t *testing.T) {
	svc, _ := newClaimService(t)
	ctx := context.Background()
	team, err := svc.CreateTeam(ctx, "Finance")
	require.NoError(t, err)

	c, err := svc.CreateClaim(ctx, core.Claim{
		TeamID: team.ID, Title: " Hotel ", Amount: decimal.RequireFromString("120"), Currency: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hotel", c.Title)
	assert.Equal(t, "EUR", c.Currency)
	assert.Equal(t, core.PriorityMedium, c.Priority)
	assert.Equal(t, core.ClaimPending, c.Status)

	c, err = svc.CreateClaim(ctx, core.Claim{
		TeamID: team.ID, Title: "Taxi", Amount: decimal.RequireFromString("12"), Priority: "URGENT",
	})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCurrency, c.Currency)
	assert.Equal(t, core.PriorityUrgent, c.Priority)
}

func TestClaimService_CreateClaimRejects(t *testing.T) {
	svc, _ := newClaimService(t)
	ctx := context.Background()
	team, err := svc.CreateTeam(ctx, "Finance")
	require.NoError(t, err)

	_, err = svc.CreateClaim(ctx, core.Claim{TeamID: "nope", Title: "x", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, claims.ErrTeamNotFound)
	_, err = svc.CreateClaim(ctx, core.Claim{TeamID: team.ID, Title: "x", Amount: decimal.NewFromInt(1), Priority: "later"})
	assert.ErrorIs(t, err, core.ErrInvalidPriority)
	_, err = svc.CreateClaim(ctx, core.Claim{TeamID: team.ID, Title: "x", Amount: decimal.Zero})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.CreateTeam(ctx, "")
	assert.ErrorIs(t, err, core.ErrEmptyTeamName)
}

func TestClaimService_DecideClaim(t *testing.T) {
	svc, _ := newClaimService(t)
	ctx := context.Background()
	team, err := svc.CreateTeam(ctx, "Finance")
	require.NoError(t, err)
	c, err := svc.CreateClaim(ctx, core.Claim{TeamID: team.ID, Title: "Hotel", Amount: decimal.NewFromInt(80)})
	require.NoError(t, err)

	decided, err := svc.DecideClaim(ctx, c.ID, "Approved")
	require.NoError(t, err)
	assert.Equal(t, core.ClaimApproved, decided.Status)

	_, err = svc.DecideClaim(ctx, c.ID, core.ClaimRejected)
	assert.ErrorIs(t, err, core.ErrClaimAlreadyFinal)
	_, err = svc.DecideClaim(ctx, "missing", core.ClaimApproved)
	assert.ErrorIs(t, err, claims.ErrClaimNotFound)

	stats, err := svc.TeamStats(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ClaimsByStatus[core.ClaimApproved])
}

func TestClaimService_ListClaimsBounds(t *testing.T) {
	svc, _ := newClaimService(t)
	ctx := context.Background()
	team, err := svc.CreateTeam(ctx, "Finance")
	require.NoError(t, err)
	_, err = svc.CreateClaim(ctx, core.Claim{TeamID: team.ID, Title: "Hotel", Amount: decimal.NewFromInt(80)})
	require.NoError(t, err)

	page, err := svc.ListClaims(ctx, claims.Filter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Claims, 1)
}

func TestReceiptService_RejectsUnknownTeam(t *testing.T) {
	store := memory.New()
	claimSvc := NewClaimService(store, log.Discard())
	receiptSvc := NewReceiptService(store, nil, nil, log.Discard())
	receiptSvc.CheckTeams(claimSvc)
	ctx := context.Background()

	r := newReceipt("Uber", 12, "25.50")
	r.TeamID = "ghost"
	_, err := receiptSvc.Create(ctx, r)
	assert.ErrorIs(t, err, ErrUnknownTeam)

	team, err := claimSvc.CreateTeam(ctx, "Ops")
	require.NoError(t, err)
	r.TeamID = team.ID
	created, err := receiptSvc.Create(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, team.ID, created.TeamID)

	ghost := "ghost"
	_, err = receiptSvc.Update(ctx, created.ID, ReceiptPatch{TeamID: &ghost})
	assert.ErrorIs(t, err, ErrUnknownTeam)

	stats, err := claimSvc.TeamStats(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReceiptCount)
}
