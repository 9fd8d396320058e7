package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/log"
)

// ClaimService manages teams and the expense claims filed against them.
type ClaimService struct {
	store  claims.Store
	logger *log.Logger
	newID  func() string

	// decide serializes read-modify-write status changes.
	decide sync.Mutex
}

func NewClaimService(store claims.Store, logger *log.Logger) *ClaimService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ClaimService{
		store:  store,
		logger: logger.WithComponent(log.ComponentClaims),
		newID:  uuid.NewString,
	}
}

func (s *ClaimService) CreateTeam(ctx context.Context, name string) (core.Team, error) {
	t, err := s.store.CreateTeam(ctx, core.Team{ID: s.newID(), Name: name})
	if err != nil {
		return core.Team{}, fmt.Errorf("create team: %w", err)
	}
	s.logger.InfoContext(ctx, "Team created",
		log.FieldOperation, log.OpCreate,
		log.FieldTeamID, t.ID)
	return t, nil
}

func (s *ClaimService) ListTeams(ctx context.Context) ([]core.Team, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

func (s *ClaimService) GetTeam(ctx context.Context, id string) (core.Team, error) {
	t, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return core.Team{}, fmt.Errorf("get team %s: %w", id, err)
	}
	return t, nil
}

func (s *ClaimService) TeamStats(ctx context.Context, id string) (core.TeamStats, error) {
	stats, err := s.store.TeamStats(ctx, id)
	if err != nil {
		return core.TeamStats{}, fmt.Errorf("team stats %s: %w", id, err)
	}
	return stats, nil
}

// CreateClaim files a new pending claim. Currency defaults to
// core.DefaultCurrency and priority to medium.
func (s *ClaimService) CreateClaim(ctx context.Context, c core.Claim) (core.Claim, error) {
	c.ID = s.newID()
	c.TeamID = strings.TrimSpace(c.TeamID)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Category = strings.TrimSpace(c.Category)
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = core.DefaultCurrency
	}
	c.Priority = strings.ToLower(strings.TrimSpace(c.Priority))
	if c.Priority == "" {
		c.Priority = core.PriorityMedium
	}
	c.Status = core.ClaimPending

	created, err := s.store.CreateClaim(ctx, c)
	if err != nil {
		return core.Claim{}, fmt.Errorf("create claim: %w", err)
	}
	s.logger.InfoContext(ctx, "Claim created",
		log.FieldOperation, log.OpCreate,
		log.FieldClaimID, created.ID,
		log.FieldTeamID, created.TeamID,
		log.FieldTotal, created.Amount.StringFixed(2))
	return created, nil
}

func (s *ClaimService) GetClaim(ctx context.Context, id string) (core.Claim, error) {
	c, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return core.Claim{}, fmt.Errorf("get claim %s: %w", id, err)
	}
	return c, nil
}

// ListClaims applies the receipt listing bounds to claims.
func (s *ClaimService) ListClaims(ctx context.Context, f claims.Filter) (claims.Page, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	f.Offset = max(f.Offset, 0)
	page, err := s.store.ListClaims(ctx, f)
	if err != nil {
		return claims.Page{}, fmt.Errorf("list claims: %w", err)
	}
	return page, nil
}

// DecideClaim approves or rejects a pending claim.
func (s *ClaimService) DecideClaim(ctx context.Context, id, status string) (core.Claim, error) {
	s.decide.Lock()
	defer s.decide.Unlock()

	c, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return core.Claim{}, fmt.Errorf("decide claim %s: %w", id, err)
	}
	next, err := c.Decide(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return core.Claim{}, fmt.Errorf("decide claim %s: %w", id, err)
	}
	updated, err := s.store.UpdateClaim(ctx, next)
	if err != nil {
		return core.Claim{}, fmt.Errorf("decide claim %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Claim decided",
		log.FieldOperation, log.OpUpdate,
		log.FieldClaimID, updated.ID,
		"status", updated.Status)
	return updated, nil
}
