package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"resit/internal/claims"
	"resit/internal/core"
)

var _ claims.Store = (*Store)(nil)

func (s *Store) CreateTeam(_ context.Context, t core.Team) (core.Team, error) {
	if err := t.Validate(); err != nil {
		return core.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.teams[t.ID]; exists {
		return core.Team{}, fmt.Errorf("team %s already exists", t.ID)
	}
	t.Name = strings.TrimSpace(t.Name)
	t.CreatedAt = s.now().UTC()
	s.teams[t.ID] = t
	return t, nil
}

func (s *Store) GetTeam(_ context.Context, id string) (core.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return core.Team{}, claims.ErrTeamNotFound
	}
	return t, nil
}

func (s *Store) ListTeams(_ context.Context) ([]core.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) TeamStats(_ context.Context, id string) (core.TeamStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return core.TeamStats{}, claims.ErrTeamNotFound
	}
	stats := claims.NewStats(id)
	for _, r := range s.items {
		if r.TeamID != id {
			continue
		}
		stats.ReceiptCount++
		stats.ReceiptTotal = stats.ReceiptTotal.Add(r.Total)
	}
	for _, c := range s.claims {
		if c.TeamID != id {
			continue
		}
		stats.ClaimCount++
		stats.ClaimTotal = stats.ClaimTotal.Add(c.Amount)
		stats.ClaimsByStatus[c.Status]++
	}
	return stats, nil
}

func (s *Store) CreateClaim(_ context.Context, c core.Claim) (core.Claim, error) {
	if err := c.Validate(); err != nil {
		return core.Claim{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[c.TeamID]; !ok {
		return core.Claim{}, claims.ErrTeamNotFound
	}
	if _, exists := s.claims[c.ID]; exists {
		return core.Claim{}, fmt.Errorf("claim %s already exists", c.ID)
	}
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.claims[c.ID] = c
	return c, nil
}

func (s *Store) GetClaim(_ context.Context, id string) (core.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return core.Claim{}, claims.ErrClaimNotFound
	}
	return c, nil
}

// ListClaims returns claims newest first, ties broken by id.
func (s *Store) ListClaims(_ context.Context, f claims.Filter) (claims.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []core.Claim
	for _, c := range s.claims {
		if f.TeamID != "" && c.TeamID != f.TeamID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Priority != "" && c.Priority != f.Priority {
			continue
		}
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	page := claims.Page{Total: len(rows), Limit: f.Limit, Offset: f.Offset}
	start := min(max(f.Offset, 0), len(rows))
	end := len(rows)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(rows))
	}
	page.Claims = append([]core.Claim{}, rows[start:end]...)
	return page, nil
}

func (s *Store) UpdateClaim(_ context.Context, c core.Claim) (core.Claim, error) {
	if err := c.Validate(); err != nil {
		return core.Claim{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.claims[c.ID]
	if !ok {
		return core.Claim{}, claims.ErrClaimNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.claims[c.ID] = c
	return c, nil
}
