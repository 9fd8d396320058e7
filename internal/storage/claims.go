package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"resit/internal/claims"
	"resit/internal/core"
)

var _ claims.Store = (*SQLiteRepository)(nil)

const claimColumns = `id, team_id, title, amount, currency, description, category, priority, status, created_at, updated_at`

func (r *SQLiteRepository) CreateTeam(ctx context.Context, t core.Team) (core.Team, error) {
	if err := t.Validate(); err != nil {
		return core.Team{}, err
	}
	t.Name = strings.TrimSpace(t.Name)
	t.CreatedAt = r.now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)`, t.ID, t.Name, t.CreatedAt); err != nil {
		return core.Team{}, fmt.Errorf("insert team: %w", err)
	}
	slog.InfoContext(ctx, "Team saved to SQLite", "id", t.ID, "name", t.Name)
	return t, nil
}

func (r *SQLiteRepository) GetTeam(ctx context.Context, id string) (core.Team, error) {
	var t core.Team
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Team{}, claims.ErrTeamNotFound
	}
	if err != nil {
		return core.Team{}, fmt.Errorf("get team by id: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTeams(ctx context.Context) ([]core.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM teams ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	out := []core.Team{}
	for rows.Next() {
		var t core.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}
	return out, nil
}

// TeamStats sums amounts in Go since they are stored as decimal text.
func (r *SQLiteRepository) TeamStats(ctx context.Context, id string) (core.TeamStats, error) {
	if _, err := r.GetTeam(ctx, id); err != nil {
		return core.TeamStats{}, err
	}
	stats := claims.NewStats(id)

	rows, err := r.db.QueryContext(ctx, `SELECT total FROM receipts WHERE team_id = ?`, id)
	if err != nil {
		return stats, fmt.Errorf("query team receipts: %w", err)
	}
	for rows.Next() {
		var total string
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan team receipt: %w", err)
		}
		stats.ReceiptCount++
		if d, err := decimal.NewFromString(total); err == nil {
			stats.ReceiptTotal = stats.ReceiptTotal.Add(d)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate team receipts: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT amount, status FROM claims WHERE team_id = ?`, id)
	if err != nil {
		return stats, fmt.Errorf("query team claims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var amount, status string
		if err := rows.Scan(&amount, &status); err != nil {
			return stats, fmt.Errorf("scan team claim: %w", err)
		}
		stats.ClaimCount++
		stats.ClaimsByStatus[status]++
		if d, err := decimal.NewFromString(amount); err == nil {
			stats.ClaimTotal = stats.ClaimTotal.Add(d)
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate team claims: %w", err)
	}
	return stats, nil
}

func (r *SQLiteRepository) CreateClaim(ctx context.Context, c core.Claim) (core.Claim, error) {
	if err := c.Validate(); err != nil {
		return core.Claim{}, err
	}
	if _, err := r.GetTeam(ctx, c.TeamID); err != nil {
		return core.Claim{}, err
	}
	now := r.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TeamID, strings.TrimSpace(c.Title), c.Amount.String(), c.Currency,
		c.Description, c.Category, c.Priority, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return core.Claim{}, fmt.Errorf("insert claim: %w", err)
	}
	slog.InfoContext(ctx, "Claim saved to SQLite",
		"id", c.ID,
		"team_id", c.TeamID,
		"amount", c.Amount.String())
	return c, nil
}

func (r *SQLiteRepository) GetClaim(ctx context.Context, id string) (core.Claim, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Claim{}, claims.ErrClaimNotFound
	}
	if err != nil {
		return core.Claim{}, fmt.Errorf("get claim by id: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListClaims(ctx context.Context, f claims.Filter) (claims.Page, error) {
	var (
		conds []string
		args  []any
	)
	if f.TeamID != "" {
		conds = append(conds, `team_id = ?`)
		args = append(args, f.TeamID)
	}
	if f.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		conds = append(conds, `priority = ?`)
		args = append(args, f.Priority)
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	page := claims.Page{Limit: f.Limit, Offset: f.Offset}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count claims: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return page, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	page.Claims = []core.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return page, fmt.Errorf("scan claim: %w", err)
		}
		page.Claims = append(page.Claims, c)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate claims: %w", err)
	}
	return page, nil
}

func (r *SQLiteRepository) UpdateClaim(ctx context.Context, c core.Claim) (core.Claim, error) {
	if err := c.Validate(); err != nil {
		return core.Claim{}, err
	}
	existing, err := r.GetClaim(ctx, c.ID)
	if err != nil {
		return core.Claim{}, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = r.now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE claims SET title = ?, amount = ?, currency = ?, description = ?, category = ?,
		 priority = ?, status = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(c.Title), c.Amount.String(), c.Currency, c.Description, c.Category,
		c.Priority, c.Status, c.UpdatedAt, c.ID)
	if err != nil {
		return core.Claim{}, fmt.Errorf("update claim: %w", err)
	}
	return c, nil
}

func scanClaim(s scanner) (core.Claim, error) {
	var (
		c      core.Claim
		amount string
	)
	if err := s.Scan(&c.ID, &c.TeamID, &c.Title, &amount, &c.Currency, &c.Description,
		&c.Category, &c.Priority, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return core.Claim{}, err
	}
	var err error
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Claim{}, fmt.Errorf("claim %s amount: %w", c.ID, core.ErrInvalidAmount)
	}
	return c, nil
}
