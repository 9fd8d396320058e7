package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"resit/internal/core"
	"resit/internal/receipts"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ receipts.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const receiptColumns = `id, merchant, date, total, currency, payment_method, category, full_text, team_id, created_at, updated_at`

// FetchSummaries implements receipts.SummaryFetcher.
func (r *SQLiteRepository) FetchSummaries(ctx context.Context, q receipts.Query) ([]core.ReceiptSummary, error) {
	where, args := rangeClause(q)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, total, merchant, payment_method FROM receipts`+where+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := []core.ReceiptSummary{}
	for rows.Next() {
		var (
			s                 core.ReceiptSummary
			total             sql.NullString
			merchant, payment sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Date, &total, &merchant, &payment); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if total.Valid {
			d, err := decimal.NewFromString(total.String)
			if err != nil {
				slog.WarnContext(ctx, "Unparseable receipt total", "id", s.ID, "total", total.String)
			} else {
				s.Total = decimal.NewNullDecimal(d)
			}
		}
		s.Merchant = nonEmpty(merchant)
		s.PaymentMethod = nonEmpty(payment)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

// CategoryTotals implements receipts.CategoryFetcher. Totals are stored as
// decimal text, so the sum is computed here rather than with SUM().
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, q receipts.Query) ([]core.CategoryTotal, error) {
	where, args := rangeClause(q)
	rows, err := r.db.QueryContext(ctx,
		`SELECT TRIM(category), total FROM receipts`+where+` ORDER BY TRIM(category), id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	idx := map[string]int{}
	for rows.Next() {
		var category, total string
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		amount, err := decimal.NewFromString(total)
		if err != nil {
			continue
		}
		i, ok := idx[category]
		if !ok {
			ct := core.CategoryTotal{TotalSpent: decimal.Zero}
			if category != "" {
				c := category
				ct.Category = &c
			}
			out = append(out, ct)
			i = len(out) - 1
			idx[category] = i
		}
		out[i].TotalSpent = out[i].TotalSpent.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	if out == nil {
		out = []core.CategoryTotal{}
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}
	now := r.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (`+receiptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, strings.TrimSpace(rec.Merchant), rec.Date.Key(), rec.Total.String(), rec.Currency,
		rec.PaymentMethod, rec.Category, rec.FullText, rec.TeamID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"id", rec.ID,
		"merchant", rec.Merchant,
		"total", rec.Total.String(),
		"date", rec.Date.Key())
	return rec, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}
	existing, err := r.Get(ctx, rec.ID)
	if err != nil {
		return core.Receipt{}, err
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET merchant = ?, date = ?, total = ?, currency = ?, payment_method = ?,
		 category = ?, full_text = ?, team_id = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(rec.Merchant), rec.Date.Key(), rec.Total.String(), rec.Currency,
		rec.PaymentMethod, rec.Category, rec.FullText, rec.TeamID, rec.UpdatedAt, rec.ID)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("update receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Receipt{}, receipts.ErrNotFound
	}
	return rec, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (core.Receipt, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return core.Receipt{}, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id); err != nil {
		return core.Receipt{}, fmt.Errorf("delete receipt: %w", err)
	}
	slog.InfoContext(ctx, "Receipt deleted from SQLite", "id", id)
	return existing, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Receipt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	rec, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, receipts.ErrNotFound
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt by id: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f receipts.ListFilter) (receipts.Page, error) {
	where, args := rangeClause(f.Query)
	var conds []string
	if where != "" {
		conds = append(conds, strings.TrimPrefix(where, " WHERE "))
	}
	if m := strings.TrimSpace(f.Merchant); m != "" {
		conds = append(conds, `LOWER(merchant) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(m))+"%")
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		conds = append(conds, `LOWER(TRIM(category)) = ?`)
		args = append(args, strings.ToLower(c))
	}
	if t := strings.TrimSpace(f.TeamID); t != "" {
		conds = append(conds, `team_id = ?`)
		args = append(args, t)
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	page := receipts.Page{Limit: f.Limit, Offset: f.Offset}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count receipts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + receiptColumns + ` FROM receipts` + clause + orderClause(f.SortBy, f.SortOrder) + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return page, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	page.Receipts = []core.Receipt{}
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return page, fmt.Errorf("scan receipt: %w", err)
		}
		page.Receipts = append(page.Receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate receipts: %w", err)
	}
	return page, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (core.Receipt, error) {
	var (
		rec         core.Receipt
		date, total string
	)
	if err := s.Scan(&rec.ID, &rec.Merchant, &date, &total, &rec.Currency, &rec.PaymentMethod,
		&rec.Category, &rec.FullText, &rec.TeamID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return core.Receipt{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("receipt %s: %w", rec.ID, err)
	}
	rec.Date = d
	if rec.Total, err = decimal.NewFromString(total); err != nil {
		return core.Receipt{}, fmt.Errorf("receipt %s total: %w", rec.ID, core.ErrInvalidAmount)
	}
	return rec, nil
}

// rangeClause turns query bounds into a WHERE clause over day keys and
// currency. Bounds that fall mid-day are rounded the same way a
// midnight-dated receipt would compare against them.
func rangeClause(q receipts.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Start != nil {
		conds = append(conds, `date >= ?`)
		args = append(args, ceilDay(*q.Start))
	}
	if q.End != nil {
		conds = append(conds, `date < ?`)
		args = append(args, ceilDay(*q.End))
	}
	if q.Currency != "" {
		conds = append(conds, `currency = ?`)
		args = append(args, strings.ToUpper(q.Currency))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func ceilDay(t time.Time) string {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(t) {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format(core.DayLayout)
}

func orderClause(by, order string) string {
	dir := "ASC"
	if strings.EqualFold(order, "desc") {
		dir = "DESC"
	}
	switch by {
	case receipts.SortByTotal:
		return " ORDER BY CAST(total AS REAL) " + dir + ", id " + dir
	case receipts.SortByMerchant:
		return " ORDER BY LOWER(merchant) " + dir + ", id " + dir
	default:
		return " ORDER BY date " + dir + ", id " + dir
	}
}

func nonEmpty(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.String)
	if s == "" {
		return nil
	}
	return &s
}
