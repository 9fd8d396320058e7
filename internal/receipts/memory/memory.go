package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"resit/internal/core"
	"resit/internal/receipts"
)

type Store struct {
	mu     sync.Mutex
	items  map[string]core.Receipt
	teams  map[string]core.Team
	claims map[string]core.Claim
	now    func() time.Time
}

var _ receipts.Store = (*Store)(nil)

func New(seed ...core.Receipt) *Store {
	s := &Store{
		items:  make(map[string]core.Receipt),
		teams:  make(map[string]core.Team),
		claims: make(map[string]core.Claim),
		now:    time.Now,
	}
	for _, r := range seed {
		s.items[r.ID] = r
	}
	return s
}

type seedRow struct {
	ID            string `json:"id"`
	Merchant      string `json:"merchant"`
	Date          string `json:"date"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	Category      string `json:"category"`
	TeamID        string `json:"team_id"`
}

// NewFromFile seeds the store from a JSON-lines file. A missing file yields
// an empty store; blank lines and lines starting with # are skipped.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var seed []core.Receipt
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var row seedRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("seed line %d: %w", line, err)
		}
		r, err := row.receipt()
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", line, err)
		}
		seed = append(seed, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return New(seed...), nil
}

func (row seedRow) receipt() (core.Receipt, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Receipt{}, err
	}
	total, err := core.ParseAmount(row.Total)
	if err != nil {
		return core.Receipt{}, err
	}
	if row.ID == "" {
		return core.Receipt{}, fmt.Errorf("missing id")
	}
	return core.Receipt{
		ID:            row.ID,
		Merchant:      row.Merchant,
		Date:          date,
		Total:         total,
		Currency:      row.Currency,
		PaymentMethod: row.PaymentMethod,
		Category:      row.Category,
		TeamID:        row.TeamID,
	}, nil
}

// FetchSummaries returns summaries in (date, id) order.
func (s *Store) FetchSummaries(_ context.Context, q receipts.Query) ([]core.ReceiptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.matchLocked(q)
	sortReceipts(rows, receipts.SortByDate, "asc")
	out := make([]core.ReceiptSummary, len(rows))
	for i, r := range rows {
		out[i] = r.Summary()
	}
	return out, nil
}

// CategoryTotals sums totals per category. Blank categories are reported
// with a nil name.
func (s *Store) CategoryTotals(_ context.Context, q receipts.Query) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := map[string]decimal.Decimal{}
	var names []string
	for _, r := range s.matchLocked(q) {
		name := strings.TrimSpace(r.Category)
		if _, ok := sums[name]; !ok {
			names = append(names, name)
			sums[name] = decimal.Zero
		}
		sums[name] = sums[name].Add(r.Total)
	}
	sort.Strings(names)

	out := make([]core.CategoryTotal, 0, len(names))
	for _, name := range names {
		ct := core.CategoryTotal{TotalSpent: sums[name]}
		if name != "" {
			n := name
			ct.Category = &n
		}
		out = append(out, ct)
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[r.ID]; exists {
		return core.Receipt{}, fmt.Errorf("receipt %s already exists", r.ID)
	}
	now := s.now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	s.items[r.ID] = r
	return r, nil
}

func (s *Store) Update(_ context.Context, r core.Receipt) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[r.ID]
	if !ok {
		return core.Receipt{}, receipts.ErrNotFound
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now().UTC()
	s.items[r.ID] = r
	return r, nil
}

func (s *Store) Delete(_ context.Context, id string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.Receipt{}, receipts.ErrNotFound
	}
	delete(s.items, id)
	return r, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.Receipt{}, receipts.ErrNotFound
	}
	return r, nil
}

func (s *Store) List(_ context.Context, f receipts.ListFilter) (receipts.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []core.Receipt
	merchant := strings.ToLower(strings.TrimSpace(f.Merchant))
	for _, r := range s.matchLocked(f.Query) {
		if merchant != "" && !strings.Contains(strings.ToLower(r.Merchant), merchant) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(strings.TrimSpace(r.Category), strings.TrimSpace(f.Category)) {
			continue
		}
		if f.TeamID != "" && r.TeamID != f.TeamID {
			continue
		}
		rows = append(rows, r)
	}
	sortReceipts(rows, f.SortBy, f.SortOrder)

	page := receipts.Page{Total: len(rows), Limit: f.Limit, Offset: f.Offset}
	start := min(f.Offset, len(rows))
	end := len(rows)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(rows))
	}
	page.Receipts = append([]core.Receipt(nil), rows[start:end]...)
	return page, nil
}

func (s *Store) matchLocked(q receipts.Query) []core.Receipt {
	out := make([]core.Receipt, 0, len(s.items))
	for _, r := range s.items {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortReceipts(rows []core.Receipt, by, order string) {
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if desc {
			a, b = b, a
		}
		switch by {
		case receipts.SortByTotal:
			if !a.Total.Equal(b.Total) {
				return a.Total.LessThan(b.Total)
			}
		case receipts.SortByMerchant:
			am, bm := strings.ToLower(a.Merchant), strings.ToLower(b.Merchant)
			if am != bm {
				return am < bm
			}
		default:
			if !a.Date.Equal(b.Date.Time) {
				return a.Date.Before(b.Date.Time)
			}
		}
		return a.ID < b.ID
	})
}
