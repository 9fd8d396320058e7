package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resit/internal/analysis"
	"resit/internal/cache"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/receipts"
)

// Report is the daily view of a range.
type Report struct {
	From     string                `json:"from"`
	To       string                `json:"to"`
	Currency string                `json:"currency,omitempty"`
	Days     []core.DailyAggregate `json:"days"`
	Metrics  core.Metrics          `json:"metrics"`
}

// AnalysisFetcher is what the analysis service needs from a backend.
type AnalysisFetcher interface {
	receipts.SummaryFetcher
	receipts.CategoryFetcher
}

type AnalysisOptions struct {
	Cache cache.QueryOptions
	// Observe receives cache outcomes labelled by cache name.
	Observe func(cacheName, outcome string)
	Logger  *log.Logger
}

// AnalysisService serves aggregated views of receipts through a query cache
// keyed by range.
type AnalysisService struct {
	fetcher    AnalysisFetcher
	summaries  *cache.Query[[]core.ReceiptSummary]
	categories *cache.Query[[]core.CategoryTotal]
	logger     *log.Logger
}

func NewAnalysisService(fetcher AnalysisFetcher, opts AnalysisOptions) *AnalysisService {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentAnalysis)

	queryOpts := func(name string) cache.QueryOptions {
		o := opts.Cache
		o.Logger = opts.Logger.WithComponent(log.ComponentCache).Slog()
		if opts.Observe != nil {
			o.Observe = func(outcome string) { opts.Observe(name, outcome) }
		}
		return o
	}

	return &AnalysisService{
		fetcher:    fetcher,
		summaries:  cache.NewQuery[[]core.ReceiptSummary](queryOpts(dashboard.KindDaily)),
		categories: cache.NewQuery[[]core.CategoryTotal](queryOpts(dashboard.KindCategories)),
		logger:     logger,
	}
}

// Daily aggregates the receipts of r into per-day totals and range metrics.
func (s *AnalysisService) Daily(ctx context.Context, r dashboard.Range) (Report, error) {
	rows, err := s.summaries.Get(ctx, r.Key(), s.fetchSummaries(r))
	if err != nil {
		return Report{}, fmt.Errorf("fetch receipts for %s: %w", r, err)
	}

	days := analysis.Aggregate(rows)
	report := Report{
		From:     boundString(r.From),
		To:       boundString(r.To),
		Currency: r.Currency,
		Days:     days,
		Metrics:  analysis.Derive(days),
	}

	s.logger.LogFields(ctx, slog.LevelDebug, "Daily report built",
		log.NewFields().WithOperation(log.OpAggregate).WithAggregation(r.String(), len(days), report.Metrics.TotalReceiptCount))
	return report, nil
}

// Categories returns the category breakdown of r.
func (s *AnalysisService) Categories(ctx context.Context, r dashboard.Range) (core.CategoryBreakdown, error) {
	totals, err := s.categories.Get(ctx, r.KeyFor(dashboard.KindCategories), s.fetchCategories(r))
	if err != nil {
		return core.CategoryBreakdown{}, fmt.Errorf("fetch category totals for %s: %w", r, err)
	}
	return analysis.BreakdownCategories(totals), nil
}

// Warm refreshes both cached views of r regardless of freshness.
func (s *AnalysisService) Warm(ctx context.Context, r dashboard.Range) (Report, error) {
	if _, err := s.summaries.Refresh(ctx, r.Key(), s.fetchSummaries(r)); err != nil {
		return Report{}, fmt.Errorf("warm receipts for %s: %w", r, err)
	}
	if _, err := s.categories.Refresh(ctx, r.KeyFor(dashboard.KindCategories), s.fetchCategories(r)); err != nil {
		return Report{}, fmt.Errorf("warm category totals for %s: %w", r, err)
	}
	return s.Daily(ctx, r)
}

// Invalidate drops every cached range that contains one of days and returns
// the dropped keys. Unparseable keys are dropped too.
func (s *AnalysisService) Invalidate(ctx context.Context, days ...core.Date) []string {
	match := func(key string) bool {
		r, ok := dashboard.RangeFromKey(key)
		if !ok {
			return true
		}
		for _, d := range days {
			if r.Contains(d) {
				return true
			}
		}
		return false
	}
	removed := append(s.summaries.Invalidate(ctx, match), s.categories.Invalidate(ctx, match)...)
	if len(removed) > 0 {
		s.logger.DebugContext(ctx, "Cached ranges invalidated",
			log.FieldOperation, log.OpInvalidate,
			"keys", removed)
	}
	return removed
}

// Cleaners exposes the local cache tiers for periodic expiry sweeps.
func (s *AnalysisService) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.summaries.Cleaner(), s.categories.Cleaner()}
}

// Wait blocks until background revalidations have finished.
func (s *AnalysisService) Wait() {
	s.summaries.Wait()
	s.categories.Wait()
}

func (s *AnalysisService) fetchSummaries(r dashboard.Range) func(context.Context) ([]core.ReceiptSummary, error) {
	return func(ctx context.Context) ([]core.ReceiptSummary, error) {
		start := time.Now()
		rows, err := s.fetcher.FetchSummaries(ctx, r.Query())
		if err != nil {
			return nil, err
		}
		s.logger.DebugContext(ctx, "Receipts fetched",
			log.FieldRange, r.String(),
			log.FieldReceipts, len(rows),
			log.FieldDuration, time.Since(start).Milliseconds())
		return rows, nil
	}
}

func (s *AnalysisService) fetchCategories(r dashboard.Range) func(context.Context) ([]core.CategoryTotal, error) {
	return func(ctx context.Context) ([]core.CategoryTotal, error) {
		return s.fetcher.CategoryTotals(ctx, r.Query())
	}
}

func boundString(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Key()
}
