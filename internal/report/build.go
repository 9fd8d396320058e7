package report

import (
	"context"

	"golang.org/x/sync/errgroup"

	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/services"
)

// Source provides the views a report is built from.
type Source interface {
	Daily(ctx context.Context, r dashboard.Range) (services.Report, error)
	Categories(ctx context.Context, r dashboard.Range) (core.CategoryBreakdown, error)
}

// Build fetches the daily view and the category breakdown of r
// concurrently. The first error cancels the other fetch.
func Build(ctx context.Context, src Source, r dashboard.Range) (services.Report, core.CategoryBreakdown, error) {
	var (
		rep       services.Report
		breakdown core.CategoryBreakdown
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rep, err = src.Daily(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		breakdown, err = src.Categories(gctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return services.Report{}, core.CategoryBreakdown{}, err
	}
	return rep, breakdown, nil
}
