package worker

import (
	"context"
	"fmt"
	"time"

	"resit/internal/amqp"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/services"
)

// Analysis is the part of the analysis service the worker drives.
type Analysis interface {
	Invalidate(ctx context.Context, days ...core.Date) []string
	Warm(ctx context.Context, r dashboard.Range) (services.Report, error)
}

// InvalidationWorker keeps the shared query cache consistent with receipt
// writes made by other processes, and keeps the default dashboard range
// warm.
type InvalidationWorker struct {
	analysis Analysis
	session  *dashboard.Session[services.Report]
	logger   *log.Logger
	now      func() time.Time
}

func NewInvalidationWorker(analysis Analysis, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	w := &InvalidationWorker{
		analysis: analysis,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
	w.session = dashboard.NewSession[services.Report](dashboard.Initial(w.now()), w.warm)
	return w
}

func (w *InvalidationWorker) warm(ctx context.Context, r dashboard.Range) (services.Report, error) {
	return w.analysis.Warm(ctx, r)
}

// HandleReceiptChanged drops cached ranges covering the changed days and
// re-warms the default range when it is affected.
func (w *InvalidationWorker) HandleReceiptChanged(ctx context.Context, msg *amqp.ReceiptChanged) error {
	days := make([]core.Date, 0, 2)
	for _, d := range msg.Days() {
		day, err := core.ParseDate(d)
		if err != nil {
			return fmt.Errorf("parse day %q: %w", d, err)
		}
		days = append(days, day)
	}

	removed := w.analysis.Invalidate(ctx, days...)
	w.logger.InfoContext(ctx, "Processed receipt change",
		log.FieldReceiptID, msg.ID,
		log.FieldOperation, msg.Op,
		log.FieldDay, msg.Day,
		"invalidated", len(removed))

	current := w.session.State().Range
	for _, d := range days {
		if current.Contains(d) {
			w.session.Reload(ctx)
			break
		}
	}
	return nil
}

// Run warms the default range now and then every interval, rolling it
// forward when the day changes. It returns when ctx is done.
func (w *InvalidationWorker) Run(ctx context.Context, interval time.Duration) error {
	defer w.session.Close()
	w.session.Start(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-w.session.Results():
			w.logResult(ctx, res)
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick moves the session to today's default range, reloading it when the
// range did not change.
func (w *InvalidationWorker) Tick(ctx context.Context) {
	prev := w.session.State()
	next := w.session.Dispatch(ctx, dashboard.SelectRange{Range: dashboard.DefaultRange(w.now())})
	if !dashboard.NeedsFetch(prev, next) {
		w.session.Reload(ctx)
	}
}

// Session exposes the worker's dashboard session.
func (w *InvalidationWorker) Session() *dashboard.Session[services.Report] {
	return w.session
}

func (w *InvalidationWorker) logResult(ctx context.Context, res dashboard.Result[services.Report]) {
	if res.Err != nil {
		if ctx.Err() == nil {
			w.logger.WarnContext(ctx, "Warming default range failed",
				log.FieldCacheKey, res.Key,
				log.Err(res.Err))
		}
		return
	}
	w.logger.InfoContext(ctx, "Default range warmed",
		log.NewFields().
			WithOperation(log.OpWarm).
			WithAggregation(res.Key, len(res.Value.Days), res.Value.Metrics.TotalReceiptCount).
			ToSlice()...)
}
