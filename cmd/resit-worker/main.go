package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"resit/internal/amqp"
	"resit/internal/backend"
	"resit/internal/cache"
	"resit/internal/cli"
	"resit/internal/log"
	"resit/internal/metrics"
	"resit/internal/services"
	"resit/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger.Info("Starting resit-worker", log.FieldOperation, log.OpStartup)

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "Worker needs AMQP", errors.New("AMQP_URL is not set"))
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	// The worker consumes changes; it never publishes them.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.Err(err))
		}
	}()
	if res.Remote == nil {
		logger.Warn("No shared cache configured, invalidations only affect this process")
	}

	m := metrics.New()
	analysis := services.NewAnalysisService(res.Store, services.AnalysisOptions{
		Cache: cache.QueryOptions{
			Freshness: cfg.CacheFreshness,
			MaxAge:    cfg.CacheMaxAge,
			Size:      cfg.CacheSize,
			Remote:    res.Remote,
		},
		Observe: m.ObserveCache,
		Logger:  logger,
	})
	defer analysis.Wait()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(log.ComponentAMQP).Slog())
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	w := worker.NewInvalidationWorker(analysis, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeReceiptChanged(gctx, func(ctx context.Context, msg *amqp.ReceiptChanged) error {
			err := w.HandleReceiptChanged(ctx, msg)
			m.ObserveChange(msg.Op, err)
			return err
		})
	})
	g.Go(func() error {
		return w.Run(gctx, cfg.WarmInterval)
	})

	if cfg.WorkerMetricsPort != "" {
		srv := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving worker metrics", "port", cfg.WorkerMetricsPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.Err(err))
		return
	}
	logger.Info("Worker stopped gracefully")
}
