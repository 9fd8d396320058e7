package main

import (
	"context"
	"errors"
	"net/http"

	"resit/internal/backend"
	"resit/internal/cache"
	"resit/internal/cli"
	apphttp "resit/internal/http"
	"resit/internal/log"
	"resit/internal/metrics"
	"resit/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger.Info("Starting resit server", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.Err(err))
		}
	}()

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

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	for _, c := range analysis.Cleaners() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(cfg.CacheMaxAge)
	defer cacheManager.Stop()

	receiptService := services.NewReceiptService(res.Store, analysis, res.Publisher, logger)
	receiptService.ObserveWrites(m.ObserveWrite)
	claimService := services.NewClaimService(res.Claims, logger)
	receiptService.CheckTeams(claimService)

	checks := make(map[string]apphttp.Pinger, len(res.Checks))
	for name, p := range res.Checks {
		checks[name] = p
	}

	srv := apphttp.NewServer(receiptService, analysis, apphttp.Options{
		Addr:         ":" + cfg.Port,
		APIKey:       cfg.APIKey,
		RateLimitRPM: cfg.RateLimitRPM,
		Logger:       logger,
		Metrics:      m,
		Checks:       checks,
		Claims:       claimService,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.Err(err), "port", cfg.Port)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.Err(err))
	}
	logger.Info("Server stopped gracefully")
}
