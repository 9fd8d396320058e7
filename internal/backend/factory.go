package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resit/internal/amqp"
	"resit/internal/cache"
	"resit/internal/claims"
	"resit/internal/log"
	"resit/internal/receipts"
	"resit/internal/receipts/memory"
	"resit/internal/storage"
)

const defaultRedisTimeout = 2 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend. Partially built
// resources are released when a later step fails.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Checks: make(map[string]Pinger)}
	var closers []func() error
	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Result, error) {
		if cerr := res.Cleanup(); cerr != nil {
			f.logger.WarnContext(ctx, "Backend cleanup failed", log.Err(cerr))
		}
		return nil, err
	}

	store, closeStore, err := f.createStore(ctx, config, res)
	if err != nil {
		return fail(err)
	}
	res.Store = store
	res.Claims = store
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			f.logger.WithComponent(log.ComponentAMQP).Slog())
		switch {
		case err != nil && config.RequireAMQP:
			return fail(fmt.Errorf("failed to initialize AMQP client: %w", err))
		case err != nil:
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", log.Err(err))
		default:
			res.Publisher = client
			closers = append(closers, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.RedisAddr != "" {
		timeout := config.RedisTimeout
		if timeout <= 0 {
			timeout = defaultRedisTimeout
		}
		remote, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:        config.RedisAddr,
			Password:    config.RedisPassword,
			DB:          config.RedisDB,
			Prefix:      config.RedisPrefix,
			DialTimeout: timeout,
			Timeout:     timeout,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize redis cache: %w", err))
		}
		res.Remote = remote
		res.Checks["redis"] = remote
		closers = append(closers, remote.Close)
		f.logger.InfoContext(ctx, "Initialized redis cache tier", "addr", config.RedisAddr)
	}

	f.logger.InfoContext(ctx, "Backend ready",
		"backend", config.Type,
		"amqp_enabled", res.Publisher != nil,
		"redis_enabled", res.Remote != nil)
	return res, nil
}

// backendStore is what every backend type implements.
type backendStore interface {
	receipts.Store
	claims.Store
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config, res *Result) (backendStore, func() error, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Checks["sqlite"] = repo
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil
	case MemoryBackend:
		if config.SeedFile == "" {
			f.logger.InfoContext(ctx, "Initialized memory backend")
			return memory.New(), nil, nil
		}
		store, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
