package backend

import (
	"context"
	"time"

	"resit/internal/cache"
	"resit/internal/claims"
	"resit/internal/receipts"
	"resit/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result holds the receipt store and the optional collaborators built
// alongside it. Publisher and Remote are nil when not configured. Claims is
// served by the same backend as Store.
type Result struct {
	Store     receipts.Store
	Claims    claims.Store
	Publisher services.Publisher
	Remote    cache.RemoteStore
	// Checks lists the dependencies probed by the health endpoint.
	Checks  map[string]Pinger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; an empty SeedFile starts with no receipts.
	SeedFile string

	// AMQP publishing, optional unless RequireAMQP is set
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	RequireAMQP  bool

	// Shared cache tier, optional
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTimeout  time.Duration
}

// BackendType represents the type of receipt store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
