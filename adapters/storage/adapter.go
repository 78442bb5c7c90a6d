// Package storage persists routes, cost settings, toll overrides and cost
// breakdowns. Backends: in-memory, SQLite and PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"transport-cost/core/settings"
	"transport-cost/core/toll"
	"transport-cost/core/types"
)

// Backend is a storage backend type
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// ParseBackend accepts backend names and database/sql driver names
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory":
		return BackendMemory, nil
	case "sqlite", "sqlite3":
		return BackendSQLite, nil
	case "postgres", "postgresql", "pgx":
		return BackendPostgres, nil
	default:
		return "", fmt.Errorf("unsupported backend: %s", s)
	}
}

// Store is the storage interface used by the quoting workflow
type Store interface {
	settings.Store
	settings.RouteDirectory
	toll.OverrideStore

	// SaveRoute stores a built route with the transport type it was planned for
	SaveRoute(ctx context.Context, route *types.Route, transportTypeID string) error

	// GetRoute retrieves a route by ID
	GetRoute(ctx context.Context, id uuid.UUID) (*types.Route, error)

	// SaveBreakdown stores a calculated breakdown
	SaveBreakdown(ctx context.Context, b *types.CostBreakdown) error

	// LatestBreakdown returns the most recently calculated breakdown of a route
	LatestBreakdown(ctx context.Context, routeID uuid.UUID) (*types.CostBreakdown, error)

	// Close closes the store
	Close() error
}

// StoreFactory creates stores by backend type
func StoreFactory(backend Backend, dsn string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, BackendPostgres:
		return OpenSQL(backend, dsn)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// Ensure interfaces are implemented
var (
	_ Store     = (*MemoryStore)(nil)
	_ Store     = (*SQLStore)(nil)
	_ io.Closer = (*MemoryStore)(nil)
	_ io.Closer = (*SQLStore)(nil)
)
