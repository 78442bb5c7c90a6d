// Package settings owns the lifecycle of per-route cost settings.
package settings

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// Store persists cost settings. Save must be atomic: either the whole
// settings value is written or nothing changes.
type Store interface {
	// GetSettings returns a NOT_FOUND error when the route has no settings
	GetSettings(ctx context.Context, routeID uuid.UUID) (*types.CostSettings, error)
	SaveSettings(ctx context.Context, s *types.CostSettings) error
}

// RouteInfo is what the manager needs to know about a route
type RouteInfo struct {
	RouteID          uuid.UUID
	BusinessEntityID uuid.UUID
	TransportTypeID  string
}

// RouteDirectory resolves route ownership and transport type
type RouteDirectory interface {
	// LookupRoute returns a NOT_FOUND error for unknown routes
	LookupRoute(ctx context.Context, routeID uuid.UUID) (*RouteInfo, error)
}

// MemoryStore keeps settings in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[uuid.UUID]types.CostSettings
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[uuid.UUID]types.CostSettings)}
}

// GetSettings implements Store
func (m *MemoryStore) GetSettings(_ context.Context, routeID uuid.UUID) (*types.CostSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[routeID]
	if !ok {
		return nil, errors.NotFound("cost settings", routeID.String())
	}
	out := s.Copy()
	return &out, nil
}

// SaveSettings implements Store
func (m *MemoryStore) SaveSettings(_ context.Context, s *types.CostSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.RouteID] = s.Copy()
	return nil
}

// MemoryDirectory is a RouteDirectory backed by a map
type MemoryDirectory struct {
	mu     sync.RWMutex
	routes map[uuid.UUID]RouteInfo
}

// NewMemoryDirectory creates a directory from route infos
func NewMemoryDirectory(routes ...RouteInfo) *MemoryDirectory {
	d := &MemoryDirectory{routes: make(map[uuid.UUID]RouteInfo, len(routes))}
	for _, r := range routes {
		d.routes[r.RouteID] = r
	}
	return d
}

// Register adds or replaces a route
func (d *MemoryDirectory) Register(r RouteInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[r.RouteID] = r
}

// LookupRoute implements RouteDirectory
func (d *MemoryDirectory) LookupRoute(_ context.Context, routeID uuid.UUID) (*RouteInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.routes[routeID]
	if !ok {
		return nil, errors.NotFound("route", routeID.String())
	}
	return &r, nil
}
