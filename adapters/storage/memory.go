package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"transport-cost/core/settings"
	"transport-cost/core/toll"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// MemoryStore is an in-memory storage backend (for testing and one-shot quotes)
type MemoryStore struct {
	*settings.MemoryStore
	*toll.MemoryOverrideStore

	mu         sync.RWMutex
	routes     map[uuid.UUID]storedRoute
	breakdowns map[uuid.UUID][]types.CostBreakdown
}

type storedRoute struct {
	route           types.Route
	transportTypeID string
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		MemoryStore:         settings.NewMemoryStore(),
		MemoryOverrideStore: toll.NewMemoryOverrideStore(),
		routes:              make(map[uuid.UUID]storedRoute),
		breakdowns:          make(map[uuid.UUID][]types.CostBreakdown),
	}
}

// SaveRoute implements Store
func (s *MemoryStore) SaveRoute(_ context.Context, route *types.Route, transportTypeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route.ID] = storedRoute{route: *route, transportTypeID: transportTypeID}
	return nil
}

// GetRoute implements Store
func (s *MemoryStore) GetRoute(_ context.Context, id uuid.UUID) (*types.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return nil, errors.NotFound("route", id.String())
	}
	route := r.route
	return &route, nil
}

// LookupRoute implements settings.RouteDirectory
func (s *MemoryStore) LookupRoute(_ context.Context, id uuid.UUID) (*settings.RouteInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return nil, errors.NotFound("route", id.String())
	}
	return &settings.RouteInfo{
		RouteID:          id,
		BusinessEntityID: r.route.BusinessEntityID,
		TransportTypeID:  r.transportTypeID,
	}, nil
}

// SaveBreakdown implements Store
func (s *MemoryStore) SaveBreakdown(_ context.Context, b *types.CostBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakdowns[b.RouteID] = append(s.breakdowns[b.RouteID], *b)
	return nil
}

// LatestBreakdown implements Store
func (s *MemoryStore) LatestBreakdown(_ context.Context, routeID uuid.UUID) (*types.CostBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *types.CostBreakdown
	for i := range s.breakdowns[routeID] {
		b := &s.breakdowns[routeID][i]
		if latest == nil || !b.Metadata.CalculatedAt.Before(latest.Metadata.CalculatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, errors.NotFound("cost breakdown for route", routeID.String())
	}
	out := *latest
	return &out, nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
