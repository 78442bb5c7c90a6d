// Package quote runs the quoting workflow: build the route, resolve its
// settings, calculate the breakdown and persist both. The CLI is a thin
// wrapper around Service.
package quote

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transport-cost/core/cost"
	"transport-cost/core/output"
	"transport-cost/core/settings"
	"transport-cost/core/timeline"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// RouteStore persists what a quote produces
type RouteStore interface {
	SaveRoute(ctx context.Context, route *types.Route, transportTypeID string) error
	GetRoute(ctx context.Context, id uuid.UUID) (*types.Route, error)
	SaveBreakdown(ctx context.Context, b *types.CostBreakdown) error
}

// Request is one quote
type Request struct {
	Route     timeline.Request
	Transport types.TransportSpec
	Business  *types.BusinessEntity
	Cargo     *types.Cargo

	// Settings seeds the route's cost settings when none are stored, or is
	// applied as a partial update when they are. Nil keeps stored settings,
	// or creates all-components settings with no explicit rates.
	Settings *settings.CreateRequest
}

// Service wires the builder, settings manager and cost engine together
type Service struct {
	builder  *timeline.Builder
	settings *settings.Manager
	engine   *cost.Engine
	store    RouteStore
	version  string
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithVersion stamps quotes with the tool version
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a quoting service
func NewService(builder *timeline.Builder, manager *settings.Manager, engine *cost.Engine, store RouteStore, opts ...Option) *Service {
	s := &Service{
		builder:  builder,
		settings: manager,
		engine:   engine,
		store:    store,
		logger:   logging.Named("quote"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote builds and prices a route
func (s *Service) Quote(ctx context.Context, req Request) (*output.Quote, error) {
	if req.Business != nil && req.Route.BusinessEntityID == uuid.Nil {
		req.Route.BusinessEntityID = req.Business.ID
	}
	if req.Route.TransportID == uuid.Nil {
		req.Route.TransportID = req.Transport.ID
	}
	if req.Cargo != nil && req.Route.CargoID == uuid.Nil {
		req.Route.CargoID = req.Cargo.ID
	}

	route, err := s.builder.Build(ctx, req.Route)
	if err != nil {
		return nil, err
	}
	if req.Settings != nil {
		if err := s.settings.Validate(*req.Settings); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveRoute(ctx, route, req.Transport.TransportTypeID); err != nil {
		return nil, errors.Internal("save route", err)
	}

	cs, err := s.resolveSettings(ctx, route.ID, req.Settings)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, route, cs, req)
}

// Recalculate prices a stored route again with its current settings
func (s *Service) Recalculate(ctx context.Context, routeID uuid.UUID, req Request) (*output.Quote, error) {
	route, err := s.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	cs, err := s.settings.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, route, cs, req)
}

func (s *Service) price(ctx context.Context, route *types.Route, cs *types.CostSettings, req Request) (*output.Quote, error) {
	transport := req.Transport
	b, err := s.engine.Calculate(ctx, cost.Input{
		Route:     route,
		Settings:  cs,
		Transport: &transport,
		Business:  req.Business,
		Cargo:     req.Cargo,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveBreakdown(ctx, b); err != nil {
		return nil, errors.Internal("save cost breakdown", err)
	}

	s.logger.Info("route quoted",
		zap.String("route_id", route.ID.String()),
		zap.Int("segments", len(route.Segments)),
		zap.Int("events", len(route.Events)),
		zap.String("total", b.TotalCost.StringFixed(2)),
	)
	return &output.Quote{Route: route, Breakdown: b, Version: s.version}, nil
}

func (s *Service) resolveSettings(ctx context.Context, routeID uuid.UUID, seed *settings.CreateRequest) (*types.CostSettings, error) {
	current, err := s.settings.Get(ctx, routeID)
	switch {
	case err == nil && seed == nil:
		return current, nil
	case err == nil:
		enabled := seed.Enabled
		return s.settings.PartialUpdate(ctx, routeID, settings.Update{
			Rates:       seed.Rates,
			Enabled:     &enabled,
			DriverRates: seed.DriverRates,
		})
	case !errors.IsType(err, errors.TypeNotFound):
		return nil, err
	}

	create := settings.CreateRequest{RouteID: routeID, Enabled: types.AllComponents}
	if seed != nil {
		create = *seed
		create.RouteID = routeID
	}
	return s.settings.Create(ctx, create)
}
