package timeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// SegmentTolerance is the allowed gap between segment sums and leg totals
var SegmentTolerance = decimal.RequireFromString("0.01")

// DefaultEventDuration is the fixed length of every stop, in hours
var DefaultEventDuration = decimal.NewFromInt(1)

// Feasibility decides whether a fully built route can be executed
type Feasibility func(r *types.Route) bool

// AlwaysFeasible accepts every route
func AlwaysFeasible(*types.Route) bool { return true }

// FitsDeliveryWindow accepts a route whose driving time plus the stops
// before delivery fit between pickup and delivery.
func FitsDeliveryWindow(r *types.Route) bool {
	need := r.TotalDurationHours
	for _, ev := range r.Events {
		if ev.Type != types.EventDelivery {
			need = need.Add(ev.DurationHours)
		}
	}
	return need.LessThanOrEqual(types.HoursOf(r.DeliveryTime.Sub(r.PickupTime)))
}

// Request holds the inputs of one route build
type Request struct {
	// RouteID is generated when nil
	RouteID          uuid.UUID
	BusinessEntityID uuid.UUID
	TransportID      uuid.UUID
	CargoID          uuid.UUID

	Origin      types.Location
	Destination types.Location

	// TruckLocation is the truck's current position; nil means it is at the origin
	TruckLocation          *types.Location
	EmptyDrivingChargeable bool

	PickupTime   time.Time
	DeliveryTime time.Time
}

// Builder turns route inputs plus provider data into a Route
type Builder struct {
	provider      SegmentProvider
	rest          RestPolicy
	feasible      Feasibility
	eventDuration decimal.Decimal
	now           func() time.Time
	logger        *zap.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithRestPolicy sets the rest policy
func WithRestPolicy(p RestPolicy) Option {
	return func(b *Builder) {
		if p != nil {
			b.rest = p
		}
	}
}

// WithFeasibility replaces the feasibility predicate
func WithFeasibility(f Feasibility) Option {
	return func(b *Builder) {
		if f != nil {
			b.feasible = f
		}
	}
}

// WithEventDuration sets the fixed stop duration in hours
func WithEventDuration(hours decimal.Decimal) Option {
	return func(b *Builder) {
		if hours.IsPositive() {
			b.eventDuration = hours
		}
	}
}

// WithClock sets the CreatedAt source
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder over a segment provider
func NewBuilder(provider SegmentProvider, opts ...Option) *Builder {
	b := &Builder{
		provider:      provider,
		rest:          MidpointRest{},
		feasible:      AlwaysFeasible,
		eventDuration: DefaultEventDuration,
		now:           time.Now,
		logger:        logging.Named("timeline"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces a complete route or an error; a partially built route is
// never returned.
func (b *Builder) Build(ctx context.Context, req Request) (*types.Route, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	leg, err := b.provider.Segments(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, providerError("main leg", err)
	}
	segments, err := checkLeg(leg)
	if err != nil {
		return nil, err
	}

	empty, err := b.emptyDriving(ctx, req)
	if err != nil {
		return nil, err
	}

	routeID := req.RouteID
	if routeID == uuid.Nil {
		routeID = uuid.New()
	}

	route := &types.Route{
		ID:                 routeID,
		BusinessEntityID:   req.BusinessEntityID,
		TransportID:        req.TransportID,
		CargoID:            req.CargoID,
		Origin:             req.Origin,
		Destination:        req.Destination,
		PickupTime:         req.PickupTime,
		DeliveryTime:       req.DeliveryTime,
		EmptyDriving:       empty,
		Segments:           segments,
		TotalDistanceKm:    leg.TotalDistanceKm,
		TotalDurationHours: leg.TotalDurationHours,
		Status:             types.RouteDraft,
		CreatedAt:          b.now().UTC(),
	}
	route.Events = b.events(req, route)

	if err := checkRoute(route); err != nil {
		return nil, err
	}
	route.IsFeasible = b.feasible(route)

	b.logger.Debug("route built",
		zap.String("route_id", route.ID.String()),
		zap.Int("segments", len(route.Segments)),
		zap.Int("events", len(route.Events)),
		zap.String("rest_policy", b.rest.Name()),
		zap.String("distance_km", route.TotalDistanceKm.String()),
		zap.Bool("feasible", route.IsFeasible),
	)
	return route, nil
}

func validateRequest(req Request) error {
	if !req.DeliveryTime.After(req.PickupTime) {
		return errors.Validation("delivery time must be after pickup time").
			WithContext("pickup_time", req.PickupTime).
			WithContext("delivery_time", req.DeliveryTime)
	}
	if !req.Origin.Valid() {
		return errors.Validation("origin coordinates out of range")
	}
	if !req.Destination.Valid() {
		return errors.Validation("destination coordinates out of range")
	}
	if req.TruckLocation != nil && !req.TruckLocation.Valid() {
		return errors.Validation("truck location coordinates out of range")
	}
	return nil
}

// checkLeg validates provider output and copies it into fresh segments.
func checkLeg(leg *Leg) ([]types.CountrySegment, error) {
	if leg == nil || len(leg.Segments) == 0 {
		return nil, errors.Computation("segment provider returned no country segments")
	}
	if leg.TotalDistanceKm.IsNegative() || leg.TotalDurationHours.IsNegative() {
		return nil, errors.Validation("route totals must not be negative")
	}

	out := make([]types.CountrySegment, len(leg.Segments))
	distance, duration := decimal.Zero, decimal.Zero
	for i, s := range leg.Segments {
		if s.CountryCode == "" {
			return nil, errors.Computationf("segment %d has no country code", i)
		}
		if s.DistanceKm.IsNegative() || s.DurationHours.IsNegative() {
			return nil, errors.Validationf("segment %d (%s) has negative distance or duration", i, s.CountryCode)
		}
		distance = distance.Add(s.DistanceKm)
		duration = duration.Add(s.DurationHours)
		out[i] = types.CountrySegment{
			CountryCode:   s.CountryCode,
			DistanceKm:    s.DistanceKm,
			DurationHours: s.DurationHours,
			Order:         i,
		}
	}

	if distance.Sub(leg.TotalDistanceKm).Abs().GreaterThan(SegmentTolerance) {
		return nil, errors.Computationf("segment distances sum to %s km, route total is %s km", distance, leg.TotalDistanceKm)
	}
	if duration.Sub(leg.TotalDurationHours).Abs().GreaterThan(SegmentTolerance) {
		return nil, errors.Computationf("segment durations sum to %s h, route total is %s h", duration, leg.TotalDurationHours)
	}
	return out, nil
}

func (b *Builder) emptyDriving(ctx context.Context, req Request) (types.EmptyDriving, error) {
	if req.TruckLocation == nil || req.TruckLocation.SamePlace(req.Origin) {
		return types.EmptyDriving{IsChargeable: req.EmptyDrivingChargeable}, nil
	}
	span, err := b.provider.Distance(ctx, *req.TruckLocation, req.Origin)
	if err != nil {
		return types.EmptyDriving{}, providerError("empty driving leg", err)
	}
	if span == nil {
		return types.EmptyDriving{}, errors.Computation("segment provider returned no empty driving data")
	}
	if span.DistanceKm.IsNegative() || span.DurationHours.IsNegative() {
		return types.EmptyDriving{}, errors.Validation("empty driving distance and duration must not be negative")
	}
	return types.EmptyDriving{
		DistanceKm:    span.DistanceKm,
		DurationHours: span.DurationHours,
		IsChargeable:  req.EmptyDrivingChargeable,
		CountryCode:   span.CountryCode,
	}, nil
}

// events builds pickup, rests and delivery into a new slice.
func (b *Builder) events(req Request, route *types.Route) []types.TimelineEvent {
	stops := b.rest.plan(schedule{
		pickup:     req.PickupTime,
		delivery:   req.DeliveryTime,
		drivingHrs: route.TotalDurationHours,
		eventHrs:   b.eventDuration,
	})

	events := make([]types.TimelineEvent, 0, len(stops)+2)
	add := func(t types.EventType, loc types.Location, at time.Time) {
		events = append(events, types.TimelineEvent{
			ID:            uuid.New(),
			Type:          t,
			Location:      loc,
			PlannedTime:   at,
			DurationHours: b.eventDuration,
			EventOrder:    len(events),
		})
	}

	add(types.EventPickup, req.Origin, req.PickupTime)
	for _, s := range stops {
		add(types.EventRest, restLocation(route, s.driven), s.at)
	}
	add(types.EventDelivery, req.Destination, req.DeliveryTime)
	return events
}

// restLocation interpolates between origin and destination by driven share
// and labels the stop with the country being crossed at that point.
func restLocation(route *types.Route, driven decimal.Decimal) types.Location {
	frac := 0.0
	if route.TotalDurationHours.IsPositive() {
		frac = driven.Div(route.TotalDurationHours).InexactFloat64()
	}
	o, d := route.Origin, route.Destination

	country := ""
	elapsed := decimal.Zero
	for _, s := range route.Segments {
		country = s.CountryCode
		elapsed = elapsed.Add(s.DurationHours)
		if elapsed.GreaterThanOrEqual(driven) {
			break
		}
	}

	return types.Location{
		Latitude:  o.Latitude + (d.Latitude-o.Latitude)*frac,
		Longitude: o.Longitude + (d.Longitude-o.Longitude)*frac,
		Address:   fmt.Sprintf("Rest stop (%s)", country),
	}
}

// checkRoute asserts the invariants the cost engine relies on.
func checkRoute(r *types.Route) error {
	for i, ev := range r.Events {
		if ev.EventOrder != i {
			return errors.Computationf("event %d has order %d", i, ev.EventOrder)
		}
	}
	if n := len(r.Events); n < 2 || r.Events[0].Type != types.EventPickup || r.Events[n-1].Type != types.EventDelivery {
		return errors.Computation("timeline must start with pickup and end with delivery")
	}
	for i := 1; i < len(r.Events); i++ {
		prev, ev := r.Events[i-1], r.Events[i]
		if ev.PlannedTime.Before(prev.PlannedTime) {
			return errors.Computationf("event %d (%s) planned before event %d (%s)", i, ev.Type, i-1, prev.Type).
				WithContext("planned_time", ev.PlannedTime).
				WithContext("previous_planned_time", prev.PlannedTime)
		}
		if ev.Type == types.EventRest {
			if end := ev.PlannedTime.Add(types.Hours(ev.DurationHours)); end.After(r.DeliveryTime) {
				return errors.Computationf("rest stop %d ends at %s, after delivery at %s",
					i, end.Format(time.RFC3339), r.DeliveryTime.Format(time.RFC3339))
			}
		}
	}
	return nil
}

// providerError keeps domain errors from the provider and marks anything
// else as a network failure.
func providerError(what string, err error) error {
	var domain *errors.Error
	if stderrors.As(err, &domain) {
		return err
	}
	return errors.Network(fmt.Sprintf("segment provider failed for %s", what), err)
}
