package settings

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transport-cost/core/driver"
	"transport-cost/core/rates"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// CreateRequest describes the initial settings of a route
type CreateRequest struct {
	RouteID     uuid.UUID
	Enabled     types.Components
	Rates       map[string]decimal.Decimal
	DriverRates driver.Rates
}

// Update is a partial change. Nil fields are left as stored; rate keys not
// present in Rates keep their current value.
type Update struct {
	Rates       map[string]decimal.Decimal
	Enabled     *types.Components
	DriverRates driver.Rates
}

// Manager creates, updates and clones cost settings. Every mutation
// validates the complete resulting settings before anything is persisted.
type Manager struct {
	store     Store
	routes    RouteDirectory
	validator *rates.Validator
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithValidator replaces the default rate validator
func WithValidator(v *rates.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithClock sets the timestamp source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a settings manager
func NewManager(store Store, routes RouteDirectory, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		routes:    routes,
		validator: rates.NewValidator(nil),
		now:       time.Now,
		logger:    logging.Named("settings"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the settings of a route
func (m *Manager) Get(ctx context.Context, routeID uuid.UUID) (*types.CostSettings, error) {
	return m.store.GetSettings(ctx, routeID)
}

// Validate checks the rates and driver pay model of req without touching
// the store. Callers use it to reject bad settings before persisting the
// route they belong to.
func (m *Manager) Validate(req CreateRequest) error {
	s := types.CostSettings{
		RouteID:     req.RouteID,
		Enabled:     req.Enabled,
		Rates:       map[string]decimal.Decimal{},
		DriverRates: req.DriverRates,
	}
	s = s.Merged(req.Rates)
	return m.validate(&s)
}

// Create validates and stores the first settings of a route. An empty
// component set is allowed.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*types.CostSettings, error) {
	route, err := m.routes.LookupRoute(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}

	if _, err := m.store.GetSettings(ctx, req.RouteID); err == nil {
		return nil, errors.Conflict("cost settings already exist for route").
			WithContext("route_id", req.RouteID.String())
	} else if !errors.IsType(err, errors.TypeNotFound) {
		return nil, err
	}

	now := m.now().UTC()
	s := types.CostSettings{
		ID:               uuid.New(),
		RouteID:          req.RouteID,
		BusinessEntityID: route.BusinessEntityID,
		Enabled:          req.Enabled,
		Rates:            map[string]decimal.Decimal{},
		DriverRates:      req.DriverRates,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s = s.Merged(req.Rates)

	if err := m.validate(&s); err != nil {
		return nil, err
	}
	if err := m.store.SaveSettings(ctx, &s); err != nil {
		return nil, errors.Internal("save cost settings", err)
	}

	m.logger.Info("cost settings created",
		zap.String("route_id", s.RouteID.String()),
		zap.Strings("components", s.Enabled.Strings()),
		zap.Int("rates", len(s.Rates)),
	)
	return &s, nil
}

// PartialUpdate merges the update into the stored settings and revalidates
// the merged whole. Stored settings are untouched when validation fails.
func (m *Manager) PartialUpdate(ctx context.Context, routeID uuid.UUID, u Update) (*types.CostSettings, error) {
	current, err := m.store.GetSettings(ctx, routeID)
	if err != nil {
		return nil, err
	}

	next := current.Merged(u.Rates)
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.DriverRates != nil {
		next.DriverRates = u.DriverRates
	}
	next.UpdatedAt = m.now().UTC()

	if err := m.validate(&next); err != nil {
		return nil, err
	}
	if err := m.store.SaveSettings(ctx, &next); err != nil {
		return nil, errors.Internal("save cost settings", err)
	}

	m.logger.Info("cost settings updated",
		zap.String("route_id", routeID.String()),
		zap.Strings("changed_rates", keys(u.Rates)),
		zap.Bool("components_changed", u.Enabled != nil),
	)
	return &next, nil
}

// Clone copies the source route's settings to the target route with
// modifications applied on top. Both routes must belong to the same business
// entity and use the same transport type.
func (m *Manager) Clone(ctx context.Context, sourceID, targetID uuid.UUID, mods map[string]decimal.Decimal) (*types.CostSettings, error) {
	var negative []errors.Violation
	for k, v := range mods {
		if v.IsNegative() {
			negative = append(negative, errors.Violation{Key: k, Value: v.String(), Reason: "must not be negative"})
		}
	}
	if len(negative) > 0 {
		return nil, errors.InvalidRates(negative)
	}

	source, err := m.routes.LookupRoute(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := m.routes.LookupRoute(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if source.BusinessEntityID != target.BusinessEntityID {
		return nil, errors.Conflict("cannot clone settings across business entities").
			WithContext("source_business_entity_id", source.BusinessEntityID.String()).
			WithContext("target_business_entity_id", target.BusinessEntityID.String())
	}
	if source.TransportTypeID != target.TransportTypeID {
		return nil, errors.Conflict("cannot clone settings across transport types").
			WithContext("source_transport_type", source.TransportTypeID).
			WithContext("target_transport_type", target.TransportTypeID)
	}

	src, err := m.store.GetSettings(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	cloned := src.Merged(mods)
	cloned.ID = uuid.New()
	cloned.RouteID = targetID
	cloned.BusinessEntityID = target.BusinessEntityID
	cloned.CreatedAt = now
	cloned.UpdatedAt = now

	if err := m.validate(&cloned); err != nil {
		return nil, err
	}
	if err := m.store.SaveSettings(ctx, &cloned); err != nil {
		return nil, errors.Internal("save cost settings", err)
	}

	m.logger.Info("cost settings cloned",
		zap.String("source_route_id", sourceID.String()),
		zap.String("target_route_id", targetID.String()),
		zap.Strings("modified_rates", keys(mods)),
	)
	return &cloned, nil
}

// validate checks every rate and the driver pay model, collecting all violations.
func (m *Manager) validate(s *types.CostSettings) error {
	var violations []errors.Violation
	for _, key := range s.RateKeys() {
		if v := m.validator.Check(key, s.Rates[key]); v != nil {
			violations = append(violations, *v)
		}
	}
	violations = append(violations, m.driverViolations(s.DriverRates)...)
	if len(violations) > 0 {
		m.logger.Debug("cost settings rejected", zap.Int("violations", len(violations)))
		return errors.InvalidRates(violations)
	}
	return nil
}

// driverViolations checks the daily rate against DRIVER_BASE_RATE and the
// hourly rates against DRIVER_TIME_RATE.
func (m *Manager) driverViolations(r driver.Rates) []errors.Violation {
	if r == nil {
		return nil
	}
	spec := driver.SpecOf(r)

	var out []errors.Violation
	check := func(field string, t rates.RateType, v decimal.NullDecimal) {
		if !v.Valid {
			return
		}
		if viol := m.validator.Check(t.Key(), v.Decimal); viol != nil {
			viol.Key = "driver_rates." + field
			out = append(out, *viol)
		}
	}
	check("daily_rate", rates.DriverBaseRate, spec.DailyRate)
	check("regular_hourly_rate", rates.DriverTimeRate, spec.RegularHourlyRate)
	check("overtime_hourly_rate", rates.DriverTimeRate, spec.OvertimeHourlyRate)
	return out
}

func keys(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
