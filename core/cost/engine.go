// Package cost computes itemized cost breakdowns for built routes.
// The engine is a pure function of its inputs apart from the calculation
// timestamp stored in the breakdown metadata.
package cost

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transport-cost/core/determinism"
	"transport-cost/core/driver"
	"transport-cost/core/fuel"
	"transport-cost/core/rates"
	"transport-cost/core/toll"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// Input is everything one calculation reads
type Input struct {
	Route     *types.Route
	Settings  *types.CostSettings
	Transport *types.TransportSpec

	// Business supplies overheads; nil means no overheads
	Business *types.BusinessEntity

	// Cargo supplies the weight for the per-ton fuel term; nil means no load weight
	Cargo *types.Cargo
}

// Engine calculates cost breakdowns
type Engine struct {
	fuel       *fuel.Table
	tolls      *toll.Table
	overrides  *toll.Resolver
	eventRates map[types.EventType]decimal.Decimal
	currency   types.Currency
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithFuelTable sets the default fuel price table
func WithFuelTable(t *fuel.Table) Option {
	return func(e *Engine) { e.fuel = t }
}

// WithTollTable sets the base toll table
func WithTollTable(t *toll.Table) Option {
	return func(e *Engine) { e.tolls = t }
}

// WithOverrides sets the toll override resolver
func WithOverrides(r *toll.Resolver) Option {
	return func(e *Engine) { e.overrides = r }
}

// WithEventRates replaces the default per-event rates
func WithEventRates(m map[types.EventType]decimal.Decimal) Option {
	return func(e *Engine) {
		e.eventRates = make(map[types.EventType]decimal.Decimal, len(m))
		for k, v := range m {
			e.eventRates[k] = v
		}
	}
}

// WithCurrency sets the breakdown currency
func WithCurrency(c types.Currency) Option {
	return func(e *Engine) { e.currency = c }
}

// WithClock sets the metadata timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the built-in tables and no overrides
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		fuel:       fuel.DefaultTable(),
		tolls:      toll.DefaultTable(),
		overrides:  toll.NewResolver(nil),
		eventRates: DefaultEventRates(),
		currency:   types.CurrencyEUR,
		now:        time.Now,
		logger:     logging.Named("cost"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate computes the breakdown. Disabled components contribute zero
// and never fail.
func (e *Engine) Calculate(ctx context.Context, in Input) (*types.CostBreakdown, error) {
	if in.Route == nil || in.Settings == nil || in.Transport == nil {
		return nil, errors.Validation("route, settings and transport are required")
	}

	enabled := in.Settings.Enabled
	notes := &assumptions{}
	b := &types.CostBreakdown{
		ID:         uuid.New(),
		RouteID:    in.Route.ID,
		FuelCosts:  map[string]decimal.Decimal{},
		TollCosts:  map[string]decimal.Decimal{},
		EventCosts: map[types.EventType]decimal.Decimal{},
		Currency:   e.currency,
	}

	var err error
	if enabled.Has(types.ComponentFuel) {
		if b.FuelCosts, err = e.fuelCosts(in, notes); err != nil {
			return nil, err
		}
	}
	if enabled.Has(types.ComponentToll) {
		if b.TollCosts, err = e.tollCosts(ctx, in, notes); err != nil {
			return nil, err
		}
	}
	if enabled.Has(types.ComponentDriver) {
		if b.DriverCosts, err = e.driverCosts(in, notes); err != nil {
			return nil, err
		}
	}
	if enabled.Has(types.ComponentOverhead) {
		b.OverheadCosts = overheadCosts(in.Business)
	}
	if enabled.Has(types.ComponentEvent) {
		b.EventCosts = e.eventCosts(in, notes)
	}

	b.TotalCost = b.SumOfSubtotals()
	b.Metadata = types.BreakdownMetadata{
		CalculatedAt: e.now().UTC(),
		SettingsID:   in.Settings.ID,
		Enabled:      enabled.List(),
		Fingerprint:  Fingerprint(b).Hex(),
		Assumptions:  notes.list,
	}

	for _, c := range types.AllComponentNames {
		e.logger.Debug("component subtotal",
			zap.String("route_id", b.RouteID.String()),
			zap.String("component", string(c)),
			zap.Bool("enabled", enabled.Has(c)),
			zap.String("amount", b.Subtotals()[c].StringFixed(2)),
		)
	}
	e.logger.Info("cost calculated",
		zap.String("route_id", b.RouteID.String()),
		zap.String("total", b.TotalCost.StringFixed(2)),
		zap.String("currency", string(b.Currency)),
		zap.Int("assumptions", len(notes.list)),
	)
	return b, nil
}

// fuelCosts charges loaded consumption plus the per-ton term on every
// segment, and empty consumption on an attributable empty leg.
func (e *Engine) fuelCosts(in Input, notes *assumptions) (map[string]decimal.Decimal, error) {
	spec := in.Transport
	loaded := orDefault(spec.FuelConsumptionLoaded, fuel.DefaultConsumption.Loaded, "loaded fuel consumption", notes)
	empty := orDefault(spec.FuelConsumptionEmpty, fuel.DefaultConsumption.Empty, "empty fuel consumption", notes)

	perTon := decimal.Zero
	if in.Cargo != nil && in.Cargo.WeightTons.IsPositive() {
		perTon = orDefault(spec.FuelConsumptionPerTon, fuel.DefaultConsumption.PerTon, "per-ton fuel consumption", notes).
			Mul(in.Cargo.WeightTons)
	}
	consumption := loaded.Add(perTon)

	out := map[string]decimal.Decimal{}
	for _, seg := range in.Route.Segments {
		price, err := e.fuelPrice(in.Settings, seg.CountryCode, notes)
		if err != nil {
			return nil, err
		}
		cost := seg.DistanceKm.Mul(consumption).Mul(price)
		out[seg.CountryCode] = out[seg.CountryCode].Add(cost)
	}

	if in.Route.EmptyDriving.Attributable() {
		country := in.Route.EmptyDrivingCountry()
		if country == "" {
			return nil, errors.Computation("empty driving leg has no country to bill fuel to")
		}
		price, err := e.fuelPrice(in.Settings, country, notes)
		if err != nil {
			return nil, err
		}
		cost := in.Route.EmptyDriving.DistanceKm.Mul(empty).Mul(price)
		out[country] = out[country].Add(cost)
	}
	return out, nil
}

// fuelPrice resolves the per-liter price including any surcharge.
func (e *Engine) fuelPrice(s *types.CostSettings, country string, notes *assumptions) (decimal.Decimal, error) {
	price, ok := countryRate(s, rates.FuelRate, country)
	if !ok {
		var specific bool
		price, specific = e.fuel.Price(country)
		if !price.IsPositive() {
			return decimal.Zero, errors.Computationf("no fuel price for %s", country).
				WithContext("country", country)
		}
		if specific {
			notes.addf("fuel price for %s from default table (%s/L)", country, price)
		} else {
			notes.addf("fuel price for %s from %s region default (%s/L)", country, types.RegionOf(country), price)
		}
	}
	if surcharge, ok := countryRate(s, rates.FuelSurchargeRate, country); ok {
		price = price.Mul(decimal.NewFromInt(1).Add(surcharge))
	}
	return price, nil
}

// tollCosts charges every main-leg segment at the effective toll rate:
// the settings or table rate, times a business override multiplier.
func (e *Engine) tollCosts(ctx context.Context, in Input, notes *assumptions) (map[string]decimal.Decimal, error) {
	spec := in.Transport
	businessID := in.Settings.BusinessEntityID
	if in.Business != nil {
		businessID = in.Business.ID
	}

	out := map[string]decimal.Decimal{}
	rateCache := map[string]decimal.Decimal{}
	for _, seg := range in.Route.Segments {
		rate, ok := rateCache[seg.CountryCode]
		if !ok {
			var err error
			if rate, err = e.tollRate(ctx, in.Settings, businessID, spec, seg.CountryCode, notes); err != nil {
				return nil, err
			}
			rateCache[seg.CountryCode] = rate
		}
		out[seg.CountryCode] = out[seg.CountryCode].Add(seg.DistanceKm.Mul(rate))
	}
	return out, nil
}

func (e *Engine) tollRate(ctx context.Context, s *types.CostSettings, businessID uuid.UUID, spec *types.TransportSpec, country string, notes *assumptions) (decimal.Decimal, error) {
	rate, ok := countryRate(s, rates.TollRate, country)
	if !ok {
		base := e.tolls.Rate(country, spec.TollClass, spec.EuroClass)
		if !base.Base.IsPositive() {
			return decimal.Zero, errors.Computationf("no toll rate for %s class %s", country, spec.TollClass).
				WithContext("country", country)
		}
		rate = base.PerKm()
		if !base.CountrySpecific {
			notes.addf("toll rate for %s from %s region default", country, types.RegionOf(country))
		}
	}

	multiplier, err := e.overrides.Resolve(ctx, businessID, country, spec.TollClass)
	if err != nil {
		return decimal.Zero, err
	}
	if multiplier.Valid {
		rate = rate.Mul(multiplier.Decimal)
	}
	return rate, nil
}

// driverCosts dispatches on the pay model, falling back to the transport's
// flat daily rate for settings without driver rates.
func (e *Engine) driverCosts(in Input, notes *assumptions) (driver.Costs, error) {
	hours := in.Route.DriverHours()
	if in.Settings.DriverRates != nil {
		return driver.Calculate(in.Settings.DriverRates, hours), nil
	}

	daily := in.Transport.DailyRate
	if !daily.IsPositive() {
		v, ok := in.Settings.Rate(rates.DriverBaseRate.Key())
		if !ok {
			return driver.Costs{}, errors.Computation("no driver rates, transport daily rate or driver_base_rate configured")
		}
		daily = v
		notes.addf("driver paid flat daily rate %s from driver_base_rate", daily)
	} else {
		notes.addf("driver paid flat daily rate %s from transport", daily)
	}
	return driver.Legacy(daily, hours), nil
}

func overheadCosts(b *types.BusinessEntity) decimal.Decimal {
	total := decimal.Zero
	if b == nil {
		return total
	}
	for _, v := range b.Overheads {
		total = total.Add(v)
	}
	return total
}

// eventCosts charges each stop its event rate, summed by stop type.
func (e *Engine) eventCosts(in Input, notes *assumptions) map[types.EventType]decimal.Decimal {
	out := map[types.EventType]decimal.Decimal{}
	for _, ev := range in.Route.Events {
		rate, ok := eventRate(in.Settings, ev.Type)
		if !ok {
			rate = e.eventRates[ev.Type]
			notes.addf("%s event rate defaulted to %s", ev.Type, rate)
		}
		out[ev.Type] = out[ev.Type].Add(rate)
	}
	return out
}

func orDefault(v, def decimal.Decimal, what string, notes *assumptions) decimal.Decimal {
	if v.IsPositive() {
		return v
	}
	notes.addf("%s defaulted to %s L/km", what, def)
	return def
}

// Fingerprint hashes every amount of a breakdown. It excludes the ID and
// timestamp, so two calculations over equal inputs share a fingerprint.
func Fingerprint(b *types.CostBreakdown) determinism.ContentHash {
	h := determinism.NewHasher("cost-breakdown").
		Text("route", b.RouteID.String()).
		Text("currency", string(b.Currency))
	determinism.DecimalMap(h, "fuel", b.FuelCosts)
	determinism.DecimalMap(h, "toll", b.TollCosts)
	h.Text("driver_model", string(b.DriverCosts.Model)).
		Decimal("driver_base", b.DriverCosts.BaseCost).
		Decimal("driver_regular", b.DriverCosts.RegularHoursCost).
		Decimal("driver_overtime", b.DriverCosts.OvertimeCost).
		Decimal("driver_total", b.DriverCosts.TotalCost).
		Decimal("overhead", b.OverheadCosts)
	determinism.DecimalMap(h, "events", b.EventCosts)
	return h.Decimal("total", b.TotalCost).Sum()
}
