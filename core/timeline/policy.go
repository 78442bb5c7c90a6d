package timeline

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// restStop is a planned rest: when it starts and how many driving hours
// have been completed by then.
type restStop struct {
	at     time.Time
	driven decimal.Decimal
}

// schedule is the input a rest policy plans against
type schedule struct {
	pickup     time.Time
	delivery   time.Time
	drivingHrs decimal.Decimal
	eventHrs   decimal.Decimal
}

// RestPolicy decides where rest events are inserted between pickup and delivery
type RestPolicy interface {
	Name() string
	plan(s schedule) []restStop
}

// MidpointRest places exactly one rest at the temporal midpoint between
// pickup and delivery.
type MidpointRest struct{}

// Name implements RestPolicy
func (MidpointRest) Name() string { return "midpoint" }

func (MidpointRest) plan(s schedule) []restStop {
	at := s.pickup.Add(s.delivery.Sub(s.pickup) / 2)
	driven := types.HoursOf(at.Sub(s.pickup)).Sub(s.eventHrs)
	return []restStop{{at: at, driven: clamp(driven, s.drivingHrs)}}
}

// IntervalRest inserts a rest whenever driving time since the previous stop
// would exceed ThresholdHours. Planned times walk forward from pickup,
// accumulating driving and fixed stop durations.
type IntervalRest struct {
	ThresholdHours decimal.Decimal
}

// Name implements RestPolicy
func (IntervalRest) Name() string { return "interval" }

func (p IntervalRest) plan(s schedule) []restStop {
	var stops []restStop
	at := s.pickup.Add(types.Hours(s.eventHrs))
	driven := decimal.Zero
	for s.drivingHrs.Sub(driven).GreaterThan(p.ThresholdHours) {
		driven = driven.Add(p.ThresholdHours)
		at = at.Add(types.Hours(p.ThresholdHours))
		stops = append(stops, restStop{at: at, driven: driven})
		at = at.Add(types.Hours(s.eventHrs))
	}
	return stops
}

// ParseRestPolicy maps a configured policy name to a RestPolicy
func ParseRestPolicy(name string, intervalHours decimal.Decimal) (RestPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "midpoint":
		return MidpointRest{}, nil
	case "interval":
		if !intervalHours.IsPositive() {
			return nil, errors.Validationf("rest interval must be positive, got %s", intervalHours)
		}
		return IntervalRest{ThresholdHours: intervalHours}, nil
	default:
		return nil, errors.Validationf("unknown rest policy %q", name)
	}
}

func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
