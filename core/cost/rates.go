package cost

import (
	"fmt"

	"github.com/shopspring/decimal"

	"transport-cost/core/rates"
	"transport-cost/core/types"
)

// DefaultEventRates applies when settings carry no event rate for a stop type
func DefaultEventRates() map[types.EventType]decimal.Decimal {
	return map[types.EventType]decimal.Decimal{
		types.EventPickup:   decimal.NewFromInt(50),
		types.EventDelivery: decimal.NewFromInt(50),
		types.EventRest:     decimal.NewFromInt(30),
	}
}

// countryRate looks up "<type>_<CC>" then "<type>" in the settings.
func countryRate(s *types.CostSettings, t rates.RateType, country string) (decimal.Decimal, bool) {
	if v, ok := s.Rate(rates.CountryKey(t, country)); ok {
		return v, true
	}
	return s.Rate(t.Key())
}

// eventRate looks up "event_rate_<type>" then "event_rate" in the settings.
func eventRate(s *types.CostSettings, ev types.EventType) (decimal.Decimal, bool) {
	if v, ok := s.Rate(rates.EventKey(ev)); ok {
		return v, true
	}
	return s.Rate(rates.EventRate.Key())
}

// assumptions collects distinct notes about defaults, in first-seen order
type assumptions struct {
	seen map[string]bool
	list []string
}

func (a *assumptions) addf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if a.seen == nil {
		a.seen = make(map[string]bool)
	}
	if a.seen[msg] {
		return
	}
	a.seen[msg] = true
	a.list = append(a.list, msg)
}
