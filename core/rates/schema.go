// Package rates defines rate types, their validation rules and the rate-key grammar.
// The rule table is read-only once built and may be shared process-wide.
package rates

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// RateType is a category of cost rate with an enforced valid range
type RateType string

const (
	FuelRate          RateType = "FUEL_RATE"
	FuelSurchargeRate RateType = "FUEL_SURCHARGE_RATE"
	TollRate          RateType = "TOLL_RATE"
	DriverBaseRate    RateType = "DRIVER_BASE_RATE"
	DriverTimeRate    RateType = "DRIVER_TIME_RATE"
	EventRate         RateType = "EVENT_RATE"
)

// AllTypes lists rate types in display order
var AllTypes = []RateType{FuelRate, FuelSurchargeRate, TollRate, DriverBaseRate, DriverTimeRate, EventRate}

// Key returns the settings key prefix for the type, e.g. "fuel_rate"
func (t RateType) Key() string {
	return strings.ToLower(string(t))
}

// ParseType accepts either the tag ("FUEL_RATE") or the key ("fuel_rate")
func ParseType(s string) (RateType, bool) {
	up := RateType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range AllTypes {
		if t == up {
			return t, true
		}
	}
	return "", false
}

// Rule bounds the values a rate type may take
type Rule struct {
	RateType              RateType        `json:"rate_type"`
	Min                   decimal.Decimal `json:"min_value"`
	Max                   decimal.Decimal `json:"max_value"`
	CountrySpecific       bool            `json:"country_specific"`
	RequiresCertification bool            `json:"requires_certification"`
	Description           string          `json:"description,omitempty"`
}

// Contains reports whether value lies within [Min, Max]
func (r Rule) Contains(value decimal.Decimal) bool {
	return value.GreaterThanOrEqual(r.Min) && value.LessThanOrEqual(r.Max)
}

// AllowedRange renders the bounds, e.g. "0.50..5.00"
func (r Rule) AllowedRange() string {
	return r.Min.StringFixed(2) + ".." + r.Max.StringFixed(2)
}

// Schema maps rate types to rules. Key rules refine a single full key,
// e.g. a narrower band for "event_rate_rest".
type Schema struct {
	rules    map[RateType]Rule
	keyRules map[string]Rule
}

// NewSchema validates and freezes a rule table
func NewSchema(rules []Rule, keyRules map[string]Rule) (*Schema, error) {
	s := &Schema{
		rules:    make(map[RateType]Rule, len(rules)),
		keyRules: make(map[string]Rule, len(keyRules)),
	}
	for _, r := range rules {
		if err := checkRule(r); err != nil {
			return nil, err
		}
		s.rules[r.RateType] = r
	}
	for _, t := range AllTypes {
		if _, ok := s.rules[t]; !ok {
			return nil, errors.Newf(errors.TypeConfig, "rate schema has no rule for %s", t)
		}
	}
	for k, r := range keyRules {
		key, err := s.ParseKey(k)
		if err != nil {
			return nil, errors.Wrapf(errors.TypeConfig, err, "invalid key rule %q", k)
		}
		if r.RateType == "" {
			r.RateType = key.Type
		}
		if r.RateType != key.Type {
			return nil, errors.Newf(errors.TypeConfig, "key rule %q declares %s", k, r.RateType)
		}
		base := s.rules[key.Type]
		r.CountrySpecific = base.CountrySpecific
		if err := checkRule(r); err != nil {
			return nil, err
		}
		s.keyRules[k] = r
	}
	return s, nil
}

func checkRule(r Rule) error {
	if _, ok := ParseType(string(r.RateType)); !ok {
		return errors.Newf(errors.TypeConfig, "unknown rate type %q", r.RateType)
	}
	if !r.Min.IsPositive() || !r.Max.IsPositive() {
		return errors.Newf(errors.TypeConfig, "%s bounds must be positive", r.RateType)
	}
	if r.Min.GreaterThan(r.Max) {
		return errors.Newf(errors.TypeConfig, "%s min %s exceeds max %s", r.RateType, r.Min, r.Max)
	}
	return nil
}

// Rule returns the rule for a rate type
func (s *Schema) Rule(t RateType) (Rule, bool) {
	r, ok := s.rules[t]
	return r, ok
}

// RuleFor returns the rule that applies to a parsed key
func (s *Schema) RuleFor(k Key) Rule {
	if r, ok := s.keyRules[k.Raw]; ok {
		return r
	}
	return s.rules[k.Type]
}

// Rules returns all type rules in display order
func (s *Schema) Rules() []Rule {
	out := make([]Rule, 0, len(AllTypes))
	for _, t := range AllTypes {
		out = append(out, s.rules[t])
	}
	return out
}

// KeyRules returns a copy of the refined key rules
func (s *Schema) KeyRules() map[string]Rule {
	out := make(map[string]Rule, len(s.keyRules))
	for k, v := range s.keyRules {
		out[k] = v
	}
	return out
}

// Key is a parsed rate key: "<type>" or "<type>_<suffix>".
type Key struct {
	Raw     string
	Type    RateType
	Country string
	Event   types.EventType
}

// ParseKey parses a rate key against the default schema
func ParseKey(raw string) (Key, error) {
	return Default().ParseKey(raw)
}

// ParseKey parses a rate key such as "fuel_rate_DE" or "event_rate_rest".
// Country suffixes are accepted only for country-specific rate types.
func (s *Schema) ParseKey(raw string) (Key, error) {
	for _, t := range typesByKeyLength() {
		prefix := t.Key()
		if raw == prefix {
			return Key{Raw: raw, Type: t}, nil
		}
		if !strings.HasPrefix(raw, prefix+"_") {
			continue
		}
		suffix := strings.TrimPrefix(raw, prefix+"_")
		switch {
		case t == EventRate:
			ev := types.EventType(suffix)
			if !ev.Valid() {
				return Key{}, fmt.Errorf("unknown event type %q in %q", suffix, raw)
			}
			return Key{Raw: raw, Type: t, Event: ev}, nil
		case s.rules[t].CountrySpecific:
			if !isCountryCode(suffix) {
				return Key{}, fmt.Errorf("invalid country code %q in %q", suffix, raw)
			}
			return Key{Raw: raw, Type: t, Country: suffix}, nil
		default:
			return Key{}, fmt.Errorf("%s is not country specific", t)
		}
	}
	return Key{}, fmt.Errorf("unknown rate key %q", raw)
}

// CountryKey builds "<type>_<CC>"
func CountryKey(t RateType, country string) string {
	return t.Key() + "_" + country
}

// EventKey builds "event_rate_<type>"
func EventKey(ev types.EventType) string {
	return EventRate.Key() + "_" + string(ev)
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

var (
	byLengthOnce sync.Once
	byLength     []RateType
)

// typesByKeyLength orders types longest key first so prefixes never shadow.
func typesByKeyLength() []RateType {
	byLengthOnce.Do(func() {
		byLength = append([]RateType(nil), AllTypes...)
		sort.SliceStable(byLength, func(i, j int) bool {
			return len(byLength[i].Key()) > len(byLength[j].Key())
		})
	})
	return byLength
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	defaultOnce   sync.Once
	defaultSchema *Schema
)

// DefaultRules returns the built-in rule table
func DefaultRules() []Rule {
	return []Rule{
		{RateType: FuelRate, Min: dec("0.50"), Max: dec("5.00"), CountrySpecific: true, Description: "Fuel rate per liter"},
		{RateType: FuelSurchargeRate, Min: dec("0.01"), Max: dec("0.50"), CountrySpecific: true, Description: "Additional fuel surcharge fraction"},
		{RateType: TollRate, Min: dec("0.10"), Max: dec("2.00"), CountrySpecific: true, Description: "Toll rate per kilometer"},
		{RateType: DriverBaseRate, Min: dec("100.00"), Max: dec("500.00"), Description: "Base daily rate for driver"},
		{RateType: DriverTimeRate, Min: dec("10.00"), Max: dec("100.00"), CountrySpecific: true, Description: "Hourly rate for driver time"},
		{RateType: EventRate, Min: dec("20.00"), Max: dec("200.00"), Description: "Rate per timeline event"},
	}
}

// DefaultKeyRules returns the built-in per-event bands
func DefaultKeyRules() map[string]Rule {
	return map[string]Rule{
		EventKey(types.EventPickup):   {RateType: EventRate, Min: dec("20.00"), Max: dec("200.00"), Description: "Pickup event rate"},
		EventKey(types.EventDelivery): {RateType: EventRate, Min: dec("20.00"), Max: dec("200.00"), Description: "Delivery event rate"},
		EventKey(types.EventRest):     {RateType: EventRate, Min: dec("20.00"), Max: dec("150.00"), Description: "Rest stop rate"},
	}
}

// Default returns the shared built-in schema
func Default() *Schema {
	defaultOnce.Do(func() {
		s, err := NewSchema(DefaultRules(), DefaultKeyRules())
		if err != nil {
			panic(fmt.Sprintf("built-in rate schema is invalid: %v", err))
		}
		defaultSchema = s
	})
	return defaultSchema
}
