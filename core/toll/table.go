// Package toll resolves per-kilometer toll rates from a base table and
// business-specific overrides.
package toll

import (
	"github.com/shopspring/decimal"

	"transport-cost/core/types"
)

const (
	// FallbackTollClass is used when a truck's toll class is not in the table
	FallbackTollClass = "1"

	// FallbackEuroClass is used when a truck's euro class is not in the table
	FallbackEuroClass = "III"
)

// ClassRates holds base rates by toll class and adjustments by euro class, in EUR/km
type ClassRates struct {
	TollClass map[string]decimal.Decimal `json:"toll_class"`
	EuroClass map[string]decimal.Decimal `json:"euro_class"`
}

func (c ClassRates) copy() ClassRates {
	out := ClassRates{
		TollClass: make(map[string]decimal.Decimal, len(c.TollClass)),
		EuroClass: make(map[string]decimal.Decimal, len(c.EuroClass)),
	}
	for k, v := range c.TollClass {
		out.TollClass[k] = v
	}
	for k, v := range c.EuroClass {
		out.EuroClass[k] = v
	}
	return out
}

// BaseRate is the table rate for one country and vehicle
type BaseRate struct {
	Base           decimal.Decimal
	EuroAdjustment decimal.Decimal

	// CountrySpecific is false when a region fallback was used
	CountrySpecific bool
}

// PerKm returns base plus euro class adjustment
func (b BaseRate) PerKm() decimal.Decimal {
	return b.Base.Add(b.EuroAdjustment)
}

// Table is the read-only base toll table
type Table struct {
	countries map[string]ClassRates
	regions   map[types.Region]ClassRates
}

// NewTable copies rates into a new table
func NewTable(countries map[string]ClassRates, regions map[types.Region]ClassRates) *Table {
	t := &Table{
		countries: make(map[string]ClassRates, len(countries)),
		regions:   make(map[types.Region]ClassRates, len(regions)),
	}
	for k, v := range countries {
		t.countries[k] = v.copy()
	}
	for k, v := range regions {
		t.regions[k] = v.copy()
	}
	return t
}

// Rate looks up the base rate and euro adjustment for a vehicle in a country.
// Unknown classes fall back to class 1 and Euro III.
func (t *Table) Rate(country, tollClass, euroClass string) BaseRate {
	rates, specific := t.countries[country]
	if !specific {
		var ok bool
		if rates, ok = t.regions[types.RegionOf(country)]; !ok {
			rates = t.regions[types.RegionOther]
		}
	}

	base, ok := rates.TollClass[tollClass]
	if !ok {
		base = rates.TollClass[FallbackTollClass]
	}
	adj, ok := rates.EuroClass[euroClass]
	if !ok {
		adj = rates.EuroClass[FallbackEuroClass]
	}

	return BaseRate{Base: base, EuroAdjustment: adj, CountrySpecific: specific}
}

// Countries returns the country-specific entries
func (t *Table) Countries() map[string]ClassRates {
	out := make(map[string]ClassRates, len(t.countries))
	for k, v := range t.countries {
		out[k] = v.copy()
	}
	return out
}

// Regions returns the regional entries
func (t *Table) Regions() map[types.Region]ClassRates {
	out := make(map[types.Region]ClassRates, len(t.regions))
	for k, v := range t.regions {
		out[k] = v.copy()
	}
	return out
}

func rates(class1, class2, class3, class4, euroV, euroIV, euroIII string) ClassRates {
	return ClassRates{
		TollClass: map[string]decimal.Decimal{
			"1": decimal.RequireFromString(class1),
			"2": decimal.RequireFromString(class2),
			"3": decimal.RequireFromString(class3),
			"4": decimal.RequireFromString(class4),
		},
		EuroClass: map[string]decimal.Decimal{
			"VI":  decimal.Zero,
			"V":   decimal.RequireFromString(euroV),
			"IV":  decimal.RequireFromString(euroIV),
			"III": decimal.RequireFromString(euroIII),
		},
	}
}

// DefaultTable returns the built-in toll table.
// Toll classes: 1 up to 7.5t, 2 7.5-12t, 3 12-18t, 4 over 18t.
func DefaultTable() *Table {
	return NewTable(
		map[string]ClassRates{
			"DE": rates("0.187", "0.208", "0.228", "0.248", "0.021", "0.042", "0.063"),
			"FR": rates("0.176", "0.196", "0.216", "0.236", "0.020", "0.040", "0.060"),
		},
		map[types.Region]ClassRates{
			types.RegionEU:    rates("0.177", "0.198", "0.218", "0.238", "0.020", "0.041", "0.062"),
			types.RegionOther: rates("0.150", "0.170", "0.190", "0.210", "0.015", "0.030", "0.045"),
		},
	)
}
