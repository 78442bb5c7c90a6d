// Package fuel holds default fuel prices and consumption figures.
package fuel

import (
	"github.com/shopspring/decimal"

	"transport-cost/core/types"
)

// Consumption figures in L/km
type Consumption struct {
	Empty  decimal.Decimal `json:"empty"`
	Loaded decimal.Decimal `json:"loaded"`
	PerTon decimal.Decimal `json:"per_ton"`
}

// DefaultConsumption is used when a transport spec leaves consumption unset
var DefaultConsumption = Consumption{
	Empty:  decimal.RequireFromString("0.22"),
	Loaded: decimal.RequireFromString("0.29"),
	PerTon: decimal.RequireFromString("0.03"),
}

// Table resolves a fuel price per liter for a country, falling back to its region.
// A Table is immutable after construction.
type Table struct {
	countries map[string]decimal.Decimal
	regions   map[types.Region]decimal.Decimal
}

// NewTable copies the given prices into a new table
func NewTable(countries map[string]decimal.Decimal, regions map[types.Region]decimal.Decimal) *Table {
	t := &Table{
		countries: make(map[string]decimal.Decimal, len(countries)),
		regions:   make(map[types.Region]decimal.Decimal, len(regions)),
	}
	for k, v := range countries {
		t.countries[k] = v
	}
	for k, v := range regions {
		t.regions[k] = v
	}
	return t
}

// DefaultTable returns the built-in prices in EUR/L
func DefaultTable() *Table {
	return NewTable(
		map[string]decimal.Decimal{
			"DE": decimal.RequireFromString("1.85"),
			"FR": decimal.RequireFromString("1.82"),
			"PL": decimal.RequireFromString("1.65"),
			"NL": decimal.RequireFromString("1.88"),
		},
		map[types.Region]decimal.Decimal{
			types.RegionEU:    decimal.RequireFromString("1.80"),
			types.RegionOther: decimal.RequireFromString("1.60"),
		},
	)
}

// Price returns the price for a country and whether a country-specific entry was used
func (t *Table) Price(country string) (decimal.Decimal, bool) {
	if p, ok := t.countries[country]; ok {
		return p, true
	}
	if p, ok := t.regions[types.RegionOf(country)]; ok {
		return p, false
	}
	return t.regions[types.RegionOther], false
}

// Countries returns the country-specific prices
func (t *Table) Countries() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.countries))
	for k, v := range t.countries {
		out[k] = v
	}
	return out
}

// Regions returns the regional fallback prices
func (t *Table) Regions() map[types.Region]decimal.Decimal {
	out := make(map[types.Region]decimal.Decimal, len(t.regions))
	for k, v := range t.regions {
		out[k] = v
	}
	return out
}
