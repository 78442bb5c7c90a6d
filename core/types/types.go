// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions and
// the small helpers that keep them consistent.
package types

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyPLN Currency = "PLN"
)

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

// coordinateEpsilon is roughly 1 cm at the equator.
const coordinateEpsilon = 1e-7

// Location is an immutable geographic point with an address label
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// SamePlace reports whether two locations share coordinates
func (l Location) SamePlace(o Location) bool {
	return math.Abs(l.Latitude-o.Latitude) < coordinateEpsilon &&
		math.Abs(l.Longitude-o.Longitude) < coordinateEpsilon
}

// Valid checks coordinate ranges
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// BusinessEntity is the transport company a route is quoted for.
type BusinessEntity struct {
	ID                 uuid.UUID                  `json:"id"`
	Name               string                     `json:"name"`
	Certifications     []string                   `json:"certifications,omitempty"`
	OperatingCountries []string                   `json:"operating_countries,omitempty"`
	Overheads          map[string]decimal.Decimal `json:"cost_overheads"`
}

// HasCertification reports whether the entity holds a certification
func (b *BusinessEntity) HasCertification(name string) bool {
	for _, c := range b.Certifications {
		if c == name {
			return true
		}
	}
	return false
}

// TransportSpec describes the truck and legacy driver pay of a transport.
type TransportSpec struct {
	ID               uuid.UUID `json:"id"`
	TransportTypeID  string    `json:"transport_type_id"`
	BusinessEntityID uuid.UUID `json:"business_entity_id"`

	// Fuel consumption in L/km
	FuelConsumptionEmpty  decimal.Decimal `json:"fuel_consumption_empty"`
	FuelConsumptionLoaded decimal.Decimal `json:"fuel_consumption_loaded"`
	FuelConsumptionPerTon decimal.Decimal `json:"fuel_consumption_per_ton"`

	TollClass            string          `json:"toll_class"`
	EuroClass            string          `json:"euro_class"`
	CO2Class             string          `json:"co2_class,omitempty"`
	MaintenanceRatePerKm decimal.Decimal `json:"maintenance_rate_per_km"`

	// DailyRate is the flat driver pay used when settings carry no driver rates
	DailyRate decimal.Decimal `json:"daily_rate"`
}

// Cargo carries the load attributes that influence cost.
type Cargo struct {
	ID         uuid.UUID       `json:"id"`
	WeightTons decimal.Decimal `json:"weight_tons"`
	Value      decimal.Decimal `json:"value,omitempty"`
	Type       string          `json:"cargo_type,omitempty"`
}

// Hours converts a decimal hour count to a duration rounded to the second
func Hours(h decimal.Decimal) time.Duration {
	return time.Duration(h.Mul(decimal.NewFromInt(3600)).Round(0).IntPart()) * time.Second
}

// HoursOf converts a duration to decimal hours
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600))
}
