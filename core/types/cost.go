// Package types - Cost breakdown types
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transport-cost/core/driver"
)

// CostBreakdown is the itemized result of one cost calculation.
// It is built once and never mutated afterwards.
type CostBreakdown struct {
	ID      uuid.UUID `json:"id"`
	RouteID uuid.UUID `json:"route_id"`

	// FuelCosts is keyed by ISO country code
	FuelCosts map[string]decimal.Decimal `json:"fuel_costs"`

	// TollCosts is keyed by ISO country code
	TollCosts map[string]decimal.Decimal `json:"toll_costs"`

	DriverCosts   driver.Costs    `json:"driver_costs"`
	OverheadCosts decimal.Decimal `json:"overhead_costs"`

	// EventCosts is keyed by event type
	EventCosts map[EventType]decimal.Decimal `json:"timeline_event_costs"`

	TotalCost decimal.Decimal `json:"total_cost"`
	Currency  Currency        `json:"currency"`

	Metadata BreakdownMetadata `json:"metadata"`
}

// BreakdownMetadata describes how a breakdown was produced
type BreakdownMetadata struct {
	// CalculatedAt is the only clock-dependent field of a breakdown
	CalculatedAt time.Time `json:"calculated_at"`

	SettingsID uuid.UUID   `json:"settings_id"`
	Enabled    []Component `json:"enabled_components"`

	// Fingerprint hashes every amount; equal inputs give equal fingerprints
	Fingerprint string `json:"fingerprint"`

	// Assumptions lists defaults applied because a rate was not configured
	Assumptions []string `json:"assumptions,omitempty"`
}

// FuelTotal sums per-country fuel costs
func (b *CostBreakdown) FuelTotal() decimal.Decimal {
	return sumMap(b.FuelCosts)
}

// TollTotal sums per-country toll costs
func (b *CostBreakdown) TollTotal() decimal.Decimal {
	return sumMap(b.TollCosts)
}

// EventTotal sums per-type event costs
func (b *CostBreakdown) EventTotal() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b.EventCosts {
		total = total.Add(v)
	}
	return total
}

// Subtotals returns the five category subtotals keyed by component
func (b *CostBreakdown) Subtotals() map[Component]decimal.Decimal {
	return map[Component]decimal.Decimal{
		ComponentFuel:     b.FuelTotal(),
		ComponentToll:     b.TollTotal(),
		ComponentDriver:   b.DriverCosts.TotalCost,
		ComponentOverhead: b.OverheadCosts,
		ComponentEvent:    b.EventTotal(),
	}
}

// SumOfSubtotals recomputes the total from the category subtotals
func (b *CostBreakdown) SumOfSubtotals() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b.Subtotals() {
		total = total.Add(v)
	}
	return total
}

func sumMap(m map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}
