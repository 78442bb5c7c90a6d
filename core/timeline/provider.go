// Package timeline builds routes: country segments, the empty-driving leg
// and the ordered stop timeline that the cost engine consumes.
package timeline

import (
	"context"

	"github.com/shopspring/decimal"

	"transport-cost/core/types"
)

// Segment is a provider-reported slice of the main leg inside one country
type Segment struct {
	CountryCode   string          `json:"country_code"`
	DistanceKm    decimal.Decimal `json:"distance_km"`
	DurationHours decimal.Decimal `json:"duration_hours"`
}

// Leg is the provider's answer for origin to destination. Segments are in
// travel order and should sum to the totals.
type Leg struct {
	Segments           []Segment       `json:"segments"`
	TotalDistanceKm    decimal.Decimal `json:"total_distance_km"`
	TotalDurationHours decimal.Decimal `json:"total_duration_hours"`
}

// Span is a point-to-point distance without country breakdown
type Span struct {
	DistanceKm    decimal.Decimal `json:"distance_km"`
	DurationHours decimal.Decimal `json:"duration_hours"`

	// CountryCode is the country of the start point, if known
	CountryCode string `json:"country_code,omitempty"`
}

// SegmentProvider is the external distance and segmentation collaborator.
// Implementations may block on the network and must honor ctx.
type SegmentProvider interface {
	// Segments returns the per-country breakdown of origin to destination
	Segments(ctx context.Context, origin, destination types.Location) (*Leg, error)

	// Distance returns the distance and duration between two points
	Distance(ctx context.Context, from, to types.Location) (*Span, error)
}
