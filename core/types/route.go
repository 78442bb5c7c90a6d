package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RouteStatus tracks a route through planning and execution
type RouteStatus string

const (
	RouteDraft      RouteStatus = "draft"
	RoutePlanned    RouteStatus = "planned"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

// EventType is the kind of timeline stop
type EventType string

const (
	EventPickup   EventType = "pickup"
	EventRest     EventType = "rest"
	EventDelivery EventType = "delivery"
)

// EventTypes lists event types in timeline order
var EventTypes = []EventType{EventPickup, EventRest, EventDelivery}

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	switch t {
	case EventPickup, EventRest, EventDelivery:
		return true
	}
	return false
}

// CountrySegment is the slice of a route driven inside one country
type CountrySegment struct {
	CountryCode   string          `json:"country_code"`
	DistanceKm    decimal.Decimal `json:"distance_km"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Order         int             `json:"segment_order"`
}

// EmptyDriving is the unladen leg from the truck's position to pickup.
type EmptyDriving struct {
	DistanceKm    decimal.Decimal `json:"distance_km"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	IsChargeable  bool            `json:"is_chargeable"`

	// CountryCode is where the leg starts, when the provider knows it
	CountryCode string `json:"country_code,omitempty"`
}

// IsZero reports whether the leg has no distance and no duration
func (e EmptyDriving) IsZero() bool {
	return e.DistanceKm.IsZero() && e.DurationHours.IsZero()
}

// Attributable reports whether the leg contributes to costs
func (e EmptyDriving) Attributable() bool {
	return e.IsChargeable && !e.IsZero()
}

// TimelineEvent is a scheduled stop with a fixed duration
type TimelineEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          EventType       `json:"type"`
	Location      Location        `json:"location"`
	PlannedTime   time.Time       `json:"planned_time"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	EventOrder    int             `json:"event_order"`
}

// Route is a built transport route. It is produced once by the timeline
// builder and treated as read-only afterwards.
type Route struct {
	ID               uuid.UUID `json:"id"`
	BusinessEntityID uuid.UUID `json:"business_entity_id"`
	TransportID      uuid.UUID `json:"transport_id"`
	CargoID          uuid.UUID `json:"cargo_id,omitempty"`

	Origin       Location  `json:"origin"`
	Destination  Location  `json:"destination"`
	PickupTime   time.Time `json:"pickup_time"`
	DeliveryTime time.Time `json:"delivery_time"`

	EmptyDriving EmptyDriving     `json:"empty_driving"`
	Segments     []CountrySegment `json:"country_segments"`
	Events       []TimelineEvent  `json:"timeline_events"`

	// Totals of the main leg; they equal the segment sums
	TotalDistanceKm    decimal.Decimal `json:"total_distance_km"`
	TotalDurationHours decimal.Decimal `json:"total_duration_hours"`

	IsFeasible bool        `json:"is_feasible"`
	Status     RouteStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DriverHours is the time on duty paid to the driver: the main leg plus a
// chargeable empty-driving leg.
func (r *Route) DriverHours() decimal.Decimal {
	hours := r.TotalDurationHours
	if r.EmptyDriving.Attributable() {
		hours = hours.Add(r.EmptyDriving.DurationHours)
	}
	return hours
}

// EmptyDrivingCountry returns the country key the empty leg is billed to
func (r *Route) EmptyDrivingCountry() string {
	if r.EmptyDriving.CountryCode != "" {
		return r.EmptyDriving.CountryCode
	}
	if len(r.Segments) > 0 {
		return r.Segments[0].CountryCode
	}
	return ""
}

// Countries returns the distinct segment countries in travel order
func (r *Route) Countries() []string {
	seen := make(map[string]bool, len(r.Segments))
	var out []string
	for _, s := range r.Segments {
		if !seen[s.CountryCode] {
			seen[s.CountryCode] = true
			out = append(out, s.CountryCode)
		}
	}
	return out
}
