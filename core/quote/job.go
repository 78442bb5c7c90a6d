package quote

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transport-cost/core/driver"
	"transport-cost/core/settings"
	"transport-cost/core/timeline"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// Job is the file form of a quote request. It carries the provider answer
// (segments and empty leg) alongside the route so a quote can run offline.
type Job struct {
	RouteID uuid.UUID `json:"route_id,omitempty"`

	Business  *types.BusinessEntity `json:"business_entity,omitempty"`
	Transport types.TransportSpec   `json:"transport"`
	Cargo     *types.Cargo          `json:"cargo,omitempty"`

	Origin      types.Location  `json:"origin"`
	Destination types.Location  `json:"destination"`
	Truck       *types.Location `json:"truck_location,omitempty"`

	EmptyDrivingChargeable bool `json:"empty_driving_chargeable"`

	PickupTime   time.Time `json:"pickup_time"`
	DeliveryTime time.Time `json:"delivery_time"`

	Segments     []timeline.Segment `json:"segments"`
	EmptyDriving *timeline.Span     `json:"empty_driving,omitempty"`

	// Provider totals of the main leg, checked against the segment sums
	TotalDistanceKm    decimal.NullDecimal `json:"total_distance_km"`
	TotalDurationHours decimal.NullDecimal `json:"total_duration_hours"`

	Settings *JobSettings `json:"settings,omitempty"`
}

// JobSettings seeds cost settings from a job file
type JobSettings struct {
	Enabled     *types.Components          `json:"enabled_components,omitempty"`
	Rates       map[string]decimal.Decimal `json:"rates,omitempty"`
	DriverRates *driver.Spec               `json:"driver_rates,omitempty"`
}

// DecodeJob reads a JSON job
func DecodeJob(r io.Reader) (*Job, error) {
	var j Job
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return nil, errors.Wrap(errors.TypeValidation, "decode quote job", err)
	}
	if len(j.Segments) == 0 {
		return nil, errors.Validation("quote job has no segments")
	}
	if j.Truck != nil && !j.Truck.SamePlace(j.Origin) && j.EmptyDriving == nil {
		return nil, errors.Validation("quote job sets truck_location but no empty_driving leg")
	}
	return &j, nil
}

// Request converts the job into a service request
func (j *Job) Request() (Request, error) {
	req := Request{
		Route: timeline.Request{
			RouteID:                j.RouteID,
			Origin:                 j.Origin,
			Destination:            j.Destination,
			TruckLocation:          j.Truck,
			EmptyDrivingChargeable: j.EmptyDrivingChargeable,
			PickupTime:             j.PickupTime,
			DeliveryTime:           j.DeliveryTime,
		},
		Transport: j.Transport,
		Business:  j.Business,
		Cargo:     j.Cargo,
	}
	if j.Settings == nil {
		return req, nil
	}

	seed := &settings.CreateRequest{Enabled: types.AllComponents, Rates: j.Settings.Rates}
	if j.Settings.Enabled != nil {
		seed.Enabled = *j.Settings.Enabled
	}
	if j.Settings.DriverRates != nil {
		r, err := j.Settings.DriverRates.Build()
		if err != nil {
			return Request{}, err
		}
		seed.DriverRates = r
	}
	req.Settings = seed
	return req, nil
}
