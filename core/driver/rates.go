// Package driver models driver compensation.
// Each pay model is a distinct type behind the sealed Rates interface, so a new
// model only compiles once it implements its own cost computation.
package driver

import (
	"fmt"

	"github.com/shopspring/decimal"

	"transport-cost/internal/errors"
)

// RateType names a driver compensation model
type RateType string

const (
	// DailyOnly pays a flat rate per started day
	DailyOnly RateType = "DAILY_ONLY"

	// DailyWithHours pays a daily rate plus regular and overtime hours
	DailyWithHours RateType = "DAILY_WITH_HOURS"

	// HoursOnly pays regular and overtime hours without a daily component
	HoursOnly RateType = "HOURS_ONLY"

	// LegacyDaily marks costs computed from the transport's flat daily rate
	LegacyDaily RateType = "LEGACY_DAILY"
)

var (
	// DefaultOvertimeThresholdHours applies when a model does not set its own threshold
	DefaultOvertimeThresholdHours = decimal.NewFromInt(9)

	// OvertimeMultiplier derives an overtime rate from the regular hourly rate
	OvertimeMultiplier = decimal.NewFromFloat(1.5)

	hoursPerDay = decimal.NewFromInt(24)
)

// Rates is one of DailyOnlyRates, DailyWithHoursRates or HoursOnlyRates.
type Rates interface {
	// Type returns the pay model tag
	Type() RateType

	cost(hours decimal.Decimal) Costs
}

// DailyOnlyRates pays DailyRate per started 24h day.
type DailyOnlyRates struct {
	DailyRate decimal.Decimal
}

// DailyWithHoursRates pays a daily rate plus hourly pay, with overtime beyond
// OvertimeThresholdHours per day.
type DailyWithHoursRates struct {
	DailyRate              decimal.Decimal
	RegularHourlyRate      decimal.Decimal
	OvertimeHourlyRate     decimal.NullDecimal
	OvertimeThresholdHours decimal.Decimal
}

// HoursOnlyRates pays hourly, with overtime beyond OvertimeThresholdHours for the whole trip.
type HoursOnlyRates struct {
	RegularHourlyRate      decimal.Decimal
	OvertimeHourlyRate     decimal.NullDecimal
	OvertimeThresholdHours decimal.Decimal
}

// Type returns DailyOnly
func (DailyOnlyRates) Type() RateType { return DailyOnly }

// Type returns DailyWithHours
func (DailyWithHoursRates) Type() RateType { return DailyWithHours }

// Type returns HoursOnly
func (HoursOnlyRates) Type() RateType { return HoursOnly }

// Costs is the driver component of a cost breakdown
type Costs struct {
	Model            RateType        `json:"model"`
	Days             int64           `json:"days"`
	RegularHours     decimal.Decimal `json:"regular_hours"`
	OvertimeHours    decimal.Decimal `json:"overtime_hours"`
	BaseCost         decimal.Decimal `json:"base_cost"`
	RegularHoursCost decimal.Decimal `json:"regular_hours_cost"`
	OvertimeCost     decimal.Decimal `json:"overtime_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

// Calculate computes driver costs for the given number of hours on duty
func Calculate(r Rates, hours decimal.Decimal) Costs {
	if hours.IsNegative() {
		hours = decimal.Zero
	}
	return r.cost(hours)
}

// Legacy computes the flat daily fallback used by settings that predate driver rates.
func Legacy(dailyRate, hours decimal.Decimal) Costs {
	c := Calculate(DailyOnlyRates{DailyRate: dailyRate}, hours)
	c.Model = LegacyDaily
	return c
}

// Days returns the number of started 24h days
func Days(hours decimal.Decimal) int64 {
	if !hours.IsPositive() {
		return 0
	}
	return hours.Div(hoursPerDay).Ceil().IntPart()
}

func (r DailyOnlyRates) cost(hours decimal.Decimal) Costs {
	days := Days(hours)
	base := r.DailyRate.Mul(decimal.NewFromInt(days))
	return Costs{
		Model:            DailyOnly,
		Days:             days,
		RegularHours:     hours,
		OvertimeHours:    decimal.Zero,
		BaseCost:         base,
		RegularHoursCost: decimal.Zero,
		OvertimeCost:     decimal.Zero,
		TotalCost:        base,
	}
}

func (r DailyWithHoursRates) cost(hours decimal.Decimal) Costs {
	days := Days(hours)
	base := r.DailyRate.Mul(decimal.NewFromInt(days))

	regular := decimal.Min(hours, r.OvertimeThresholdHours.Mul(decimal.NewFromInt(days)))
	overtime := decimal.Max(decimal.Zero, hours.Sub(regular))

	regularCost := regular.Mul(r.RegularHourlyRate)
	overtimeCost := overtime.Mul(overtimeRate(r.OvertimeHourlyRate, r.RegularHourlyRate))

	return Costs{
		Model:            DailyWithHours,
		Days:             days,
		RegularHours:     regular,
		OvertimeHours:    overtime,
		BaseCost:         base,
		RegularHoursCost: regularCost,
		OvertimeCost:     overtimeCost,
		TotalCost:        base.Add(regularCost).Add(overtimeCost),
	}
}

func (r HoursOnlyRates) cost(hours decimal.Decimal) Costs {
	regular := decimal.Min(hours, r.OvertimeThresholdHours)
	overtime := decimal.Max(decimal.Zero, hours.Sub(regular))

	regularCost := regular.Mul(r.RegularHourlyRate)
	overtimeCost := overtime.Mul(overtimeRate(r.OvertimeHourlyRate, r.RegularHourlyRate))

	return Costs{
		Model:            HoursOnly,
		Days:             Days(hours),
		RegularHours:     regular,
		OvertimeHours:    overtime,
		BaseCost:         decimal.Zero,
		RegularHoursCost: regularCost,
		OvertimeCost:     overtimeCost,
		TotalCost:        regularCost.Add(overtimeCost),
	}
}

func overtimeRate(explicit decimal.NullDecimal, regular decimal.Decimal) decimal.Decimal {
	if explicit.Valid {
		return explicit.Decimal
	}
	return regular.Mul(OvertimeMultiplier)
}

// Spec is the flat, serializable form of driver rates
type Spec struct {
	RateType               RateType            `json:"rate_type"`
	DailyRate              decimal.NullDecimal `json:"daily_rate"`
	RegularHourlyRate      decimal.NullDecimal `json:"regular_hourly_rate"`
	OvertimeHourlyRate     decimal.NullDecimal `json:"overtime_hourly_rate"`
	OvertimeThresholdHours decimal.NullDecimal `json:"overtime_threshold_hours"`
}

// Build checks the fields required by RateType and returns the matching pay model
func (s Spec) Build() (Rates, error) {
	var violations []errors.Violation
	require := func(field string, v decimal.NullDecimal) {
		if !v.Valid {
			violations = append(violations, errors.Violation{
				Key:    field,
				Value:  "null",
				Reason: fmt.Sprintf("required for %s", s.RateType),
			})
		}
	}
	positive := func(field string, v decimal.NullDecimal) {
		if v.Valid && !v.Decimal.IsPositive() {
			violations = append(violations, errors.Violation{
				Key:    field,
				Value:  v.Decimal.String(),
				Reason: "must be positive",
			})
		}
	}

	threshold := DefaultOvertimeThresholdHours
	if s.OvertimeThresholdHours.Valid {
		threshold = s.OvertimeThresholdHours.Decimal
	}

	positive("daily_rate", s.DailyRate)
	positive("regular_hourly_rate", s.RegularHourlyRate)
	positive("overtime_hourly_rate", s.OvertimeHourlyRate)
	positive("overtime_threshold_hours", s.OvertimeThresholdHours)

	var rates Rates
	switch s.RateType {
	case DailyOnly:
		require("daily_rate", s.DailyRate)
		rates = DailyOnlyRates{DailyRate: s.DailyRate.Decimal}
	case DailyWithHours:
		require("daily_rate", s.DailyRate)
		require("regular_hourly_rate", s.RegularHourlyRate)
		rates = DailyWithHoursRates{
			DailyRate:              s.DailyRate.Decimal,
			RegularHourlyRate:      s.RegularHourlyRate.Decimal,
			OvertimeHourlyRate:     s.OvertimeHourlyRate,
			OvertimeThresholdHours: threshold,
		}
	case HoursOnly:
		require("regular_hourly_rate", s.RegularHourlyRate)
		rates = HoursOnlyRates{
			RegularHourlyRate:      s.RegularHourlyRate.Decimal,
			OvertimeHourlyRate:     s.OvertimeHourlyRate,
			OvertimeThresholdHours: threshold,
		}
	default:
		return nil, errors.Validationf("unknown driver rate type %q", s.RateType)
	}

	if len(violations) > 0 {
		err := errors.InvalidRates(violations)
		err.Message = "invalid driver rates"
		return nil, err
	}
	return rates, nil
}

// SpecOf flattens a pay model into its serializable form
func SpecOf(r Rates) Spec {
	switch v := r.(type) {
	case DailyOnlyRates:
		return Spec{RateType: DailyOnly, DailyRate: decimal.NewNullDecimal(v.DailyRate)}
	case DailyWithHoursRates:
		return Spec{
			RateType:               DailyWithHours,
			DailyRate:              decimal.NewNullDecimal(v.DailyRate),
			RegularHourlyRate:      decimal.NewNullDecimal(v.RegularHourlyRate),
			OvertimeHourlyRate:     v.OvertimeHourlyRate,
			OvertimeThresholdHours: decimal.NewNullDecimal(v.OvertimeThresholdHours),
		}
	case HoursOnlyRates:
		return Spec{
			RateType:               HoursOnly,
			RegularHourlyRate:      decimal.NewNullDecimal(v.RegularHourlyRate),
			OvertimeHourlyRate:     v.OvertimeHourlyRate,
			OvertimeThresholdHours: decimal.NewNullDecimal(v.OvertimeThresholdHours),
		}
	}
	return Spec{}
}
