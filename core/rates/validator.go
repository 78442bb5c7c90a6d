package rates

import (
	"github.com/shopspring/decimal"

	"transport-cost/internal/errors"
)

// Certifier decides whether a business may use a rate type whose rule
// requires certification.
type Certifier interface {
	Certified(t RateType) bool
}

// CertifierFunc adapts a function to Certifier
type CertifierFunc func(t RateType) bool

// Certified calls f
func (f CertifierFunc) Certified(t RateType) bool { return f(t) }

// AllowAll accepts every rate type. Real certification checks live with the
// business registry; until one is wired every business is treated as certified.
var AllowAll Certifier = CertifierFunc(func(RateType) bool { return true })

// Validator checks rate values against a schema. It holds no mutable state.
type Validator struct {
	schema    *Schema
	certifier Certifier
}

// Option configures a Validator
type Option func(*Validator)

// WithCertifier sets the certification check
func WithCertifier(c Certifier) Option {
	return func(v *Validator) {
		if c != nil {
			v.certifier = c
		}
	}
}

// NewValidator creates a validator over schema; a nil schema means Default()
func NewValidator(schema *Schema, opts ...Option) *Validator {
	if schema == nil {
		schema = Default()
	}
	v := &Validator{schema: schema, certifier: AllowAll}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Schema returns the rule table in use
func (v *Validator) Schema() *Schema {
	return v.schema
}

// ValidateType checks a value for a rate type, optionally scoped to a country
func (v *Validator) ValidateType(t RateType, value decimal.Decimal, country string) error {
	key := t.Key()
	if country != "" {
		key = CountryKey(t, country)
	}
	if viol := v.Check(key, value); viol != nil {
		return errors.InvalidRates([]errors.Violation{*viol})
	}
	return nil
}

// Validate checks a single keyed rate
func (v *Validator) Validate(key string, value decimal.Decimal) error {
	if viol := v.Check(key, value); viol != nil {
		return errors.InvalidRates([]errors.Violation{*viol})
	}
	return nil
}

// ValidateAll checks every rate and reports all violations in one error
func (v *Validator) ValidateAll(values map[string]decimal.Decimal) error {
	var violations []errors.Violation
	for key, value := range values {
		if viol := v.Check(key, value); viol != nil {
			violations = append(violations, *viol)
		}
	}
	if len(violations) > 0 {
		return errors.InvalidRates(violations)
	}
	return nil
}

// Check returns the violation for one keyed rate, or nil when it is valid.
// Negative values are rejected before any range lookup.
func (v *Validator) Check(key string, value decimal.Decimal) *errors.Violation {
	if value.IsNegative() {
		return &errors.Violation{Key: key, Value: value.String(), Reason: "must not be negative"}
	}

	k, err := v.schema.ParseKey(key)
	if err != nil {
		return &errors.Violation{Key: key, Value: value.String(), Reason: err.Error()}
	}

	rule := v.schema.RuleFor(k)
	if rule.RequiresCertification && !v.certifier.Certified(rule.RateType) {
		return &errors.Violation{
			Key:      key,
			RateType: string(rule.RateType),
			Value:    value.String(),
			Reason:   "requires certification",
		}
	}
	if !rule.Contains(value) {
		return &errors.Violation{
			Key:      key,
			RateType: string(rule.RateType),
			Value:    value.String(),
			Min:      rule.Min.StringFixed(2),
			Max:      rule.Max.StringFixed(2),
			Reason:   "out of range",
		}
	}
	return nil
}
