package rates

import (
	"testing"

	"github.com/shopspring/decimal"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw     string
		want    RateType
		country string
		event   types.EventType
		wantErr bool
	}{
		{raw: "fuel_rate", want: FuelRate},
		{raw: "fuel_rate_DE", want: FuelRate, country: "DE"},
		{raw: "fuel_surcharge_rate", want: FuelSurchargeRate},
		{raw: "fuel_surcharge_rate_PL", want: FuelSurchargeRate, country: "PL"},
		{raw: "toll_rate_FR", want: TollRate, country: "FR"},
		{raw: "driver_time_rate_NL", want: DriverTimeRate, country: "NL"},
		{raw: "event_rate", want: EventRate},
		{raw: "event_rate_rest", want: EventRate, event: types.EventRest},
		{raw: "driver_base_rate_DE", wantErr: true},
		{raw: "event_rate_lunch", wantErr: true},
		{raw: "fuel_rate_de", wantErr: true},
		{raw: "fuel_rate_DEU", wantErr: true},
		{raw: "maintenance_rate", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			k, err := ParseKey(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.raw, k)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if k.Type != tt.want || k.Country != tt.country || k.Event != tt.event {
				t.Errorf("ParseKey(%q) = %+v", tt.raw, k)
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		key   string
		value string
		ok    bool
	}{
		{"fuel_rate", "0.50", true},
		{"fuel_rate", "5.00", true},
		{"fuel_rate", "0.49", false},
		{"fuel_rate_DE", "5.01", false},
		{"toll_rate", "0.10", true},
		{"toll_rate", "2.01", false},
		{"driver_base_rate", "100.00", true},
		{"driver_base_rate", "99.99", false},
		{"driver_time_rate", "100", true},
		{"event_rate", "200", true},
		{"event_rate_rest", "150", true},
		{"event_rate_rest", "160", false},
		{"event_rate_pickup", "160", true},
		{"fuel_rate", "-1", false},
	}

	for _, tt := range tests {
		err := v.Validate(tt.key, decimal.RequireFromString(tt.value))
		if tt.ok && err != nil {
			t.Errorf("%s=%s: unexpected error %v", tt.key, tt.value, err)
		}
		if !tt.ok && !errors.IsType(err, errors.TypeValidation) {
			t.Errorf("%s=%s: expected validation error, got %v", tt.key, tt.value, err)
		}
	}
}

func TestValidateAllReportsEveryViolation(t *testing.T) {
	v := NewValidator(nil)
	err := v.ValidateAll(map[string]decimal.Decimal{
		"fuel_rate":        decimal.RequireFromString("9"),
		"toll_rate":        decimal.RequireFromString("0.05"),
		"event_rate":       decimal.RequireFromString("50"),
		"unknown_rate_key": decimal.RequireFromString("1"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	violations := errors.ViolationsOf(err)
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(violations), err)
	}

	byKey := map[string]errors.Violation{}
	for _, viol := range violations {
		byKey[viol.Key] = viol
	}
	fuel := byKey["fuel_rate"]
	if fuel.RateType != string(FuelRate) || fuel.Min != "0.50" || fuel.Max != "5.00" {
		t.Errorf("fuel violation lacks bounds: %+v", fuel)
	}
	if _, ok := byKey["unknown_rate_key"]; !ok {
		t.Error("unknown key should be reported")
	}
}

func TestValidateTypeWithCountry(t *testing.T) {
	v := NewValidator(nil)
	if err := v.ValidateType(TollRate, decimal.RequireFromString("0.25"), "DE"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.ValidateType(DriverBaseRate, decimal.RequireFromString("200"), "DE"); err == nil {
		t.Fatal("expected error for country suffix on non-country-specific type")
	}
}

func TestCertificationRequired(t *testing.T) {
	rules := DefaultRules()
	for i := range rules {
		if rules[i].RateType == TollRate {
			rules[i].RequiresCertification = true
		}
	}
	schema, err := NewSchema(rules, nil)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	denied := NewValidator(schema, WithCertifier(CertifierFunc(func(t RateType) bool { return t != TollRate })))
	if err := denied.Validate("toll_rate", decimal.RequireFromString("0.5")); err == nil {
		t.Fatal("expected certification failure")
	}

	allowed := NewValidator(schema)
	if err := allowed.Validate("toll_rate", decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("default certifier should accept: %v", err)
	}
}

func TestNewSchemaRejectsBadRules(t *testing.T) {
	rules := DefaultRules()
	rules[0].Min = decimal.RequireFromString("10")
	if _, err := NewSchema(rules, nil); !errors.IsType(err, errors.TypeConfig) {
		t.Fatalf("expected config error for min > max, got %v", err)
	}

	if _, err := NewSchema(DefaultRules()[:3], nil); err == nil {
		t.Fatal("expected error for missing rate types")
	}

	if _, err := NewSchema(DefaultRules(), map[string]Rule{"event_rate_lunch": {}}); err == nil {
		t.Fatal("expected error for invalid key rule")
	}
}
