// Package schema loads rate rules and default price tables from an HCL file.
//
// Example:
//
//	currency = "EUR"
//
//	rate "FUEL_RATE" {
//	  min              = 0.50
//	  max              = 5.00
//	  country_specific = true
//	}
//
//	key_rule "event_rate_rest" {
//	  min = 20
//	  max = 150
//	}
//
//	fuel {
//	  prices = { DE = 1.85, EU = 1.80, OTHER = 1.60 }
//	}
//
//	toll "DE" {
//	  toll_class = { "1" = 0.187, "2" = 0.208 }
//	  euro_class = { V = 0.021 }
//	}
//
//	event_rates = { pickup = 50, rest = 30 }
//
// Every block is optional; whatever a file leaves out keeps its built-in value.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"

	"transport-cost/core/cost"
	"transport-cost/core/fuel"
	"transport-cost/core/rates"
	"transport-cost/core/toll"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// Tables is everything a rate file configures
type Tables struct {
	Schema     *rates.Schema
	Fuel       *fuel.Table
	Toll       *toll.Table
	EventRates map[types.EventType]decimal.Decimal
	Currency   types.Currency
}

// Default returns the built-in tables
func Default() *Tables {
	return &Tables{
		Schema:     rates.Default(),
		Fuel:       fuel.DefaultTable(),
		Toll:       toll.DefaultTable(),
		EventRates: cost.DefaultEventRates(),
		Currency:   types.CurrencyEUR,
	}
}

type fileSpec struct {
	Currency   string            `hcl:"currency,optional"`
	Rates      []ruleBlock       `hcl:"rate,block"`
	KeyRules   []keyRuleBlock    `hcl:"key_rule,block"`
	Fuel       *fuelBlock        `hcl:"fuel,block"`
	Tolls      []tollBlock       `hcl:"toll,block"`
	EventRates map[string]string `hcl:"event_rates,optional"`
}

type ruleBlock struct {
	Type                  string `hcl:"type,label"`
	Min                   string `hcl:"min"`
	Max                   string `hcl:"max"`
	CountrySpecific       bool   `hcl:"country_specific,optional"`
	RequiresCertification bool   `hcl:"requires_certification,optional"`
	Description           string `hcl:"description,optional"`
}

type keyRuleBlock struct {
	Key         string `hcl:"key,label"`
	Min         string `hcl:"min"`
	Max         string `hcl:"max"`
	Description string `hcl:"description,optional"`
}

type fuelBlock struct {
	Prices map[string]string `hcl:"prices"`
}

type tollBlock struct {
	Area      string            `hcl:"area,label"`
	TollClass map[string]string `hcl:"toll_class"`
	EuroClass map[string]string `hcl:"euro_class,optional"`
}

// Load reads and parses an HCL rate file
func Load(path string) (*Tables, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config(fmt.Sprintf("read rate file %s", path), err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source; filename is used in diagnostics only
func Parse(src []byte, filename string) (*Tables, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	var spec fileSpec
	if diags := gohcl.DecodeBody(file.Body, nil, &spec); diags.HasErrors() {
		return nil, diagError(filename, diags)
	}
	return spec.build()
}

func diagError(filename string, diags hcl.Diagnostics) error {
	var msgs []string
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		line := 0
		if diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		msgs = append(msgs, fmt.Sprintf("line %d: %s: %s", line, diag.Summary, diag.Detail))
	}
	return errors.Newf(errors.TypeConfig, "invalid rate file %s", filename).
		WithContext("diagnostics", msgs)
}

func (f *fileSpec) build() (*Tables, error) {
	t := Default()

	if f.Currency != "" {
		t.Currency = types.Currency(strings.ToUpper(f.Currency))
	}

	if len(f.Rates) > 0 || len(f.KeyRules) > 0 {
		s, err := f.schema()
		if err != nil {
			return nil, err
		}
		t.Schema = s
	}

	if f.Fuel != nil {
		ft, err := f.fuelTable()
		if err != nil {
			return nil, err
		}
		t.Fuel = ft
	}

	if len(f.Tolls) > 0 {
		tt, err := f.tollTable()
		if err != nil {
			return nil, err
		}
		t.Toll = tt
	}

	for name, raw := range f.EventRates {
		ev := types.EventType(strings.ToLower(name))
		if !ev.Valid() {
			return nil, errors.Newf(errors.TypeConfig, "event_rates: unknown event type %q", name)
		}
		v, err := amount("event_rates."+name, raw)
		if err != nil {
			return nil, err
		}
		if err := rates.NewValidator(t.Schema).Validate(rates.EventKey(ev), v); err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "event_rates: default outside schema bounds", err)
		}
		t.EventRates[ev] = v
	}
	return t, nil
}

// schema overlays the file's rules on the built-in ones
func (f *fileSpec) schema() (*rates.Schema, error) {
	byType := make(map[rates.RateType]rates.Rule)
	for _, r := range rates.DefaultRules() {
		byType[r.RateType] = r
	}
	for _, b := range f.Rates {
		rt, ok := rates.ParseType(b.Type)
		if !ok {
			return nil, errors.Newf(errors.TypeConfig, "rate %q: unknown rate type", b.Type)
		}
		lo, err := amount("rate."+b.Type+".min", b.Min)
		if err != nil {
			return nil, err
		}
		hi, err := amount("rate."+b.Type+".max", b.Max)
		if err != nil {
			return nil, err
		}
		byType[rt] = rates.Rule{
			RateType:              rt,
			Min:                   lo,
			Max:                   hi,
			CountrySpecific:       b.CountrySpecific,
			RequiresCertification: b.RequiresCertification,
			Description:           b.Description,
		}
	}

	rules := make([]rates.Rule, 0, len(rates.AllTypes))
	for _, rt := range rates.AllTypes {
		rules = append(rules, byType[rt])
	}

	keyRules := rates.DefaultKeyRules()
	for _, b := range f.KeyRules {
		lo, err := amount("key_rule."+b.Key+".min", b.Min)
		if err != nil {
			return nil, err
		}
		hi, err := amount("key_rule."+b.Key+".max", b.Max)
		if err != nil {
			return nil, err
		}
		keyRules[b.Key] = rates.Rule{Min: lo, Max: hi, Description: b.Description}
	}
	return rates.NewSchema(rules, keyRules)
}

func (f *fileSpec) fuelTable() (*fuel.Table, error) {
	def := fuel.DefaultTable()
	countries, regions := def.Countries(), def.Regions()
	for area, raw := range f.Fuel.Prices {
		v, err := amount("fuel.prices."+area, raw)
		if err != nil {
			return nil, err
		}
		if !v.IsPositive() {
			return nil, errors.Newf(errors.TypeConfig, "fuel.prices.%s must be positive", area)
		}
		if region, ok := parseRegion(area); ok {
			regions[region] = v
			continue
		}
		cc, err := countryCode(area)
		if err != nil {
			return nil, err
		}
		countries[cc] = v
	}
	return fuel.NewTable(countries, regions), nil
}

func (f *fileSpec) tollTable() (*toll.Table, error) {
	def := toll.DefaultTable()
	countries, regions := def.Countries(), def.Regions()
	for _, b := range f.Tolls {
		cr := toll.ClassRates{
			TollClass: make(map[string]decimal.Decimal, len(b.TollClass)),
			EuroClass: make(map[string]decimal.Decimal, len(b.EuroClass)),
		}
		for class, raw := range b.TollClass {
			v, err := amount("toll."+b.Area+".toll_class."+class, raw)
			if err != nil {
				return nil, err
			}
			if v.IsNegative() {
				return nil, errors.Newf(errors.TypeConfig, "toll.%s.toll_class.%s must not be negative", b.Area, class)
			}
			cr.TollClass[class] = v
		}
		for class, raw := range b.EuroClass {
			v, err := amount("toll."+b.Area+".euro_class."+class, raw)
			if err != nil {
				return nil, err
			}
			cr.EuroClass[strings.ToUpper(class)] = v
		}
		// Euro VI is the reference class
		if _, ok := cr.EuroClass["VI"]; !ok {
			cr.EuroClass["VI"] = decimal.Zero
		}
		if _, ok := cr.TollClass[toll.FallbackTollClass]; !ok {
			return nil, errors.Newf(errors.TypeConfig, "toll %q must define toll_class %q", b.Area, toll.FallbackTollClass)
		}

		if region, ok := parseRegion(b.Area); ok {
			regions[region] = cr
			continue
		}
		cc, err := countryCode(b.Area)
		if err != nil {
			return nil, err
		}
		countries[cc] = cr
	}
	return toll.NewTable(countries, regions), nil
}

func amount(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.Config(fmt.Sprintf("%s: %q is not a decimal number", field, raw), err)
	}
	return v, nil
}

func parseRegion(s string) (types.Region, bool) {
	switch types.Region(strings.ToUpper(s)) {
	case types.RegionEU:
		return types.RegionEU, true
	case types.RegionOther:
		return types.RegionOther, true
	}
	return "", false
}

func countryCode(s string) (string, error) {
	cc := strings.ToUpper(strings.TrimSpace(s))
	if len(cc) != 2 || cc[0] < 'A' || cc[0] > 'Z' || cc[1] < 'A' || cc[1] > 'Z' {
		return "", errors.Newf(errors.TypeConfig, "%q is neither an ISO country code nor a region (EU, OTHER)", s)
	}
	return cc, nil
}
