package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"transport-cost/core/driver"
	"transport-cost/core/types"
)

func sampleQuote() *Quote {
	d := decimal.RequireFromString
	return &Quote{
		Route: &types.Route{
			Origin:             types.Location{Address: "Berlin"},
			Destination:        types.Location{Address: "Paris"},
			TotalDistanceKm:    d("1050"),
			TotalDurationHours: d("12"),
			IsFeasible:         true,
		},
		Breakdown: &types.CostBreakdown{
			FuelCosts:     map[string]decimal.Decimal{"FR": d("100"), "DE": d("217.5")},
			TollCosts:     map[string]decimal.Decimal{"DE": d("24.8")},
			DriverCosts:   driver.Costs{Model: driver.DailyOnly, Days: 1, BaseCost: d("200"), TotalCost: d("200")},
			OverheadCosts: d("50"),
			EventCosts:    map[types.EventType]decimal.Decimal{types.EventPickup: d("50")},
			TotalCost:     d("642.3"),
			Currency:      types.CurrencyEUR,
			Metadata:      types.BreakdownMetadata{Assumptions: []string{"rest event rate defaulted to 30"}},
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatCLI, false},
		{"json", FormatJSON, false},
		{"MD", FormatMarkdown, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		f, err := New(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("New(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil || f.Format() != tt.want {
			t.Errorf("New(%q) = %v, %v", tt.in, f, err)
		}
	}
}

func TestCLIRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (CLIFormatter{}).Render(&buf, sampleQuote()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Berlin -> Paris", "217.50 EUR", "642.30 EUR", "Assumptions:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "└─ DE") > strings.Index(out, "└─ FR") {
		t.Error("countries should be listed in sorted order")
	}
}

func TestJSONRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Render(&buf, sampleQuote()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var decoded struct {
		Breakdown struct {
			TotalCost string            `json:"total_cost"`
			FuelCosts map[string]string `json:"fuel_costs"`
		} `json:"cost_breakdown"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Breakdown.TotalCost != "642.3" || decoded.Breakdown.FuelCosts["DE"] != "217.5" {
		t.Errorf("amounts must be exact decimal strings: %+v", decoded.Breakdown)
	}
}

func TestMarkdownRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (MarkdownFormatter{}).Render(&buf, sampleQuote()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "| **Total** | **642.30 EUR** |") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}
}
