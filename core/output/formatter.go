// Package output renders quotes for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"transport-cost/core/determinism"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatMarkdown is a markdown report
	FormatMarkdown Format = "markdown"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render writes the quote to w
	Render(w io.Writer, q *Quote) error
}

// Quote is a built route together with its cost breakdown
type Quote struct {
	Route     *types.Route         `json:"route"`
	Breakdown *types.CostBreakdown `json:"cost_breakdown"`

	// Version is the tool version
	Version string `json:"version,omitempty"`
}

// New returns the formatter for a format name
func New(format string) (Formatter, error) {
	switch Format(strings.ToLower(format)) {
	case FormatCLI, "":
		return CLIFormatter{}, nil
	case FormatJSON:
		return JSONFormatter{Indent: true}, nil
	case FormatMarkdown, "md":
		return MarkdownFormatter{}, nil
	default:
		return nil, errors.Validationf("unknown output format %q", format)
	}
}

// line is one labelled amount of the breakdown
type line struct {
	label  string
	amount decimal.Decimal
	child  bool
}

// lines flattens a breakdown in component order with sorted sub-items.
func lines(b *types.CostBreakdown) []line {
	var out []line
	sub := b.Subtotals()

	out = append(out, line{label: "Fuel", amount: sub[types.ComponentFuel]})
	for _, c := range determinism.SortedKeys(b.FuelCosts) {
		out = append(out, line{label: c, amount: b.FuelCosts[c], child: true})
	}
	out = append(out, line{label: "Toll", amount: sub[types.ComponentToll]})
	for _, c := range determinism.SortedKeys(b.TollCosts) {
		out = append(out, line{label: c, amount: b.TollCosts[c], child: true})
	}
	out = append(out, line{label: "Driver", amount: sub[types.ComponentDriver]})
	if b.DriverCosts.Model != "" {
		dc := b.DriverCosts
		out = append(out,
			line{label: fmt.Sprintf("base (%s, %d day(s))", dc.Model, dc.Days), amount: dc.BaseCost, child: true},
			line{label: fmt.Sprintf("regular %sh", dc.RegularHours.StringFixed(2)), amount: dc.RegularHoursCost, child: true},
			line{label: fmt.Sprintf("overtime %sh", dc.OvertimeHours.StringFixed(2)), amount: dc.OvertimeCost, child: true},
		)
	}
	out = append(out, line{label: "Overhead", amount: sub[types.ComponentOverhead]})
	out = append(out, line{label: "Timeline events", amount: sub[types.ComponentEvent]})
	for _, ev := range types.EventTypes {
		if v, ok := b.EventCosts[ev]; ok {
			out = append(out, line{label: string(ev), amount: v, child: true})
		}
	}
	return out
}

func money(d decimal.Decimal, c types.Currency) string {
	return d.StringFixed(2) + " " + string(c)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// CLIFormatter draws a boxed summary table
type CLIFormatter struct{}

// Format implements Formatter
func (CLIFormatter) Format() Format { return FormatCLI }

// Render implements Formatter
func (CLIFormatter) Render(w io.Writer, q *Quote) error {
	b := q.Breakdown
	if b == nil {
		return errors.Validation("quote has no breakdown")
	}
	ew := &errWriter{w: w}
	rule := strings.Repeat("─", 73)

	ew.printf("┌%s┐\n", rule)
	ew.printf("│ %-71s │\n", "TRANSPORT COST QUOTE")
	if r := q.Route; r != nil {
		ew.printf("│ %-71s │\n", truncate(fmt.Sprintf("%s -> %s", r.Origin.Address, r.Destination.Address), 71))
		ew.printf("│ %-71s │\n", fmt.Sprintf("%s km, %s h, %d stop(s), feasible: %v",
			r.TotalDistanceKm.StringFixed(1), r.TotalDurationHours.StringFixed(2), len(r.Events), r.IsFeasible))
		if r.EmptyDriving.Attributable() {
			ew.printf("│ %-71s │\n", fmt.Sprintf("empty driving %s km (chargeable)", r.EmptyDriving.DistanceKm.StringFixed(1)))
		}
	}
	ew.printf("├%s┤\n", rule)
	for _, l := range lines(b) {
		if l.child {
			ew.printf("│   └─ %-46s %20s │\n", truncate(l.label, 46), money(l.amount, b.Currency))
			continue
		}
		ew.printf("│ %-50s %20s │\n", truncate(l.label, 50), money(l.amount, b.Currency))
	}
	ew.printf("├%s┤\n", rule)
	ew.printf("│ %-50s %20s │\n", "TOTAL", money(b.TotalCost, b.Currency))
	ew.printf("└%s┘\n", rule)

	if len(b.Metadata.Assumptions) > 0 {
		ew.printf("\nAssumptions:\n")
		for _, a := range b.Metadata.Assumptions {
			ew.printf("  - %s\n", a)
		}
	}
	if b.Metadata.Fingerprint != "" {
		ew.printf("\nFingerprint: %s\n", truncate(b.Metadata.Fingerprint, 19))
	}
	return ew.err
}

// JSONFormatter writes the quote as JSON
type JSONFormatter struct {
	Indent bool
}

// Format implements Formatter
func (JSONFormatter) Format() Format { return FormatJSON }

// Render implements Formatter
func (f JSONFormatter) Render(w io.Writer, q *Quote) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(q)
}

// MarkdownFormatter writes a markdown table
type MarkdownFormatter struct{}

// Format implements Formatter
func (MarkdownFormatter) Format() Format { return FormatMarkdown }

// Render implements Formatter
func (MarkdownFormatter) Render(w io.Writer, q *Quote) error {
	b := q.Breakdown
	if b == nil {
		return errors.Validation("quote has no breakdown")
	}
	ew := &errWriter{w: w}
	ew.printf("## Transport cost quote\n\n")
	ew.printf("| Item | Amount |\n|---|---:|\n")
	for _, l := range lines(b) {
		label := l.label
		if l.child {
			label = "&nbsp;&nbsp;" + label
		} else {
			label = "**" + label + "**"
		}
		ew.printf("| %s | %s |\n", label, money(l.amount, b.Currency))
	}
	ew.printf("| **Total** | **%s** |\n", money(b.TotalCost, b.Currency))
	return ew.err
}

// errWriter keeps the first write error
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
