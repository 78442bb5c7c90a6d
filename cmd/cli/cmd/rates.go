// Package cmd - rate schema command
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"transport-cost/core/determinism"
	"transport-cost/core/types"
)

var ratesJSON bool

// ratesCmd prints the rate schema and default tables in use
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show rate bounds and default tables",
	Long: `Print the valid range of every rate type, the per-key bands, the default
fuel prices and the default event rates. Set rates.schema_file in the config
(or TRANSPORT_COST_SCHEMA_FILE) to load them from an HCL file.`,
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)
	ratesCmd.Flags().BoolVar(&ratesJSON, "json", false, "print rules as JSON")
}

func runRates(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		s := a.tables.Schema
		if ratesJSON {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"rules":     s.Rules(),
				"key_rules": s.KeyRules(),
			})
		}

		w := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RATE TYPE\tKEY\tRANGE\tCOUNTRY\tCERT\tDESCRIPTION")
		for _, r := range s.Rules() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%v\t%s\n",
				r.RateType, r.RateType.Key(), r.AllowedRange(), r.CountrySpecific, r.RequiresCertification, r.Description)
		}
		keyRules := s.KeyRules()
		for _, k := range determinism.SortedKeys(keyRules) {
			r := keyRules[k]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%v\t%s\n",
				r.RateType, k, r.AllowedRange(), r.CountrySpecific, r.RequiresCertification, r.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(w, "\nDefault fuel prices (%s/L):\n", a.tables.Currency)
		countries := a.tables.Fuel.Countries()
		for _, c := range determinism.SortedKeys(countries) {
			fmt.Fprintf(w, "  %-6s %s\n", c, countries[c].StringFixed(2))
		}
		regions := a.tables.Fuel.Regions()
		for _, r := range determinism.SortedKeys(regions) {
			fmt.Fprintf(w, "  %-6s %s\n", r, regions[r].StringFixed(2))
		}

		fmt.Fprintf(w, "\nDefault event rates (%s):\n", a.tables.Currency)
		for _, ev := range types.EventTypes {
			fmt.Fprintf(w, "  %-9s %s\n", ev, a.tables.EventRates[ev].StringFixed(2))
		}
		return nil
	})
}
