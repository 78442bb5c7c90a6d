// Package cmd - toll override commands
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"transport-cost/core/toll"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage business-specific toll rate multipliers",
	Long: `Toll overrides multiply the base toll rate for one business entity,
country and vehicle (toll) class. Only an exact match applies.`,
}

var overridesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a toll override",
	RunE:  runOverridesAdd,
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the toll overrides of a business entity",
	RunE:  runOverridesList,
}

var (
	overrideBusiness   string
	overrideCountry    string
	overrideClass      string
	overrideMultiplier string
	overrideRouteType  string
)

func init() {
	rootCmd.AddCommand(overridesCmd)
	overridesCmd.AddCommand(overridesAddCmd, overridesListCmd)

	overridesCmd.PersistentFlags().StringVar(&overrideBusiness, "business", "", "business entity ID [REQUIRED]")
	_ = overridesCmd.MarkPersistentFlagRequired("business")

	overridesAddCmd.Flags().StringVar(&overrideCountry, "country", "", "ISO country code [REQUIRED]")
	overridesAddCmd.Flags().StringVar(&overrideClass, "class", "", "vehicle toll class [REQUIRED]")
	overridesAddCmd.Flags().StringVar(&overrideMultiplier, "multiplier", "", "rate multiplier, e.g. 1.25 [REQUIRED]")
	overridesAddCmd.Flags().StringVar(&overrideRouteType, "route-type", "", "informational route type label")
	_ = overridesAddCmd.MarkFlagRequired("country")
	_ = overridesAddCmd.MarkFlagRequired("class")
	_ = overridesAddCmd.MarkFlagRequired("multiplier")
}

func runOverridesAdd(cmd *cobra.Command, _ []string) error {
	biz, err := uuid.Parse(overrideBusiness)
	if err != nil {
		return fmt.Errorf("invalid --business: %w", err)
	}
	mult, err := decimal.NewFromString(overrideMultiplier)
	if err != nil {
		return fmt.Errorf("invalid --multiplier: %w", err)
	}
	o := &toll.Override{
		BusinessEntityID: biz,
		CountryCode:      strings.ToUpper(overrideCountry),
		VehicleClass:     overrideClass,
		RateMultiplier:   mult,
		RouteType:        overrideRouteType,
	}

	return withApp(func(a *app) error {
		if err := a.store.SaveOverride(cmd.Context(), o); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	})
}

func runOverridesList(cmd *cobra.Command, _ []string) error {
	biz, err := uuid.Parse(overrideBusiness)
	if err != nil {
		return fmt.Errorf("invalid --business: %w", err)
	}
	return withApp(func(a *app) error {
		list, err := a.store.ListOverrides(cmd.Context(), biz)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No toll overrides.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COUNTRY\tCLASS\tMULTIPLIER\tROUTE TYPE\tID")
		for _, o := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.CountryCode, o.VehicleClass, o.RateMultiplier, o.RouteType, o.ID)
		}
		return tw.Flush()
	})
}
