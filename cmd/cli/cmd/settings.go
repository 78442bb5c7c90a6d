// Package cmd - cost settings commands
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"transport-cost/core/driver"
	"transport-cost/core/settings"
	"transport-cost/core/types"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-route cost settings",
	Long: `Create, update, clone and show the cost settings of a route.

A route must have been quoted once before settings can be created for it,
since settings belong to the route's business entity.

Rates are given as key=value pairs, e.g. --rate fuel_rate_DE=1.85 --rate event_rate_rest=35.
Every change is validated as a whole; nothing is stored when any rate is out of range.`,
}

var settingsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the settings of a route",
	RunE:  runSettingsCreate,
}

var settingsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change some rates or components of a route",
	RunE:  runSettingsUpdate,
}

var settingsCloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Copy settings to another route of the same business and transport type",
	RunE:  runSettingsClone,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings of a route as JSON",
	RunE:  runSettingsShow,
}

var (
	settingsRoute      string
	settingsFrom       string
	settingsComponents []string
	settingsRates      []string

	driverRateType     string
	driverDaily        string
	driverHourly       string
	driverOvertime     string
	driverOvertimeFrom string
)

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsCreateCmd, settingsUpdateCmd, settingsCloneCmd, settingsShowCmd)

	for _, c := range []*cobra.Command{settingsCreateCmd, settingsUpdateCmd, settingsShowCmd} {
		c.Flags().StringVar(&settingsRoute, "route", "", "route ID [REQUIRED]")
		_ = c.MarkFlagRequired("route")
	}
	for _, c := range []*cobra.Command{settingsCreateCmd, settingsUpdateCmd} {
		c.Flags().StringSliceVar(&settingsComponents, "components", nil, "enabled components (fuel, toll, driver, overhead, event)")
		c.Flags().StringArrayVar(&settingsRates, "rate", nil, "rate as key=value, repeatable")
		c.Flags().StringVar(&driverRateType, "driver-rate-type", "", "DAILY_ONLY, DAILY_WITH_HOURS or HOURS_ONLY")
		c.Flags().StringVar(&driverDaily, "daily-rate", "", "driver daily rate")
		c.Flags().StringVar(&driverHourly, "hourly-rate", "", "driver regular hourly rate")
		c.Flags().StringVar(&driverOvertime, "overtime-rate", "", "driver overtime hourly rate (default 1.5x regular)")
		c.Flags().StringVar(&driverOvertimeFrom, "overtime-threshold", "", "hours before overtime applies (default 9)")
	}

	settingsCloneCmd.Flags().StringVar(&settingsFrom, "from", "", "source route ID [REQUIRED]")
	settingsCloneCmd.Flags().StringVar(&settingsRoute, "to", "", "target route ID [REQUIRED]")
	settingsCloneCmd.Flags().StringArrayVar(&settingsRates, "rate", nil, "rate modification as key=value, repeatable")
	_ = settingsCloneCmd.MarkFlagRequired("from")
	_ = settingsCloneCmd.MarkFlagRequired("to")
}

func runSettingsCreate(cmd *cobra.Command, _ []string) error {
	routeID, err := uuid.Parse(settingsRoute)
	if err != nil {
		return fmt.Errorf("invalid --route: %w", err)
	}
	req := settings.CreateRequest{RouteID: routeID, Enabled: types.AllComponents}
	if cmd.Flags().Changed("components") {
		if req.Enabled, err = types.ParseComponents(settingsComponents); err != nil {
			return err
		}
	}
	if req.Rates, err = parseRates(settingsRates); err != nil {
		return err
	}
	if req.DriverRates, err = driverRatesFromFlags(); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		cs, err := a.settings.Create(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cs)
	})
}

func runSettingsUpdate(cmd *cobra.Command, _ []string) error {
	routeID, err := uuid.Parse(settingsRoute)
	if err != nil {
		return fmt.Errorf("invalid --route: %w", err)
	}
	var u settings.Update
	if cmd.Flags().Changed("components") {
		enabled, err := types.ParseComponents(settingsComponents)
		if err != nil {
			return err
		}
		u.Enabled = &enabled
	}
	if u.Rates, err = parseRates(settingsRates); err != nil {
		return err
	}
	if u.DriverRates, err = driverRatesFromFlags(); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		cs, err := a.settings.PartialUpdate(cmd.Context(), routeID, u)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cs)
	})
}

func runSettingsClone(cmd *cobra.Command, _ []string) error {
	from, err := uuid.Parse(settingsFrom)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := uuid.Parse(settingsRoute)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	mods, err := parseRates(settingsRates)
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		cs, err := a.settings.Clone(cmd.Context(), from, to, mods)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cs)
	})
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	routeID, err := uuid.Parse(settingsRoute)
	if err != nil {
		return fmt.Errorf("invalid --route: %w", err)
	}
	return withApp(func(a *app) error {
		cs, err := a.settings.Get(cmd.Context(), routeID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cs)
	})
}

// driverRatesFromFlags returns nil when no driver model was given
func driverRatesFromFlags() (driver.Rates, error) {
	if driverRateType == "" {
		return nil, nil
	}
	spec := driver.Spec{RateType: driver.RateType(strings.ToUpper(driverRateType))}
	var err error
	if spec.DailyRate, err = nullDecimal("daily-rate", driverDaily); err != nil {
		return nil, err
	}
	if spec.RegularHourlyRate, err = nullDecimal("hourly-rate", driverHourly); err != nil {
		return nil, err
	}
	if spec.OvertimeHourlyRate, err = nullDecimal("overtime-rate", driverOvertime); err != nil {
		return nil, err
	}
	if spec.OvertimeThresholdHours, err = nullDecimal("overtime-threshold", driverOvertimeFrom); err != nil {
		return nil, err
	}
	return spec.Build()
}

func nullDecimal(flag, raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
