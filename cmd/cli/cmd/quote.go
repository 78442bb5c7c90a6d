// Package cmd - quote command
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"transport-cost/adapters/routing"
	"transport-cost/core/output"
	"transport-cost/core/quote"
	"transport-cost/internal/logging"
)

var (
	outputFormat string
	requoteRoute string
)

// quoteCmd builds a route from a job file and prices it
var quoteCmd = &cobra.Command{
	Use:   "quote <job.json>",
	Short: "Build a route and quote its cost",
	Long: `Build the route timeline described by a job file and produce an itemized
cost breakdown. The job file carries the route, the transport, the country
segments and optionally the cost settings to seed or update.

The route, its settings and the breakdown are stored in the configured
database, so later quotes of the same route_id reuse the stored settings.

Examples:
  transport-cost quote job.json
  transport-cost quote --format markdown job.json
  transport-cost quote --route 6f1c... job.json   # reprice a stored route`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVarP(&outputFormat, "format", "f", "cli", "output format (cli, json, markdown)")
	quoteCmd.Flags().StringVar(&requoteRoute, "route", "", "reprice a stored route with its current settings")
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	formatter, err := output.New(outputFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open job file: %w", err)
	}
	job, err := quote.DecodeJob(f)
	f.Close()
	if err != nil {
		return err
	}
	req, err := job.Request()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	builder, err := a.builder(jobProvider(job))
	if err != nil {
		return err
	}
	svc := quote.NewService(builder, a.settings, a.engine, a.store,
		quote.WithVersion(Version),
		quote.WithLogger(logging.Named("quote")),
	)

	var q *output.Quote
	if requoteRoute != "" {
		id, perr := uuid.Parse(requoteRoute)
		if perr != nil {
			return fmt.Errorf("invalid --route: %w", perr)
		}
		q, err = svc.Recalculate(ctx, id, req)
	} else {
		q, err = svc.Quote(ctx, req)
	}
	if err != nil {
		return err
	}
	return formatter.Render(cmd.OutOrStdout(), q)
}

// jobProvider answers the builder from the segments carried in the job
func jobProvider(job *quote.Job) *routing.StaticProvider {
	p := routing.NewStaticProvider(routing.StaticLeg{
		From:               job.Origin,
		To:                 job.Destination,
		Segments:           job.Segments,
		TotalDistanceKm:    job.TotalDistanceKm,
		TotalDurationHours: job.TotalDurationHours,
	})
	if job.Truck != nil && job.EmptyDriving != nil {
		p.AddSpan(routing.StaticSpan{
			From:          *job.Truck,
			To:            job.Origin,
			DistanceKm:    job.EmptyDriving.DistanceKm,
			DurationHours: job.EmptyDriving.DurationHours,
			CountryCode:   job.EmptyDriving.CountryCode,
		})
	}
	return p
}
