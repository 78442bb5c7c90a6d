package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"transport-cost/adapters/routing"
	"transport-cost/adapters/schema"
	"transport-cost/adapters/storage"
	"transport-cost/core/cost"
	"transport-cost/core/rates"
	"transport-cost/core/settings"
	"transport-cost/core/timeline"
	"transport-cost/core/toll"
	"transport-cost/internal/config"
	"transport-cost/internal/logging"
)

// app holds the components one command needs
type app struct {
	cfg      *config.Config
	store    storage.Store
	tables   *schema.Tables
	settings *settings.Manager
	engine   *cost.Engine
}

func openApp() (*app, error) {
	cfg := config.Get()

	backend, err := storage.ParseBackend(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	store, err := storage.StoreFactory(backend, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	// A rate file carries its own currency; otherwise the config decides
	tables := schema.Default()
	if cfg.Currency != "" {
		tables.Currency = cfg.Currency
	}
	if cfg.Rates.SchemaFile != "" {
		if tables, err = schema.Load(cfg.Rates.SchemaFile); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	currency := tables.Currency

	return &app{
		cfg:    cfg,
		store:  store,
		tables: tables,
		settings: settings.NewManager(store, store,
			settings.WithValidator(rates.NewValidator(tables.Schema)),
			settings.WithLogger(logging.Named("settings")),
		),
		engine: cost.NewEngine(
			cost.WithFuelTable(tables.Fuel),
			cost.WithTollTable(tables.Toll),
			cost.WithOverrides(toll.NewResolver(store)),
			cost.WithEventRates(tables.EventRates),
			cost.WithCurrency(currency),
			cost.WithLogger(logging.Named("cost")),
		),
	}, nil
}

// builder creates a route builder over provider, wrapped with the configured retries
func (a *app) builder(provider timeline.SegmentProvider) (*timeline.Builder, error) {
	tl := a.cfg.Timeline
	policy, err := timeline.ParseRestPolicy(tl.RestPolicy, decimal.NewFromFloat(tl.RestIntervalHours))
	if err != nil {
		return nil, err
	}
	resilient := routing.NewResilient(provider,
		routing.WithTimeout(a.cfg.Provider.Timeout()),
		routing.WithMaxAttempts(a.cfg.Provider.MaxAttempts),
		routing.WithInitialBackoff(a.cfg.Provider.InitialBackoff()),
	)
	return timeline.NewBuilder(resilient,
		timeline.WithRestPolicy(policy),
		timeline.WithEventDuration(decimal.NewFromFloat(tl.EventDurationHours)),
		timeline.WithLogger(logging.Named("timeline")),
	), nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// parseRates turns key=value pairs into a rate map
func parseRates(pairs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected key=value", p)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", p, err)
		}
		out[strings.TrimSpace(k)] = d
	}
	return out, nil
}
