package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transport-cost/core/driver"
	"transport-cost/core/toll"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQL(BackendSQLite, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQL(sqlite): %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func sampleRoute() *types.Route {
	return &types.Route{
		ID:               uuid.New(),
		BusinessEntityID: uuid.New(),
		TransportID:      uuid.New(),
		Origin:           types.Location{Latitude: 52.52, Longitude: 13.405, Address: "Berlin"},
		Destination:      types.Location{Latitude: 48.8566, Longitude: 2.3522, Address: "Paris"},
		Segments: []types.CountrySegment{
			{CountryCode: "DE", DistanceKm: decimal.RequireFromString("580.5"), DurationHours: decimal.RequireFromString("6.5"), Order: 0},
			{CountryCode: "FR", DistanceKm: decimal.RequireFromString("470"), DurationHours: decimal.RequireFromString("5.5"), Order: 1},
		},
		TotalDistanceKm:    decimal.RequireFromString("1050.5"),
		TotalDurationHours: decimal.RequireFromString("12"),
		Status:             types.RouteDraft,
		CreatedAt:          time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRouteRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := sampleRoute()
			if err := s.SaveRoute(ctx, r, "truck-40t"); err != nil {
				t.Fatalf("SaveRoute: %v", err)
			}

			got, err := s.GetRoute(ctx, r.ID)
			if err != nil {
				t.Fatalf("GetRoute: %v", err)
			}
			if !got.TotalDistanceKm.Equal(r.TotalDistanceKm) || len(got.Segments) != 2 || got.Segments[1].CountryCode != "FR" {
				t.Errorf("route mismatch: %+v", got)
			}

			info, err := s.LookupRoute(ctx, r.ID)
			if err != nil {
				t.Fatalf("LookupRoute: %v", err)
			}
			if info.BusinessEntityID != r.BusinessEntityID || info.TransportTypeID != "truck-40t" {
				t.Errorf("LookupRoute = %+v", info)
			}

			if _, err := s.GetRoute(ctx, uuid.New()); !errors.IsType(err, errors.TypeNotFound) {
				t.Errorf("missing route: want NOT_FOUND, got %v", err)
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			routeID := uuid.New()
			if _, err := s.GetSettings(ctx, routeID); !errors.IsType(err, errors.TypeNotFound) {
				t.Fatalf("want NOT_FOUND before save, got %v", err)
			}

			cs := &types.CostSettings{
				ID:               uuid.New(),
				RouteID:          routeID,
				BusinessEntityID: uuid.New(),
				Enabled:          types.NewComponents(types.ComponentFuel, types.ComponentDriver),
				Rates:            map[string]decimal.Decimal{"fuel_consumption_rate": decimal.RequireFromString("0.35")},
				DriverRates:      driver.DailyOnlyRates{DailyRate: decimal.NewFromInt(200)},
				CreatedAt:        time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				UpdatedAt:        time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			}
			if err := s.SaveSettings(ctx, cs); err != nil {
				t.Fatalf("SaveSettings: %v", err)
			}

			cs.Rates["overhead_rate"] = decimal.NewFromInt(50)
			cs.UpdatedAt = cs.UpdatedAt.Add(time.Hour)
			if err := s.SaveSettings(ctx, cs); err != nil {
				t.Fatalf("SaveSettings (update): %v", err)
			}

			got, err := s.GetSettings(ctx, routeID)
			if err != nil {
				t.Fatalf("GetSettings: %v", err)
			}
			if got.Enabled != cs.Enabled {
				t.Errorf("Enabled = %v, want %v", got.Enabled.Strings(), cs.Enabled.Strings())
			}
			if len(got.Rates) != 2 || !got.Rates["fuel_consumption_rate"].Equal(decimal.RequireFromString("0.35")) {
				t.Errorf("Rates = %v", got.Rates)
			}
			if got.DriverRates == nil || got.DriverRates.Type() != driver.DailyOnly {
				t.Errorf("DriverRates = %#v", got.DriverRates)
			}
			if !got.UpdatedAt.Equal(cs.UpdatedAt) {
				t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, cs.UpdatedAt)
			}
		})
	}
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			biz := uuid.New()
			save := func(country, class, mult string) {
				t.Helper()
				o := &toll.Override{
					BusinessEntityID: biz,
					CountryCode:      country,
					VehicleClass:     class,
					RateMultiplier:   decimal.RequireFromString(mult),
				}
				if err := s.SaveOverride(ctx, o); err != nil {
					t.Fatalf("SaveOverride(%s/%s): %v", country, class, err)
				}
			}
			save("FR", "2", "1.1")
			save("DE", "2", "1.25")
			save("DE", "2", "1.3")

			o, err := s.FindOverride(ctx, biz, "DE", "2")
			if err != nil {
				t.Fatalf("FindOverride: %v", err)
			}
			if o == nil || !o.RateMultiplier.Equal(decimal.RequireFromString("1.3")) {
				t.Errorf("FindOverride = %+v, want multiplier 1.3", o)
			}

			miss, err := s.FindOverride(ctx, biz, "DE", "3")
			if err != nil || miss != nil {
				t.Errorf("different class must not match: %+v, %v", miss, err)
			}

			list, err := s.ListOverrides(ctx, biz)
			if err != nil {
				t.Fatalf("ListOverrides: %v", err)
			}
			if len(list) != 2 || list[0].CountryCode != "DE" || list[1].CountryCode != "FR" {
				t.Errorf("ListOverrides = %+v", list)
			}

			bad := &toll.Override{BusinessEntityID: biz, CountryCode: "DE", VehicleClass: "2", RateMultiplier: decimal.Zero}
			if err := s.SaveOverride(ctx, bad); !errors.IsType(err, errors.TypeValidation) || len(errors.ViolationsOf(err)) != 1 {
				t.Errorf("zero multiplier: want one violation, got %v", err)
			}
		})
	}
}

func TestLatestBreakdown(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			routeID := uuid.New()
			if _, err := s.LatestBreakdown(ctx, routeID); !errors.IsType(err, errors.TypeNotFound) {
				t.Fatalf("want NOT_FOUND before save, got %v", err)
			}

			for i, total := range []string{"100", "300", "200"} {
				b := &types.CostBreakdown{
					ID:        uuid.New(),
					RouteID:   routeID,
					FuelCosts: map[string]decimal.Decimal{"DE": decimal.RequireFromString(total)},
					TotalCost: decimal.RequireFromString(total),
					Currency:  types.CurrencyEUR,
					Metadata:  types.BreakdownMetadata{CalculatedAt: base.Add(time.Duration(i) * time.Minute), Fingerprint: "fp" + total},
				}
				if err := s.SaveBreakdown(ctx, b); err != nil {
					t.Fatalf("SaveBreakdown: %v", err)
				}
			}

			got, err := s.LatestBreakdown(ctx, routeID)
			if err != nil {
				t.Fatalf("LatestBreakdown: %v", err)
			}
			if !got.TotalCost.Equal(decimal.NewFromInt(200)) || got.Metadata.Fingerprint != "fp200" {
				t.Errorf("latest = %s (%s), want 200", got.TotalCost, got.Metadata.Fingerprint)
			}
		})
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
		err  bool
	}{
		{"", BackendMemory, false},
		{"sqlite3", BackendSQLite, false},
		{"pgx", BackendPostgres, false},
		{"PostgreSQL", BackendPostgres, false},
		{"mysql", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{backend: BackendPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SQLStore{backend: BackendSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpenSQLEmptyDSN(t *testing.T) {
	if _, err := OpenSQL(BackendSQLite, ""); !errors.IsType(err, errors.TypeConfig) {
		t.Errorf("empty dsn: want CONFIG error, got %v", err)
	}
}
