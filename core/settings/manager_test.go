package settings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transport-cost/core/driver"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

type fixture struct {
	mgr   *Manager
	store *MemoryStore
	dir   *MemoryDirectory
	biz   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	dir := NewMemoryDirectory()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fixture{
		mgr: NewManager(store, dir,
			WithLogger(zap.NewNop()),
			WithClock(func() time.Time { return fixed }),
		),
		store: store,
		dir:   dir,
		biz:   uuid.New(),
	}
}

func (f *fixture) route(biz uuid.UUID, transportType string) uuid.UUID {
	id := uuid.New()
	f.dir.Register(RouteInfo{RouteID: id, BusinessEntityID: biz, TransportTypeID: transportType})
	return id
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateStoresRatesExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	routeID := f.route(f.biz, "tautliner")

	in := map[string]decimal.Decimal{
		"fuel_rate":        d("0.50"),
		"fuel_rate_DE":     d("5.00"),
		"toll_rate_FR":     d("0.345"),
		"driver_base_rate": d("250"),
		"event_rate_rest":  d("150.00"),
	}
	created, err := f.mgr.Create(ctx, CreateRequest{
		RouteID: routeID,
		Enabled: types.AllComponents,
		Rates:   in,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.BusinessEntityID != f.biz {
		t.Errorf("business entity = %s, want %s", created.BusinessEntityID, f.biz)
	}

	stored, err := f.mgr.Get(ctx, routeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Rates) != len(in) {
		t.Fatalf("stored %d rates, want %d", len(stored.Rates), len(in))
	}
	for k, v := range in {
		if got := stored.Rates[k]; !got.Equal(v) {
			t.Errorf("rate %s = %s, want %s", k, got, v)
		}
	}
}

func TestCreateAllowsEmptyComponents(t *testing.T) {
	f := newFixture(t)
	routeID := f.route(f.biz, "box")
	s, err := f.mgr.Create(context.Background(), CreateRequest{RouteID: routeID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(s.Enabled.List()) != 0 {
		t.Errorf("expected no components, got %v", s.Enabled.Strings())
	}
}

func TestCreateReportsAllViolations(t *testing.T) {
	f := newFixture(t)
	routeID := f.route(f.biz, "box")

	_, err := f.mgr.Create(context.Background(), CreateRequest{
		RouteID: routeID,
		Rates: map[string]decimal.Decimal{
			"fuel_rate":        d("5.01"),
			"toll_rate_DE":     d("0.05"),
			"driver_time_rate": d("20"),
		},
		DriverRates: driver.DailyOnlyRates{DailyRate: d("50")},
	})
	if !errors.IsType(err, errors.TypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	violations := errors.ViolationsOf(err)
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(violations), err)
	}
	for _, v := range violations {
		if v.Min == "" || v.Max == "" {
			t.Errorf("violation %s lacks bounds", v.Key)
		}
	}
	if violations[0].Key != "driver_rates.daily_rate" {
		t.Errorf("violations should be sorted by key, first is %s", violations[0].Key)
	}

	if _, err := f.mgr.Get(context.Background(), routeID); !errors.IsType(err, errors.TypeNotFound) {
		t.Fatalf("nothing should be stored, got %v", err)
	}
}

func TestCreateTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	routeID := f.route(f.biz, "box")
	ctx := context.Background()
	if _, err := f.mgr.Create(ctx, CreateRequest{RouteID: routeID}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.mgr.Create(ctx, CreateRequest{RouteID: routeID}); !errors.IsType(err, errors.TypeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPartialUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and keeps untouched keys", func(t *testing.T) {
		f := newFixture(t)
		routeID := f.route(f.biz, "box")
		if _, err := f.mgr.Create(ctx, CreateRequest{
			RouteID: routeID,
			Enabled: types.NewComponents(types.ComponentFuel),
			Rates:   map[string]decimal.Decimal{"fuel_rate": d("1.80"), "toll_rate": d("0.30")},
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}

		enabled := types.NewComponents(types.ComponentFuel, types.ComponentToll)
		got, err := f.mgr.PartialUpdate(ctx, routeID, Update{
			Rates:   map[string]decimal.Decimal{"fuel_rate": d("2.10"), "fuel_rate_PL": d("1.70")},
			Enabled: &enabled,
		})
		if err != nil {
			t.Fatalf("PartialUpdate: %v", err)
		}
		want := map[string]string{"fuel_rate": "2.10", "toll_rate": "0.30", "fuel_rate_PL": "1.70"}
		for k, v := range want {
			if !got.Rates[k].Equal(d(v)) {
				t.Errorf("%s = %s, want %s", k, got.Rates[k], v)
			}
		}
		if !got.Enabled.Has(types.ComponentToll) {
			t.Error("toll should be enabled")
		}
	})

	t.Run("invalid merge leaves stored settings untouched", func(t *testing.T) {
		f := newFixture(t)
		routeID := f.route(f.biz, "box")
		if _, err := f.mgr.Create(ctx, CreateRequest{
			RouteID: routeID,
			Rates:   map[string]decimal.Decimal{"fuel_rate": d("1.80")},
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}

		_, err := f.mgr.PartialUpdate(ctx, routeID, Update{
			Rates: map[string]decimal.Decimal{"fuel_rate": d("9.99"), "toll_rate": d("0.40")},
		})
		if !errors.IsType(err, errors.TypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		stored, _ := f.mgr.Get(ctx, routeID)
		if !stored.Rates["fuel_rate"].Equal(d("1.80")) {
			t.Errorf("fuel_rate changed to %s", stored.Rates["fuel_rate"])
		}
		if _, ok := stored.Rates["toll_rate"]; ok {
			t.Error("toll_rate must not be stored after a failed update")
		}
	})

	t.Run("missing settings", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.mgr.PartialUpdate(ctx, uuid.New(), Update{})
		if !errors.IsType(err, errors.TypeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestClone(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, uuid.UUID) {
		f := newFixture(t)
		source := f.route(f.biz, "reefer")
		if _, err := f.mgr.Create(ctx, CreateRequest{
			RouteID:     source,
			Enabled:     types.AllComponents,
			Rates:       map[string]decimal.Decimal{"fuel_rate": d("1.80"), "toll_rate_DE": d("0.25"), "event_rate": d("60")},
			DriverRates: driver.DailyOnlyRates{DailyRate: d("200")},
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return f, source
	}

	t.Run("overrides modified keys", func(t *testing.T) {
		f, source := setup(t)
		target := f.route(f.biz, "reefer")

		mods := map[string]decimal.Decimal{"fuel_rate": d("2.00"), "fuel_rate_FR": d("1.90")}
		cloned, err := f.mgr.Clone(ctx, source, target, mods)
		if err != nil {
			t.Fatalf("Clone: %v", err)
		}
		want := map[string]string{"fuel_rate": "2.00", "fuel_rate_FR": "1.90", "toll_rate_DE": "0.25", "event_rate": "60"}
		if len(cloned.Rates) != len(want) {
			t.Fatalf("cloned %d rates, want %d", len(cloned.Rates), len(want))
		}
		for k, v := range want {
			if !cloned.Rates[k].Equal(d(v)) {
				t.Errorf("%s = %s, want %s", k, cloned.Rates[k], v)
			}
		}
		if cloned.RouteID != target || cloned.DriverRates == nil {
			t.Errorf("unexpected clone: %+v", cloned)
		}

		src, _ := f.mgr.Get(ctx, source)
		if !src.Rates["fuel_rate"].Equal(d("1.80")) {
			t.Error("source settings must not change")
		}
	})

	t.Run("different business entity conflicts", func(t *testing.T) {
		f, source := setup(t)
		target := f.route(uuid.New(), "reefer")
		_, err := f.mgr.Clone(ctx, source, target, nil)
		if !errors.IsType(err, errors.TypeConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("different transport type conflicts", func(t *testing.T) {
		f, source := setup(t)
		target := f.route(f.biz, "tanker")
		_, err := f.mgr.Clone(ctx, source, target, nil)
		if !errors.IsType(err, errors.TypeConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("negative modification fails before lookups", func(t *testing.T) {
		f, source := setup(t)
		_, err := f.mgr.Clone(ctx, source, uuid.New(), map[string]decimal.Decimal{"fuel_rate": d("-1")})
		if !errors.IsType(err, errors.TypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("out of range modification", func(t *testing.T) {
		f, source := setup(t)
		target := f.route(f.biz, "reefer")
		_, err := f.mgr.Clone(ctx, source, target, map[string]decimal.Decimal{"toll_rate_DE": d("3")})
		if !errors.IsType(err, errors.TypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, err := f.mgr.Get(ctx, target); !errors.IsType(err, errors.TypeNotFound) {
			t.Fatalf("target must stay empty, got %v", err)
		}
	})

	t.Run("missing source settings", func(t *testing.T) {
		f := newFixture(t)
		source := f.route(f.biz, "reefer")
		target := f.route(f.biz, "reefer")
		_, err := f.mgr.Clone(ctx, source, target, nil)
		if !errors.IsType(err, errors.TypeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestValidateDoesNotTouchStore(t *testing.T) {
	f := newFixture(t)
	routeID := uuid.New()

	tests := []struct {
		name       string
		req        CreateRequest
		violations int
	}{
		{
			name: "valid",
			req:  CreateRequest{RouteID: routeID, Rates: map[string]decimal.Decimal{"fuel_rate": d("1.5")}},
		},
		{
			name: "rate and driver out of range",
			req: CreateRequest{
				RouteID:     routeID,
				Rates:       map[string]decimal.Decimal{"fuel_rate": d("99")},
				DriverRates: driver.DailyOnlyRates{DailyRate: d("5")},
			},
			violations: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.mgr.Validate(tt.req)
			if tt.violations == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if got := len(errors.ViolationsOf(err)); got != tt.violations {
				t.Fatalf("got %d violations, want %d: %v", got, tt.violations, err)
			}
			if _, err := f.store.GetSettings(context.Background(), routeID); !errors.IsType(err, errors.TypeNotFound) {
				t.Errorf("Validate stored settings: %v", err)
			}
		})
	}
}
