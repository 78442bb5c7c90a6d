package routing

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transport-cost/core/timeline"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

var (
	berlin = types.Location{Latitude: 52.52, Longitude: 13.405, Address: "Berlin"}
	paris  = types.Location{Latitude: 48.8566, Longitude: 2.3522, Address: "Paris"}
	poznan = types.Location{Latitude: 52.4064, Longitude: 16.9252, Address: "Poznan"}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func staticBerlinParis() *StaticProvider {
	return NewStaticProvider(StaticLeg{
		From: berlin,
		To:   paris,
		Segments: []timeline.Segment{
			{CountryCode: "DE", DistanceKm: d("650.5"), DurationHours: d("7.5")},
			{CountryCode: "FR", DistanceKm: d("399.5"), DurationHours: d("4.5")},
		},
	})
}

func TestStaticSegments(t *testing.T) {
	p := staticBerlinParis()
	leg, err := p.Segments(context.Background(), berlin, paris)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if !leg.TotalDistanceKm.Equal(d("1050")) || !leg.TotalDurationHours.Equal(d("12")) {
		t.Errorf("totals = %s km / %s h, want 1050 / 12", leg.TotalDistanceKm, leg.TotalDurationHours)
	}

	leg.Segments[0].CountryCode = "XX"
	again, _ := p.Segments(context.Background(), berlin, paris)
	if again.Segments[0].CountryCode != "DE" {
		t.Error("callers must not be able to modify the stored leg")
	}

	if _, err := p.Segments(context.Background(), paris, berlin); !errors.IsType(err, errors.TypeNotFound) {
		t.Errorf("reverse direction: want NOT_FOUND, got %v", err)
	}
}

func TestStaticDistance(t *testing.T) {
	p := staticBerlinParis()
	p.AddSpan(StaticSpan{From: poznan, To: berlin, DistanceKm: d("270"), DurationHours: d("3"), CountryCode: "PL"})

	span, err := p.Distance(context.Background(), poznan, berlin)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if !span.DistanceKm.Equal(d("270")) || span.CountryCode != "PL" {
		t.Errorf("span = %+v", span)
	}

	fromLeg, err := p.Distance(context.Background(), berlin, paris)
	if err != nil {
		t.Fatalf("Distance from leg: %v", err)
	}
	if !fromLeg.DistanceKm.Equal(d("1050")) || fromLeg.CountryCode != "DE" {
		t.Errorf("span from leg = %+v", fromLeg)
	}
}

// flaky fails a fixed number of times before delegating
type flaky struct {
	inner    timeline.SegmentProvider
	failures int
	err      error
	calls    int
}

func (f *flaky) Segments(ctx context.Context, o, dst types.Location) (*timeline.Leg, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.inner.Segments(ctx, o, dst)
}

func (f *flaky) Distance(ctx context.Context, from, to types.Location) (*timeline.Span, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.inner.Distance(ctx, from, to)
}

func newResilient(inner timeline.SegmentProvider, attempts int) *Resilient {
	return NewResilient(inner,
		WithMaxAttempts(attempts),
		WithInitialBackoff(time.Millisecond),
		WithTimeout(time.Second),
		WithLogger(zap.NewNop()),
	)
}

func TestResilientRetries(t *testing.T) {
	transientErr := stderrors.New("connection reset by peer")

	tests := []struct {
		name      string
		failures  int
		err       error
		attempts  int
		wantCalls int
		wantType  errors.Type
	}{
		{name: "succeeds first time", failures: 0, err: transientErr, attempts: 3, wantCalls: 1},
		{name: "recovers after transient failures", failures: 2, err: transientErr, attempts: 3, wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, err: transientErr, attempts: 3, wantCalls: 3, wantType: errors.TypeNetwork},
		{name: "domain errors are not retried", failures: 5, err: errors.Computation("bad data"), attempts: 3, wantCalls: 1, wantType: errors.TypeComputation},
		{name: "network domain errors are retried", failures: 1, err: errors.Network("503", nil), attempts: 3, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &flaky{inner: staticBerlinParis(), failures: tt.failures, err: tt.err}
			leg, err := newResilient(f, tt.attempts).Segments(context.Background(), berlin, paris)

			if f.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", f.calls, tt.wantCalls)
			}
			if tt.wantType == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(leg.Segments) != 2 {
					t.Errorf("segments = %d, want 2", len(leg.Segments))
				}
				return
			}
			if !errors.IsType(err, tt.wantType) {
				t.Errorf("error = %v, want %s", err, tt.wantType)
			}
		})
	}
}

func TestResilientStopsOnCancel(t *testing.T) {
	f := &flaky{inner: staticBerlinParis(), failures: 10, err: stderrors.New("timeout")}
	r := NewResilient(f, WithMaxAttempts(10), WithInitialBackoff(time.Hour), WithLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Distance(ctx, berlin, paris)
	if !errors.IsType(err, errors.TypeNetwork) {
		t.Errorf("error = %v, want NETWORK_ERROR", err)
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during backoff)", f.calls)
	}
}

func TestResilientPerAttemptTimeout(t *testing.T) {
	slow := &blocking{}
	r := NewResilient(slow, WithMaxAttempts(2), WithTimeout(5*time.Millisecond), WithInitialBackoff(0), WithLogger(zap.NewNop()))

	_, err := r.Segments(context.Background(), berlin, paris)
	if !errors.IsType(err, errors.TypeNetwork) {
		t.Errorf("error = %v, want NETWORK_ERROR", err)
	}
	if slow.calls != 2 {
		t.Errorf("calls = %d, want 2", slow.calls)
	}
}

// blocking waits for its context
type blocking struct{ calls int }

func (b *blocking) Segments(ctx context.Context, _, _ types.Location) (*timeline.Leg, error) {
	b.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blocking) Distance(ctx context.Context, _, _ types.Location) (*timeline.Span, error) {
	b.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuilderWithStaticProvider(t *testing.T) {
	p := staticBerlinParis()
	p.AddSpan(StaticSpan{From: poznan, To: berlin, DistanceKm: d("270"), DurationHours: d("3"), CountryCode: "PL"})

	pickup := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	b := timeline.NewBuilder(newResilient(p, 2), timeline.WithLogger(zap.NewNop()))
	route, err := b.Build(context.Background(), timeline.Request{
		Origin:                 berlin,
		Destination:            paris,
		TruckLocation:          &poznan,
		EmptyDrivingChargeable: true,
		PickupTime:             pickup,
		DeliveryTime:           pickup.Add(20 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if route.EmptyDrivingCountry() != "PL" || !route.DriverHours().Equal(d("15")) {
		t.Errorf("empty leg country %q, driver hours %s", route.EmptyDrivingCountry(), route.DriverHours())
	}
}

func TestStaticLegTotals(t *testing.T) {
	segments := []timeline.Segment{
		{CountryCode: "DE", DistanceKm: d("650.5"), DurationHours: d("7.5")},
		{CountryCode: "FR", DistanceKm: d("399.5"), DurationHours: d("4.5")},
	}
	pickup := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		distance decimal.NullDecimal
		wantErr  bool
	}{
		{name: "derived from segments"},
		{name: "reported total matches", distance: decimal.NewNullDecimal(d("1050"))},
		{name: "reported total disagrees", distance: decimal.NewNullDecimal(d("1100")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStaticProvider(StaticLeg{From: berlin, To: paris, Segments: segments, TotalDistanceKm: tt.distance})
			b := timeline.NewBuilder(p, timeline.WithLogger(zap.NewNop()))
			route, err := b.Build(context.Background(), timeline.Request{
				Origin:       berlin,
				Destination:  paris,
				PickupTime:   pickup,
				DeliveryTime: pickup.Add(20 * time.Hour),
			})
			if tt.wantErr {
				if !errors.IsType(err, errors.TypeComputation) {
					t.Fatalf("want %s, got %v", errors.TypeComputation, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !route.TotalDistanceKm.Equal(d("1050")) || !route.TotalDurationHours.Equal(d("12")) {
				t.Errorf("totals = %s km, %s h", route.TotalDistanceKm, route.TotalDurationHours)
			}
		})
	}
}
