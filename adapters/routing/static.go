// Package routing provides segment providers for the timeline builder.
package routing

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"transport-cost/core/timeline"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// StaticLeg is a precomputed answer for one origin/destination pair
type StaticLeg struct {
	From, To types.Location
	Segments []timeline.Segment

	// Totals as reported by the provider; unset totals are the segment sums
	TotalDistanceKm    decimal.NullDecimal
	TotalDurationHours decimal.NullDecimal
}

// StaticSpan is a precomputed point-to-point distance
type StaticSpan struct {
	From, To      types.Location
	DistanceKm    decimal.Decimal
	DurationHours decimal.Decimal
	CountryCode   string
}

// StaticProvider answers from a fixed table. Used for one-shot quotes where
// the caller already knows the country breakdown, and in tests.
type StaticProvider struct {
	mu    sync.RWMutex
	legs  map[string]timeline.Leg
	spans map[string]timeline.Span
}

// NewStaticProvider creates a provider from known legs
func NewStaticProvider(legs ...StaticLeg) *StaticProvider {
	p := &StaticProvider{
		legs:  make(map[string]timeline.Leg, len(legs)),
		spans: make(map[string]timeline.Span),
	}
	for _, l := range legs {
		p.AddLeg(l)
	}
	return p
}

// AddLeg registers a leg. Totals left unset default to the segment sums.
func (p *StaticProvider) AddLeg(l StaticLeg) {
	leg := timeline.Leg{Segments: append([]timeline.Segment(nil), l.Segments...)}
	for _, s := range l.Segments {
		leg.TotalDistanceKm = leg.TotalDistanceKm.Add(s.DistanceKm)
		leg.TotalDurationHours = leg.TotalDurationHours.Add(s.DurationHours)
	}
	if l.TotalDistanceKm.Valid {
		leg.TotalDistanceKm = l.TotalDistanceKm.Decimal
	}
	if l.TotalDurationHours.Valid {
		leg.TotalDurationHours = l.TotalDurationHours.Decimal
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.legs[pairKey(l.From, l.To)] = leg
}

// AddSpan registers a point-to-point distance
func (p *StaticProvider) AddSpan(s StaticSpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans[pairKey(s.From, s.To)] = timeline.Span{
		DistanceKm:    s.DistanceKm,
		DurationHours: s.DurationHours,
		CountryCode:   s.CountryCode,
	}
}

// Segments implements timeline.SegmentProvider
func (p *StaticProvider) Segments(ctx context.Context, origin, destination types.Location) (*timeline.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	leg, ok := p.legs[pairKey(origin, destination)]
	if !ok {
		return nil, errors.NotFound("route leg", fmt.Sprintf("%s -> %s", label(origin), label(destination)))
	}
	out := leg
	out.Segments = append([]timeline.Segment(nil), leg.Segments...)
	return &out, nil
}

// Distance implements timeline.SegmentProvider. A registered leg between the
// same points answers as well, with the first segment's country.
func (p *StaticProvider) Distance(ctx context.Context, from, to types.Location) (*timeline.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := pairKey(from, to)
	if s, ok := p.spans[key]; ok {
		out := s
		return &out, nil
	}
	if leg, ok := p.legs[key]; ok {
		span := &timeline.Span{DistanceKm: leg.TotalDistanceKm, DurationHours: leg.TotalDurationHours}
		if len(leg.Segments) > 0 {
			span.CountryCode = leg.Segments[0].CountryCode
		}
		return span, nil
	}
	return nil, errors.NotFound("distance", fmt.Sprintf("%s -> %s", label(from), label(to)))
}

// pairKey matches locations by coordinates rounded to five decimals (about 1 m)
func pairKey(from, to types.Location) string {
	return coord(from) + "|" + coord(to)
}

func coord(l types.Location) string {
	return strconv.FormatFloat(l.Latitude, 'f', 5, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', 5, 64)
}

func label(l types.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return coord(l)
}
