package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestIsTypeWalksWrappedChain(t *testing.T) {
	base := NotFound("cost settings", "route-1")
	wrapped := fmt.Errorf("load settings: %w", base)

	if !IsType(wrapped, TypeNotFound) {
		t.Fatal("expected wrapped error to be recognised as NOT_FOUND")
	}
	if IsType(wrapped, TypeValidation) {
		t.Fatal("wrapped NOT_FOUND must not match VALIDATION_ERROR")
	}
	if IsType(fmt.Errorf("plain"), TypeInternal) {
		t.Fatal("plain error must not match any domain type")
	}
}

func TestInvalidRatesSortsAndReportsAll(t *testing.T) {
	err := InvalidRates([]Violation{
		{Key: "toll_rate", RateType: "TOLL_RATE", Value: "9", Min: "0.10", Max: "2.00", Reason: "out of range"},
		{Key: "fuel_rate", RateType: "FUEL_RATE", Value: "0.1", Min: "0.50", Max: "5.00", Reason: "out of range"},
	})

	if err.Type != TypeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", err.Type)
	}
	if len(err.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(err.Violations))
	}
	if err.Violations[0].Key != "fuel_rate" {
		t.Errorf("expected violations sorted by key, first is %q", err.Violations[0].Key)
	}

	msg := err.Error()
	for _, want := range []string{"fuel_rate=0.1", "0.50..5.00", "toll_rate=9", "0.10..2.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q does not mention %q", msg, want)
		}
	}

	if got := ViolationsOf(fmt.Errorf("ctx: %w", err)); len(got) != 2 {
		t.Errorf("ViolationsOf through wrap = %d, want 2", len(got))
	}
}
