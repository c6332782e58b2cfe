package domain

import "testing"

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "exact", in: 12.34, want: 12.34},
		{name: "round down", in: 12.344, want: 12.34},
		{name: "half rounds up", in: 12.345, want: 12.35},
		{name: "round up", in: 12.346, want: 12.35},
		{name: "zero", in: 0, want: 0},
		{name: "negative half", in: -12.345, want: -12.35},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Round2(tc.in); got != tc.want {
				t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want int64
	}{
		{name: "whole cedis", in: 45, want: 4500},
		{name: "two decimals", in: 45.67, want: 4567},
		{name: "float drift", in: 19.99, want: 1999},
		{name: "half cent rounds up", in: 0.005, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToMinorUnits(tc.in); got != tc.want {
				t.Fatalf("ToMinorUnits(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestFromMinorUnitsRoundTrip(t *testing.T) {
	if got := FromMinorUnits(ToMinorUnits(123.45)); got != 123.45 {
		t.Fatalf("round trip = %v, want 123.45", got)
	}
}
