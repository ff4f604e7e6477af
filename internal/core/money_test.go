package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		out   float64
		set   bool
		valid bool
	}{
		{"1", 1, true, true},
		{"1.23", 1.23, true, true},
		{"1,23", 1.23, true, true},
		{" 2.50 ", 2.5, true, true},
		{"0", 0, true, true},
		{"", 0, false, true},
		{"   ", 0, false, true},
		{"-1", 0, false, false},
		{"abc", 0, false, false},
		{"1.2.3", 0, false, false},
	}
	for _, tc := range cases {
		got, set, err := ParseAmount(tc.in)
		if tc.valid {
			if err != nil || got != tc.out || set != tc.set {
				t.Fatalf("%q expected (%v,%v), got (%v,%v) err=%v", tc.in, tc.out, tc.set, got, set, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestRounding(t *testing.T) {
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"round2 half away from zero", Round2(1.005), 1.01},
		{"round2 keeps exact", Round2(1000), 1000},
		{"round1 half", Round1(12.25), 12.3},
		{"round1 down", Round1(33.333), 33.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestDerivedTarget(t *testing.T) {
	tests := []struct {
		salary float64
		want   float64
	}{
		{299, 1000},
		{0, 0},
		{-5, 0},
		{150, 501.67},
	}
	for _, tt := range tests {
		if got := DerivedTarget(tt.salary); got != tt.want {
			t.Errorf("DerivedTarget(%v) = %v, want %v", tt.salary, got, tt.want)
		}
	}

	// Recomputing from an unchanged total gives the same value.
	first := DerivedTarget(1234.56)
	if second := DerivedTarget(1234.56); first != second {
		t.Errorf("derived target not stable: %v then %v", first, second)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(500, 1000); got != 50 {
		t.Errorf("Percent(500,1000) = %v, want 50", got)
	}
	if got := Percent(150, 500); got != 30 {
		t.Errorf("Percent(150,500) = %v, want 30", got)
	}
	if got := Percent(10, 0); got != 0 {
		t.Errorf("Percent with zero whole = %v, want 0", got)
	}
}
