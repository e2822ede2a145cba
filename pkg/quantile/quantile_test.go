package quantile

import (
	"math/rand"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"p-notation p50", "p50", 0.50, false},
		{"p-notation p25", "p25", 0.25, false},
		{"p-notation uppercase", "P75", 0.75, false},
		{"decimal", "0.9", 0.9, false},
		{"decimal with spaces", " 0.25 ", 0.25, false},
		{"zero", "0", 0, true},
		{"one", "1", 0, true},
		{"p100", "p100", 0, true},
		{"negative", "-0.5", 0, true},
		{"empty", "", 0, true},
		{"garbage", "median", 0, true},
		{"bad p-notation", "pfifty", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatLevel(t *testing.T) {
	tests := []struct {
		level float64
		want  string
	}{
		{0.25, "p25"},
		{0.50, "p50"},
		{0.75, "p75"},
		{0.975, "p97.5"},
	}

	for _, tt := range tests {
		if got := FormatLevel(tt.level); got != tt.want {
			t.Errorf("FormatLevel(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestCorrectCrossing(t *testing.T) {
	tests := []struct {
		name string
		raw  map[float64]float64
		want map[float64]float64
	}{
		{
			name: "middle quantile crosses below",
			raw:  map[float64]float64{0.25: 120000, 0.5: 115000, 0.75: 130000},
			want: map[float64]float64{0.25: 120000, 0.5: 120000, 0.75: 130000},
		},
		{
			name: "already ordered",
			raw:  map[float64]float64{0.25: 100, 0.5: 110, 0.75: 120},
			want: map[float64]float64{0.25: 100, 0.5: 110, 0.75: 120},
		},
		{
			name: "all descending collapse to first",
			raw:  map[float64]float64{0.1: 50, 0.5: 40, 0.9: 30},
			want: map[float64]float64{0.1: 50, 0.5: 50, 0.9: 50},
		},
		{
			name: "single level",
			raw:  map[float64]float64{0.5: 99},
			want: map[float64]float64{0.5: 99},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CorrectCrossing(tt.raw)
			for q, want := range tt.want {
				if got[q] != want {
					t.Errorf("corrected[%v] = %v, want %v", q, got[q], want)
				}
			}
		})
	}
}

func TestCorrectCrossing_AlwaysMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := []float64{0.1, 0.25, 0.5, 0.75, 0.9}

	for trial := 0; trial < 200; trial++ {
		raw := make(map[float64]float64, len(levels))
		for _, q := range levels {
			raw[q] = rng.NormFloat64() * 1000
		}

		corrected := CorrectCrossing(raw)

		prev := corrected[levels[0]]
		for _, q := range levels[1:] {
			if corrected[q] < prev {
				t.Fatalf("trial %d: corrected[%v] = %v < corrected at previous level %v", trial, q, corrected[q], prev)
			}
			if corrected[q] < raw[q] {
				t.Fatalf("trial %d: corrected[%v] = %v below raw %v", trial, q, corrected[q], raw[q])
			}
			prev = corrected[q]
		}
	}
}
