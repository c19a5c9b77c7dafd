package geo

import (
	"math"
	"testing"
)

func TestDistanceMetersKnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // meters
		tolerance              float64 // relative
	}{
		{"same point", 44.7866, 20.4489, 44.7866, 20.4489, 0, 0},
		// One degree of latitude is ~111.2 km everywhere.
		{"one degree latitude", 0, 0, 1, 0, 111195, 0.01},
		// Belgrade fortress to Saint Sava temple, ~2.5 km.
		{"across belgrade", 44.8227, 20.4504, 44.7980, 20.4690, 3100, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if tt.want == 0 {
				if got != 0 {
					t.Fatalf("expected 0, got %f", got)
				}
				return
			}
			if diff := math.Abs(got-tt.want) / tt.want; diff > tt.tolerance {
				t.Errorf("distance = %f, want %f within %.0f%%", got, tt.want, tt.tolerance*100)
			}
		})
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	a := DistanceMeters(44.8, 20.4, 44.9, 20.5)
	b := DistanceMeters(44.9, 20.5, 44.8, 20.4)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestDistanceMetersInvalidInput(t *testing.T) {
	cases := [][4]float64{
		{math.NaN(), 0, 0, 0},
		{0, math.Inf(1), 0, 0},
		{0, 0, 91, 0},
		{0, 0, 0, -181},
	}
	for _, c := range cases {
		got := DistanceMeters(c[0], c[1], c[2], c[3])
		if !math.IsInf(got, 1) {
			t.Errorf("DistanceMeters(%v) = %f, want +Inf", c, got)
		}
	}
}
