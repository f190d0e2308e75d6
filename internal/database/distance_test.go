package database

import (
	"math"
	"testing"
)

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.6, 0.8}, []float32{0.6, 0.8}, 0},
		{"orthogonal unit vectors", []float32{1, 0}, []float32{0, 1}, math.Sqrt2},
		{"opposite unit vectors", []float32{1, 0}, []float32{-1, 0}, 2},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"length mismatch", []float32{1, 0}, []float32{1}, math.Inf(1)},
		{"empty", nil, nil, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := L2Distance(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("L2Distance() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("L2Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize() = %v, want [0.6 0.8]", v)
	}

	zero := Normalize([]float32{0, 0, 0})
	for i, x := range zero {
		if x != 0 {
			t.Errorf("zero[%d] = %v, want 0", i, x)
		}
	}
}

func TestIdentityName(t *testing.T) {
	tests := []struct {
		identity Identity
		want     string
	}{
		{Identity{FirstName: "Kamal", LastName: "Perera"}, "Kamal Perera"},
		{Identity{FirstName: "Kamal"}, "Kamal"},
		{Identity{LastName: "Perera"}, "Perera"},
	}
	for _, tt := range tests {
		if got := tt.identity.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
