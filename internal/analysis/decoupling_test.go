package analysis

import (
	"math"
	"testing"
)

func TestAerobicDecoupling(t *testing.T) {
	tests := []struct {
		name      string
		watts     []float64
		heartrate []float64
		wantNil   bool
		expected  float64
		delta     float64
	}{
		{
			name:    "empty streams",
			wantNil: true,
		},
		{
			name:      "below ten minutes",
			watts:     constantSeries(599, 200),
			heartrate: constantSeries(599, 150),
			wantNil:   true,
		},
		{
			name:      "heart rate shorter than power",
			watts:     constantSeries(700, 200),
			heartrate: constantSeries(650, 150),
			wantNil:   true,
		},
		{
			name:      "steady ride has no decoupling",
			watts:     constantSeries(1200, 200),
			heartrate: constantSeries(1200, 150),
			expected:  0,
			delta:     0.01,
		},
		{
			name:  "alternating effort is symmetric across halves",
			watts: alternatingSeries(1200, 150, 250),
			heartrate: constantSeries(1200, 150),
			expected:  0,
			delta:     0.01,
		},
		{
			name:  "HR drift in second half",
			watts: constantSeries(1200, 200),
			heartrate: func() []float64 {
				hr := make([]float64, 1200)
				for i := 0; i < 600; i++ {
					hr[i] = 150
				}
				for i := 600; i < 1200; i++ {
					hr[i] = 165
				}
				return hr
			}(),
			// ef1 = 200/150, ef2 = 200/165, drop = 1 - 150/165 = 9.09%
			expected: 9.09,
			delta:    0.01,
		},
		{
			name: "power fade at steady HR",
			watts: func() []float64 {
				w := make([]float64, 1200)
				for i := 0; i < 600; i++ {
					w[i] = 200
				}
				for i := 600; i < 1200; i++ {
					w[i] = 180
				}
				return w
			}(),
			heartrate: constantSeries(1200, 150),
			// ef drops from 200/150 to 180/150: exactly 10%
			expected: 10,
			delta:    0.01,
		},
		{
			name: "negative split goes negative",
			watts: func() []float64 {
				w := make([]float64, 1200)
				for i := 0; i < 600; i++ {
					w[i] = 180
				}
				for i := 600; i < 1200; i++ {
					w[i] = 198
				}
				return w
			}(),
			heartrate: constantSeries(1200, 150),
			expected:  -10,
			delta:     0.01,
		},
		{
			name:      "no heart rate signal yields zero",
			watts:     constantSeries(1200, 200),
			heartrate: constantSeries(1200, 0),
			expected:  0,
			delta:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AerobicDecoupling(tt.watts, tt.heartrate)
			if tt.wantNil {
				if got != nil {
					t.Errorf("AerobicDecoupling() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("AerobicDecoupling() = nil, want value")
			}
			if math.Abs(*got-tt.expected) > tt.delta {
				t.Errorf("AerobicDecoupling() = %v, want %v ± %v", *got, tt.expected, tt.delta)
			}
		})
	}
}

func TestAerobicDecouplingLongerHeartRate(t *testing.T) {
	// Heart rate arrays longer than power are trimmed to the power length
	watts := constantSeries(1200, 200)
	heartrate := constantSeries(1500, 150)

	got := AerobicDecoupling(watts, heartrate)
	if got == nil {
		t.Fatal("AerobicDecoupling() = nil, want value")
	}
	if math.Abs(*got) > 0.01 {
		t.Errorf("AerobicDecoupling() = %v, want 0", *got)
	}
}
