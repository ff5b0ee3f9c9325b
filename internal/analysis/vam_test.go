package analysis

import "testing"

func TestMaxVAM(t *testing.T) {
	tests := []struct {
		name     string
		altitude []float64
		expected int
	}{
		{
			name:     "empty series",
			altitude: nil,
			expected: 0,
		},
		{
			name:     "exactly window length is not enough",
			altitude: constantSeries(300, 500),
			expected: 0,
		},
		{
			name:     "flat road",
			altitude: constantSeries(400, 500),
			expected: 0,
		},
		{
			name: "steady climb at 0.125 m/s",
			altitude: func() []float64 {
				s := make([]float64, 600)
				for i := range s {
					s[i] = 500 + 0.125*float64(i)
				}
				return s
			}(),
			// 37.5m gained over any 300-sample window, * 12 = 450 m/h
			expected: 450,
		},
		{
			name: "climb then descent keeps the climb rate",
			altitude: func() []float64 {
				s := make([]float64, 900)
				for i := 0; i < 450; i++ {
					s[i] = 500 + 0.25*float64(i)
				}
				for i := 450; i < 900; i++ {
					s[i] = s[449] - 0.5*float64(i-449)
				}
				return s
			}(),
			// best window is fully on the 0.25 m/s climb: 75m * 12
			expected: 900,
		},
		{
			name: "pure descent is negative",
			altitude: func() []float64 {
				s := make([]float64, 400)
				for i := range s {
					s[i] = 1000 - 0.5*float64(i)
				}
				return s
			}(),
			expected: -1800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxVAM(tt.altitude)
			if got != tt.expected {
				t.Errorf("MaxVAM() = %d, want %d", got, tt.expected)
			}
		})
	}
}
