package analysis

import "math"

// smoothingWindow is the rolling-average window applied before the
// 4th-power weighting, in samples (~seconds).
const smoothingWindow = 30

// PeakWindows are the fixed intervals reported on every analytics record
var PeakWindows = map[string]int{
	"5s":  5,
	"1m":  60,
	"5m":  300,
	"20m": 1200,
}

// CurveDurations is the extended duration set of the per-activity power
// curve, in seconds.
var CurveDurations = []int{1, 2, 5, 10, 30, 60, 120, 300, 600, 900, 1200, 1800, 3600}

// WeightedPower computes an xPower / normalized-power style average that
// penalizes variability: 30-sample rolling mean, 4th power, mean, 4th
// root, truncated to watts. Returns 0 below 30 samples.
func WeightedPower(watts []float64) int {
	if len(watts) < smoothingWindow {
		return 0
	}

	rolling := rollingMean(watts, smoothingWindow)

	var sum float64
	for _, v := range rolling {
		p := v * v
		sum += p * p
	}
	weighted := math.Pow(sum/float64(len(rolling)), 0.25)
	return int(weighted)
}

// IntervalBest holds the peak power of one window and the mean heart rate
// over the exact same sample window. Either value is nil when the input
// does not cover the window.
type IntervalBest struct {
	PeakPower *int
	PeakHR    *int
}

// IntervalBests finds, for each named window, the location of the peak
// rolling-average power and reports the power together with the heart rate
// averaged over the identical index range. Power and heart rate always
// describe the same stretch of the ride.
func IntervalBests(watts, heartrate []float64, windows map[string]int) map[string]IntervalBest {
	results := make(map[string]IntervalBest, len(windows))

	for label, window := range windows {
		peak, idx, ok := peakWindow(watts, window)
		if !ok {
			results[label] = IntervalBest{}
			continue
		}

		power := int(math.Round(peak))
		best := IntervalBest{PeakPower: &power}

		// Same index window, only if the heart-rate array covers it
		if idx+window <= len(heartrate) {
			hr := int(math.Round(mean(heartrate[idx : idx+window])))
			best.PeakHR = &hr
		}
		results[label] = best
	}

	return results
}

// PowerCurve returns the best mean power per duration for every duration
// the activity is long enough to cover.
func PowerCurve(watts []float64, durations []int) map[int]int {
	curve := make(map[int]int)
	for _, d := range durations {
		peak, _, ok := peakWindow(watts, d)
		if !ok {
			continue
		}
		curve[d] = int(math.Round(peak))
	}
	return curve
}

// peakWindow returns the maximum rolling mean over the given window and
// the start index of that window. ok is false when the series is shorter
// than the window.
func peakWindow(series []float64, window int) (peak float64, idx int, ok bool) {
	if window <= 0 || len(series) < window {
		return 0, 0, false
	}

	var sum float64
	for i := 0; i < window; i++ {
		sum += series[i]
	}
	peak = sum
	idx = 0

	for i := window; i < len(series); i++ {
		sum += series[i] - series[i-window]
		if sum > peak {
			peak = sum
			idx = i - window + 1
		}
	}

	return peak / float64(window), idx, true
}

// rollingMean computes the moving average of series over the window,
// producing len(series)-window+1 values.
func rollingMean(series []float64, window int) []float64 {
	out := make([]float64, 0, len(series)-window+1)

	var sum float64
	for i := 0; i < window; i++ {
		sum += series[i]
	}
	out = append(out, sum/float64(window))

	for i := window; i < len(series); i++ {
		sum += series[i] - series[i-window]
		out = append(out, sum/float64(window))
	}

	return out
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// Mean is the exported mean over a sample series; 0 for an empty series.
func Mean(series []float64) float64 {
	return mean(series)
}

// MaxSample returns the largest sample rounded to an integer, or 0 for an
// empty series.
func MaxSample(series []float64) int {
	if len(series) == 0 {
		return 0
	}
	max := series[0]
	for _, v := range series[1:] {
		if v > max {
			max = v
		}
	}
	return int(math.Round(max))
}
