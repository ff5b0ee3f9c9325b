package analysis

import "math"

// decouplingMinSamples is the minimum ride length (~10 minutes) for a
// meaningful first-half/second-half comparison.
const decouplingMinSamples = 600

// AerobicDecoupling compares the efficiency factor (mean power / mean
// heart rate) of the first and second half of a ride and returns the drop
// as a percentage, rounded to 2 decimals. Values above ~5% suggest the
// aerobic system faded. Returns nil when either series is too short to
// split cleanly, 0 when the first half produced no usable efficiency.
func AerobicDecoupling(watts, heartrate []float64) *float64 {
	if len(watts) < decouplingMinSamples || len(heartrate) < len(watts) {
		return nil
	}

	mid := len(watts) / 2
	ef1 := efficiency(watts[:mid], heartrate[:mid])
	ef2 := efficiency(watts[mid:], heartrate[mid:len(watts)])

	var decoupling float64
	if ef1 != 0 {
		decoupling = (ef1 - ef2) / ef1 * 100
		decoupling = math.Round(decoupling*100) / 100
	}
	return &decoupling
}

// efficiency is mean power over mean heart rate, 0 when heart rate is absent
func efficiency(watts, heartrate []float64) float64 {
	avgHR := mean(heartrate)
	if avgHR <= 0 {
		return 0
	}
	return mean(watts) / avgHR
}
