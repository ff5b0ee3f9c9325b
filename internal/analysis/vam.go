package analysis

// vamWindow is the climb window in samples (~5 minutes at 1Hz)
const vamWindow = 300

// MaxVAM computes the maximum vertical ascent rate in meters per hour:
// elevation gain over a 300-sample sliding window scaled to an hourly
// rate. Returns 0 below 300 samples or when no complete window exists.
func MaxVAM(altitude []float64) int {
	if len(altitude) <= vamWindow {
		return 0
	}

	// gain over 5 minutes * 12 = meters per hour
	max := 0.0
	first := true
	for i := vamWindow; i < len(altitude); i++ {
		vam := (altitude[i] - altitude[i-vamWindow]) * 12
		if first || vam > max {
			max = vam
			first = false
		}
	}

	return int(max)
}
