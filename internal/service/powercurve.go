package service

import (
	"fmt"
	"time"
)

// rollingPeakWindow is the trailing window of the "recent" peak series
const rollingPeakWindow = 30 * 24 * time.Hour

// BestPowerEnvelope merges the power curves of all activities in range
// into the best-ever watts per duration. The merge is an associative max,
// so activity order does not matter. sinceMonths <= 0 means all time.
func (s *AnalyticsService) BestPowerEnvelope(athleteID int64, sinceMonths int) (map[int]int, error) {
	var since time.Time
	if sinceMonths > 0 {
		since = time.Now().AddDate(0, -sinceMonths, 0)
	}

	curves, err := s.store.PowerCurvesSince(athleteID, since)
	if err != nil {
		return nil, fmt.Errorf("loading power curves for athlete %d: %w", athleteID, err)
	}

	envelope := make(map[int]int)
	for _, c := range curves {
		for duration, watts := range c.Curve {
			if watts > envelope[duration] {
				envelope[duration] = watts
			}
		}
	}
	return envelope, nil
}

// SeasonalPoint is one peak observation annotated with the running maxima
// a progression chart needs.
type SeasonalPoint struct {
	ActivityID int64
	Date       time.Time
	Value      int

	// AllTimeMax is the best value up to and including this point
	AllTimeMax int
	// Rolling30Day is the best value in the 30 days ending at this point
	Rolling30Day int
}

// SeasonalSeries is the progression of one fixed peak interval
type SeasonalSeries struct {
	Label  string
	Points []SeasonalPoint

	// RecentPeak is the best value within the last 30 days from today
	RecentPeak int
}

// SeasonalSeries builds the progression series of one interval label
// ("5s", "1m", "5m", "20m"): per observation the all-time max so far and
// the trailing 30-day max, plus the single recent peak for summaries.
func (s *AnalyticsService) SeasonalSeries(athleteID int64, label string) (*SeasonalSeries, error) {
	samples, err := s.store.PeakSeries(athleteID, label)
	if err != nil {
		return nil, fmt.Errorf("loading %s peak series for athlete %d: %w", label, athleteID, err)
	}

	series := &SeasonalSeries{Label: label}

	allTimeMax := 0
	for i, sample := range samples {
		if sample.Value > allTimeMax {
			allTimeMax = sample.Value
		}

		// Scan backward until a sample falls outside the trailing window
		rolling := sample.Value
		cutoff := sample.Date.Add(-rollingPeakWindow)
		for j := i - 1; j >= 0; j-- {
			if samples[j].Date.Before(cutoff) {
				break
			}
			if samples[j].Value > rolling {
				rolling = samples[j].Value
			}
		}

		series.Points = append(series.Points, SeasonalPoint{
			ActivityID:   sample.ActivityID,
			Date:         sample.Date,
			Value:        sample.Value,
			AllTimeMax:   allTimeMax,
			Rolling30Day: rolling,
		})
	}

	recentCutoff := time.Now().Add(-rollingPeakWindow)
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Date.Before(recentCutoff) {
			break
		}
		if samples[i].Value > series.RecentPeak {
			series.RecentPeak = samples[i].Value
		}
	}

	return series, nil
}
