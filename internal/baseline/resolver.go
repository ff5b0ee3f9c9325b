// Package baseline infers an athlete's functional threshold power and max
// heart rate as of a given activity date. The resolver is a pure function
// of the current baseline snapshot, the activity under processing, and a
// read-only view of the athlete's processed history; persistence of an
// updated snapshot is the caller's job.
package baseline

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jpanek/cyclingdatahub/internal/store"
)

// ftpFromPeakRatio estimates sustainable power from the best 20-minute effort
const ftpFromPeakRatio = 0.95

// RideFTPEstimate converts a 20-minute peak power into a ride-level FTP
// estimate. Returns 0 when there is no 20-minute peak.
func RideFTPEstimate(peak20m int) int {
	if peak20m <= 0 {
		return 0
	}
	return int(math.Round(float64(peak20m) * ftpFromPeakRatio))
}

// Outcome names the decision branch that produced a resolution. Detected
// baseline values may change only through OutcomeNewPeak, OutcomeDecay and
// OutcomeBootstrap.
type Outcome int

const (
	// OutcomeSteadyState: stored baseline valid as-is, nothing changed
	OutcomeSteadyState Outcome = iota
	// OutcomeTimeTravel: activity predates the stored detection, a
	// baseline was reconstructed from history before the activity
	OutcomeTimeTravel
	// OutcomeManualOverride: a manual value was in effect on the
	// activity date
	OutcomeManualOverride
	// OutcomeBootstrap: no baseline existed, one was established
	OutcomeBootstrap
	// OutcomeDecay: baseline was stale and relaxed toward recent history
	OutcomeDecay
	// OutcomeNewPeak: the ride beat the stored baseline
	OutcomeNewPeak
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSteadyState:
		return "steady_state"
	case OutcomeTimeTravel:
		return "time_travel"
	case OutcomeManualOverride:
		return "manual_override"
	case OutcomeBootstrap:
		return "bootstrap"
	case OutcomeDecay:
		return "decay"
	case OutcomeNewPeak:
		return "new_peak"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// HistoryView is the read-only query capability over an athlete's
// processed analytics the resolver needs. The store satisfies it.
type HistoryView interface {
	// BestPeak20m returns the best 20-minute peak power in [from, to),
	// or nil when the window holds no history.
	BestPeak20m(athleteID int64, from, to time.Time) (*store.PeakSample, error)
	// BestMaxHR returns the highest ride max heart rate in [from, to),
	// or nil when the window holds no history.
	BestMaxHR(athleteID int64, from, to time.Time) (*store.PeakSample, error)
}

// Input describes the activity under processing
type Input struct {
	AthleteID    int64
	ActivityID   int64
	ActivityDate time.Time

	// RideFTPEstimate is 0.95 x the ride's 20-minute peak, 0 when the
	// ride has no 20-minute effort
	RideFTPEstimate int
	// RideMaxHR is the highest heart-rate sample of the ride, 0 when
	// the ride has no heart-rate data
	RideMaxHR int
}

// Resolution is the resolved point-in-time baseline for one activity
type Resolution struct {
	FTP   int
	MaxHR int

	FTPOutcome Outcome
	HROutcome  Outcome

	// Baseline is the snapshot to persist when Changed is true. Time
	// travel and manual overrides never change the stored baseline.
	Baseline store.Athlete
	Changed  bool
}

// Resolver resolves baselines against a history view
type Resolver struct {
	History      HistoryView
	LookbackDays int
	DefaultFTP   int
	DefaultMaxHR int
	Logger       *slog.Logger
}

// NewResolver creates a resolver. A nil logger falls back to slog.Default.
func NewResolver(history HistoryView, lookbackDays, defaultFTP, defaultMaxHR int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		History:      history,
		LookbackDays: lookbackDays,
		DefaultFTP:   defaultFTP,
		DefaultMaxHR: defaultMaxHR,
		Logger:       logger,
	}
}

// Resolve evaluates the decision table once for the given activity:
// time-travel correction, then manual override, then the
// bootstrap/stale/new-peak transitions, then steady state.
func (r *Resolver) Resolve(snap store.Athlete, in Input) (Resolution, error) {
	// Priority 1: the stored baseline was detected from an activity
	// dated AFTER this one. It cannot be causally valid here; rebuild a
	// view from history strictly before this activity instead. The
	// stored baseline is left untouched.
	if snap.DetectedFTPAt != nil && in.ActivityDate.Before(*snap.DetectedFTPAt) {
		return r.resolveTimeTravel(snap, in)
	}

	// Priority 2: manual override in effect on the activity date
	if manualFTPActive(snap, in.ActivityDate) {
		return Resolution{
			FTP:        *snap.ManualFTP,
			MaxHR:      r.maxHRFallback(snap),
			FTPOutcome: OutcomeManualOverride,
			HROutcome:  OutcomeManualOverride,
			Baseline:   snap,
		}, nil
	}

	// Priority 3: no manual override applies; the detected baseline may
	// bootstrap, ratchet up on a new peak, or relax when stale.
	res := Resolution{Baseline: snap}

	ftpOutcome, err := r.resolveDetectedFTP(&res.Baseline, in)
	if err != nil {
		return Resolution{}, err
	}
	hrOutcome, err := r.resolveDetectedMaxHR(&res.Baseline, in)
	if err != nil {
		return Resolution{}, err
	}

	res.FTPOutcome = ftpOutcome
	res.HROutcome = hrOutcome
	res.Changed = ftpOutcome != OutcomeSteadyState || hrOutcome != OutcomeSteadyState

	res.FTP = r.DefaultFTP
	if res.Baseline.DetectedFTP != nil {
		res.FTP = *res.Baseline.DetectedFTP
	}
	res.MaxHR = r.maxHRFallback(res.Baseline)

	return res, nil
}

// resolveTimeTravel reconstructs a baseline as of the activity date from
// the lookback window ending right before it. Without any history this is
// a cold-start backfill: system defaults apply, with the detection time
// pushed far enough back that the manual/staleness rules see a long-stale
// baseline.
func (r *Resolver) resolveTimeTravel(snap store.Athlete, in Input) (Resolution, error) {
	from := in.ActivityDate.AddDate(0, 0, -r.LookbackDays)

	working := snap
	working.DetectedFTP = nil
	working.DetectedFTPSourceActivity = nil
	working.DetectedFTPAt = nil
	working.DetectedMaxHR = nil
	working.DetectedMaxHRAt = nil

	best, err := r.History.BestPeak20m(in.AthleteID, from, in.ActivityDate)
	if err != nil {
		return Resolution{}, fmt.Errorf("reconstructing ftp history: %w", err)
	}
	if best != nil {
		est := RideFTPEstimate(best.Value)
		working.DetectedFTP = &est
		working.DetectedFTPSourceActivity = &best.ActivityID
		at := best.Date
		working.DetectedFTPAt = &at
	}

	bestHR, err := r.History.BestMaxHR(in.AthleteID, from, in.ActivityDate)
	if err != nil {
		return Resolution{}, fmt.Errorf("reconstructing max hr history: %w", err)
	}
	if bestHR != nil {
		hr := bestHR.Value
		working.DetectedMaxHR = &hr
		at := bestHR.Date
		working.DetectedMaxHRAt = &at
	}

	if best == nil && bestHR == nil {
		// Cold-start backfill: nothing processed before this ride yet
		r.Logger.Warn("baseline reconstruction found no history, using defaults",
			"athlete_id", in.AthleteID,
			"activity_id", in.ActivityID,
			"activity_date", in.ActivityDate.Format("2006-01-02"))
		farPast := in.ActivityDate.AddDate(0, 0, -2*r.LookbackDays)
		working.DetectedFTPAt = &farPast
		working.DetectedMaxHRAt = &farPast
	}

	res := Resolution{
		FTPOutcome: OutcomeTimeTravel,
		HROutcome:  OutcomeTimeTravel,
		Baseline:   snap, // stored baseline stays as-is
	}

	// The manual override can still win if it was in effect by this date
	if manualFTPActive(working, in.ActivityDate) {
		res.FTP = *working.ManualFTP
		res.FTPOutcome = OutcomeManualOverride
	} else if working.DetectedFTP != nil {
		res.FTP = *working.DetectedFTP
	} else {
		res.FTP = r.DefaultFTP
	}
	res.MaxHR = r.maxHRFallback(working)

	return res, nil
}

// resolveDetectedFTP applies the bootstrap / stale / new-peak transitions
// to the snapshot's detected FTP and reports which one fired.
func (r *Resolver) resolveDetectedFTP(snap *store.Athlete, in Input) (Outcome, error) {
	missing := snap.DetectedFTP == nil
	stale := isStale(snap.DetectedFTPAt, in.ActivityDate, r.LookbackDays)
	newPeak := in.RideFTPEstimate > 0 && (missing || in.RideFTPEstimate > *snap.DetectedFTP)

	switch {
	case newPeak:
		// The ride itself sets the bar
		est := in.RideFTPEstimate
		snap.DetectedFTP = &est
		snap.DetectedFTPSourceActivity = &in.ActivityID
		at := in.ActivityDate
		snap.DetectedFTPAt = &at
		if missing {
			return OutcomeBootstrap, nil
		}
		return OutcomeNewPeak, nil

	case missing || stale:
		// Graceful decay: relax toward the best of recent history, never
		// below what this ride itself showed
		from := in.ActivityDate.AddDate(0, 0, -r.LookbackDays)
		best, err := r.History.BestPeak20m(in.AthleteID, from, in.ActivityDate)
		if err != nil {
			return 0, fmt.Errorf("querying ftp lookback: %w", err)
		}

		value := in.RideFTPEstimate
		if best != nil {
			if est := RideFTPEstimate(best.Value); est > value {
				value = est
			}
		}
		if value <= 0 {
			// No power anywhere in reach; keep whatever is stored and
			// fall back to defaults at read time
			return OutcomeSteadyState, nil
		}

		snap.DetectedFTP = &value
		snap.DetectedFTPSourceActivity = &in.ActivityID
		at := in.ActivityDate
		snap.DetectedFTPAt = &at
		if missing {
			return OutcomeBootstrap, nil
		}
		return OutcomeDecay, nil

	default:
		return OutcomeSteadyState, nil
	}
}

// resolveDetectedMaxHR mirrors resolveDetectedFTP for the max heart rate,
// with its own independent staleness and peak tests.
func (r *Resolver) resolveDetectedMaxHR(snap *store.Athlete, in Input) (Outcome, error) {
	missing := snap.DetectedMaxHR == nil
	stale := isStale(snap.DetectedMaxHRAt, in.ActivityDate, r.LookbackDays)
	newPeak := in.RideMaxHR > 0 && (missing || in.RideMaxHR > *snap.DetectedMaxHR)

	switch {
	case newPeak:
		hr := in.RideMaxHR
		snap.DetectedMaxHR = &hr
		at := in.ActivityDate
		snap.DetectedMaxHRAt = &at
		if missing {
			return OutcomeBootstrap, nil
		}
		return OutcomeNewPeak, nil

	case missing || stale:
		from := in.ActivityDate.AddDate(0, 0, -r.LookbackDays)
		best, err := r.History.BestMaxHR(in.AthleteID, from, in.ActivityDate)
		if err != nil {
			return 0, fmt.Errorf("querying max hr lookback: %w", err)
		}

		value := in.RideMaxHR
		if best != nil && best.Value > value {
			value = best.Value
		}
		if value <= 0 {
			return OutcomeSteadyState, nil
		}

		snap.DetectedMaxHR = &value
		at := in.ActivityDate
		snap.DetectedMaxHRAt = &at
		if missing {
			return OutcomeBootstrap, nil
		}
		return OutcomeDecay, nil

	default:
		return OutcomeSteadyState, nil
	}
}

// maxHRFallback resolves max heart rate manual -> detected -> default
func (r *Resolver) maxHRFallback(snap store.Athlete) int {
	if snap.ManualMaxHR != nil {
		return *snap.ManualMaxHR
	}
	if snap.DetectedMaxHR != nil {
		return *snap.DetectedMaxHR
	}
	return r.DefaultMaxHR
}

// manualFTPActive reports whether a manual FTP was in effect on date. A
// manual value without an effective date counts as always in effect.
func manualFTPActive(snap store.Athlete, date time.Time) bool {
	if snap.ManualFTP == nil {
		return false
	}
	if snap.ManualFTPEffectiveAt == nil {
		return true
	}
	return !date.Before(*snap.ManualFTPEffectiveAt)
}

// isStale reports whether a detection timestamp fell out of the lookback
// window relative to the activity date.
func isStale(detectedAt *time.Time, activityDate time.Time, lookbackDays int) bool {
	if detectedAt == nil {
		return false
	}
	return detectedAt.Before(activityDate.AddDate(0, 0, -lookbackDays))
}
