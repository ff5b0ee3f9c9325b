// Package service orchestrates analytics processing: deriving per-activity
// metrics from raw streams, resolving the athlete baseline, and keeping
// everything downstream consistent when history changes.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jpanek/cyclingdatahub/internal/analysis"
	"github.com/jpanek/cyclingdatahub/internal/baseline"
	"github.com/jpanek/cyclingdatahub/internal/store"
)

// FitnessLedger recomputes the daily CTL/ATL/TSB timeline forward from a
// date. It is invoked after every successful recalculation batch.
type FitnessLedger interface {
	RecomputeFrom(athleteID int64, from time.Time) (int, error)
}

// AnalyticsService derives and maintains per-activity analytics records
type AnalyticsService struct {
	store    *store.DB
	resolver *baseline.Resolver
	ledger   FitnessLedger
	logger   *slog.Logger
	workers  int
}

// NewAnalyticsService creates the analytics service. workers bounds how
// many athletes may drain concurrently; processing within one athlete is
// always sequential. A nil logger falls back to slog.Default.
func NewAnalyticsService(db *store.DB, resolver *baseline.Resolver, ledger FitnessLedger, workers int, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &AnalyticsService{
		store:    db,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
		workers:  workers,
	}
}

// ProcessActivity computes and persists the analytics record of one
// activity. Returns false without error when the record already exists
// (and force is off) or when no stream data is available yet; the caller
// may retry once streams arrive. The record is built fully in memory and
// written in a single upsert.
func (s *AnalyticsService) ProcessActivity(activityID int64, force bool) (bool, error) {
	if !force {
		exists, err := s.store.HasAnalytics(activityID)
		if err != nil {
			return false, fmt.Errorf("checking existing analytics: %w", err)
		}
		if exists {
			return false, nil
		}
	}

	activity, err := s.store.GetActivity(activityID)
	if err != nil {
		return false, fmt.Errorf("loading activity %d: %w", activityID, err)
	}

	streams, err := s.store.GetStreams(activityID)
	if errors.Is(err, store.ErrStreamsNotFound) {
		s.logger.Debug("no streams for activity, skipping",
			"activity_id", activityID, "athlete_id", activity.AthleteID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading streams for %d: %w", activityID, err)
	}

	watts := streams.Watts
	heartrate := streams.Heartrate

	weighted := analysis.WeightedPower(watts)
	bests := analysis.IntervalBests(watts, heartrate, analysis.PeakWindows)
	vam := analysis.MaxVAM(streams.Altitude)
	decoupling := analysis.AerobicDecoupling(watts, heartrate)

	rideFTP := 0
	if b := bests["20m"]; b.PeakPower != nil {
		rideFTP = baseline.RideFTPEstimate(*b.PeakPower)
	}
	rideMaxHR := analysis.MaxSample(heartrate)

	res, err := s.resolveBaseline(activity, rideFTP, rideMaxHR)
	if err != nil {
		return false, err
	}

	meanPower := analysis.Mean(watts)
	meanHR := analysis.Mean(heartrate)

	variability := 1.0
	if meanPower > 0 {
		variability = round2(float64(weighted) / meanPower)
	}

	efficiency := 0.0
	if meanHR > 0 {
		efficiency = round2(float64(weighted) / meanHR)
	}

	intensity := 0.0
	stress := 0.0
	if res.FTP > 0 {
		intensity = round2(float64(weighted) / float64(res.FTP))

		duration := activity.MovingTime
		if duration <= 0 {
			duration = len(watts)
		}
		stress = round1(float64(duration) * float64(weighted) * intensity /
			(float64(res.FTP) * 3600) * 100)
	}

	record := &store.AnalyticsRecord{
		ActivityID:        activityID,
		Peak5s:            bests["5s"].PeakPower,
		Peak1m:            bests["1m"].PeakPower,
		Peak5m:            bests["5m"].PeakPower,
		Peak20m:           bests["20m"].PeakPower,
		Peak5sHR:          bests["5s"].PeakHR,
		Peak1mHR:          bests["1m"].PeakHR,
		Peak5mHR:          bests["5m"].PeakHR,
		Peak20mHR:         bests["20m"].PeakHR,
		WeightedAvgPower:  weighted,
		BaselineFTP:       res.FTP,
		MaxVAM:            vam,
		AerobicDecoupling: decoupling,
		VariabilityIndex:  variability,
		EfficiencyFactor:  efficiency,
		IntensityScore:    intensity,
		TrainingStress:    stress,
		PowerCurve:        analysis.PowerCurve(watts, analysis.CurveDurations),
	}
	if rideMaxHR > 0 {
		record.MaxHR = &rideMaxHR
	}

	if err := s.store.UpsertAnalytics(record); err != nil {
		return false, fmt.Errorf("persisting analytics for %d: %w", activityID, err)
	}

	s.logger.Debug("activity processed",
		"activity_id", activityID,
		"athlete_id", activity.AthleteID,
		"baseline_ftp", res.FTP,
		"baseline_outcome", res.FTPOutcome.String(),
		"weighted_power", weighted)

	return true, nil
}

// resolveBaseline loads the athlete's baseline snapshot, runs the resolver
// for this activity, and persists the snapshot when a detected value moved.
func (s *AnalyticsService) resolveBaseline(activity *store.Activity, rideFTP, rideMaxHR int) (baseline.Resolution, error) {
	athlete, err := s.store.GetAthlete(activity.AthleteID)
	if errors.Is(err, store.ErrAthleteNotFound) {
		// Ingestion normally creates the row first; cover stray activities
		athlete = &store.Athlete{ID: activity.AthleteID}
		if err := s.store.UpsertAthlete(athlete); err != nil {
			return baseline.Resolution{}, fmt.Errorf("creating athlete %d: %w", activity.AthleteID, err)
		}
	} else if err != nil {
		return baseline.Resolution{}, fmt.Errorf("loading athlete %d: %w", activity.AthleteID, err)
	}

	res, err := s.resolver.Resolve(*athlete, baseline.Input{
		AthleteID:       activity.AthleteID,
		ActivityID:      activity.ID,
		ActivityDate:    activity.StartDateLocal,
		RideFTPEstimate: rideFTP,
		RideMaxHR:       rideMaxHR,
	})
	if err != nil {
		return baseline.Resolution{}, fmt.Errorf("resolving baseline for %d: %w", activity.ID, err)
	}

	if res.Changed {
		if err := s.store.UpdateDetectedBaseline(activity.AthleteID, &res.Baseline); err != nil {
			return baseline.Resolution{}, fmt.Errorf("persisting baseline for athlete %d: %w", activity.AthleteID, err)
		}
	}

	return res, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
