// Package fitimport loads activities from local FIT files recorded by a
// head unit. Imported rides go through the same invalidation path as any
// other out-of-order arrival, so analytics downstream of the ride date
// are recomputed.
package fitimport

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/jpanek/cyclingdatahub/internal/service"
	"github.com/jpanek/cyclingdatahub/internal/store"
)

// Importer decodes FIT files and registers them as activities
type Importer struct {
	store  *store.DB
	svc    *service.AnalyticsService
	logger *slog.Logger
}

// NewImporter creates a FIT file importer
func NewImporter(db *store.DB, svc *service.AnalyticsService, logger *slog.Logger) *Importer {
	return &Importer{store: db, svc: svc, logger: logger}
}

// ImportFile decodes one FIT activity file, stores the activity and its
// sample streams for athleteID, and flags the athlete's history from the
// ride date forward for recalculation. Returns the stored activity and
// the number of activities flagged.
func (im *Importer) ImportFile(path string, athleteID int64) (*store.Activity, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening FIT file: %w", err)
	}
	defer f.Close()

	decoded, err := fit.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	activityFile, err := decoded.Activity()
	if err != nil {
		return nil, 0, fmt.Errorf("%s is not an activity file: %w", filepath.Base(path), err)
	}
	if len(activityFile.Sessions) == 0 {
		return nil, 0, fmt.Errorf("%s has no session message", filepath.Base(path))
	}
	session := activityFile.Sessions[0]

	streams := BuildStreams(activityFile.Records)
	if len(streams.Time) == 0 {
		return nil, 0, fmt.Errorf("%s has no record messages", filepath.Base(path))
	}

	start := session.StartTime
	if start.IsZero() || fit.IsBaseTime(start) {
		start = firstRecordTime(activityFile.Records)
	}
	if start.IsZero() {
		return nil, 0, fmt.Errorf("%s has no usable start time", filepath.Base(path))
	}

	moving := int(session.GetTotalMovingTimeScaled())
	if moving <= 0 {
		moving = int(session.GetTotalTimerTimeScaled())
	}
	if moving <= 0 {
		moving = len(streams.Time)
	}

	activity := &store.Activity{
		ID:             start.Unix(),
		AthleteID:      athleteID,
		Name:           activityName(path),
		Type:           activityType(session.Sport),
		StartDateLocal: start,
		MovingTime:     moving,
	}

	if err := im.store.UpsertActivity(activity); err != nil {
		return nil, 0, fmt.Errorf("storing activity: %w", err)
	}
	streams.ActivityID = activity.ID
	if err := im.store.SaveStreams(streams); err != nil {
		return nil, 0, fmt.Errorf("storing streams: %w", err)
	}

	im.logger.Info("imported FIT activity",
		"file", filepath.Base(path),
		"activity_id", activity.ID,
		"athlete_id", athleteID,
		"samples", len(streams.Time))

	flagged, err := im.svc.InvalidateForward(athleteID, start.Add(-service.BackfillSafetyMargin))
	if err != nil {
		return nil, 0, fmt.Errorf("invalidating history: %w", err)
	}
	return activity, flagged, nil
}

// BuildStreams converts FIT record messages into aligned sample arrays.
// Records are ordered by timestamp first. A channel with no valid sample
// in the whole ride is left nil; within a present channel, samples the
// device marked invalid become 0 for power and repeat the previous value
// for the rest.
func BuildStreams(records []*fit.RecordMsg) *store.StreamSet {
	valid := make([]*fit.RecordMsg, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() || fit.IsBaseTime(rec.Timestamp) {
			continue
		}
		valid = append(valid, rec)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	s := &store.StreamSet{}
	if len(valid) == 0 {
		return s
	}

	start := valid[0].Timestamp
	var watts, hr, cad, alt, temp channel
	for _, rec := range valid {
		s.Time = append(s.Time, int(rec.Timestamp.Sub(start).Seconds()))

		if rec.Power != math.MaxUint16 {
			watts.add(float64(rec.Power))
		} else {
			watts.gap(0)
		}
		if rec.HeartRate != math.MaxUint8 {
			hr.add(float64(rec.HeartRate))
		} else {
			hr.repeat()
		}
		if rec.Cadence != math.MaxUint8 {
			cad.add(float64(rec.Cadence))
		} else {
			cad.repeat()
		}
		if a := recordAltitude(rec); !math.IsNaN(a) {
			alt.add(a)
		} else {
			alt.repeat()
		}
		if rec.Temperature != math.MaxInt8 {
			temp.add(float64(rec.Temperature))
		} else {
			temp.repeat()
		}
	}

	s.Watts = watts.slice()
	s.Heartrate = hr.slice()
	s.Cadence = cad.slice()
	s.Altitude = alt.slice()
	s.Temp = temp.slice()
	return s
}

// channel accumulates one sample series, tracking whether any real
// sample ever arrived so an all-invalid series stays absent
type channel struct {
	values []float64
	last   float64
	seen   bool
	count  int
}

func (c *channel) add(v float64) {
	c.backfill(v)
	c.values = append(c.values, v)
	c.last = v
	c.seen = true
	c.count++
}

// gap records an invalid sample as the given filler value
func (c *channel) gap(filler float64) {
	if c.seen {
		c.values = append(c.values, filler)
	}
	c.count++
}

// repeat records an invalid sample as the previous valid value
func (c *channel) repeat() {
	if c.seen {
		c.values = append(c.values, c.last)
	}
	c.count++
}

// backfill pads leading invalid samples once the first valid one arrives
func (c *channel) backfill(v float64) {
	if c.seen {
		return
	}
	for i := 0; i < c.count; i++ {
		c.values = append(c.values, v)
	}
}

func (c *channel) slice() []float64 {
	if !c.seen {
		return nil
	}
	return c.values
}

func recordAltitude(rec *fit.RecordMsg) float64 {
	if a := rec.GetEnhancedAltitudeScaled(); !math.IsNaN(a) {
		return a
	}
	return rec.GetAltitudeScaled()
}

func firstRecordTime(records []*fit.RecordMsg) time.Time {
	best := time.Time{}
	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() || fit.IsBaseTime(rec.Timestamp) {
			continue
		}
		if best.IsZero() || rec.Timestamp.Before(best) {
			best = rec.Timestamp
		}
	}
	return best
}

func activityName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func activityType(sport fit.Sport) string {
	switch sport {
	case fit.SportCycling:
		return "Ride"
	case fit.SportEBiking:
		return "EBikeRide"
	default:
		return fmt.Sprint(sport)
	}
}
