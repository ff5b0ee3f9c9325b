package service

import (
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jpanek/cyclingdatahub/internal/baseline"
	"github.com/jpanek/cyclingdatahub/internal/store"
)

// recordingLedger captures ledger recompute calls. Drains may run
// athletes concurrently, so access is locked.
type recordingLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
}

type ledgerCall struct {
	athleteID int64
	from      time.Time
}

func (l *recordingLedger) RecomputeFrom(athleteID int64, from time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{athleteID, from})
	return 1, nil
}

func newTestService(t *testing.T) (*AnalyticsService, *store.DB, *recordingLedger) {
	t.Helper()
	db := store.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := baseline.NewResolver(db, 90, 200, 185, logger)
	ledger := &recordingLedger{}
	svc := NewAnalyticsService(db, resolver, ledger, 2, logger)
	return svc, db, ledger
}

func testDate(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing time %q: %v", s, err)
	}
	return parsed
}

func seedRide(t *testing.T, db *store.DB, id int64, start string, watts, hr float64, samples int, flagged bool) {
	t.Helper()
	err := db.UpsertActivity(&store.Activity{
		ID:                 id,
		AthleteID:          1,
		Name:               "Ride",
		Type:               "Ride",
		StartDateLocal:     testDate(t, start),
		MovingTime:         samples,
		NeedsRecalculation: flagged,
	})
	if err != nil {
		t.Fatal(err)
	}

	streams := &store.StreamSet{ActivityID: id, Time: make([]int, samples)}
	for i := 0; i < samples; i++ {
		streams.Time[i] = i
	}
	if watts > 0 {
		streams.Watts = make([]float64, samples)
		for i := range streams.Watts {
			streams.Watts[i] = watts
		}
	}
	if hr > 0 {
		streams.Heartrate = make([]float64, samples)
		for i := range streams.Heartrate {
			streams.Heartrate[i] = hr
		}
	}
	if err := db.SaveStreams(streams); err != nil {
		t.Fatal(err)
	}
}

func TestProcessActivity(t *testing.T) {
	svc, db, _ := newTestService(t)
	if err := db.UpsertAthlete(&store.Athlete{ID: 1}); err != nil {
		t.Fatal(err)
	}
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)

	ok, err := svc.ProcessActivity(100, false)
	if err != nil {
		t.Fatalf("ProcessActivity: %v", err)
	}
	if !ok {
		t.Fatal("ProcessActivity = false, want true for a fresh ride")
	}

	rec, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("no analytics record written")
	}
	if rec.Peak20m == nil || *rec.Peak20m != 250 {
		t.Errorf("Peak20m = %v, want 250", rec.Peak20m)
	}
	if rec.Peak20mHR == nil || *rec.Peak20mHR != 150 {
		t.Errorf("Peak20mHR = %v, want 150", rec.Peak20mHR)
	}
	// Rolling-average truncation can land one watt under the steady value
	if rec.WeightedAvgPower < 249 || rec.WeightedAvgPower > 250 {
		t.Errorf("WeightedAvgPower = %d, want 249..250", rec.WeightedAvgPower)
	}
	// Bootstrap from the ride's own 20-minute effort
	if rec.BaselineFTP != 238 {
		t.Errorf("BaselineFTP = %d, want 238", rec.BaselineFTP)
	}
	if rec.MaxHR == nil || *rec.MaxHR != 150 {
		t.Errorf("MaxHR = %v, want 150", rec.MaxHR)
	}
	if rec.IntensityScore <= 1.0 {
		t.Errorf("IntensityScore = %v, want above threshold for a ride over FTP", rec.IntensityScore)
	}
	if rec.TrainingStress <= 0 {
		t.Errorf("TrainingStress = %v, want positive", rec.TrainingStress)
	}
	if rec.AerobicDecoupling == nil || *rec.AerobicDecoupling != 0 {
		t.Errorf("AerobicDecoupling = %v, want 0 for a steady ride", rec.AerobicDecoupling)
	}
	if len(rec.PowerCurve) == 0 {
		t.Error("PowerCurve is empty")
	}
	if rec.PowerCurve[1200] == 0 {
		t.Errorf("PowerCurve missing the 20-minute duration: %v", rec.PowerCurve)
	}

	athlete, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if athlete.DetectedFTP == nil || *athlete.DetectedFTP != 238 {
		t.Errorf("DetectedFTP = %v, want bootstrapped 238", athlete.DetectedFTP)
	}
	if athlete.DetectedFTPSourceActivity == nil || *athlete.DetectedFTPSourceActivity != 100 {
		t.Errorf("DetectedFTPSourceActivity = %v, want 100", athlete.DetectedFTPSourceActivity)
	}
	if athlete.DetectedMaxHR == nil || *athlete.DetectedMaxHR != 150 {
		t.Errorf("DetectedMaxHR = %v, want 150", athlete.DetectedMaxHR)
	}
}

func TestProcessActivitySkipsExisting(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)

	if _, err := svc.ProcessActivity(100, false); err != nil {
		t.Fatal(err)
	}

	ok, err := svc.ProcessActivity(100, false)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("reprocessing without force should be a no-op")
	}

	ok, err = svc.ProcessActivity(100, true)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("force should reprocess an existing record")
	}
}

func TestProcessActivityIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)

	if _, err := svc.ProcessActivity(100, false); err != nil {
		t.Fatal(err)
	}
	first, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ProcessActivity(100, true); err != nil {
		t.Fatal(err)
	}
	second, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reprocessing changed the record\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestProcessActivityBackfillCausality(t *testing.T) {
	svc, db, _ := newTestService(t)

	// The recent hard ride is processed first; the backfilled older ride
	// must not see a baseline derived from it.
	seedRide(t, db, 101, "2024-05-10T08:00:00Z", 300, 160, 1200, false)
	seedRide(t, db, 100, "2024-03-01T08:00:00Z", 200, 140, 1200, false)

	if _, err := svc.ProcessActivity(101, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessActivity(100, false); err != nil {
		t.Fatal(err)
	}

	older, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}
	if older.BaselineFTP == 285 {
		t.Fatal("backfilled ride used a baseline from its own future")
	}
	// No processed history exists before March 1st, so the reconstruction
	// falls back to the system default.
	if older.BaselineFTP != 200 {
		t.Errorf("backfilled BaselineFTP = %d, want default 200", older.BaselineFTP)
	}

	athlete, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if athlete.DetectedFTP == nil || *athlete.DetectedFTP != 285 {
		t.Errorf("stored DetectedFTP = %v, want 285 untouched by the backfill", athlete.DetectedFTP)
	}
}

func TestProcessActivityNoStreams(t *testing.T) {
	svc, db, _ := newTestService(t)
	err := db.UpsertActivity(&store.Activity{
		ID: 100, AthleteID: 1, Name: "Ride", Type: "Ride",
		StartDateLocal: testDate(t, "2024-05-01T08:00:00Z"), MovingTime: 3600,
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := svc.ProcessActivity(100, false)
	if err != nil {
		t.Fatalf("missing streams should not be an error, got %v", err)
	}
	if ok {
		t.Error("ProcessActivity = true without streams")
	}

	rec, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("analytics written without streams: %+v", rec)
	}
}

func TestProcessActivityUnknownActivity(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.ProcessActivity(404, false); err == nil {
		t.Error("unknown activity should error")
	}
}

func TestProcessActivitySteadyStateLeavesBaseline(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)
	seedRide(t, db, 101, "2024-05-03T08:00:00Z", 220, 140, 1200, false)

	if _, err := svc.ProcessActivity(100, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessActivity(101, false); err != nil {
		t.Fatal(err)
	}

	athlete, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	// The easier follow-up ride must not move the detected baseline
	if athlete.DetectedFTP == nil || *athlete.DetectedFTP != 238 {
		t.Errorf("DetectedFTP = %v, want 238 from the first ride", athlete.DetectedFTP)
	}
	if athlete.DetectedFTPSourceActivity == nil || *athlete.DetectedFTPSourceActivity != 100 {
		t.Errorf("source = %v, want activity 100", athlete.DetectedFTPSourceActivity)
	}

	rec, err := db.GetAnalytics(101)
	if err != nil {
		t.Fatal(err)
	}
	if rec.BaselineFTP != 238 {
		t.Errorf("second ride BaselineFTP = %d, want inherited 238", rec.BaselineFTP)
	}
}

func TestProcessActivityNoPowerRide(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 0, 145, 1200, false)

	ok, err := svc.ProcessActivity(100, false)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("heart-rate-only ride should still process")
	}

	rec, err := db.GetAnalytics(100)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Peak20m != nil {
		t.Errorf("Peak20m = %v, want nil without power", rec.Peak20m)
	}
	if rec.WeightedAvgPower != 0 {
		t.Errorf("WeightedAvgPower = %d, want 0", rec.WeightedAvgPower)
	}
	// Defaults apply when nothing was ever detected
	if rec.BaselineFTP != 200 {
		t.Errorf("BaselineFTP = %d, want default 200", rec.BaselineFTP)
	}
	if rec.TrainingStress != 0 {
		t.Errorf("TrainingStress = %v, want 0 without power", rec.TrainingStress)
	}
	if rec.MaxHR == nil || *rec.MaxHR != 145 {
		t.Errorf("MaxHR = %v, want 145", rec.MaxHR)
	}

	athlete, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if athlete.DetectedFTP != nil {
		t.Errorf("DetectedFTP = %v, want still unset", athlete.DetectedFTP)
	}
	if athlete.DetectedMaxHR == nil || *athlete.DetectedMaxHR != 145 {
		t.Errorf("DetectedMaxHR = %v, want bootstrapped 145", athlete.DetectedMaxHR)
	}
}
