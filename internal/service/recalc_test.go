package service

import (
	"errors"
	"testing"

	"github.com/jpanek/cyclingdatahub/internal/store"
)

func TestInvalidateForward(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 200, 140, 600, false)
	seedRide(t, db, 101, "2024-05-05T08:00:00Z", 200, 140, 600, false)

	n, err := svc.InvalidateForward(1, testDate(t, "2024-05-03T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("flagged %d, want 1", n)
	}

	a, err := db.GetActivity(100)
	if err != nil {
		t.Fatal(err)
	}
	if a.NeedsRecalculation {
		t.Error("activity before the cutoff should stay clean")
	}
}

func TestDeleteActivityInvalidatesForward(t *testing.T) {
	svc, db, _ := newTestService(t)

	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)
	seedRide(t, db, 101, "2024-05-03T08:00:00Z", 200, 140, 1200, false)
	for _, id := range []int64{100, 101} {
		if _, err := svc.ProcessActivity(id, false); err != nil {
			t.Fatal(err)
		}
	}

	flagged, err := svc.DeleteActivity(100)
	if err != nil {
		t.Fatal(err)
	}
	// The deleted ride's record contributed to every later baseline
	if flagged != 1 {
		t.Errorf("flagged = %d, want 1", flagged)
	}

	if _, err := db.GetActivity(100); !errors.Is(err, store.ErrActivityNotFound) {
		t.Errorf("err = %v, want ErrActivityNotFound", err)
	}
	later, err := db.GetActivity(101)
	if err != nil {
		t.Fatal(err)
	}
	if !later.NeedsRecalculation {
		t.Error("later activity should be flagged after the delete")
	}
}

func TestRebuildHistory(t *testing.T) {
	svc, db, _ := newTestService(t)

	if err := db.UpsertAthlete(&store.Athlete{ID: 1}); err != nil {
		t.Fatal(err)
	}
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 250, 150, 1200, false)
	seedRide(t, db, 101, "2024-05-03T08:00:00Z", 300, 160, 1200, false)
	for _, id := range []int64{100, 101} {
		if _, err := svc.ProcessActivity(id, false); err != nil {
			t.Fatal(err)
		}
	}

	flagged, err := svc.RebuildHistory(1)
	if err != nil {
		t.Fatal(err)
	}
	if flagged != 2 {
		t.Errorf("flagged = %d, want the whole history", flagged)
	}

	athlete, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if athlete.DetectedFTP != nil {
		t.Errorf("DetectedFTP = %v, want cleared", athlete.DetectedFTP)
	}

	// Replaying restores the same chronological baseline walk
	if _, err := svc.DrainRecalcQueue(1, 50); err != nil {
		t.Fatal(err)
	}
	athlete, err = db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if athlete.DetectedFTP == nil || *athlete.DetectedFTP != 285 {
		t.Errorf("DetectedFTP = %v, want 285 after the replay", athlete.DetectedFTP)
	}
	if athlete.DetectedFTPSourceActivity == nil || *athlete.DetectedFTPSourceActivity != 101 {
		t.Errorf("source = %v, want the harder later ride", athlete.DetectedFTPSourceActivity)
	}
}

func TestDeleteActivityUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.DeleteActivity(404); err == nil {
		t.Error("deleting an unknown activity should error")
	}
}

func TestDrainRecalcQueueChronological(t *testing.T) {
	svc, db, ledger := newTestService(t)

	// The OLDER ride is the harder one. Processing oldest first means the
	// newer ride inherits the baseline the older one established; any
	// other order gives the newer ride a bootstrap from its own weaker
	// effort instead.
	seedRide(t, db, 101, "2024-05-10T08:00:00Z", 200, 140, 1200, true)
	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 300, 160, 1200, true)

	processed, err := svc.DrainRecalcQueue(1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}

	newer, err := db.GetAnalytics(101)
	if err != nil {
		t.Fatal(err)
	}
	if newer.BaselineFTP != 285 {
		t.Errorf("newer ride BaselineFTP = %d, want 285 inherited from the older ride", newer.BaselineFTP)
	}

	for _, id := range []int64{100, 101} {
		a, err := db.GetActivity(id)
		if err != nil {
			t.Fatal(err)
		}
		if a.NeedsRecalculation {
			t.Errorf("activity %d still flagged after drain", id)
		}
	}

	if len(ledger.calls) != 1 {
		t.Fatalf("ledger called %d times, want 1", len(ledger.calls))
	}
	if !ledger.calls[0].from.Equal(testDate(t, "2024-05-01T08:00:00Z")) {
		t.Errorf("ledger recomputed from %v, want the earliest reprocessed date", ledger.calls[0].from)
	}
}

func TestDrainRecalcQueueLeavesStreamlessFlagged(t *testing.T) {
	svc, db, ledger := newTestService(t)

	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 200, 140, 600, true)
	err := db.UpsertActivity(&store.Activity{
		ID: 101, AthleteID: 1, Name: "Ride", Type: "Ride",
		StartDateLocal:     testDate(t, "2024-05-02T08:00:00Z"),
		MovingTime:         3600,
		NeedsRecalculation: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	processed, err := svc.DrainRecalcQueue(1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}

	a, err := db.GetActivity(101)
	if err != nil {
		t.Fatal(err)
	}
	if !a.NeedsRecalculation {
		t.Error("streamless activity should stay flagged for a later drain")
	}

	if len(ledger.calls) != 1 {
		t.Errorf("ledger called %d times, want 1 despite the skip", len(ledger.calls))
	}
}

func TestDrainRecalcQueueEmpty(t *testing.T) {
	svc, _, ledger := newTestService(t)

	processed, err := svc.DrainRecalcQueue(1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if len(ledger.calls) != 0 {
		t.Error("ledger should not run for an empty queue")
	}
}

func TestDrainRecalcQueueRespectsBatchSize(t *testing.T) {
	svc, db, _ := newTestService(t)

	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 200, 140, 600, true)
	seedRide(t, db, 101, "2024-05-02T08:00:00Z", 200, 140, 600, true)
	seedRide(t, db, 102, "2024-05-03T08:00:00Z", 200, 140, 600, true)

	processed, err := svc.DrainRecalcQueue(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want batch of 2", processed)
	}

	backlog, err := svc.Backlog(1)
	if err != nil {
		t.Fatal(err)
	}
	if backlog != 1 {
		t.Errorf("backlog = %d, want 1 remaining", backlog)
	}
}

func TestDrainAll(t *testing.T) {
	svc, db, _ := newTestService(t)

	seedRide(t, db, 100, "2024-05-01T08:00:00Z", 200, 140, 600, true)
	err := db.UpsertActivity(&store.Activity{
		ID: 200, AthleteID: 2, Name: "Ride", Type: "Ride",
		StartDateLocal:     testDate(t, "2024-05-01T09:00:00Z"),
		MovingTime:         600,
		NeedsRecalculation: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	streams := &store.StreamSet{ActivityID: 200, Time: make([]int, 600), Watts: make([]float64, 600)}
	for i := 0; i < 600; i++ {
		streams.Time[i] = i
		streams.Watts[i] = 180
	}
	if err := db.SaveStreams(streams); err != nil {
		t.Fatal(err)
	}

	total, err := svc.DrainAll(50)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2 across both athletes", total)
	}

	ids, err := db.AthletesWithBacklog()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("athletes with backlog after DrainAll = %v, want none", ids)
	}
}
