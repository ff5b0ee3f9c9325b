package store

import (
	"errors"
	"testing"
	"time"
)

func testTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing time %q: %v", s, err)
	}
	return parsed
}

func TestAthleteRoundTrip(t *testing.T) {
	db := NewTestDB(t)

	if err := db.UpsertAthlete(&Athlete{ID: 7, Firstname: "Jan"}); err != nil {
		t.Fatalf("UpsertAthlete: %v", err)
	}

	a, err := db.GetAthlete(7)
	if err != nil {
		t.Fatalf("GetAthlete: %v", err)
	}
	if a.Firstname != "Jan" {
		t.Errorf("Firstname = %q, want %q", a.Firstname, "Jan")
	}
	if a.DetectedFTP != nil || a.ManualFTP != nil {
		t.Error("new athlete should have no baseline values")
	}
}

func TestGetAthleteNotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.GetAthlete(99)
	if !errors.Is(err, ErrAthleteNotFound) {
		t.Errorf("err = %v, want ErrAthleteNotFound", err)
	}
}

func TestUpsertAthletePreservesBaseline(t *testing.T) {
	db := NewTestDB(t)

	if err := db.UpsertAthlete(&Athlete{ID: 1, Firstname: "Jan"}); err != nil {
		t.Fatal(err)
	}

	ftp := 285
	source := int64(100)
	at := testTime(t, "2024-05-01T08:00:00Z")
	err := db.UpdateDetectedBaseline(1, &Athlete{
		DetectedFTP:               &ftp,
		DetectedFTPSourceActivity: &source,
		DetectedFTPAt:             &at,
	})
	if err != nil {
		t.Fatalf("UpdateDetectedBaseline: %v", err)
	}

	// Re-upserting the athlete row must not wipe the detected baseline
	if err := db.UpsertAthlete(&Athlete{ID: 1, Firstname: "Jan Novak"}); err != nil {
		t.Fatal(err)
	}

	a, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Firstname != "Jan Novak" {
		t.Errorf("Firstname = %q, want updated name", a.Firstname)
	}
	if a.DetectedFTP == nil || *a.DetectedFTP != 285 {
		t.Errorf("DetectedFTP = %v, want preserved 285", a.DetectedFTP)
	}
	if a.DetectedFTPSourceActivity == nil || *a.DetectedFTPSourceActivity != 100 {
		t.Errorf("DetectedFTPSourceActivity = %v, want preserved 100", a.DetectedFTPSourceActivity)
	}
	if a.DetectedFTPAt == nil || !a.DetectedFTPAt.Equal(at) {
		t.Errorf("DetectedFTPAt = %v, want preserved %v", a.DetectedFTPAt, at)
	}
}

func TestSetManualFTP(t *testing.T) {
	db := NewTestDB(t)

	if err := db.UpsertAthlete(&Athlete{ID: 1}); err != nil {
		t.Fatal(err)
	}

	ftp := 250
	eff := testTime(t, "2024-01-01T00:00:00Z")
	if err := db.SetManualFTP(1, &ftp, &eff); err != nil {
		t.Fatalf("SetManualFTP: %v", err)
	}

	a, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if a.ManualFTP == nil || *a.ManualFTP != 250 {
		t.Errorf("ManualFTP = %v, want 250", a.ManualFTP)
	}
	if a.ManualFTPEffectiveAt == nil || !a.ManualFTPEffectiveAt.Equal(eff) {
		t.Errorf("ManualFTPEffectiveAt = %v, want %v", a.ManualFTPEffectiveAt, eff)
	}

	// Clearing
	if err := db.SetManualFTP(1, nil, nil); err != nil {
		t.Fatalf("clearing manual FTP: %v", err)
	}
	a, err = db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if a.ManualFTP != nil || a.ManualFTPEffectiveAt != nil {
		t.Errorf("manual FTP = %v/%v, want cleared", a.ManualFTP, a.ManualFTPEffectiveAt)
	}
}

func TestSetManualFTPUnknownAthlete(t *testing.T) {
	db := NewTestDB(t)

	ftp := 250
	err := db.SetManualFTP(42, &ftp, nil)
	if !errors.Is(err, ErrAthleteNotFound) {
		t.Errorf("err = %v, want ErrAthleteNotFound", err)
	}
}

func TestResetDetectedBaseline(t *testing.T) {
	db := NewTestDB(t)

	if err := db.UpsertAthlete(&Athlete{ID: 1}); err != nil {
		t.Fatal(err)
	}
	ftp := 285
	hr := 190
	at := testTime(t, "2024-05-01T08:00:00Z")
	if err := db.UpdateDetectedBaseline(1, &Athlete{
		DetectedFTP:     &ftp,
		DetectedFTPAt:   &at,
		DetectedMaxHR:   &hr,
		DetectedMaxHRAt: &at,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.ResetDetectedBaseline(1); err != nil {
		t.Fatalf("ResetDetectedBaseline: %v", err)
	}

	a, err := db.GetAthlete(1)
	if err != nil {
		t.Fatal(err)
	}
	if a.DetectedFTP != nil || a.DetectedFTPAt != nil || a.DetectedMaxHR != nil || a.DetectedMaxHRAt != nil {
		t.Error("detected baseline should be fully cleared")
	}
}
