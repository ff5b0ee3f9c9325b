package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertAthlete inserts or updates an athlete row. Baseline columns are
// left untouched on conflict; they belong to the baseline resolver.
func (db *DB) UpsertAthlete(a *Athlete) error {
	_, err := db.Exec(`
		INSERT INTO athletes (id, firstname, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			firstname = excluded.firstname,
			updated_at = CURRENT_TIMESTAMP
	`, a.ID, a.Firstname)
	return err
}

// GetAthlete retrieves an athlete with their baseline fields
func (db *DB) GetAthlete(id int64) (*Athlete, error) {
	row := db.QueryRow(`
		SELECT id, firstname, manual_ftp, manual_ftp_effective_at, manual_max_hr,
			detected_ftp, detected_ftp_source_activity, detected_ftp_at,
			detected_max_hr, detected_max_hr_at
		FROM athletes
		WHERE id = ?
	`, id)

	var a Athlete
	var manualEff, detectedAt, hrAt sql.NullString
	err := row.Scan(
		&a.ID, &a.Firstname, &a.ManualFTP, &manualEff, &a.ManualMaxHR,
		&a.DetectedFTP, &a.DetectedFTPSourceActivity, &detectedAt,
		&a.DetectedMaxHR, &hrAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	if err != nil {
		return nil, err
	}

	a.ManualFTPEffectiveAt = parseNullTime(manualEff)
	a.DetectedFTPAt = parseNullTime(detectedAt)
	a.DetectedMaxHRAt = parseNullTime(hrAt)
	return &a, nil
}

// ListAthletes returns all athletes ordered by id
func (db *DB) ListAthletes() ([]Athlete, error) {
	rows, err := db.Query(`
		SELECT id, firstname, manual_ftp, manual_ftp_effective_at, manual_max_hr,
			detected_ftp, detected_ftp_source_activity, detected_ftp_at,
			detected_max_hr, detected_max_hr_at
		FROM athletes
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var athletes []Athlete
	for rows.Next() {
		var a Athlete
		var manualEff, detectedAt, hrAt sql.NullString
		err := rows.Scan(
			&a.ID, &a.Firstname, &a.ManualFTP, &manualEff, &a.ManualMaxHR,
			&a.DetectedFTP, &a.DetectedFTPSourceActivity, &detectedAt,
			&a.DetectedMaxHR, &hrAt,
		)
		if err != nil {
			return nil, err
		}
		a.ManualFTPEffectiveAt = parseNullTime(manualEff)
		a.DetectedFTPAt = parseNullTime(detectedAt)
		a.DetectedMaxHRAt = parseNullTime(hrAt)
		athletes = append(athletes, a)
	}

	return athletes, rows.Err()
}

// SetManualFTP sets or clears the athlete's manual FTP override. A nil ftp
// clears the override.
func (db *DB) SetManualFTP(athleteID int64, ftp *int, effectiveAt *time.Time) error {
	res, err := db.Exec(`
		UPDATE athletes
		SET manual_ftp = ?, manual_ftp_effective_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, ftp, formatNullTime(effectiveAt), athleteID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetManualMaxHR sets or clears the athlete's manual max heart rate
func (db *DB) SetManualMaxHR(athleteID int64, maxHR *int) error {
	res, err := db.Exec(`
		UPDATE athletes
		SET manual_max_hr = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, maxHR, athleteID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateDetectedBaseline overwrites the detected baseline columns from the
// resolver's updated snapshot.
func (db *DB) UpdateDetectedBaseline(athleteID int64, a *Athlete) error {
	res, err := db.Exec(`
		UPDATE athletes
		SET detected_ftp = ?,
			detected_ftp_source_activity = ?,
			detected_ftp_at = ?,
			detected_max_hr = ?,
			detected_max_hr_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, a.DetectedFTP, a.DetectedFTPSourceActivity, formatNullTime(a.DetectedFTPAt),
		a.DetectedMaxHR, formatNullTime(a.DetectedMaxHRAt), athleteID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ResetDetectedBaseline clears the detected baseline so a fresh
// chronological walk can rebuild it.
func (db *DB) ResetDetectedBaseline(athleteID int64) error {
	res, err := db.Exec(`
		UPDATE athletes
		SET detected_ftp = NULL,
			detected_ftp_source_activity = NULL,
			detected_ftp_at = NULL,
			detected_max_hr = NULL,
			detected_max_hr_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, athleteID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAthleteNotFound
	}
	return nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
