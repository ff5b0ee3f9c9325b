package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertActivity inserts or updates an activity summary
func (db *DB) UpsertActivity(a *Activity) error {
	_, err := db.Exec(`
		INSERT INTO activities (
			id, athlete_id, name, type, start_date_local, moving_time,
			needs_recalculation, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			start_date_local = excluded.start_date_local,
			moving_time = excluded.moving_time,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type,
		a.StartDateLocal.Format(time.RFC3339), a.MovingTime,
		boolToInt(a.NeedsRecalculation),
	)
	return err
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(id int64) (*Activity, error) {
	row := db.QueryRow(`
		SELECT id, athlete_id, name, type, start_date_local, moving_time, needs_recalculation
		FROM activities
		WHERE id = ?
	`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// DeleteActivity removes an activity; streams and analytics cascade
func (db *DB) DeleteActivity(id int64) error {
	res, err := db.Exec("DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// ListActivities returns an athlete's activities ordered by date descending
func (db *DB) ListActivities(athleteID int64, limit, offset int) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, name, type, start_date_local, moving_time, needs_recalculation
		FROM activities
		WHERE athlete_id = ?
		ORDER BY start_date_local DESC
		LIMIT ? OFFSET ?
	`, athleteID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// MarkForRecalculation flags every activity of the athlete dated at or
// after from. Returns the number of flagged activities.
func (db *DB) MarkForRecalculation(athleteID int64, from time.Time) (int, error) {
	res, err := db.Exec(`
		UPDATE activities
		SET needs_recalculation = 1, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ? AND start_date_local >= ?
	`, athleteID, from.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearRecalculation clears the recalculation flag of one activity
func (db *DB) ClearRecalculation(activityID int64) error {
	_, err := db.Exec(`
		UPDATE activities
		SET needs_recalculation = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, activityID)
	return err
}

// RecalcQueue returns up to limit flagged activities of the athlete,
// strictly oldest first. The baseline resolver depends on this order.
func (db *DB) RecalcQueue(athleteID int64, limit int) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, name, type, start_date_local, moving_time, needs_recalculation
		FROM activities
		WHERE athlete_id = ? AND needs_recalculation = 1
		ORDER BY start_date_local ASC
		LIMIT ?
	`, athleteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// CountActivities returns how many activities the athlete has
func (db *DB) CountActivities(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM activities WHERE athlete_id = ?
	`, athleteID).Scan(&count)
	return count, err
}

// RecalcBacklogCount returns how many activities of the athlete are flagged
func (db *DB) RecalcBacklogCount(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM activities
		WHERE athlete_id = ? AND needs_recalculation = 1
	`, athleteID).Scan(&count)
	return count, err
}

// AthletesWithBacklog returns the ids of athletes that have at least one
// flagged activity.
func (db *DB) AthletesWithBacklog() ([]int64, error) {
	rows, err := db.Query(`
		SELECT DISTINCT athlete_id FROM activities
		WHERE needs_recalculation = 1
		ORDER BY athlete_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*Activity, error) {
	var a Activity
	var startDate string
	var needsRecalc int

	err := row.Scan(&a.ID, &a.AthleteID, &a.Name, &a.Type, &startDate, &a.MovingTime, &needsRecalc)
	if err != nil {
		return nil, err
	}

	a.StartDateLocal, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, err
	}
	a.NeedsRecalculation = needsRecalc == 1
	return &a, nil
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
