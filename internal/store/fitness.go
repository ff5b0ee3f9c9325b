package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertDailyMetrics writes one day of the athlete's fitness ledger
func (db *DB) UpsertDailyMetrics(m *DailyMetrics) error {
	_, err := db.Exec(`
		INSERT INTO athlete_daily_metrics (athlete_id, day, tss, ctl, atl, tsb, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id, day) DO UPDATE SET
			tss = excluded.tss,
			ctl = excluded.ctl,
			atl = excluded.atl,
			tsb = excluded.tsb,
			computed_at = CURRENT_TIMESTAMP
	`, m.AthleteID, m.Day, m.TSS, m.CTL, m.ATL, m.TSB)
	return err
}

// GetDailyMetrics retrieves one ledger day, or nil when absent
func (db *DB) GetDailyMetrics(athleteID int64, day string) (*DailyMetrics, error) {
	row := db.QueryRow(`
		SELECT athlete_id, day, tss, ctl, atl, tsb
		FROM athlete_daily_metrics
		WHERE athlete_id = ? AND day = ?
	`, athleteID, day)

	var m DailyMetrics
	err := row.Scan(&m.AthleteID, &m.Day, &m.TSS, &m.CTL, &m.ATL, &m.TSB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListDailyMetrics returns the ledger days of an athlete in [from, to]
// ordered ascending.
func (db *DB) ListDailyMetrics(athleteID int64, from, to string) ([]DailyMetrics, error) {
	rows, err := db.Query(`
		SELECT athlete_id, day, tss, ctl, atl, tsb
		FROM athlete_daily_metrics
		WHERE athlete_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`, athleteID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []DailyMetrics
	for rows.Next() {
		var m DailyMetrics
		if err := rows.Scan(&m.AthleteID, &m.Day, &m.TSS, &m.CTL, &m.ATL, &m.TSB); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// LatestDailyMetrics returns the most recent ledger day of an athlete,
// or nil when the ledger is empty.
func (db *DB) LatestDailyMetrics(athleteID int64) (*DailyMetrics, error) {
	row := db.QueryRow(`
		SELECT athlete_id, day, tss, ctl, atl, tsb
		FROM athlete_daily_metrics
		WHERE athlete_id = ?
		ORDER BY day DESC
		LIMIT 1
	`, athleteID)

	var m DailyMetrics
	err := row.Scan(&m.AthleteID, &m.Day, &m.TSS, &m.CTL, &m.ATL, &m.TSB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DailyTSSTotals returns the summed training stress per calendar day for
// the athlete's processed activities dated at or after from.
func (db *DB) DailyTSSTotals(athleteID int64, from time.Time) (map[string]float64, error) {
	rows, err := db.Query(`
		SELECT substr(a.start_date_local, 1, 10) AS day, SUM(n.training_stress)
		FROM activity_analytics n
		JOIN activities a ON n.activity_id = a.id
		WHERE a.athlete_id = ? AND a.start_date_local >= ?
		GROUP BY day
	`, athleteID, from.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var day string
		var tss float64
		if err := rows.Scan(&day, &tss); err != nil {
			return nil, err
		}
		totals[day] = tss
	}
	return totals, rows.Err()
}
