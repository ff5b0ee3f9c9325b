package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Athletes and their performance baseline. The detected_* columns
		// are the system-maintained baseline; detected_ftp_at is the
		// start date of the activity that produced detected_ftp and is
		// the causal anchor for all baseline decisions.
		`CREATE TABLE IF NOT EXISTS athletes (
			id INTEGER PRIMARY KEY,
			firstname TEXT NOT NULL DEFAULT '',
			manual_ftp INTEGER,
			manual_ftp_effective_at TEXT,
			manual_max_hr INTEGER,
			detected_ftp INTEGER,
			detected_ftp_source_activity INTEGER,
			detected_ftp_at TEXT,
			detected_max_hr INTEGER,
			detected_max_hr_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activity summaries. Owned by ingestion; the analytics side only
		// reads them and toggles needs_recalculation.
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			start_date_local TEXT NOT NULL,
			moving_time INTEGER NOT NULL DEFAULT 0,
			needs_recalculation INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_athlete_date ON activities(athlete_id, start_date_local)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_recalc ON activities(athlete_id, needs_recalculation)`,

		// Raw sample arrays, one row per activity. Arrays are stored as
		// JSON columns because the upstream provider reports them per
		// stream type: any column may be absent or shorter than the
		// others, and that must survive a round trip.
		`CREATE TABLE IF NOT EXISTS activity_streams (
			activity_id INTEGER PRIMARY KEY,
			time_series TEXT,
			watts_series TEXT,
			heartrate_series TEXT,
			cadence_series TEXT,
			altitude_series TEXT,
			temp_series TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Derived analytics, one row per activity, written only by the
		// analytics processor in a single upsert. baseline_ftp is a
		// snapshot of the FTP used, not a live reference.
		`CREATE TABLE IF NOT EXISTS activity_analytics (
			activity_id INTEGER PRIMARY KEY,
			peak_5s INTEGER,
			peak_1m INTEGER,
			peak_5m INTEGER,
			peak_20m INTEGER,
			peak_5s_hr INTEGER,
			peak_1m_hr INTEGER,
			peak_5m_hr INTEGER,
			peak_20m_hr INTEGER,
			weighted_avg_power INTEGER NOT NULL DEFAULT 0,
			baseline_ftp INTEGER NOT NULL DEFAULT 0,
			max_hr INTEGER,
			max_vam INTEGER NOT NULL DEFAULT 0,
			aerobic_decoupling REAL,
			variability_index REAL NOT NULL DEFAULT 0,
			efficiency_factor REAL NOT NULL DEFAULT 0,
			intensity_score REAL NOT NULL DEFAULT 0,
			training_stress REAL NOT NULL DEFAULT 0,
			power_curve TEXT NOT NULL DEFAULT '{}',
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Daily fitness ledger (CTL/ATL/TSB), rebuilt forward from a date
		// by the fitness package after each recalculation batch.
		`CREATE TABLE IF NOT EXISTS athlete_daily_metrics (
			athlete_id INTEGER NOT NULL,
			day TEXT NOT NULL,
			tss REAL NOT NULL DEFAULT 0,
			ctl REAL NOT NULL DEFAULT 0,
			atl REAL NOT NULL DEFAULT 0,
			tsb REAL NOT NULL DEFAULT 0,
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, day)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
