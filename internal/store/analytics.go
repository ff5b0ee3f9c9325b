package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// UpsertAnalytics writes the full analytics record for an activity in a
// single statement: either the whole row lands or none of it does.
func (db *DB) UpsertAnalytics(r *AnalyticsRecord) error {
	curve, err := marshalCurve(r.PowerCurve)
	if err != nil {
		return fmt.Errorf("encoding power curve: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO activity_analytics (
			activity_id, peak_5s, peak_1m, peak_5m, peak_20m,
			peak_5s_hr, peak_1m_hr, peak_5m_hr, peak_20m_hr,
			weighted_avg_power, baseline_ftp, max_hr, max_vam,
			aerobic_decoupling, variability_index, efficiency_factor,
			intensity_score, training_stress, power_curve, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(activity_id) DO UPDATE SET
			peak_5s = excluded.peak_5s,
			peak_1m = excluded.peak_1m,
			peak_5m = excluded.peak_5m,
			peak_20m = excluded.peak_20m,
			peak_5s_hr = excluded.peak_5s_hr,
			peak_1m_hr = excluded.peak_1m_hr,
			peak_5m_hr = excluded.peak_5m_hr,
			peak_20m_hr = excluded.peak_20m_hr,
			weighted_avg_power = excluded.weighted_avg_power,
			baseline_ftp = excluded.baseline_ftp,
			max_hr = excluded.max_hr,
			max_vam = excluded.max_vam,
			aerobic_decoupling = excluded.aerobic_decoupling,
			variability_index = excluded.variability_index,
			efficiency_factor = excluded.efficiency_factor,
			intensity_score = excluded.intensity_score,
			training_stress = excluded.training_stress,
			power_curve = excluded.power_curve,
			computed_at = CURRENT_TIMESTAMP
	`,
		r.ActivityID, r.Peak5s, r.Peak1m, r.Peak5m, r.Peak20m,
		r.Peak5sHR, r.Peak1mHR, r.Peak5mHR, r.Peak20mHR,
		r.WeightedAvgPower, r.BaselineFTP, r.MaxHR, r.MaxVAM,
		r.AerobicDecoupling, r.VariabilityIndex, r.EfficiencyFactor,
		r.IntensityScore, r.TrainingStress, curve,
	)
	return err
}

// GetAnalytics retrieves the analytics record of an activity.
// Returns nil without error when no record exists.
func (db *DB) GetAnalytics(activityID int64) (*AnalyticsRecord, error) {
	row := db.QueryRow(`
		SELECT activity_id, peak_5s, peak_1m, peak_5m, peak_20m,
			peak_5s_hr, peak_1m_hr, peak_5m_hr, peak_20m_hr,
			weighted_avg_power, baseline_ftp, max_hr, max_vam,
			aerobic_decoupling, variability_index, efficiency_factor,
			intensity_score, training_stress, power_curve
		FROM activity_analytics
		WHERE activity_id = ?
	`, activityID)

	var r AnalyticsRecord
	var curve string
	err := row.Scan(
		&r.ActivityID, &r.Peak5s, &r.Peak1m, &r.Peak5m, &r.Peak20m,
		&r.Peak5sHR, &r.Peak1mHR, &r.Peak5mHR, &r.Peak20mHR,
		&r.WeightedAvgPower, &r.BaselineFTP, &r.MaxHR, &r.MaxVAM,
		&r.AerobicDecoupling, &r.VariabilityIndex, &r.EfficiencyFactor,
		&r.IntensityScore, &r.TrainingStress, &curve,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.PowerCurve, err = unmarshalCurve(curve)
	if err != nil {
		return nil, fmt.Errorf("decoding power curve: %w", err)
	}
	return &r, nil
}

// HasAnalytics checks if an activity already has an analytics record
func (db *DB) HasAnalytics(activityID int64) (bool, error) {
	var exists int
	err := db.QueryRow(`
		SELECT 1 FROM activity_analytics WHERE activity_id = ? LIMIT 1
	`, activityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BestPeak20m returns the highest 20-minute peak power recorded in the
// athlete's analytics within [from, to), with the activity it came from.
// Returns nil when no history exists in the window.
func (db *DB) BestPeak20m(athleteID int64, from, to time.Time) (*PeakSample, error) {
	row := db.QueryRow(`
		SELECT a.id, a.start_date_local, n.peak_20m
		FROM activity_analytics n
		JOIN activities a ON n.activity_id = a.id
		WHERE a.athlete_id = ?
		  AND a.start_date_local >= ?
		  AND a.start_date_local < ?
		  AND n.peak_20m IS NOT NULL
		ORDER BY n.peak_20m DESC, a.start_date_local DESC
		LIMIT 1
	`, athleteID, from.Format(time.RFC3339), to.Format(time.RFC3339))

	return scanPeakSample(row)
}

// BestMaxHR returns the highest ride max heart rate recorded in the
// athlete's analytics within [from, to).
func (db *DB) BestMaxHR(athleteID int64, from, to time.Time) (*PeakSample, error) {
	row := db.QueryRow(`
		SELECT a.id, a.start_date_local, n.max_hr
		FROM activity_analytics n
		JOIN activities a ON n.activity_id = a.id
		WHERE a.athlete_id = ?
		  AND a.start_date_local >= ?
		  AND a.start_date_local < ?
		  AND n.max_hr IS NOT NULL
		ORDER BY n.max_hr DESC, a.start_date_local DESC
		LIMIT 1
	`, athleteID, from.Format(time.RFC3339), to.Format(time.RFC3339))

	return scanPeakSample(row)
}

// PowerCurvesSince returns the stored power curves of the athlete's
// activities dated at or after since.
func (db *DB) PowerCurvesSince(athleteID int64, since time.Time) ([]DatedCurve, error) {
	rows, err := db.Query(`
		SELECT a.id, a.start_date_local, n.power_curve
		FROM activity_analytics n
		JOIN activities a ON n.activity_id = a.id
		WHERE a.athlete_id = ? AND a.start_date_local >= ?
		ORDER BY a.start_date_local ASC
	`, athleteID, since.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var curves []DatedCurve
	for rows.Next() {
		var c DatedCurve
		var date, curve string
		if err := rows.Scan(&c.ActivityID, &date, &curve); err != nil {
			return nil, err
		}
		c.Date, err = time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, err
		}
		c.Curve, err = unmarshalCurve(curve)
		if err != nil {
			return nil, fmt.Errorf("decoding power curve for %d: %w", c.ActivityID, err)
		}
		curves = append(curves, c)
	}
	return curves, rows.Err()
}

// peakColumns whitelists the interval labels that map to analytics columns
var peakColumns = map[string]string{
	"5s":  "peak_5s",
	"1m":  "peak_1m",
	"5m":  "peak_5m",
	"20m": "peak_20m",
}

// PeakSeries returns the chronological peak-power series of one fixed
// interval label ("5s", "1m", "5m", "20m").
func (db *DB) PeakSeries(athleteID int64, label string) ([]PeakSample, error) {
	col, ok := peakColumns[label]
	if !ok {
		return nil, fmt.Errorf("unknown interval label %q", label)
	}

	rows, err := db.Query(`
		SELECT a.id, a.start_date_local, n.`+col+`
		FROM activity_analytics n
		JOIN activities a ON n.activity_id = a.id
		WHERE a.athlete_id = ? AND n.`+col+` IS NOT NULL
		ORDER BY a.start_date_local ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []PeakSample
	for rows.Next() {
		var s PeakSample
		var date string
		if err := rows.Scan(&s.ActivityID, &date, &s.Value); err != nil {
			return nil, err
		}
		s.Date, err = time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// ActivityWithAnalytics pairs an activity with its analytics record
type ActivityWithAnalytics struct {
	Activity Activity
	Record   AnalyticsRecord
}

// RecentAnalytics returns the athlete's most recent processed activities
// with their analytics, newest first.
func (db *DB) RecentAnalytics(athleteID int64, limit int) ([]ActivityWithAnalytics, error) {
	rows, err := db.Query(`
		SELECT a.id, a.athlete_id, a.name, a.type, a.start_date_local, a.moving_time,
			a.needs_recalculation,
			n.peak_5s, n.peak_1m, n.peak_5m, n.peak_20m,
			n.peak_5s_hr, n.peak_1m_hr, n.peak_5m_hr, n.peak_20m_hr,
			n.weighted_avg_power, n.baseline_ftp, n.max_hr, n.max_vam,
			n.aerobic_decoupling, n.variability_index, n.efficiency_factor,
			n.intensity_score, n.training_stress
		FROM activities a
		JOIN activity_analytics n ON n.activity_id = a.id
		WHERE a.athlete_id = ?
		ORDER BY a.start_date_local DESC
		LIMIT ?
	`, athleteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ActivityWithAnalytics
	for rows.Next() {
		var item ActivityWithAnalytics
		var startDate string
		var needsRecalc int
		err := rows.Scan(
			&item.Activity.ID, &item.Activity.AthleteID, &item.Activity.Name,
			&item.Activity.Type, &startDate, &item.Activity.MovingTime, &needsRecalc,
			&item.Record.Peak5s, &item.Record.Peak1m, &item.Record.Peak5m, &item.Record.Peak20m,
			&item.Record.Peak5sHR, &item.Record.Peak1mHR, &item.Record.Peak5mHR, &item.Record.Peak20mHR,
			&item.Record.WeightedAvgPower, &item.Record.BaselineFTP, &item.Record.MaxHR, &item.Record.MaxVAM,
			&item.Record.AerobicDecoupling, &item.Record.VariabilityIndex, &item.Record.EfficiencyFactor,
			&item.Record.IntensityScore, &item.Record.TrainingStress,
		)
		if err != nil {
			return nil, err
		}
		item.Activity.StartDateLocal, err = time.Parse(time.RFC3339, startDate)
		if err != nil {
			return nil, err
		}
		item.Activity.NeedsRecalculation = needsRecalc == 1
		item.Record.ActivityID = item.Activity.ID
		results = append(results, item)
	}
	return results, rows.Err()
}

func scanPeakSample(row *sql.Row) (*PeakSample, error) {
	var s PeakSample
	var date string
	err := row.Scan(&s.ActivityID, &date, &s.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Date, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// marshalCurve encodes a duration->watts map with string keys so the JSON
// round-trips through sqlite without float key surprises.
func marshalCurve(curve map[int]int) (string, error) {
	if len(curve) == 0 {
		return "{}", nil
	}
	m := make(map[string]int, len(curve))
	for d, w := range curve {
		m[strconv.Itoa(d)] = w
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalCurve(raw string) (map[int]int, error) {
	if raw == "" || raw == "{}" {
		return map[int]int{}, nil
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	curve := make(map[int]int, len(m))
	for k, w := range m {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		curve[d] = w
	}
	return curve, nil
}
