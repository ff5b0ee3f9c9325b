package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveStreams stores the sample arrays for an activity, replacing any
// existing row. Absent arrays are stored as NULL so a later read can tell
// "no data" apart from "empty series".
func (db *DB) SaveStreams(s *StreamSet) error {
	timeJSON, err := marshalSeries(intsToJSON(s.Time))
	if err != nil {
		return fmt.Errorf("encoding time series: %w", err)
	}
	watts, err := marshalSeries(s.Watts)
	if err != nil {
		return fmt.Errorf("encoding watts series: %w", err)
	}
	hr, err := marshalSeries(s.Heartrate)
	if err != nil {
		return fmt.Errorf("encoding heartrate series: %w", err)
	}
	cad, err := marshalSeries(s.Cadence)
	if err != nil {
		return fmt.Errorf("encoding cadence series: %w", err)
	}
	alt, err := marshalSeries(s.Altitude)
	if err != nil {
		return fmt.Errorf("encoding altitude series: %w", err)
	}
	temp, err := marshalSeries(s.Temp)
	if err != nil {
		return fmt.Errorf("encoding temp series: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO activity_streams (
			activity_id, time_series, watts_series, heartrate_series,
			cadence_series, altitude_series, temp_series
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			time_series = excluded.time_series,
			watts_series = excluded.watts_series,
			heartrate_series = excluded.heartrate_series,
			cadence_series = excluded.cadence_series,
			altitude_series = excluded.altitude_series,
			temp_series = excluded.temp_series
	`, s.ActivityID, timeJSON, watts, hr, cad, alt, temp)
	return err
}

// GetStreams retrieves the sample arrays of an activity.
// Returns ErrStreamsNotFound when no streams were ever stored.
func (db *DB) GetStreams(activityID int64) (*StreamSet, error) {
	row := db.QueryRow(`
		SELECT time_series, watts_series, heartrate_series,
			cadence_series, altitude_series, temp_series
		FROM activity_streams
		WHERE activity_id = ?
	`, activityID)

	var timeJSON, watts, hr, cad, alt, temp sql.NullString
	err := row.Scan(&timeJSON, &watts, &hr, &cad, &alt, &temp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStreamsNotFound
	}
	if err != nil {
		return nil, err
	}

	s := &StreamSet{ActivityID: activityID}
	var timeF []float64
	if err := unmarshalSeries(timeJSON, &timeF); err != nil {
		return nil, fmt.Errorf("decoding time series: %w", err)
	}
	s.Time = jsonToInts(timeF)
	if err := unmarshalSeries(watts, &s.Watts); err != nil {
		return nil, fmt.Errorf("decoding watts series: %w", err)
	}
	if err := unmarshalSeries(hr, &s.Heartrate); err != nil {
		return nil, fmt.Errorf("decoding heartrate series: %w", err)
	}
	if err := unmarshalSeries(cad, &s.Cadence); err != nil {
		return nil, fmt.Errorf("decoding cadence series: %w", err)
	}
	if err := unmarshalSeries(alt, &s.Altitude); err != nil {
		return nil, fmt.Errorf("decoding altitude series: %w", err)
	}
	if err := unmarshalSeries(temp, &s.Temp); err != nil {
		return nil, fmt.Errorf("decoding temp series: %w", err)
	}
	return s, nil
}

// HasStreams checks if an activity has stream data
func (db *DB) HasStreams(activityID int64) (bool, error) {
	var exists int
	err := db.QueryRow(`
		SELECT 1 FROM activity_streams WHERE activity_id = ? LIMIT 1
	`, activityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func marshalSeries(series []float64) (interface{}, error) {
	if series == nil {
		return nil, nil
	}
	data, err := json.Marshal(series)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalSeries(col sql.NullString, dst *[]float64) error {
	if !col.Valid || col.String == "" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

func intsToJSON(xs []int) []float64 {
	if xs == nil {
		return nil
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func jsonToInts(xs []float64) []int {
	if xs == nil {
		return nil
	}
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}
