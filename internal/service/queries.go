package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpanek/cyclingdatahub/internal/store"
)

// QueryService provides the read-only views the TUI renders
type QueryService struct {
	store *store.DB
}

// NewQueryService creates a query service
func NewQueryService(db *store.DB) *QueryService {
	return &QueryService{store: db}
}

// DashboardData is everything the athlete dashboard shows
type DashboardData struct {
	Athlete store.Athlete

	// Fitness is the latest ledger day, nil before the first recompute
	Fitness *store.DailyMetrics

	Recent  []store.ActivityWithAnalytics
	Backlog int
}

// Dashboard assembles the dashboard view of one athlete
func (q *QueryService) Dashboard(athleteID int64) (*DashboardData, error) {
	athlete, err := q.store.GetAthlete(athleteID)
	if err != nil {
		return nil, fmt.Errorf("loading athlete %d: %w", athleteID, err)
	}

	fitness, err := q.store.LatestDailyMetrics(athleteID)
	if err != nil {
		return nil, fmt.Errorf("loading fitness for athlete %d: %w", athleteID, err)
	}

	recent, err := q.store.RecentAnalytics(athleteID, 10)
	if err != nil {
		return nil, fmt.Errorf("loading recent analytics for athlete %d: %w", athleteID, err)
	}

	backlog, err := q.store.RecalcBacklogCount(athleteID)
	if err != nil {
		return nil, fmt.Errorf("counting backlog for athlete %d: %w", athleteID, err)
	}

	return &DashboardData{
		Athlete: *athlete,
		Fitness: fitness,
		Recent:  recent,
		Backlog: backlog,
	}, nil
}

// Athletes lists all athletes
func (q *QueryService) Athletes() ([]store.Athlete, error) {
	return q.store.ListAthletes()
}

// FitnessHistory returns the athlete's ledger rows for the last n days,
// oldest first.
func (q *QueryService) FitnessHistory(athleteID int64, days int) ([]store.DailyMetrics, error) {
	to := time.Now().UTC().Format("2006-01-02")
	from := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	return q.store.ListDailyMetrics(athleteID, from, to)
}

// ActivityRow is one activities-list row. Record is nil when the
// activity has not been processed yet.
type ActivityRow struct {
	Activity store.Activity
	Record   *store.AnalyticsRecord
}

// ActivitiesPage returns one page of the athlete's activities, newest
// first, together with the total count for pagination.
func (q *QueryService) ActivitiesPage(athleteID int64, limit, offset int) ([]ActivityRow, int, error) {
	activities, err := q.store.ListActivities(athleteID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing activities: %w", err)
	}

	rows := make([]ActivityRow, 0, len(activities))
	for _, a := range activities {
		record, err := q.store.GetAnalytics(a.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("loading analytics for activity %d: %w", a.ID, err)
		}
		rows = append(rows, ActivityRow{Activity: a, Record: record})
	}

	total, err := q.store.CountActivities(athleteID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting activities: %w", err)
	}
	return rows, total, nil
}

// ActivityDetail is the full view of one activity
type ActivityDetail struct {
	Activity store.Activity
	Record   *store.AnalyticsRecord
	Streams  *store.StreamSet
}

// Detail loads one activity with its analytics and raw streams. Streams
// is nil when none were stored.
func (q *QueryService) Detail(activityID int64) (*ActivityDetail, error) {
	activity, err := q.store.GetActivity(activityID)
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", activityID, err)
	}

	record, err := q.store.GetAnalytics(activityID)
	if err != nil {
		return nil, fmt.Errorf("loading analytics for activity %d: %w", activityID, err)
	}

	streams, err := q.store.GetStreams(activityID)
	if err != nil && !errors.Is(err, store.ErrStreamsNotFound) {
		return nil, fmt.Errorf("loading streams for activity %d: %w", activityID, err)
	}

	return &ActivityDetail{Activity: *activity, Record: record, Streams: streams}, nil
}
