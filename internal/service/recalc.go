package service

import (
	"fmt"
	"sync"
	"time"
)

// BackfillSafetyMargin is subtracted from the earliest backfilled activity
// date before invalidating, so the baseline of the day itself is also
// recomputed.
const BackfillSafetyMargin = 24 * time.Hour

// InvalidateForward flags every activity of the athlete dated at or after
// from for recalculation. Deliberately coarse: over-invalidating is cheap,
// a stale baseline left in place is not. Returns the number of flagged
// activities.
func (s *AnalyticsService) InvalidateForward(athleteID int64, from time.Time) (int, error) {
	n, err := s.store.MarkForRecalculation(athleteID, from)
	if err != nil {
		return 0, fmt.Errorf("flagging activities for athlete %d: %w", athleteID, err)
	}

	s.logger.Info("invalidated forward",
		"athlete_id", athleteID,
		"from", from.Format("2006-01-02"),
		"flagged", n)
	return n, nil
}

// Backlog returns how many of the athlete's activities are flagged
func (s *AnalyticsService) Backlog(athleteID int64) (int, error) {
	return s.store.RecalcBacklogCount(athleteID)
}

// RebuildHistory clears the athlete's detected baseline and flags their
// entire history, so the next drain replays every activity in
// chronological order against a fresh baseline. Returns the number of
// flagged activities.
func (s *AnalyticsService) RebuildHistory(athleteID int64) (int, error) {
	if err := s.store.ResetDetectedBaseline(athleteID); err != nil {
		return 0, fmt.Errorf("resetting baseline for athlete %d: %w", athleteID, err)
	}
	s.logger.Info("detected baseline reset", "athlete_id", athleteID)
	return s.InvalidateForward(athleteID, time.Unix(0, 0))
}

// DeleteActivity removes an activity together with its streams and
// analytics, then invalidates the athlete's history from the removed
// ride's date. Returns the number of flagged activities.
func (s *AnalyticsService) DeleteActivity(activityID int64) (int, error) {
	activity, err := s.store.GetActivity(activityID)
	if err != nil {
		return 0, fmt.Errorf("loading activity %d: %w", activityID, err)
	}
	if err := s.store.DeleteActivity(activityID); err != nil {
		return 0, fmt.Errorf("deleting activity %d: %w", activityID, err)
	}

	s.logger.Info("activity deleted",
		"activity_id", activityID,
		"athlete_id", activity.AthleteID,
		"date", activity.StartDateLocal.Format("2006-01-02"))

	return s.InvalidateForward(activity.AthleteID, activity.StartDateLocal)
}

// DrainRecalcQueue reprocesses up to batchSize flagged activities of one
// athlete, strictly oldest first so every activity sees a baseline built
// only from what came before it. A single activity's failure is logged and
// does not stop the batch. After any success the fitness ledger is rebuilt
// from the earliest reprocessed date. Returns the number of activities
// successfully reprocessed.
func (s *AnalyticsService) DrainRecalcQueue(athleteID int64, batchSize int) (int, error) {
	queue, err := s.store.RecalcQueue(athleteID, batchSize)
	if err != nil {
		return 0, fmt.Errorf("loading recalc queue for athlete %d: %w", athleteID, err)
	}
	if len(queue) == 0 {
		return 0, nil
	}

	processed := 0
	var earliest time.Time

	for _, activity := range queue {
		ok, err := s.ProcessActivity(activity.ID, true)
		if err != nil {
			s.logger.Error("reprocessing activity failed",
				"activity_id", activity.ID,
				"athlete_id", athleteID,
				"error", err)
			continue
		}
		if !ok {
			// Streams not there yet; the flag stays so a later drain
			// picks the activity up again
			s.logger.Warn("activity has no streams yet, leaving flagged",
				"activity_id", activity.ID,
				"athlete_id", athleteID)
			continue
		}

		if err := s.store.ClearRecalculation(activity.ID); err != nil {
			s.logger.Error("clearing recalculation flag failed",
				"activity_id", activity.ID,
				"error", err)
			continue
		}

		if processed == 0 || activity.StartDateLocal.Before(earliest) {
			earliest = activity.StartDateLocal
		}
		processed++
	}

	if processed > 0 && s.ledger != nil {
		days, err := s.ledger.RecomputeFrom(athleteID, earliest)
		if err != nil {
			s.logger.Error("fitness ledger recompute failed",
				"athlete_id", athleteID,
				"from", earliest.Format("2006-01-02"),
				"error", err)
		} else {
			s.logger.Info("recalculation batch complete",
				"athlete_id", athleteID,
				"processed", processed,
				"ledger_days", days)
		}
	}

	return processed, nil
}

// DrainAll drains the backlog of every athlete that has one. Athletes are
// independent, so up to the configured number of workers run in parallel;
// each athlete's queue is still drained by exactly one goroutine. Returns
// the total number of activities reprocessed.
func (s *AnalyticsService) DrainAll(batchSize int) (int, error) {
	athletes, err := s.store.AthletesWithBacklog()
	if err != nil {
		return 0, fmt.Errorf("finding athletes with backlog: %w", err)
	}
	if len(athletes) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for _, athleteID := range athletes {
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := s.DrainRecalcQueue(id, batchSize)
			if err != nil {
				// One athlete's failure must not abort the others
				s.logger.Error("draining athlete backlog failed",
					"athlete_id", id, "error", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(athleteID)
	}

	wg.Wait()
	return total, nil
}
