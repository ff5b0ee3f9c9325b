// Package fitness maintains the daily CTL/ATL/TSB ledger derived from
// per-activity training stress.
package fitness

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jpanek/cyclingdatahub/internal/store"
)

// EMA time constants, in days. CTL tracks fitness, ATL fatigue.
const (
	ctlDays = 42.0
	atlDays = 7.0
)

const dayFormat = "2006-01-02"

// Ledger recomputes the daily fitness timeline of an athlete
type Ledger struct {
	store  *store.DB
	logger *slog.Logger
}

// NewLedger creates a ledger over the given store
func NewLedger(db *store.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: db, logger: logger}
}

// RecomputeFrom rebuilds the ledger from the given date through today,
// seeding the exponential averages from the day before. Returns the
// number of days written.
func (l *Ledger) RecomputeFrom(athleteID int64, from time.Time) (int, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if start.After(end) {
		return 0, nil
	}

	// Seed from the ledger day preceding the rebuild window
	var ctl, atl float64
	prevDay := start.AddDate(0, 0, -1).Format(dayFormat)
	prev, err := l.store.GetDailyMetrics(athleteID, prevDay)
	if err != nil {
		return 0, fmt.Errorf("reading ledger seed: %w", err)
	}
	if prev != nil {
		ctl = prev.CTL
		atl = prev.ATL
	}

	totals, err := l.store.DailyTSSTotals(athleteID, start)
	if err != nil {
		return 0, fmt.Errorf("loading daily stress totals: %w", err)
	}

	ctlDecay := 2.0 / (ctlDays + 1.0)
	atlDecay := 2.0 / (atlDays + 1.0)

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(dayFormat)
		tss := totals[day] // 0 on rest days

		ctl = ctl + ctlDecay*(tss-ctl)
		atl = atl + atlDecay*(tss-atl)

		err := l.store.UpsertDailyMetrics(&store.DailyMetrics{
			AthleteID: athleteID,
			Day:       day,
			TSS:       tss,
			CTL:       ctl,
			ATL:       atl,
			TSB:       ctl - atl,
		})
		if err != nil {
			return days, fmt.Errorf("writing ledger day %s: %w", day, err)
		}
		days++
	}

	l.logger.Debug("fitness ledger rebuilt",
		"athlete_id", athleteID,
		"from", start.Format(dayFormat),
		"days", days)

	return days, nil
}
