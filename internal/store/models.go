package store

import "time"

// Athlete represents a registered athlete and their performance baseline.
// The manual_* fields are user overrides; the detected_* fields are
// maintained by the baseline resolver during analytics processing.
type Athlete struct {
	ID                        int64      `db:"id"`
	Firstname                 string     `db:"firstname"`
	ManualFTP                 *int       `db:"manual_ftp"`
	ManualFTPEffectiveAt      *time.Time `db:"manual_ftp_effective_at"`
	ManualMaxHR               *int       `db:"manual_max_hr"`
	DetectedFTP               *int       `db:"detected_ftp"`
	DetectedFTPSourceActivity *int64     `db:"detected_ftp_source_activity"`
	DetectedFTPAt             *time.Time `db:"detected_ftp_at"`
	DetectedMaxHR             *int       `db:"detected_max_hr"`
	DetectedMaxHRAt           *time.Time `db:"detected_max_hr_at"`
}

// Activity represents an activity summary
type Activity struct {
	ID                 int64     `db:"id"`
	AthleteID          int64     `db:"athlete_id"`
	Name               string    `db:"name"`
	Type               string    `db:"type"`
	StartDateLocal     time.Time `db:"start_date_local"`
	MovingTime         int       `db:"moving_time"` // seconds
	NeedsRecalculation bool      `db:"needs_recalculation"`
}

// StreamSet holds the aligned sample arrays of one activity, indexed by
// the same sample index. Any array may be nil or shorter than the others;
// consumers must treat mismatches as insufficient data.
type StreamSet struct {
	ActivityID int64     `json:"-"`
	Time       []int     `json:"time"`
	Watts      []float64 `json:"watts"`
	Heartrate  []float64 `json:"heartrate"`
	Cadence    []float64 `json:"cadence"`
	Altitude   []float64 `json:"altitude"`
	Temp       []float64 `json:"temp"`
}

// AnalyticsRecord is the derived analytics row for one activity. It is
// created and overwritten only by the analytics processor, in one upsert.
type AnalyticsRecord struct {
	ActivityID        int64       `db:"activity_id"`
	Peak5s            *int        `db:"peak_5s"`
	Peak1m            *int        `db:"peak_1m"`
	Peak5m            *int        `db:"peak_5m"`
	Peak20m           *int        `db:"peak_20m"`
	Peak5sHR          *int        `db:"peak_5s_hr"`
	Peak1mHR          *int        `db:"peak_1m_hr"`
	Peak5mHR          *int        `db:"peak_5m_hr"`
	Peak20mHR         *int        `db:"peak_20m_hr"`
	WeightedAvgPower  int         `db:"weighted_avg_power"`
	BaselineFTP       int         `db:"baseline_ftp"`
	MaxHR             *int        `db:"max_hr"`
	MaxVAM            int         `db:"max_vam"`
	AerobicDecoupling *float64    `db:"aerobic_decoupling"`
	VariabilityIndex  float64     `db:"variability_index"`
	EfficiencyFactor  float64     `db:"efficiency_factor"`
	IntensityScore    float64     `db:"intensity_score"`
	TrainingStress    float64     `db:"training_stress"`
	PowerCurve        map[int]int `db:"power_curve"` // duration seconds -> best mean watts
}

// PeakSample is one peak-power observation in an athlete's history
type PeakSample struct {
	ActivityID int64
	Date       time.Time
	Value      int
}

// DatedCurve is one activity's power curve with its date
type DatedCurve struct {
	ActivityID int64
	Date       time.Time
	Curve      map[int]int
}

// DailyMetrics is one day of the athlete's fitness ledger
type DailyMetrics struct {
	AthleteID int64   `db:"athlete_id"`
	Day       string  `db:"day"` // YYYY-MM-DD
	TSS       float64 `db:"tss"`
	CTL       float64 `db:"ctl"`
	ATL       float64 `db:"atl"`
	TSB       float64 `db:"tsb"`
}
