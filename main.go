package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpanek/cyclingdatahub/internal/baseline"
	"github.com/jpanek/cyclingdatahub/internal/config"
	"github.com/jpanek/cyclingdatahub/internal/fitimport"
	"github.com/jpanek/cyclingdatahub/internal/fitness"
	"github.com/jpanek/cyclingdatahub/internal/service"
	"github.com/jpanek/cyclingdatahub/internal/store"
	"github.com/jpanek/cyclingdatahub/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		athleteID   = flag.Int64("athlete", 0, "athlete id (defaults to the only registered athlete)")
		importPath  = flag.String("import", "", "import a FIT file and recalculate affected history")
		deleteID    = flag.Int64("delete", 0, "delete an activity by id and recalculate affected history")
		drain       = flag.Bool("drain", false, "recalculate all flagged activities and exit")
		rebuild     = flag.Bool("rebuild", false, "reset the detected baseline and replay the whole history")
		setFTP      = flag.Int("set-ftp", 0, "set a manual FTP override in watts")
		clearFTP    = flag.Bool("clear-ftp", false, "remove the manual FTP override")
		effective   = flag.String("effective", "", "effective date for -set-ftp (YYYY-MM-DD, default: all history)")
		setMaxHR    = flag.Int("set-maxhr", 0, "set a manual max HR override in bpm")
		clearMaxHR  = flag.Bool("clear-maxhr", false, "remove the manual max HR override")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating one with defaults...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	headless := *importPath != "" || *deleteID > 0 || *drain || *rebuild ||
		*setFTP > 0 || *clearFTP || *setMaxHR > 0 || *clearMaxHR

	logger, closeLog, err := newLogger(headless)
	if err != nil {
		return err
	}
	defer closeLog()

	// Open database
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// Create services
	resolver := baseline.NewResolver(db,
		cfg.Analytics.FTPLookbackDays,
		cfg.Analytics.DefaultFTP,
		cfg.Analytics.DefaultMaxHR,
		logger)
	ledger := fitness.NewLedger(db, logger)
	analytics := service.NewAnalyticsService(db, resolver, ledger, cfg.Recalc.Workers, logger)
	queries := service.NewQueryService(db)

	switch {
	case *importPath != "":
		id, err := resolveAthleteID(db, *athleteID)
		if err != nil {
			return err
		}
		importer := fitimport.NewImporter(db, analytics, logger)
		activity, flagged, err := importer.ImportFile(*importPath, id)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %q (%s), %d activities flagged for recalculation.\n",
			activity.Name, activity.StartDateLocal.Format("2006-01-02"), flagged)
		return drainAndReport(analytics, cfg.Recalc.BatchSize)

	case *deleteID > 0:
		flagged, err := analytics.DeleteActivity(*deleteID)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted activity %d, %d activities flagged for recalculation.\n", *deleteID, flagged)
		return drainAndReport(analytics, cfg.Recalc.BatchSize)

	case *rebuild:
		id, err := resolveAthleteID(db, *athleteID)
		if err != nil {
			return err
		}
		flagged, err := analytics.RebuildHistory(id)
		if err != nil {
			return err
		}
		fmt.Printf("Baseline reset, %d activities flagged.\n", flagged)
		return drainAndReport(analytics, cfg.Recalc.BatchSize)

	case *drain:
		return drainAndReport(analytics, cfg.Recalc.BatchSize)

	case *setFTP > 0, *clearFTP:
		id, err := resolveAthleteID(db, *athleteID)
		if err != nil {
			return err
		}
		return applyManualFTP(db, analytics, id, *setFTP, *clearFTP, *effective, cfg.Recalc.BatchSize)

	case *setMaxHR > 0, *clearMaxHR:
		id, err := resolveAthleteID(db, *athleteID)
		if err != nil {
			return err
		}
		return applyManualMaxHR(db, analytics, id, *setMaxHR, *clearMaxHR, cfg.Recalc.BatchSize)
	}

	// Launch TUI
	id, err := resolveAthleteID(db, *athleteID)
	if err != nil {
		return err
	}
	app := tui.NewApp(queries, analytics, id)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// resolveAthleteID picks the athlete to operate on. When no id is given
// and exactly one athlete exists, that one is used. When none exist yet,
// athlete 1 is registered on the fly so a first import works.
func resolveAthleteID(db *store.DB, requested int64) (int64, error) {
	if requested > 0 {
		return requested, nil
	}

	athletes, err := db.ListAthletes()
	if err != nil {
		return 0, fmt.Errorf("listing athletes: %w", err)
	}
	switch len(athletes) {
	case 0:
		a := &store.Athlete{ID: 1, Firstname: "Athlete"}
		if err := db.UpsertAthlete(a); err != nil {
			return 0, fmt.Errorf("registering athlete: %w", err)
		}
		return 1, nil
	case 1:
		return athletes[0].ID, nil
	default:
		return 0, errors.New("multiple athletes registered, pass -athlete")
	}
}

func drainAndReport(analytics *service.AnalyticsService, batchSize int) error {
	processed, err := analytics.DrainAll(batchSize)
	if err != nil {
		return err
	}
	fmt.Printf("Recalculated %d activities.\n", processed)
	return nil
}

func applyManualFTP(db *store.DB, analytics *service.AnalyticsService, athleteID int64, watts int, clear bool, effective string, batchSize int) error {
	var ftp *int
	var effectiveAt *time.Time
	invalidateFrom := time.Unix(0, 0)

	if !clear {
		ftp = &watts
		if effective != "" {
			t, err := time.Parse("2006-01-02", effective)
			if err != nil {
				return fmt.Errorf("parsing -effective: %w", err)
			}
			effectiveAt = &t
			invalidateFrom = t
		}
	}

	if err := db.SetManualFTP(athleteID, ftp, effectiveAt); err != nil {
		return fmt.Errorf("updating manual FTP: %w", err)
	}

	if clear {
		fmt.Println("Manual FTP override removed.")
	} else if effectiveAt != nil {
		fmt.Printf("Manual FTP set to %dW effective %s.\n", watts, effective)
	} else {
		fmt.Printf("Manual FTP set to %dW for all history.\n", watts)
	}

	if _, err := analytics.InvalidateForward(athleteID, invalidateFrom); err != nil {
		return err
	}
	return drainAndReport(analytics, batchSize)
}

func applyManualMaxHR(db *store.DB, analytics *service.AnalyticsService, athleteID int64, bpm int, clear bool, batchSize int) error {
	var maxHR *int
	if !clear {
		maxHR = &bpm
	}

	if err := db.SetManualMaxHR(athleteID, maxHR); err != nil {
		return fmt.Errorf("updating manual max HR: %w", err)
	}

	if clear {
		fmt.Println("Manual max HR override removed.")
	} else {
		fmt.Printf("Manual max HR set to %d bpm.\n", bpm)
	}

	// Max HR feeds efficiency metrics on every ride
	if _, err := analytics.InvalidateForward(athleteID, time.Unix(0, 0)); err != nil {
		return err
	}
	return drainAndReport(analytics, batchSize)
}

// newLogger builds the application logger. Headless commands log to
// stderr; the TUI logs to a file so log lines don't tear the screen.
func newLogger(headless bool) (*slog.Logger, func(), error) {
	if headless {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})), func() {}, nil
	}

	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		// Still usable without a log file
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})), func() { f.Close() }, nil
}
