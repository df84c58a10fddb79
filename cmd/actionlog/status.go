package main

import (
	"context"
	"fmt"
	"time"

	"github.com/actionsum/actionlog/internal/bucket"
	"github.com/actionsum/actionlog/internal/config"
	"github.com/actionsum/actionlog/internal/daemon"
	"github.com/actionsum/actionlog/internal/database"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/pkg/detector"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorder status, the focused window and today's captures",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		showStatus(config.New())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running recorder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopRecorder(config.New())
	},
}

func stopRecorder(cfg *config.Config) error {
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check recorder status: %w", err)
	}

	if !running {
		fmt.Println("Recorder is not running")
		return nil
	}

	fmt.Printf("Stopping recorder (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop recorder: %w", err)
	}

	fmt.Println("Stop signal sent")
	return nil
}

func showStatus(cfg *config.Config) {
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		fmt.Printf("Status: unknown (%v)\n", err)
	} else if running {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
	} else {
		fmt.Println("Status: Not running")
	}
	fmt.Printf("Output root: %s\n", cfg.Output.Root)
	fmt.Printf("Poll interval: %v\n", cfg.Tracker.PollInterval)

	showCurrentWindow(cfg)

	now := time.Now().In(cfg.Location())
	if b, err := bucket.New(cfg.Tracker.Alignment); err == nil {
		today := b.Bucket(now)
		l := layout.New(afero.NewOsFs(), cfg.Output.Root)
		report := l.ReportPath(today)
		if ok, _ := afero.Exists(l.Fs(), report); ok {
			fmt.Printf("Today's report: %s\n", report)
		}
	}

	if cfg.Index.Enabled {
		showIndex(cfg, now)
	}
}

// showCurrentWindow prints what the next pass would record.
func showCurrentWindow(cfg *config.Config) {
	session, err := detector.New(cfg.Display.Name, cfg.Tracker.CallTimeout)
	if err != nil {
		fmt.Printf("\nCould not inspect current window: %v\n", err)
		return
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Tracker.CallTimeout)
	defer cancel()

	obs, err := session.CurrentWindow(ctx)
	if err != nil {
		fmt.Printf("\nCould not inspect current window: %v\n", err)
		return
	}
	if obs == nil {
		fmt.Println("\nCurrent Window: none")
		return
	}

	fmt.Printf("\nCurrent Window:\n")
	fmt.Printf("  Class: %s\n", obs.ClassName)
	fmt.Printf("  Title: %s\n", obs.Title)
	fmt.Printf("  Geometry: %dx%d+%d+%d\n", obs.Geometry.Width, obs.Geometry.Height, obs.Geometry.X, obs.Geometry.Y)
	fmt.Printf("  Display: %s\n", session.DisplayServer())
}

func showIndex(cfg *config.Config, now time.Time) {
	db, err := database.Connect(cfg.Index.Path)
	if err != nil {
		fmt.Printf("\nCapture index unavailable: %v\n", err)
		return
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		fmt.Printf("\nCapture index unavailable: %v\n", err)
		return
	}
	repo := database.NewRepository(db)

	latest, err := repo.GetLatest()
	if err == nil && latest != nil {
		fmt.Printf("\nLast Capture:\n")
		fmt.Printf("  Time: %s\n", latest.Timestamp.In(cfg.Location()).Format("2006-01-02 15:04:05"))
		fmt.Printf("  Class: %s\n", latest.ClassName)
		fmt.Printf("  File: %s\n", latest.ArtifactPath)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	summaries, err := repo.GetClassSummarySince(midnight, cfg.Tracker.PollInterval)
	if err != nil {
		fmt.Printf("\nCould not summarize today: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		return
	}

	fmt.Printf("\nToday:\n")
	for _, s := range summaries {
		fmt.Printf("  %-24s %5d captures  ~%-9s %5.1f%%\n",
			s.ClassName, s.CaptureCount, time.Duration(s.TotalSeconds)*time.Second, s.Percentage)
	}

	for _, kind := range []string{"transient", "capture", "render"} {
		if n, err := repo.CountErrorsSince(kind, midnight); err == nil && n > 0 {
			fmt.Printf("  Recovered %s errors: %d\n", kind, n)
		}
	}
}
