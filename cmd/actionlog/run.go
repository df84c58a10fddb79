package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/actionsum/actionlog/internal/config"
	"github.com/actionsum/actionlog/internal/daemon"
	"github.com/actionsum/actionlog/internal/database"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/internal/reporter"
	"github.com/actionsum/actionlog/internal/screenshot"
	"github.com/actionsum/actionlog/internal/tracker"
	"github.com/actionsum/actionlog/internal/watcher"
	"github.com/actionsum/actionlog/pkg/detector"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single capture pass and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce()
	},
}

// recorder holds everything a capture pass needs and releases it on close.
type recorder struct {
	service *tracker.Service
	closers []func() error
}

func (r *recorder) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRecorder opens the X session and wires the capture pipeline below the output root.
func newRecorder(ctx context.Context, cfg *config.Config, watch bool) (*recorder, error) {
	r := &recorder{}

	session, err := detector.New(cfg.Display.Name, cfg.Tracker.CallTimeout)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, session.Close)
	log.Printf("Window inspector initialized: %s", session.DisplayServer())

	l := layout.New(afero.NewOsFs(), cfg.Output.Root)
	opts := []tracker.Option{}

	if cfg.Index.Enabled {
		db, err := database.Connect(cfg.Index.Path)
		if err == nil {
			err = db.Initialize()
			if err != nil {
				db.Close()
			}
		}
		if err != nil {
			// the report is the durable record; recording continues without the index
			log.Printf("Capture index disabled: %v", err)
		} else {
			r.closers = append(r.closers, db.Close)
			opts = append(opts, tracker.WithIndex(database.NewRepository(db)))
		}
	}

	if watch && cfg.Report.WatchTemplates && cfg.Report.TemplateDir != "" {
		w, err := watcher.New(cfg.Report.TemplateDir)
		if err != nil {
			log.Printf("Template watching disabled: %v", err)
		} else {
			r.closers = append(r.closers, w.Close)
			go w.Run(ctx)
			opts = append(opts, tracker.WithTemplateChanges(w.Changes()))
		}
	}

	svc, err := tracker.NewService(cfg, session,
		screenshot.New(session, l),
		reporter.New(l, cfg.Report.TemplateDir, cfg.Report.TemplateName),
		opts...,
	)
	if err != nil {
		r.close()
		return nil, err
	}
	r.service = svc
	return r, nil
}

// acquire takes the single-writer guard on the output root.
func acquire(cfg *config.Config) (*daemon.Daemon, error) {
	dm := daemon.New(cfg.Daemon.PIDFile)
	if err := dm.Acquire(); err != nil {
		return nil, err
	}
	return dm, nil
}

func runRecorder() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dm, err := acquire(cfg)
	if err != nil {
		return err
	}
	defer dm.RemovePID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec, err := newRecorder(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rec.close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			log.Println("Received shutdown signal")
			rec.service.Stop()
		case <-ctx.Done():
		}
	}()

	log.Printf("Starting %s %s", appName, version)
	log.Printf("Configuration:\n%s", cfg.String())

	if err := rec.service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("recorder stopped: %w", err)
	}

	log.Println("Recorder stopped")
	return nil
}

func runOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dm, err := acquire(cfg)
	if err != nil {
		return err
	}
	defer dm.RemovePID()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Tracker.PollInterval)
	defer cancel()

	rec, err := newRecorder(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer rec.close()

	result, err := rec.service.CaptureOnce(ctx)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Printf("Nothing recorded: %s\n", result.Reason)
	}
	return nil
}
