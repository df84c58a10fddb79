package tracker

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/actionsum/actionlog/internal/bucket"
	"github.com/actionsum/actionlog/internal/config"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/internal/models"
	"github.com/actionsum/actionlog/internal/reporter"
	"github.com/actionsum/actionlog/internal/screenshot"
	"github.com/actionsum/actionlog/pkg/window"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var oneLine = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// State is the scheduler state.
type State int32

const (
	Idle State = iota
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Capturer persists a screenshot for an observation.
type Capturer interface {
	Capture(ctx context.Context, obs *window.Observation, b bucket.Bucket) (string, error)
}

// Recorder appends report rows and regenerates the daily page.
type Recorder interface {
	Record(obs *window.Observation, artifactPath string, b bucket.Bucket) (string, error)
	Render(b bucket.Bucket) (string, error)
}

// Index stores a secondary, queryable copy of each pass.
type Index interface {
	Create(event *models.CaptureEvent) error
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// Result describes one pass.
type Result struct {
	Observation  *window.Observation
	Bucket       bucket.Bucket
	ArtifactPath string
	ReportPath   string
	Skipped      bool
	Reason       string
}

type Option func(*Service)

// WithIndex records every pass and every recovered error in idx.
func WithIndex(idx Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithStatusWriter sets where per-pass status lines go (stdout by default).
func WithStatusWriter(w io.Writer) Option {
	return func(s *Service) { s.out = w }
}

// WithClock replaces time.Now for observations that carry no capture time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTemplateChanges re-renders the latest report whenever ch fires.
func WithTemplateChanges(ch <-chan string) Option {
	return func(s *Service) { s.templateChanges = ch }
}

// Service runs the capture loop. Passes never overlap, so every write to the
// output root is serialized through it.
type Service struct {
	config    *config.Config
	inspector window.Inspector
	capturer  Capturer
	recorder  Recorder
	index     Index
	bucketer  *bucket.Bucketer
	location  *time.Location
	out       io.Writer
	now       func() time.Time
	runID     string

	templateChanges <-chan string
	lastBucket      *bucket.Bucket

	state    atomic.Int32
	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewService(cfg *config.Config, inspector window.Inspector, capturer Capturer, recorder Recorder, opts ...Option) (*Service, error) {
	bucketer, err := bucket.New(cfg.Tracker.Alignment)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:    cfg,
		inspector: inspector,
		capturer:  capturer,
		recorder:  recorder,
		bucketer:  bucketer,
		location:  cfg.Location(),
		out:       os.Stdout,
		now:       time.Now,
		runID:     uuid.New().String(),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs passes until ctx ends or Stop is called. The first pass runs
// immediately; the next one starts a full poll interval after the previous
// pass finished. A persistence failure ends the loop with that error.
func (s *Service) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("tracker is already running")
	}
	defer s.running.Store(false)

	log.Printf("Starting capture loop with %v poll interval (run %s)", s.config.Tracker.PollInterval, s.runID)

	timer := time.NewTimer(s.config.Tracker.PollInterval)
	defer timer.Stop()

	for {
		if _, err := s.CaptureOnce(ctx); err != nil {
			return err
		}
		timer.Reset(s.config.Tracker.PollInterval)

	wait:
		for {
			select {
			case <-ctx.Done():
				log.Println("Tracker stopped by context")
				return ctx.Err()

			case <-s.stopChan:
				log.Println("Tracker stopped")
				return nil

			case name := <-s.templateChanges:
				if err := s.rerender(name); err != nil {
					return err
				}

			case <-timer.C:
				break wait
			}
		}
	}
}

// Stop ends a running loop. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// RunID identifies this process in the capture index.
func (s *Service) RunID() string {
	return s.runID
}

// CaptureOnce runs one full pass. Missing windows, transient window errors,
// capture errors and render errors are recovered and reported through the
// Result; only persistence failures are returned as errors.
func (s *Service) CaptureOnce(ctx context.Context) (*Result, error) {
	s.state.Store(int32(Capturing))
	defer s.state.Store(int32(Idle))

	obs, err := s.inspector.CurrentWindow(ctx)
	if err != nil {
		s.storeError("transient", err)
		return skipped(err.Error()), nil
	}
	if obs == nil {
		return skipped("no active window"), nil
	}

	if obs.CapturedAt.IsZero() {
		obs.CapturedAt = s.now()
	}
	b := s.bucketer.Bucket(obs.CapturedAt.In(s.location))
	result := &Result{Observation: obs, Bucket: b}

	artifact, err := s.capturer.Capture(ctx, obs, b)
	if err != nil {
		if errors.Is(err, layout.ErrPersistence) {
			return nil, err
		}
		s.storeError("capture", err)
		result.Skipped = true
		result.Reason = err.Error()
		return result, nil
	}
	result.ArtifactPath = artifact

	reportPath, err := s.recorder.Record(obs, artifact, b)
	if err != nil {
		if !errors.Is(err, reporter.ErrRender) {
			return nil, err
		}
		s.storeError("render", err)
	}
	result.ReportPath = reportPath
	s.lastBucket = &b

	s.indexCapture(result)
	s.printStatus(result)

	return result, nil
}

func (s *Service) rerender(name string) error {
	if s.lastBucket == nil {
		return nil
	}
	path, err := s.recorder.Render(*s.lastBucket)
	if err != nil {
		if errors.Is(err, reporter.ErrRender) {
			s.storeError("render", err)
			return nil
		}
		return err
	}
	log.Printf("Template %s changed, regenerated %s", name, path)
	return nil
}

func (s *Service) printStatus(r *Result) {
	detail := r.Observation.Title
	if s.config.Tracker.StatusShowsArtifact {
		detail = r.ArtifactPath
	}
	fmt.Fprintf(s.out, "%s: %s -- %s\n", r.Bucket.Label(), oneLine.Replace(r.Observation.ClassName), oneLine.Replace(detail))
}

func (s *Service) indexCapture(r *Result) {
	if s.index == nil {
		return
	}

	event := &models.CaptureEvent{
		Timestamp:     r.Bucket.Time,
		ClassName:     r.Observation.ClassName,
		WindowTitle:   r.Observation.Title,
		X:             r.Observation.Geometry.X,
		Y:             r.Observation.Geometry.Y,
		Width:         r.Observation.Geometry.Width,
		Height:        r.Observation.Geometry.Height,
		ArtifactPath:  r.ArtifactPath,
		ReportPath:    r.ReportPath,
		RunID:         s.runID,
		DisplayServer: s.inspector.DisplayServer(),
	}

	if err := s.index.Create(event); err != nil {
		log.Printf("Failed to index capture: %v", err)
	}
}

func (s *Service) storeError(kind string, err error) {
	log.Printf("Recovered %s error: %v", kind, err)
	if s.index == nil {
		return
	}

	errorLog := &models.ErrorLog{
		Timestamp: s.now(),
		Kind:      kind,
		ErrorMsg:  err.Error(),
		RunID:     s.runID,
	}

	if dbErr := s.index.CreateErrorLog(errorLog); dbErr != nil {
		log.Printf("Failed to store error in database: %v (original error: %v)", dbErr, err)
	}
}

func skipped(reason string) *Result {
	return &Result{Skipped: true, Reason: reason}
}

var _ Capturer = (*screenshot.Capturer)(nil)
var _ Recorder = (*reporter.Reporter)(nil)
