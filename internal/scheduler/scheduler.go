package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

// Cycler runs one ingestion cycle.
type Cycler interface {
	RunCycle(ctx context.Context) weather.HealthSummary
}

// Scheduler periodically runs ingestion cycles in-process.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	cycler       Cycler
	interval     time.Duration
	cycleTimeout time.Duration
	log          *slog.Logger
}

// New creates a new Scheduler.
func New(cycler Cycler, interval, cycleTimeout time.Duration, log *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A cycle that overruns the interval delays the next one instead of overlapping it.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:    s,
		cycler:       cycler,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		log:          log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first cycle runs immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.log.Info("scheduler started", "interval_minutes", minutes)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
	defer cancel()

	summary := s.cycler.RunCycle(ctx)
	if summary.Errors != nil {
		s.log.Warn("scheduled cycle finished with errors", "errors", *summary.Errors)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
