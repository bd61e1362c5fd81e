package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/ecovision/internal/orchestrator"
)

// Dispatcher accepts orchestrator commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd orchestrator.Command) error
}

// Scheduler periodically fetches again the filters of the latest apply.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	dispatcher Dispatcher
	interval   time.Duration
	timeout    time.Duration
	log        zerolog.Logger
}

// New creates a new Scheduler. timeout bounds each refresh (0 = none).
func New(interval, timeout time.Duration, dispatcher Dispatcher, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A refresh still running when the next tick fires is not doubled up.
	s.SingletonModeAll()

	return &Scheduler{
		scheduler:  s,
		dispatcher: dispatcher,
		interval:   interval,
		timeout:    timeout,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// A zero interval disables auto refresh.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info().Msg("auto refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.refresh)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info().Dur("interval", s.interval).Msg("auto refresh scheduled")
	return nil
}

func (s *Scheduler) refresh() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.Debug().Msg("running scheduled refresh")
	if err := s.dispatcher.Dispatch(ctx, orchestrator.RefreshFilters{}); err != nil {
		s.log.Warn().Err(err).Msg("scheduled refresh failed")
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
