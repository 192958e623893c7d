// Package scheduler runs the daemon's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
)

// Job is one scheduled task. RunOnStart also runs it once from Start.
type Job struct {
	Name       string
	Schedule   string
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	jobs   []Job
}

func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a run func")
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start schedules every job with ctx as their parent context.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(ctx, job) }); err != nil {
			return fmt.Errorf("scheduler: add %s: %w", job.Name, err)
		}
	}
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")

	for _, job := range s.jobs {
		if job.RunOnStart {
			s.run(ctx, job)
		}
	}
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("stopping scheduler")
	done := s.cron.Stop()
	<-done.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := job.Run(ctx)
	metrics.SchedulerRuns.WithLabelValues(job.Name, metrics.Status(err)).Inc()

	if err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Dur("duration", time.Since(start)).Msg("scheduled job failed")
		return
	}
	s.logger.Debug().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("scheduled job completed")
}

// MarketLoader reloads the market list into the client store.
type MarketLoader interface {
	LoadMarkets(ctx context.Context) ([]domain.Market, error)
}

// MarketRefresh builds the job that keeps the market list fresh.
func MarketRefresh(schedule string, loader MarketLoader) Job {
	return Job{
		Name:       "refresh-markets",
		Schedule:   schedule,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := loader.LoadMarkets(ctx)
			return err
		},
	}
}

// PhotoPoller advances tracked photos.
type PhotoPoller interface {
	Poll(ctx context.Context) ([]domain.Photo, error)
}

// PhotoPoll builds the job that follows photos still being processed.
func PhotoPoll(schedule string, poller PhotoPoller, logger zerolog.Logger) Job {
	return Job{
		Name:     "poll-photos",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			finished, err := poller.Poll(ctx)
			for _, p := range finished {
				logger.Info().
					Str("photo_id", p.ID).
					Str("status", string(p.ProcessingStatus)).
					Msg("photo processing finished")
			}
			return err
		},
	}
}
