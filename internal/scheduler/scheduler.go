// Package scheduler runs QuickCourt's periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultJobTimeout = time.Minute

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
	ErrNilJobFunc     = errors.New("job function is required")
)

// Job describes a cron job. Run receives a context carrying the job logger
// that is cancelled after Timeout.
type Job struct {
	Name    string
	Cron    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

func (j Job) validate() error {
	switch {
	case strings.TrimSpace(j.Name) == "":
		return ErrEmptyJobName
	case strings.TrimSpace(j.Cron) == "":
		return ErrEmptyCronExpr
	case j.Run == nil:
		return ErrNilJobFunc
	}
	return nil
}

// Service owns one gocron scheduler.
type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

// New builds a scheduler that logs failed and panicking jobs.
func New(options ...gocron.SchedulerOption) (*Service, error) {
	listeners := gocron.WithEventListeners(
		gocron.AfterJobRunsWithError(func(id uuid.UUID, name string, err error) {
			log.Error().Err(err).Str("job_id", id.String()).Str("job_name", name).Msg("Scheduler job failed")
		}),
		gocron.AfterJobRunsWithPanic(func(id uuid.UUID, name string, recovered any) {
			log.Error().Interface("panic", recovered).Str("job_id", id.String()).Str("job_name", name).Msg("Scheduler job panicked")
		}),
	)

	sched, err := gocron.NewScheduler(append([]gocron.SchedulerOption{gocron.WithGlobalJobOptions(listeners)}, options...)...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Service{scheduler: sched}, nil
}

func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop waits for running jobs and is safe to call more than once.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Schedule registers job. A run that is still going when the next tick fires
// pushes that tick back instead of overlapping.
func (s *Service) Schedule(job Job) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}

	logger := log.With().Str("job_name", job.Name).Str("cron", job.Cron).Logger()

	registered, err := s.scheduler.NewJob(
		gocron.CronJob(job.Cron, false),
		gocron.NewTask(runWithTimeout, logger, job),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register scheduler job")
		return nil, fmt.Errorf("register job %s: %w", job.Name, err)
	}
	logger.Info().Str("job_id", registered.ID().String()).Msg("Scheduler job registered")
	return registered, nil
}

func runWithTimeout(logger zerolog.Logger, job Job) error {
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), job.Timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		return err
	}
	logger.Debug().Dur("duration", time.Since(start)).Msg("Scheduler job completed")
	return nil
}
