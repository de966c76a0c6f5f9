// Package sampler runs the periodic jobs that feed the engine: balance
// refreshes and portfolio snapshots.
package sampler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 2 * time.Minute

// Job unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler runs jobs on cron schedules. Schedules accept an optional
// seconds field and descriptors such as "@every 5m" or "@hourly".
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With(zap.String("component", "scheduler"))
	cronLogger := zapCronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		timeout: defaultJobTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// AddJob registers job under the cron schedule.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunNow(job); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q for job %s", schedule, job.Name())
	}

	s.logger.Info("job registered", zap.String("schedule", schedule), zap.String("job", job.Name()))

	return nil
}

// RunNow executes a job immediately, outside its schedule. A panicking job
// is reported as an error.
func (s *Scheduler) RunNow(job Job) (err error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()

	s.logger.Debug("running job", zap.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		return err
	}
	s.logger.Debug("job completed", zap.String("job", job.Name()))

	return nil
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
