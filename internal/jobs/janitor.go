package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/go-co-op/gocron/v2"
)

// PreviewPurger clears expired preview tokens (*service.WorkflowService)
type PreviewPurger interface {
	PurgeExpiredPreviews(ctx context.Context) (int64, error)
}

// CacheSweeper drops expired cache entries (*cache.Manager)
type CacheSweeper interface {
	Sweep() int
}

// Config job intervals. Zero disables the job.
type Config struct {
	PreviewPurgeInterval time.Duration
	CacheSweepInterval   time.Duration
}

const (
	JobPurgePreviews = "purge-expired-previews"
	JobSweepCache    = "sweep-cache"
)

// Janitor periodic housekeeping: expired preview tokens and expired cache entries.
// Neither job affects correctness: expired tokens never resolve and expired
// entries never hit, the jobs only reclaim space.
type Janitor struct {
	scheduler gocron.Scheduler
	purger    PreviewPurger
	sweeper   CacheSweeper
	jobs      map[string]gocron.Job
	timeout   time.Duration
}

// NewJanitor registers the enabled jobs. Call Start to begin running them.
func NewJanitor(purger PreviewPurger, sweeper CacheSweeper, cfg Config) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Janitor{
		scheduler: scheduler,
		purger:    purger,
		sweeper:   sweeper,
		jobs:      make(map[string]gocron.Job),
		timeout:   time.Minute,
	}

	if purger != nil && cfg.PreviewPurgeInterval > 0 {
		if err := j.register(JobPurgePreviews, cfg.PreviewPurgeInterval, j.purgePreviews); err != nil {
			return nil, err
		}
	}
	if sweeper != nil && cfg.CacheSweepInterval > 0 {
		if err := j.register(JobSweepCache, cfg.CacheSweepInterval, j.sweepCache); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *Janitor) register(name string, every time.Duration, task func()) error {
	job, err := j.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	j.jobs[name] = job
	return nil
}

// Start begins running the registered jobs
func (j *Janitor) Start() {
	j.scheduler.Start()
	logger.GetLogger().Info().Strs("jobs", j.Jobs()).Msg("janitor started")
}

// Stop waits for running jobs and shuts the scheduler down
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

// Jobs returns the registered job names
func (j *Janitor) Jobs() []string {
	names := make([]string, 0, len(j.jobs))
	for name := range j.jobs {
		names = append(names, name)
	}
	return names
}

// RunNow triggers a job immediately
func (j *Janitor) RunNow(name string) error {
	job, ok := j.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (j *Janitor) purgePreviews() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpiredPreviews(ctx)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("job", JobPurgePreviews).Msg("preview purge failed")
		return
	}
	if n > 0 {
		logger.GetLogger().Info().Int64("cleared", n).Str("job", JobPurgePreviews).Msg("expired previews cleared")
	}
}

func (j *Janitor) sweepCache() {
	if n := j.sweeper.Sweep(); n > 0 {
		logger.GetLogger().Debug().Int("removed", n).Str("job", JobSweepCache).Msg("expired cache entries swept")
	}
}
