package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/amit-git-account/ai-video-ads/internal/pipeline"
	"github.com/amit-git-account/ai-video-ads/internal/storage"
	"github.com/rs/zerolog"
)

// JobStore is the persistence the worker needs. ClaimJob must be a single
// conditional write: queued→planning only if the job is still queued.
type JobStore interface {
	NextQueuedJob(ctx context.Context) (*models.Job, error)
	ClaimJob(ctx context.Context, id string) (bool, error)
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, resultURL *string) error
}

// ArtifactStore uploads finished ads and hands out time-limited links.
type ArtifactStore interface {
	Upload(ctx context.Context, key, localPath, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Pipeline is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	NewWorkdir() (*pipeline.Workdir, error)
	Plan(ctx context.Context, wd *pipeline.Workdir, brief models.Brief) (*models.AdPlan, error)
	Produce(ctx context.Context, wd *pipeline.Workdir, plan *models.AdPlan) (*pipeline.Result, error)
}

type Options struct {
	PollInterval time.Duration
	ClaimTimeout time.Duration
	JobTimeout   time.Duration
	ResultURLTTL time.Duration
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.ClaimTimeout <= 0 {
		o.ClaimTimeout = 10 * time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 15 * time.Minute
	}
	if o.ResultURLTTL <= 0 {
		o.ResultURLTTL = time.Hour
	}
}

// Worker claims queued jobs one at a time and drives each through the
// pipeline, persisting every stage transition before the next stage starts.
type Worker struct {
	store     JobStore
	pipeline  Pipeline
	artifacts ArtifactStore
	opts      Options
	logger    zerolog.Logger
}

func New(store JobStore, p Pipeline, artifacts ArtifactStore, opts Options, logger zerolog.Logger) *Worker {
	opts.setDefaults()
	return &Worker{
		store:     store,
		pipeline:  p,
		artifacts: artifacts,
		opts:      opts,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Start polls for jobs until ctx is cancelled. Jobs are processed strictly
// one after another.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.opts.PollInterval).Dur("job_timeout", w.opts.JobTimeout).Msg("worker started")

	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("poll failed")
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker shutting down")
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce claims the oldest queued job, if any, and processes it. It reports
// whether a job was processed. Losing a claim race is not an error.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}

	job, err := w.claimNext(ctx)
	if err != nil || job == nil {
		return false, err
	}

	w.processJob(ctx, job)
	return true, nil
}

func (w *Worker) claimNext(ctx context.Context) (*models.Job, error) {
	claimCtx, cancel := context.WithTimeout(ctx, w.opts.ClaimTimeout)
	defer cancel()

	job, err := w.store.NextQueuedJob(claimCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up queued job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	claimed, err := w.store.ClaimJob(claimCtx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}
	if !claimed {
		w.logger.Debug().Str("job_id", job.ID).Msg("claim lost to another worker")
		return nil, nil
	}

	job.Status = models.JobStatusPlanning
	return job, nil
}

// processJob is the single place a job's failure is turned into a status.
func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	log := w.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()

	start := time.Now()
	url, err := w.runJobRecovered(jobCtx, log, job)
	if err != nil {
		log.Error().
			Err(err).
			Str("kind", string(pipeline.KindOf(err))).
			Dur("elapsed", time.Since(start)).
			Msg("job failed")

		// The job context may be spent; the final write gets its own budget.
		failCtx, failCancel := context.WithTimeout(context.Background(), w.opts.ClaimTimeout)
		defer failCancel()
		if err := w.store.UpdateJobStatus(failCtx, job.ID, models.JobStatusFailed, nil); err != nil {
			log.Error().Err(err).Msg("failed to mark job failed")
		}
		return
	}

	log.Info().Dur("elapsed", time.Since(start)).Str("result_url", url).Msg("job done")
}

// runJobRecovered turns a panic anywhere in the run into an error, so the
// job still reaches failed instead of stopping at its last stage.
func (w *Worker) runJobRecovered(ctx context.Context, log zerolog.Logger, job *models.Job) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msg("recovered panic")
			err = fmt.Errorf("panic while processing job: %v", r)
		}
	}()
	return w.runJob(ctx, log, job)
}

func (w *Worker) runJob(ctx context.Context, log zerolog.Logger, job *models.Job) (string, error) {
	wd, err := w.pipeline.NewWorkdir()
	if err != nil {
		return "", fmt.Errorf("failed to create workdir: %w", err)
	}
	log.Debug().Str("workdir", wd.Dir).Msg("workdir created")

	plan, err := w.pipeline.Plan(ctx, wd, job.Brief())
	if err != nil {
		return "", err
	}

	if err := w.setStatus(ctx, log, job.ID, models.JobStatusGenerating, nil); err != nil {
		return "", err
	}

	result, err := w.pipeline.Produce(ctx, wd, plan)
	if err != nil {
		return "", err
	}

	if err := w.setStatus(ctx, log, job.ID, models.JobStatusUploading, nil); err != nil {
		return "", err
	}

	key := storage.JobArtifactKey(job.ID)
	if err := w.artifacts.Upload(ctx, key, result.Path, storage.ContentTypeMP4); err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	url, err := w.artifacts.SignedURL(ctx, key, w.opts.ResultURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign artifact url: %w", err)
	}

	if err := w.setStatus(ctx, log, job.ID, models.JobStatusDone, &url); err != nil {
		return "", err
	}
	return url, nil
}

func (w *Worker) setStatus(ctx context.Context, log zerolog.Logger, id string, status models.JobStatus, resultURL *string) error {
	if err := w.store.UpdateJobStatus(ctx, id, status, resultURL); err != nil {
		return fmt.Errorf("failed to set status %s: %w", status, err)
	}
	log.Info().Str("status", string(status)).Msg("job status updated")
	return nil
}
