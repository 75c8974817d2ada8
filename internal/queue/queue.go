package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	jobKeyPrefix = "adjob:"
	queuedKey    = "adjobs:queued"
)

// claimScript flips status queued→planning only if the job is still queued,
// and drops it from the queued index in the same step.
var claimScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
return 1
`)

// updateScript sets status and result_url on an existing job and takes it
// off the queued index. An empty ARGV[2] removes result_url.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[3])
if ARGV[2] == '' then
	redis.call('HDEL', KEYS[1], 'result_url')
else
	redis.call('HSET', KEYS[1], 'result_url', ARGV[2])
end
return 1
`)

// Queue is the Redis job store: one hash per job plus a sorted set of queued
// job IDs scored by creation time.
type Queue struct {
	client *redis.Client
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (q *Queue) CreateJob(ctx context.Context, job *models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey(job.ID), jobToHash(job))
		if job.Status == models.JobStatusQueued {
			pipe.ZAdd(ctx, queuedKey, &redis.Z{
				Score:  float64(job.CreatedAt.UnixMilli()),
				Member: job.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (q *Queue) GetJob(ctx context.Context, id string) (*models.Job, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, models.ErrJobNotFound
	}
	return jobFromHash(fields)
}

// NextQueuedJob returns the oldest queued job without claiming it, or nil.
func (q *Queue) NextQueuedJob(ctx context.Context) (*models.Job, error) {
	ids, err := q.client.ZRange(ctx, queuedKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	job, err := q.GetJob(ctx, ids[0])
	if errors.Is(err, models.ErrJobNotFound) {
		// Hash expired or was deleted; drop the dangling index entry.
		if err := q.client.ZRem(ctx, queuedKey, ids[0]).Err(); err != nil {
			return nil, fmt.Errorf("failed to drop dangling queue entry %s: %w", ids[0], err)
		}
		return nil, nil
	}
	return job, err
}

// ClaimJob atomically moves a queued job to planning. It reports false when
// another worker got there first.
func (q *Queue) ClaimJob(ctx context.Context, id string) (bool, error) {
	n, err := claimScript.Run(ctx, q.client,
		[]string{jobKey(id), queuedKey},
		string(models.JobStatusQueued), string(models.JobStatusPlanning), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return n == 1, nil
}

func (q *Queue) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, resultURL *string) error {
	url := ""
	if resultURL != nil {
		url = *resultURL
	}

	n, err := updateScript.Run(ctx, q.client, []string{jobKey(id), queuedKey}, string(status), url, id).Int()
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if n == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

func jobToHash(job *models.Job) map[string]interface{} {
	h := map[string]interface{}{
		"id":         job.ID,
		"prompt":     job.Prompt,
		"platform":   job.Platform,
		"tone":       job.Tone,
		"status":     string(job.Status),
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.ResultURL != nil {
		h["result_url"] = *job.ResultURL
	}
	return h
}

func jobFromHash(fields map[string]string) (*models.Job, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", fields["created_at"], err)
	}

	status := models.JobStatus(fields["status"])
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", fields["status"])
	}

	job := &models.Job{
		ID:        fields["id"],
		Prompt:    fields["prompt"],
		Platform:  fields["platform"],
		Tone:      fields["tone"],
		Status:    status,
		CreatedAt: createdAt,
	}
	if url, ok := fields["result_url"]; ok && url != "" {
		job.ResultURL = &url
	}
	return job, nil
}
