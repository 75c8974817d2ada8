package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/google/uuid"
)

// jobID normalizes id to the canonical UUID form the id column accepts.
// Anything that is not a UUID cannot name a job.
func jobID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, prompt, platform, tone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Prompt, job.Platform, job.Tone, job.Status,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT id, prompt, platform, tone, status, result_url, created_at
		FROM jobs
		WHERE id = $1
	`

	key, ok := jobID(id)
	if !ok {
		return nil, models.ErrJobNotFound
	}

	job, err := scanJob(db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// NextQueuedJob returns the oldest queued job, or nil when there is none.
// It does not claim the job.
func (db *DB) NextQueuedJob(ctx context.Context) (*models.Job, error) {
	query := `
		SELECT id, prompt, platform, tone, status, result_url, created_at
		FROM jobs
		WHERE status = $1
		ORDER BY created_at
		LIMIT 1
	`

	job, err := scanJob(db.QueryRowContext(ctx, query, models.JobStatusQueued))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queued job: %w", err)
	}

	return job, nil
}

// ClaimJob moves a job from queued to planning in one conditional update.
// It reports false when the job was no longer queued.
func (db *DB) ClaimJob(ctx context.Context, id string) (bool, error) {
	query := `UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`

	key, ok := jobID(id)
	if !ok {
		return false, nil
	}

	res, err := db.ExecContext(ctx, query, models.JobStatusPlanning, key, models.JobStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

// UpdateJobStatus records a stage transition. result_url is overwritten with
// resultURL, so any non-done status clears it.
func (db *DB) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, resultURL *string) error {
	query := `UPDATE jobs SET status = $1, result_url = $2 WHERE id = $3`

	key, ok := jobID(id)
	if !ok {
		return models.ErrJobNotFound
	}

	res, err := db.ExecContext(ctx, query, status, resultURL, key)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var resultURL sql.NullString
	err := row.Scan(
		&job.ID, &job.Prompt, &job.Platform, &job.Tone, &job.Status,
		&resultURL, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resultURL.Valid {
		job.ResultURL = &resultURL.String
	}
	return job, nil
}
