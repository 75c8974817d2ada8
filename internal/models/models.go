package models

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned by job stores for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// Enums
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusPlanning   JobStatus = "planning"
	JobStatusGenerating JobStatus = "generating"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Valid reports whether s is one of the known job states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusPlanning, JobStatusGenerating,
		JobStatusUploading, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

const (
	DefaultPlatform = "TikTok"
	DefaultTone     = "Bold"
)

// Models

type Job struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Platform  string    `json:"platform"`
	Tone      string    `json:"tone"`
	Status    JobStatus `json:"status"`
	ResultURL *string   `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Brief is the creative input for one ad: product description plus targeting.
type Brief struct {
	Prompt   string
	Platform string
	Tone     string
}

// Brief returns the job's creative input with platform/tone defaulted.
func (j *Job) Brief() Brief {
	b := Brief{Prompt: j.Prompt, Platform: j.Platform, Tone: j.Tone}
	if b.Platform == "" {
		b.Platform = DefaultPlatform
	}
	if b.Tone == "" {
		b.Tone = DefaultTone
	}
	return b
}

// Scene is one 3-7 second beat of the ad.
type Scene struct {
	Seconds      int    `json:"seconds"`
	Caption      string `json:"caption"`
	Narration    string `json:"narration"`
	VisualPrompt string `json:"visual_prompt"`
}

// AdPlan always holds exactly SceneCount scenes once normalized.
type AdPlan struct {
	Headline string  `json:"headline"`
	CTA      string  `json:"cta"`
	Platform string  `json:"platform,omitempty"`
	Tone     string  `json:"tone,omitempty"`
	Scenes   []Scene `json:"scenes"`
}

const SceneCount = 5

// TotalSeconds is the sum of scene durations, i.e. the final video length.
func (p *AdPlan) TotalSeconds() int {
	total := 0
	for _, sc := range p.Scenes {
		total += sc.Seconds
	}
	return total
}

// DTOs for API responses

type CreateJobRequest struct {
	Prompt   string  `json:"prompt"`
	Platform *string `json:"platform,omitempty"` // Default: TikTok
	Tone     *string `json:"tone,omitempty"`     // Default: Bold
}

type CreateJobResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	ResultURL *string   `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
