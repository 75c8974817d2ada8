package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobStore is the subset of a job store the API needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

// Defaults fill in platform and tone when a request omits them.
type Defaults struct {
	Platform string
	Tone     string
}

type Handler struct {
	store    JobStore
	defaults Defaults
	logger   zerolog.Logger
}

func NewHandler(store JobStore, defaults Defaults, logger zerolog.Logger) *Handler {
	if defaults.Platform == "" {
		defaults.Platform = models.DefaultPlatform
	}
	if defaults.Tone == "" {
		defaults.Tone = models.DefaultTone
	}
	return &Handler{
		store:    store,
		defaults: defaults,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// CreateJob handles POST /v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Platform:  valueOr(req.Platform, h.defaults.Platform),
		Tone:      valueOr(req.Tone, h.defaults.Tone),
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateJob(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("failed to create job")
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	h.logger.Info().Str("job_id", job.ID).Str("platform", job.Platform).Str("tone", job.Tone).Msg("job queued")

	respondJSON(w, http.StatusCreated, models.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if errors.Is(err, models.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("failed to get job")
		respondError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, models.JobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		CreatedAt: job.CreatedAt,
	})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request through the handler's logger.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func valueOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return strings.TrimSpace(*s)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
