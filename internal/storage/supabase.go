package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Upload timeout per attempt. Final ads are tens of MB at most.
const uploadTimeout = 180 * time.Second

// SupabaseStorage stores artifacts in a Supabase Storage bucket.
type SupabaseStorage struct {
	url        string
	serviceKey string
	bucket     string
	client     *http.Client
	backoff    func(attempt int) time.Duration
	logger     zerolog.Logger
}

func NewSupabase(url, serviceKey, bucket string, logger zerolog.Logger) *SupabaseStorage {
	return &SupabaseStorage{
		url:        strings.TrimSuffix(url, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff: retryBackoff,
		logger:  logger.With().Str("component", "storage").Str("backend", "supabase").Logger(),
	}
}

// Upload uploads the file at localPath with retries and exponential backoff.
// Uses PUT with x-upsert so a re-run of the same job overwrites its object.
func (s *SupabaseStorage) Upload(ctx context.Context, key, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", localPath, err)
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.bucket, key)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt)
			s.logger.Warn().
				Int("attempt", attempt).
				Str("key", key).
				Dur("wait", delay).
				Msg("retrying upload")

			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)

		req, err := http.NewRequestWithContext(uploadCtx, http.MethodPut, url, bytes.NewReader(data))
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")

		resp, err := s.client.Do(req)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to upload: %w", err)
			if ctx.Err() == nil && isTransientError(err) {
				continue
			}
			return lastErr
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			s.logger.Info().Str("key", key).Int("bytes", len(data)).Int("attempts", attempt+1).Msg("object uploaded")
			return nil
		}

		lastErr = fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if isTransientStatus(resp.StatusCode) {
			continue
		}

		// 400, 401, 403, 404, 413 and friends will not get better.
		return lastErr
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

// SignedURL creates a signed URL for temporary access.
func (s *SupabaseStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	expiresIn := int(ttl / time.Second)
	if expiresIn < 1 {
		return "", fmt.Errorf("invalid url expiry %v", ttl)
	}

	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.url, s.bucket, key)

	body, err := json.Marshal(map[string]int{"expiresIn": expiresIn})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get signed URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse signed URL response: %w", err)
	}
	if result.SignedURL == "" {
		return "", fmt.Errorf("empty signed URL in response")
	}

	// The API returns a path relative to /storage/v1.
	return s.url + "/storage/v1" + result.SignedURL, nil
}
