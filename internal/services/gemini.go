package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

// GeminiImageService renders scene stills with a Gemini image model. It is
// an alternative to OpenAIService.GenerateImage.
type GeminiImageService struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// GeminiOptions configures GeminiImageService. BaseURL overrides the API
// endpoint and is only needed for testing.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

func NewGeminiImageService(ctx context.Context, opts GeminiOptions, logger zerolog.Logger) (*GeminiImageService, error) {
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiImageService{
		client: client,
		model:  orDefault(opts.Model, defaultGeminiImageModel),
		logger: logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// GenerateImage returns the first inline image the model produces.
func (s *GeminiImageService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	var texts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 &&
				strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				s.logger.Debug().
					Str("mime", part.InlineData.MIMEType).
					Int("bytes", len(part.InlineData.Data)).
					Msg("image generated")
				return part.InlineData.Data, nil
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}

	if len(texts) > 0 {
		return nil, fmt.Errorf("gemini returned no image (text: %q)", truncateString(strings.Join(texts, " "), 200))
	}
	return nil, fmt.Errorf("gemini returned no image")
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
