package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultPlanModel  = "gpt-4o-mini"
	defaultImageModel = openai.CreateImageModelDallE3
	defaultTTSModel   = "gpt-4o-mini-tts"
	defaultTTSVoice   = "alloy"
)

// OpenAIOptions configures OpenAIService. Empty fields use the defaults above.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	PlanModel  string
	ImageModel string
	TTSModel   string
	TTSVoice   string
}

// OpenAIService drafts ad plans, renders scene stills and narrates the ad
// using a single OpenAI client.
type OpenAIService struct {
	client     *openai.Client
	planModel  string
	imageModel string
	ttsModel   string
	ttsVoice   string
	logger     zerolog.Logger
}

func NewOpenAIService(opts OpenAIOptions, logger zerolog.Logger) *OpenAIService {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}

	return &OpenAIService{
		client:     openai.NewClientWithConfig(config),
		planModel:  orDefault(opts.PlanModel, defaultPlanModel),
		imageModel: orDefault(opts.ImageModel, defaultImageModel),
		ttsModel:   orDefault(opts.TTSModel, defaultTTSModel),
		ttsVoice:   orDefault(opts.TTSVoice, defaultTTSVoice),
		logger:     logger.With().Str("component", "openai").Logger(),
	}
}

// DraftPlan asks the model for a 5-scene ad plan and returns its raw text.
// The text is not parsed here.
func (s *OpenAIService) DraftPlan(ctx context.Context, brief models.Brief) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.planModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPlanPrompt(brief),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.logger.Debug().
		Str("model", s.planModel).
		Int("chars", len(raw)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("plan drafted")

	return raw, nil
}

// GenerateImage renders one square PNG still for a prompt.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Model:          s.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai returned no image data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return data, nil
}

// Synthesize narrates text as a single mp3 track.
func (s *OpenAIService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(s.ttsVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	s.logger.Debug().Str("voice", s.ttsVoice).Int("bytes", len(audio)).Msg("speech generated")
	return audio, nil
}

// BuildPlanPrompt renders the planning instructions for a brief.
func BuildPlanPrompt(brief models.Brief) string {
	return fmt.Sprintf(`You are a performance marketer.

Create ONE short vertical video ad for %s.

Rules:
- Total length 18-25 seconds
- Exactly 5 scenes:
  1. Hook
  2-4. Benefits
  5. CTA
- Return VALID JSON ONLY (no markdown, no explanation)

JSON format:
{
  "headline": "string",
  "cta": "string",
  "scenes": [
    {
      "seconds": 4,
      "caption": "short caption (<= 9 words)",
      "narration": "one sentence narration",
      "visual_prompt": "detailed visual description, no logos, no text in image"
    }
  ]
}

Tone: %s

Product description:
%s`, brief.Platform, brief.Tone, strings.TrimSpace(brief.Prompt))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
