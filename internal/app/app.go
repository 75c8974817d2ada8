// Package app assembles the ad pipeline from configuration for both binaries.
package app

import (
	"context"

	"github.com/amit-git-account/ai-video-ads/internal/config"
	"github.com/amit-git-account/ai-video-ads/internal/pipeline"
	"github.com/amit-git-account/ai-video-ads/internal/services"
	"github.com/rs/zerolog"
)

// BuildPipeline wires the configured providers into a pipeline.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	openaiSvc := services.NewOpenAIService(services.OpenAIOptions{
		APIKey:     cfg.OpenAIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		PlanModel:  cfg.OpenAIPlanModel,
		ImageModel: cfg.OpenAIImageModel,
		TTSModel:   cfg.OpenAITTSModel,
		TTSVoice:   cfg.OpenAITTSVoice,
	}, logger)

	var images pipeline.ImageService = openaiSvc
	if cfg.ImageProvider == config.ProviderGemini {
		gemini, err := services.NewGeminiImageService(ctx, services.GeminiOptions{
			APIKey: cfg.GeminiKey,
			Model:  cfg.GeminiImageModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		images = gemini
	}

	var speech pipeline.SpeechService = openaiSvc
	if cfg.TTSProvider == config.ProviderElevenLabs {
		speech = services.NewElevenLabsService(services.ElevenLabsOptions{
			APIKey:  cfg.ElevenLabsKey,
			VoiceID: cfg.ElevenLabsVoiceID,
		}, logger)
	}

	logger.Info().
		Str("image_provider", cfg.ImageProvider).
		Str("tts_provider", cfg.TTSProvider).
		Str("work_root", cfg.WorkRoot).
		Msg("pipeline configured")

	render := pipeline.DefaultRenderSettings()
	render.FontPath = cfg.FontPath

	return pipeline.New(
		openaiSvc,
		images,
		speech,
		services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath, logger),
		pipeline.Options{
			WorkRoot:         cfg.WorkRoot,
			MediaConcurrency: cfg.MediaConcurrency,
			Render:           render,
		},
		logger,
	), nil
}
