// Package services holds the concrete provider clients behind the pipeline's
// collaborator interfaces.
package services

import "github.com/amit-git-account/ai-video-ads/internal/pipeline"

var (
	_ pipeline.PlanningService    = (*OpenAIService)(nil)
	_ pipeline.ImageService       = (*OpenAIService)(nil)
	_ pipeline.SpeechService      = (*OpenAIService)(nil)
	_ pipeline.ImageService       = (*GeminiImageService)(nil)
	_ pipeline.SpeechService      = (*ElevenLabsService)(nil)
	_ pipeline.TranscodingService = (*FFmpegService)(nil)
)
