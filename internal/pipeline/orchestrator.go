package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultMediaConcurrency = 3

// Media holds workdir paths of generated assets. Images[i] belongs to scene i+1.
type Media struct {
	Images []string
	Voice  string
}

// MediaOrchestrator requests one still per scene plus one narration track for
// the whole ad. Calls run concurrently up to a fixed limit; results are stored
// by scene index, so completion order does not matter. Nothing is retried.
type MediaOrchestrator struct {
	images      ImageService
	speech      SpeechService
	concurrency int
	logger      zerolog.Logger
}

func NewMediaOrchestrator(images ImageService, speech SpeechService, concurrency int, logger zerolog.Logger) *MediaOrchestrator {
	if concurrency <= 0 {
		concurrency = defaultMediaConcurrency
	}
	return &MediaOrchestrator{
		images:      images,
		speech:      speech,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ImagePrompt wraps a scene's visual description in the fixed ad style.
func ImagePrompt(visual string) string {
	return "Create a high-quality product ad visual. " +
		strings.TrimSpace(visual) +
		". Vertical-friendly composition, modern lighting, premium look, no text, no logos."
}

// NarrationScript joins every scene's narration into one read.
func NarrationScript(plan *models.AdPlan) string {
	lines := make([]string, len(plan.Scenes))
	for i, sc := range plan.Scenes {
		lines[i] = sc.Narration
	}
	return strings.Join(lines, " ")
}

// Generate writes scene_<i>.png for every scene and voice.mp3 into wd.
func (m *MediaOrchestrator) Generate(ctx context.Context, wd *Workdir, plan *models.AdPlan) (*Media, error) {
	media := &Media{
		Images: make([]string, len(plan.Scenes)),
		Voice:  wd.Path(VoiceFile),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, sc := range plan.Scenes {
		idx := i + 1
		prompt := ImagePrompt(sc.VisualPrompt)
		g.Go(func() (err error) {
			defer recoverStage(&err, KindMediaGeneration, "generate image", idx)

			m.logger.Debug().Int("scene", idx).Msg("generating image")
			data, err := m.images.GenerateImage(gctx, prompt)
			if err != nil {
				return stageErr(ctx, KindMediaGeneration, "generate image", idx, err)
			}

			path := wd.Path(SceneImageName(idx))
			if err := os.WriteFile(path, data, 0644); err != nil {
				return stageErr(ctx, KindMediaGeneration, "write image", idx, err)
			}
			media.Images[idx-1] = path

			m.logger.Info().Int("scene", idx).Int("bytes", len(data)).Msg("image generated")
			return nil
		})
	}

	script := NarrationScript(plan)
	g.Go(func() (err error) {
		defer recoverStage(&err, KindMediaGeneration, "synthesize speech", 0)

		m.logger.Debug().Int("chars", len(script)).Msg("generating voiceover")
		data, err := m.speech.Synthesize(gctx, script)
		if err != nil {
			return stageErr(ctx, KindMediaGeneration, "synthesize speech", 0, err)
		}
		if err := os.WriteFile(media.Voice, data, 0644); err != nil {
			return stageErr(ctx, KindMediaGeneration, "write voiceover", 0, err)
		}

		m.logger.Info().Int("bytes", len(data)).Msg("voiceover generated")
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, path := range media.Images {
		if path == "" {
			return nil, fmt.Errorf("scene %d has no image", i+1)
		}
	}

	return media, nil
}
