package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Collaborators. Each is injected so tests can substitute fakes.
// ---------------------------------------------------------------------------

// PlanningService drafts an ad plan. The returned text is the model's raw
// output and may or may not be valid JSON.
type PlanningService interface {
	DraftPlan(ctx context.Context, brief models.Brief) (string, error)
}

// ImageService returns one encoded still image for a prompt.
type ImageService interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// SpeechService returns one encoded mp3 narration track for text.
type SpeechService interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TranscodingService runs the media engine. Transcode executes one invocation
// with dir as its working directory; a non-zero exit is an error.
type TranscodingService interface {
	Transcode(ctx context.Context, dir string, args []string) error
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Options tune a Pipeline. Zero values fall back to defaults.
type Options struct {
	WorkRoot         string
	MediaConcurrency int
	Render           RenderSettings
}

// Result is the assembled artifact of one run.
type Result struct {
	Path            string
	ExpectedSeconds int
	Duration        time.Duration // probed; zero when the probe failed
}

// Pipeline drives plan → media → segments → assembly for one ad at a time.
type Pipeline struct {
	planner    PlanningService
	media      *MediaOrchestrator
	renderer   *SegmentRenderer
	assembler  *Assembler
	transcoder TranscodingService
	workRoot   string
	logger     zerolog.Logger
}

func New(
	planner PlanningService,
	images ImageService,
	speech SpeechService,
	transcoder TranscodingService,
	opts Options,
	logger zerolog.Logger,
) *Pipeline {
	if opts.WorkRoot == "" {
		opts.WorkRoot = "out"
	}
	if opts.Render == (RenderSettings{}) {
		opts.Render = DefaultRenderSettings()
	}
	logger = logger.With().Str("component", "pipeline").Logger()

	return &Pipeline{
		planner:    planner,
		media:      NewMediaOrchestrator(images, speech, opts.MediaConcurrency, logger),
		renderer:   NewSegmentRenderer(transcoder, opts.Render, logger),
		assembler:  NewAssembler(transcoder, logger),
		transcoder: transcoder,
		workRoot:   opts.WorkRoot,
		logger:     logger,
	}
}

// NewWorkdir creates the directory for a new run under the configured root.
func (p *Pipeline) NewWorkdir() (*Workdir, error) {
	return NewWorkdir(p.workRoot)
}

// Plan asks the planner for a draft, normalizes it and writes plan.json.
// A *PlanParseError is returned unchanged; nothing else is written on failure.
func (p *Pipeline) Plan(ctx context.Context, wd *Workdir, brief models.Brief) (*models.AdPlan, error) {
	p.logger.Info().Str("platform", brief.Platform).Str("tone", brief.Tone).Msg("drafting ad plan")

	raw, err := p.planner.DraftPlan(ctx, brief)
	if err != nil {
		return nil, stageErr(ctx, KindPlanning, "draft plan", 0, err)
	}

	plan, err := Normalize(raw, brief.Platform, brief.Tone)
	if err != nil {
		p.logger.Error().Err(err).Str("raw", truncate(raw, 2000)).Msg("planner returned unusable output")
		return nil, err
	}

	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(wd.Path(PlanFile), planJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write plan: %w", err)
	}

	p.logger.Info().
		Str("headline", plan.Headline).
		Int("total_seconds", plan.TotalSeconds()).
		Msg("plan normalized")

	return plan, nil
}

// Produce generates media for every scene, renders one segment per scene and
// assembles them, in scene order, into the final artifact.
func (p *Pipeline) Produce(ctx context.Context, wd *Workdir, plan *models.AdPlan) (*Result, error) {
	if len(plan.Scenes) != models.SceneCount {
		return nil, fmt.Errorf("plan has %d scenes, want %d", len(plan.Scenes), models.SceneCount)
	}

	media, err := p.media.Generate(ctx, wd, plan)
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(plan.Scenes))
	for i, sc := range plan.Scenes {
		idx := i + 1
		seg, err := p.renderer.Render(ctx, wd, idx, media.Images[i], sc.Caption, sc.Seconds)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		p.logger.Info().Int("scene", idx).Int("seconds", sc.Seconds).Msg("segment rendered")
	}

	finalPath, err := p.assembler.Assemble(ctx, wd, segments, media.Voice)
	if err != nil {
		return nil, err
	}

	result := &Result{Path: finalPath, ExpectedSeconds: plan.TotalSeconds()}

	probed, err := p.transcoder.Duration(ctx, finalPath)
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not probe final duration")
	} else {
		result.Duration = probed
		p.logger.Info().
			Dur("duration", probed).
			Int("expected_seconds", result.ExpectedSeconds).
			Msg("final artifact assembled")
	}

	return result, nil
}

// Run is Plan followed by Produce in a fresh workdir.
func (p *Pipeline) Run(ctx context.Context, brief models.Brief) (*models.AdPlan, *Result, error) {
	wd, err := p.NewWorkdir()
	if err != nil {
		return nil, nil, err
	}

	plan, err := p.Plan(ctx, wd, brief)
	if err != nil {
		return nil, nil, err
	}

	result, err := p.Produce(ctx, wd, plan)
	if err != nil {
		return plan, nil, err
	}
	return plan, result, nil
}

// truncate keeps at most maxLen bytes of s without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
