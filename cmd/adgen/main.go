// Command adgen generates one ad locally from a product description and
// prints where the finished video was written.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/amit-git-account/ai-video-ads/internal/app"
	"github.com/amit-git-account/ai-video-ads/internal/config"
	"github.com/amit-git-account/ai-video-ads/internal/logging"
	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/amit-git-account/ai-video-ads/internal/pipeline"
)

func main() {
	var (
		promptFlag   string
		platformFlag string
		toneFlag     string
		outFlag      string
	)

	flag.StringVar(&promptFlag, "prompt", "", "product description (required)")
	flag.StringVar(&platformFlag, "platform", models.DefaultPlatform, "target platform (TikTok, IG, YT)")
	flag.StringVar(&toneFlag, "tone", models.DefaultTone, "creative tone (Bold, Clean, Fun)")
	flag.StringVar(&outFlag, "out", "", "output root for run folders (default WORK_ROOT)")
	flag.Parse()

	brief := models.Brief{
		Prompt:   strings.TrimSpace(promptFlag),
		Platform: strings.TrimSpace(platformFlag),
		Tone:     strings.TrimSpace(toneFlag),
	}
	if brief.Prompt == "" {
		exitWithError(errors.New("-prompt is required"))
	}

	if err := run(brief, outFlag); err != nil {
		exitWithError(err)
	}
}

// run generates one ad. Its deferred cleanup completes before main exits.
func run(brief models.Brief, outRoot string) error {
	cfg, err := config.LoadForGenerator()
	if err != nil {
		return err
	}
	if outRoot != "" {
		cfg.WorkRoot = outRoot
	}

	logger := logging.New(cfg.AppEnv).With().Str("cmd", "adgen").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
	defer cancel()

	p, err := app.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	plan, result, err := p.Run(ctx, brief)
	if err != nil {
		var pe *pipeline.PlanParseError
		if errors.As(err, &pe) {
			fmt.Fprintln(os.Stderr, "model did not return a usable plan; raw output:")
			fmt.Fprintln(os.Stderr, pe.Raw)
		}
		return fmt.Errorf("%s: %w", pipeline.KindOf(err), err)
	}

	fmt.Printf("Done: %s\n", result.Path)
	fmt.Printf("  Headline: %s\n", plan.Headline)
	fmt.Printf("  CTA: %s\n", plan.CTA)
	fmt.Printf("  Folder: %s\n", filepath.Dir(result.Path))
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
