package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxStderrInError caps how much ffmpeg output is attached to a failure.
const maxStderrInError = 2000

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

// FFmpegService runs ffmpeg and ffprobe as subprocesses. The subprocess is
// killed when ctx ends.
type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	logger      zerolog.Logger
}

func NewFFmpegService(ffmpegPath, ffprobePath string, logger zerolog.Logger) *FFmpegService {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Transcode runs one ffmpeg invocation with dir as its working directory.
// Stderr is captured and attached to the error on a non-zero exit.
func (s *FFmpegService) Transcode(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), maxStderrInError))
	}

	s.logger.Debug().
		Str("dir", dir).
		Str("output", lastArg(args)).
		Dur("took", time.Since(start)).
		Msg("ffmpeg finished")
	return nil
}

// Duration returns the container duration of a media file using ffprobe.
func (s *FFmpegService) Duration(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(string(output))
}

func parseProbeDuration(output string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(output), err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %f", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// tail keeps the last maxLen bytes of s, where ffmpeg puts the actual error.
func tail(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}
