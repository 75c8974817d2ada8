package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Assembler concatenates segments and muxes the narration onto them.
type Assembler struct {
	transcoder TranscodingService
	logger     zerolog.Logger
}

func NewAssembler(transcoder TranscodingService, logger zerolog.Logger) *Assembler {
	return &Assembler{transcoder: transcoder, logger: logger}
}

// Assemble writes segments.txt, stream-copies the segments into
// video_noaudio.mp4 and muxes audioPath onto it as final_ad.mp4. Segments are
// always concatenated in scene index order. The video length is authoritative:
// narration is padded with silence and cut at the end of the video.
func (a *Assembler) Assemble(ctx context.Context, wd *Workdir, segments []Segment, audioPath string) (string, error) {
	ordered, err := orderSegments(segments)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(wd.Path(ManifestFile), []byte(Manifest(ordered)), 0644); err != nil {
		return "", fmt.Errorf("failed to write concat manifest: %w", err)
	}

	// The engine runs inside the workdir, so every file is referenced by name.
	concatArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", ManifestFile,
		"-c", "copy",
		IntermediateFile,
	}
	a.logger.Debug().Int("segments", len(ordered)).Msg("concatenating segments")
	if err := a.transcoder.Transcode(ctx, wd.Dir, concatArgs); err != nil {
		return "", stageErr(ctx, KindRender, "concatenate segments", 0, err)
	}

	muxArgs := []string{
		"-y",
		"-i", IntermediateFile,
		"-i", filepath.Base(audioPath),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-af", "apad",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		FinalFile,
	}
	a.logger.Debug().Msg("muxing narration")
	if err := a.transcoder.Transcode(ctx, wd.Dir, muxArgs); err != nil {
		return "", stageErr(ctx, KindRender, "mux audio", 0, err)
	}

	return wd.Path(FinalFile), nil
}

// Manifest renders the concat playlist: one "file '<basename>'" line per
// segment, in the given order.
func Manifest(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "file '%s'\n", filepath.Base(seg.Path))
	}
	return b.String()
}

// orderSegments returns a copy sorted by scene index and rejects gaps or
// duplicates, which would silently reorder or drop scenes.
func orderSegments(segments []Segment) ([]Segment, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to assemble")
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	for i, seg := range ordered {
		if seg.Index != i+1 {
			return nil, fmt.Errorf("segment indices must run 1..%d, found %d at position %d", len(ordered), seg.Index, i+1)
		}
	}
	return ordered, nil
}
