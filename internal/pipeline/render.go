package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// RenderSettings fix the look of every segment. The output resolution and
// frame rate are part of the artifact's external contract.
type RenderSettings struct {
	Width  int
	Height int
	FPS    int

	// Zoom grows by ZoomRate per frame and never exceeds MaxZoom.
	ZoomRate float64
	MaxZoom  float64

	// Caption band covers the frame from BandTop (fraction of height) down.
	BandTop     float64
	BandOpacity float64

	CaptionTop  float64 // fraction of height
	FontSize    int
	FontColor   string
	LineSpacing int
	WrapWidth   int    // characters per caption line
	FontPath    string // optional; the engine default is used when missing
}

// DefaultRenderSettings is 1080x1920 at 30fps.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		Width:       1080,
		Height:      1920,
		FPS:         30,
		ZoomRate:    0.0015,
		MaxZoom:     1.12,
		BandTop:     0.74,
		BandOpacity: 0.35,
		CaptionTop:  0.80,
		FontSize:    54,
		FontColor:   "white",
		LineSpacing: 12,
		WrapWidth:   18,
	}
}

// Frames is the exact frame count of a segment lasting seconds.
func (s RenderSettings) Frames(seconds int) int {
	return seconds * s.FPS
}

// ZoomAt mirrors the zoom expression handed to the engine.
func (s RenderSettings) ZoomAt(frame int) float64 {
	return math.Min(s.MaxZoom, 1+s.ZoomRate*float64(frame))
}

// Segment is one rendered clip, tied to its 1-based scene index.
type Segment struct {
	Index int
	Path  string
}

// SegmentRenderer turns one still plus caption into a fixed-length clip.
type SegmentRenderer struct {
	transcoder TranscodingService
	settings   RenderSettings
	logger     zerolog.Logger
}

func NewSegmentRenderer(transcoder TranscodingService, settings RenderSettings, logger zerolog.Logger) *SegmentRenderer {
	return &SegmentRenderer{
		transcoder: transcoder,
		settings:   settings,
		logger:     logger,
	}
}

// Render produces seg_<index>.mp4 in wd from imagePath.
func (r *SegmentRenderer) Render(ctx context.Context, wd *Workdir, index int, imagePath, caption string, seconds int) (Segment, error) {
	out := SegmentName(index)
	args := r.SegmentArgs(filepath.Base(imagePath), caption, seconds, out)

	r.logger.Debug().
		Int("scene", index).
		Int("frames", r.settings.Frames(seconds)).
		Float64("end_zoom", r.settings.ZoomAt(r.settings.Frames(seconds)-1)).
		Msg("rendering segment")

	if err := r.transcoder.Transcode(ctx, wd.Dir, args); err != nil {
		return Segment{}, stageErr(ctx, KindRender, "render segment", index, err)
	}

	return Segment{Index: index, Path: wd.Path(out)}, nil
}

// SegmentArgs builds the engine invocation for one segment. The still is read
// once and zoompan emits exactly seconds*FPS frames from it.
func (r *SegmentRenderer) SegmentArgs(image, caption string, seconds int, out string) []string {
	s := r.settings
	return []string{
		"-y",
		"-i", image,
		"-vf", r.Filter(caption, seconds),
		"-frames:v", strconv.Itoa(s.Frames(seconds)),
		"-r", strconv.Itoa(s.FPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	}
}

// Filter builds the -vf chain: cover-scale and crop, slow zoom, dark band,
// then the wrapped caption.
func (r *SegmentRenderer) Filter(caption string, seconds int) string {
	s := r.settings
	w, h := s.Width, s.Height

	bandY := int(float64(h) * s.BandTop)
	bandH := int(float64(h) * (1 - s.BandTop))
	captionY := int(float64(h) * s.CaptionTop)

	steps := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
		fmt.Sprintf("crop=%d:%d", w, h),
		fmt.Sprintf("zoompan=z='min(%s,1+%s*on)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d",
			formatFloat(s.MaxZoom), formatFloat(s.ZoomRate), s.Frames(seconds), w, h, s.FPS),
		fmt.Sprintf("drawbox=x=0:y=%d:w=%d:h=%d:color=black@%s:t=fill", bandY, w, bandH, formatFloat(s.BandOpacity)),
	}

	captionText := CaptionText(caption, s.WrapWidth)
	if captionText == "" {
		// drawtext rejects an empty text option.
		return strings.Join(steps, ",")
	}

	// Option values are escaped for the option parser, then the whole
	// argument string is escaped again for the filtergraph parser.
	text := fmt.Sprintf("text=%s:x=(w-text_w)/2:y=%d:fontsize=%d:fontcolor=%s:line_spacing=%d:expansion=none",
		captionText, captionY, s.FontSize, s.FontColor, s.LineSpacing)
	if font := resolveFont(s.FontPath); font != "" {
		text = "fontfile=" + escapeOptionValue(font) + ":" + text
	}
	steps = append(steps, "drawtext="+escapeGraphArgs(text))

	return strings.Join(steps, ",")
}

// CaptionText collapses newlines, wraps to width characters per line and
// escapes each line for drawtext.
func CaptionText(caption string, width int) string {
	lines := WrapText(collapseNewlines(caption), width)
	for i, line := range lines {
		lines[i] = EscapeDrawtext(line)
	}
	return strings.Join(lines, "\n")
}

// EscapeDrawtext escapes backslash, colon and single quote so the caption
// survives as one unquoted drawtext option value. Newlines become spaces and
// the result is trimmed.
func EscapeDrawtext(s string) string {
	return escapeOptionValue(collapseNewlines(s))
}

func escapeOptionValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ":", "\\:")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

// escapeGraphArgs escapes a filter's argument string for the filtergraph
// level, where backslash, quote, brackets, comma and semicolon are special.
func escapeGraphArgs(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		switch r {
		case '\\', '\'', '[', ']', ',', ';':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeDrawtext reverses EscapeDrawtext.
func UnescapeDrawtext(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// WrapText greedily wraps words to at most width runes per line, splitting
// words that are longer than a whole line.
func WrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var cur []rune
	for _, word := range words {
		wr := []rune(word)
		for len(wr) > 0 {
			if len(cur) == 0 {
				n := min(width, len(wr))
				cur = append(cur, wr[:n]...)
				wr = wr[n:]
				continue
			}
			if len(cur)+1+len(wr) <= width {
				cur = append(cur, ' ')
				cur = append(cur, wr...)
				wr = nil
				continue
			}
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

// resolveFont returns path only when the file exists.
func resolveFont(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
