package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/amit-git-account/ai-video-ads/internal/pipeline/pipelinetest"
	"github.com/rs/zerolog"
)

func TestEscapeDrawtextRoundTrip(t *testing.T) {
	tests := []string{
		"plain caption",
		`C:\path\to`,
		"Time: 3:00",
		"It's here",
		`mix \ : ' all`,
		"two\nlines",
		"windows\r\nbreak",
		`trailing backslash \`,
		"''::\\\\",
	}

	for _, in := range tests {
		escaped := EscapeDrawtext(in)
		if strings.Contains(escaped, "\n") || strings.Contains(escaped, "\r") {
			t.Errorf("EscapeDrawtext(%q) kept a line break: %q", in, escaped)
		}
		if got, want := UnescapeDrawtext(escaped), collapseNewlines(in); got != want {
			t.Errorf("round trip of %q = %q, want %q", in, got, want)
		}
		if hasBareSpecial(escaped) {
			t.Errorf("EscapeDrawtext(%q) = %q leaves an unescaped special character", in, escaped)
		}
	}
}

// hasBareSpecial reports a ':' or '\'' not preceded by an escaping backslash.
func hasBareSpecial(s string) bool {
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case ':', '\'':
			return true
		}
	}
	return escaped
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"", 18, nil},
		{"Order now", 18, []string{"Order now"}},
		{"Glow anywhere with zero cords attached", 18, []string{"Glow anywhere with", "zero cords", "attached"}},
		{"Supercalifragilisticexpialidocious fun", 18, []string{"Supercalifragilist", "icexpialidocious", "fun"}},
		{"  spaced   out  ", 18, []string{"spaced out"}},
	}

	for _, tt := range tests {
		got := WrapText(tt.in, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("WrapText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		for _, line := range got {
			if len([]rune(line)) > tt.width {
				t.Errorf("line %q exceeds width %d", line, tt.width)
			}
		}
	}
}

func TestCaptionTextWrapsBeforeEscaping(t *testing.T) {
	got := CaptionText("Don't wait:\nbuy it today", 18)
	want := "Don\\'t wait\\: buy it\ntoday"
	if got != want {
		t.Errorf("CaptionText = %q, want %q", got, want)
	}
}

func TestZoomIsMonotonicAndBounded(t *testing.T) {
	s := DefaultRenderSettings()
	prev := 0.0
	for frame := 0; frame < s.Frames(MaxSceneSeconds); frame++ {
		z := s.ZoomAt(frame)
		if z < prev {
			t.Fatalf("zoom decreased at frame %d: %f < %f", frame, z, prev)
		}
		if z > s.MaxZoom {
			t.Fatalf("zoom %f exceeds max %f at frame %d", z, s.MaxZoom, frame)
		}
		prev = z
	}
	if s.ZoomAt(0) != 1 {
		t.Errorf("zoom should start at 1, got %f", s.ZoomAt(0))
	}
}

func TestFilterChainOrder(t *testing.T) {
	r := NewSegmentRenderer(&pipelinetest.Transcoder{}, DefaultRenderSettings(), zerolog.Nop())
	vf := r.Filter("It's: here", 5)

	steps := []string{
		"scale=1080:1920:force_original_aspect_ratio=increase",
		"crop=1080:1920",
		"zoompan=z='min(1.12,1+0.0015*on)'",
		"d=150:s=1080x1920:fps=30",
		"drawbox=x=0:y=1420:w=1080:h=499:color=black@0.35:t=fill",
		"drawtext=text=It\\\\\\'s\\\\: here:x=(w-text_w)/2:y=1536:fontsize=54:fontcolor=white:line_spacing=12:expansion=none",
	}
	last := -1
	for _, step := range steps {
		pos := strings.Index(vf, step)
		if pos < 0 {
			t.Fatalf("filter missing %q:\n%s", step, vf)
		}
		if pos <= last {
			t.Errorf("step %q out of order in:\n%s", step, vf)
		}
		last = pos
	}
}

func TestFilterFontFallback(t *testing.T) {
	settings := DefaultRenderSettings()
	settings.FontPath = filepath.Join(t.TempDir(), "missing.ttf")
	r := NewSegmentRenderer(&pipelinetest.Transcoder{}, settings, zerolog.Nop())
	if vf := r.Filter("hi", 3); strings.Contains(vf, "fontfile") {
		t.Errorf("missing font should fall back to engine default:\n%s", vf)
	}

	font := filepath.Join(t.TempDir(), "brand.ttf")
	if err := os.WriteFile(font, []byte("ttf"), 0644); err != nil {
		t.Fatal(err)
	}
	settings.FontPath = font
	r = NewSegmentRenderer(&pipelinetest.Transcoder{}, settings, zerolog.Nop())
	vf := r.Filter("hi", 3)
	opts := drawtextOptions(t, vf)
	if opts["fontfile"] != font {
		t.Errorf("existing font not used: fontfile = %q\n%s", opts["fontfile"], vf)
	}
	if opts["text"] != "hi" {
		t.Errorf("text = %q after fontfile", opts["text"])
	}
}

func TestFilterParsesBackToCaption(t *testing.T) {
	r := NewSegmentRenderer(&pipelinetest.Transcoder{}, DefaultRenderSettings(), zerolog.Nop())

	tests := []struct {
		caption string
		want    string
	}{
		{"Don't miss Bob's deal", "Don't miss Bob's\ndeal"},
		{"It's here", "It's here"},
		{"Time: 3:00", "Time: 3:00"},
		{"50% off, today; only", "50% off, today;\nonly"},
		{`C:\path [x]`, `C:\path [x]`},
		{"'quoted' 'twice'", "'quoted' 'twice'"},
		{"two\nlines", "two lines"},
	}

	for _, tt := range tests {
		vf := r.Filter(tt.caption, 4)
		opts := drawtextOptions(t, vf)

		if opts["text"] != tt.want {
			t.Errorf("caption %q parsed as text %q, want %q\n%s", tt.caption, opts["text"], tt.want, vf)
		}
		want := map[string]string{
			"x":            "(w-text_w)/2",
			"y":            "1536",
			"fontsize":     "54",
			"fontcolor":    "white",
			"line_spacing": "12",
			"expansion":    "none",
		}
		for k, v := range want {
			if opts[k] != v {
				t.Errorf("caption %q: option %s = %q, want %q", tt.caption, k, opts[k], v)
			}
		}
	}
}

func TestFilterZoomSurvivesGraphParsing(t *testing.T) {
	r := NewSegmentRenderer(&pipelinetest.Transcoder{}, DefaultRenderSettings(), zerolog.Nop())
	filters := parseFilterChain(t, r.Filter("hi", 3))

	if len(filters) != 5 {
		t.Fatalf("expected 5 filters, got %d: %+v", len(filters), filters)
	}
	zoom := parseFilterOptions(filters[2].args)
	if filters[2].name != "zoompan" || zoom["z"] != "min(1.12,1+0.0015*on)" || zoom["d"] != "90" {
		t.Errorf("unexpected zoompan %+v", zoom)
	}
}

func TestFilterOmitsEmptyCaption(t *testing.T) {
	r := NewSegmentRenderer(&pipelinetest.Transcoder{}, DefaultRenderSettings(), zerolog.Nop())
	if vf := r.Filter(" \n ", 3); strings.Contains(vf, "drawtext") {
		t.Errorf("blank caption should not emit drawtext:\n%s", vf)
	}
}

// The helpers below split a -vf string with ffmpeg's rules: the filtergraph
// level reads each filter's arguments as one token, then the option level
// splits that token into key=value pairs. Both levels use the same token
// rules: backslash takes the next character literally, single quotes take
// everything up to the next quote literally, and unprotected surrounding
// whitespace is dropped.

type parsedFilter struct {
	name string
	args string
}

func getToken(buf, term string) (string, string) {
	const space = " \n\t\r"
	i := 0
	for i < len(buf) && strings.IndexByte(space, buf[i]) >= 0 {
		i++
	}
	var out []byte
	end := 0
	for i < len(buf) && strings.IndexByte(term, buf[i]) < 0 {
		c := buf[i]
		i++
		switch {
		case c == '\\' && i < len(buf):
			out = append(out, buf[i])
			i++
			end = len(out)
		case c == '\'':
			for i < len(buf) && buf[i] != '\'' {
				out = append(out, buf[i])
				i++
			}
			if i < len(buf) {
				i++
			}
			end = len(out)
		default:
			out = append(out, c)
			if strings.IndexByte(space, c) < 0 {
				end = len(out)
			}
		}
	}
	return string(out[:end]), buf[i:]
}

func parseFilterChain(t *testing.T, vf string) []parsedFilter {
	t.Helper()
	var filters []parsedFilter
	rest := vf
	for rest != "" {
		n := strings.IndexAny(rest, "=,;[")
		if n < 0 {
			filters = append(filters, parsedFilter{name: rest})
			break
		}
		f := parsedFilter{name: rest[:n]}
		rest = rest[n:]
		if rest[0] == '=' {
			f.args, rest = getToken(rest[1:], "[],;")
		}
		filters = append(filters, f)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			t.Fatalf("filter %s followed by %q, not a chain separator:\n%s", f.name, rest, vf)
		}
		rest = rest[1:]
	}
	return filters
}

func parseFilterOptions(args string) map[string]string {
	opts := map[string]string{}
	rest := args
	for pos := 0; rest != ""; pos++ {
		key, r := getToken(rest, "=:")
		if r != "" && r[0] == '=' {
			opts[key], r = getToken(r[1:], ":")
		} else {
			opts[strconv.Itoa(pos)] = key
		}
		if r != "" {
			r = r[1:]
		}
		rest = r
	}
	return opts
}

func drawtextOptions(t *testing.T, vf string) map[string]string {
	t.Helper()
	for _, f := range parseFilterChain(t, vf) {
		if f.name == "drawtext" {
			return parseFilterOptions(f.args)
		}
	}
	t.Fatalf("no drawtext in filter:\n%s", vf)
	return nil
}

func TestRenderSegmentInvocation(t *testing.T) {
	wd := &Workdir{Dir: t.TempDir()}
	tc := &pipelinetest.Transcoder{}
	r := NewSegmentRenderer(tc, DefaultRenderSettings(), zerolog.Nop())

	seg, err := r.Render(context.Background(), wd, 2, wd.Path(SceneImageName(2)), "Caption", 6)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if seg.Index != 2 || seg.Path != wd.Path("seg_2.mp4") {
		t.Errorf("unexpected segment %+v", seg)
	}

	calls := tc.Snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Dir != wd.Dir {
		t.Errorf("expected dir %s, got %s", wd.Dir, calls[0].Dir)
	}
	args := strings.Join(calls[0].Args, " ")
	if !strings.Contains(args, "-i scene_2.png") {
		t.Errorf("image should be referenced by name: %s", args)
	}
	if !strings.Contains(args, "-frames:v 180") {
		t.Errorf("expected 180 frames for 6s: %s", args)
	}
}

func TestRenderFailureIsRenderError(t *testing.T) {
	wd := &Workdir{Dir: t.TempDir()}
	r := NewSegmentRenderer(&pipelinetest.Transcoder{FailOn: "seg_"}, DefaultRenderSettings(), zerolog.Nop())

	_, err := r.Render(context.Background(), wd, 1, wd.Path(SceneImageName(1)), "c", 4)
	if KindOf(err) != KindRender {
		t.Fatalf("expected render error, got %v (%s)", err, KindOf(err))
	}
}
