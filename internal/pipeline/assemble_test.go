package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/amit-git-account/ai-video-ads/internal/pipeline/pipelinetest"
	"github.com/rs/zerolog"
)

func TestAssembleOrdersByIndexAndUsesBasenames(t *testing.T) {
	wd := &Workdir{Dir: t.TempDir()}
	tc := &pipelinetest.Transcoder{}
	a := NewAssembler(tc, zerolog.Nop())

	// Delivered out of order, as they might be by concurrent rendering.
	segments := []Segment{
		{Index: 3, Path: wd.Path(SegmentName(3))},
		{Index: 1, Path: wd.Path(SegmentName(1))},
		{Index: 5, Path: wd.Path(SegmentName(5))},
		{Index: 2, Path: wd.Path(SegmentName(2))},
		{Index: 4, Path: wd.Path(SegmentName(4))},
	}

	out, err := a.Assemble(context.Background(), wd, segments, wd.Path(VoiceFile))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if out != wd.Path(FinalFile) {
		t.Errorf("expected %s, got %s", wd.Path(FinalFile), out)
	}

	manifest, err := os.ReadFile(wd.Path(ManifestFile))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := "file 'seg_1.mp4'\nfile 'seg_2.mp4'\nfile 'seg_3.mp4'\nfile 'seg_4.mp4'\nfile 'seg_5.mp4'\n"
	if string(manifest) != want {
		t.Errorf("manifest =\n%s\nwant\n%s", manifest, want)
	}
	if strings.Contains(string(manifest), wd.Dir) {
		t.Error("manifest must not contain absolute paths")
	}

	calls := tc.Snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected concat + mux, got %d calls", len(calls))
	}
	for _, c := range calls {
		if c.Dir != wd.Dir {
			t.Errorf("call ran in %s, want %s", c.Dir, wd.Dir)
		}
	}

	concat := strings.Join(calls[0].Args, " ")
	if !strings.Contains(concat, "-f concat -safe 0 -i segments.txt -c copy video_noaudio.mp4") {
		t.Errorf("unexpected concat args: %s", concat)
	}

	mux := strings.Join(calls[1].Args, " ")
	for _, part := range []string{"-i video_noaudio.mp4", "-i voice.mp3", "-c:v copy", "-af apad", "-c:a aac", "-shortest"} {
		if !strings.Contains(mux, part) {
			t.Errorf("mux args missing %q: %s", part, mux)
		}
	}
	if calls[1].Output() != FinalFile {
		t.Errorf("mux output = %s, want %s", calls[1].Output(), FinalFile)
	}
}

func TestAssembleRejectsBadIndices(t *testing.T) {
	wd := &Workdir{Dir: t.TempDir()}
	a := NewAssembler(&pipelinetest.Transcoder{}, zerolog.Nop())

	tests := map[string][]Segment{
		"empty":     nil,
		"gap":       {{Index: 1, Path: "seg_1.mp4"}, {Index: 3, Path: "seg_3.mp4"}},
		"duplicate": {{Index: 1, Path: "seg_1.mp4"}, {Index: 1, Path: "seg_1.mp4"}},
		"zero":      {{Index: 0, Path: "seg_0.mp4"}},
	}

	for name, segs := range tests {
		if _, err := a.Assemble(context.Background(), wd, segs, "voice.mp3"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestAssembleMuxFailure(t *testing.T) {
	wd := &Workdir{Dir: t.TempDir()}
	tc := &pipelinetest.Transcoder{FailOn: FinalFile}
	a := NewAssembler(tc, zerolog.Nop())

	segs := []Segment{{Index: 1, Path: wd.Path(SegmentName(1))}}
	_, err := a.Assemble(context.Background(), wd, segs, wd.Path(VoiceFile))
	if KindOf(err) != KindRender {
		t.Fatalf("expected render error, got %v", err)
	}
}
