package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Fixed artifact names inside a workdir.
const (
	PlanFile         = "plan.json"
	VoiceFile        = "voice.mp3"
	ManifestFile     = "segments.txt"
	IntermediateFile = "video_noaudio.mp4"
	FinalFile        = "final_ad.mp4"
)

// SceneImageName returns the still image name for a 1-based scene index.
func SceneImageName(i int) string {
	return fmt.Sprintf("scene_%d.png", i)
}

// SegmentName returns the rendered clip name for a 1-based scene index.
func SegmentName(i int) string {
	return fmt.Sprintf("seg_%d.mp4", i)
}

// Workdir is the run-scoped directory holding every artifact of one pipeline
// execution. It is never reused and never removed by the process.
type Workdir struct {
	Dir string
}

// NewWorkdir creates a fresh ad_<hex> directory under root. It fails instead
// of adopting a directory that already exists.
func NewWorkdir(root string) (*Workdir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}

	name := "ad_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workdir %s: %w", dir, err)
	}

	return &Workdir{Dir: dir}, nil
}

// Path joins name onto the workdir.
func (w *Workdir) Path(name string) string {
	return filepath.Join(w.Dir, name)
}
