// Package pipelinetest provides in-memory stand-ins for the pipeline's
// external collaborators.
package pipelinetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amit-git-account/ai-video-ads/internal/models"
)

// PlanJSON builds planner output with n scenes whose seconds are given in
// order (cycled when shorter than n).
func PlanJSON(n int, seconds ...int) string {
	if len(seconds) == 0 {
		seconds = []int{4}
	}
	scenes := make([]string, n)
	for i := range scenes {
		scenes[i] = fmt.Sprintf(
			`{"seconds": %d, "caption": "Caption %d", "narration": "Line %d.", "visual_prompt": "visual %d"}`,
			seconds[i%len(seconds)], i+1, i+1, i+1)
	}
	return fmt.Sprintf(`{"headline": "Glow anywhere", "cta": "Shop today", "scenes": [%s]}`, strings.Join(scenes, ","))
}

// Planner returns Raw or Err.
type Planner struct {
	Raw string
	Err error

	mu     sync.Mutex
	Briefs []models.Brief
}

func (p *Planner) DraftPlan(ctx context.Context, brief models.Brief) (string, error) {
	p.mu.Lock()
	p.Briefs = append(p.Briefs, brief)
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Raw, nil
}

// Images returns the prompt bytes as the image. Delay, when set, is applied
// per prompt before answering. FailOn makes prompts containing it fail and
// PanicOn makes them panic.
type Images struct {
	Delay   func(prompt string) time.Duration
	FailOn  string
	PanicOn string

	mu      sync.Mutex
	Prompts []string
}

func (f *Images) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	f.mu.Unlock()

	if f.Delay != nil {
		select {
		case <-time.After(f.Delay(prompt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.PanicOn != "" && strings.Contains(prompt, f.PanicOn) {
		panic("image provider crashed on " + prompt)
	}
	if f.FailOn != "" && strings.Contains(prompt, f.FailOn) {
		return nil, fmt.Errorf("provider rejected prompt")
	}
	return []byte(prompt), nil
}

// Speech echoes the text as audio.
type Speech struct {
	Err error

	mu    sync.Mutex
	Texts []string
}

func (f *Speech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.Texts = append(f.Texts, text)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return []byte(text), nil
}

// Call is one recorded transcoder invocation.
type Call struct {
	Dir  string
	Args []string
}

// Output is the file the invocation writes (its last argument).
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// Transcoder records invocations and writes each invocation's output file
// into its working directory. FailOn fails invocations whose output contains
// it. Block makes every invocation wait for its context to end.
type Transcoder struct {
	FailOn   string
	Block    bool
	Probed   time.Duration
	ProbeErr error

	mu    sync.Mutex
	Calls []Call
}

func (f *Transcoder) Transcode(ctx context.Context, dir string, args []string) error {
	call := Call{Dir: dir, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()

	if f.Block {
		<-ctx.Done()
		return fmt.Errorf("ffmpeg: signal: killed")
	}
	if f.FailOn != "" && strings.Contains(call.Output(), f.FailOn) {
		return fmt.Errorf("ffmpeg exited with status 1")
	}
	return os.WriteFile(filepath.Join(dir, call.Output()), []byte(strings.Join(args, " ")), 0644)
}

func (f *Transcoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	if f.ProbeErr != nil {
		return 0, f.ProbeErr
	}
	return f.Probed, nil
}

// Snapshot returns a copy of the recorded calls.
func (f *Transcoder) Snapshot() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.Calls...)
}
