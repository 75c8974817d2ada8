package models

import (
	"testing"
)

func TestJobStatus(t *testing.T) {
	statuses := []JobStatus{
		JobStatusQueued,
		JobStatusPlanning,
		JobStatusGenerating,
		JobStatusUploading,
		JobStatusDone,
		JobStatusFailed,
	}

	for _, status := range statuses {
		if !status.Valid() {
			t.Errorf("status %q should be valid", status)
		}
	}

	if JobStatus("running").Valid() {
		t.Error("unexpected valid status \"running\"")
	}
}

func TestJobStatusTerminal(t *testing.T) {
	tests := map[JobStatus]bool{
		JobStatusQueued:     false,
		JobStatusPlanning:   false,
		JobStatusGenerating: false,
		JobStatusUploading:  false,
		JobStatusDone:       true,
		JobStatusFailed:     true,
	}

	for status, want := range tests {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestJobBriefDefaults(t *testing.T) {
	j := &Job{Prompt: "solar lantern"}
	b := j.Brief()
	if b.Platform != DefaultPlatform {
		t.Errorf("expected platform=%s, got %s", DefaultPlatform, b.Platform)
	}
	if b.Tone != DefaultTone {
		t.Errorf("expected tone=%s, got %s", DefaultTone, b.Tone)
	}

	j = &Job{Prompt: "solar lantern", Platform: "YT", Tone: "Fun"}
	b = j.Brief()
	if b.Platform != "YT" || b.Tone != "Fun" {
		t.Errorf("explicit platform/tone overwritten: %+v", b)
	}
}

func TestAdPlanTotalSeconds(t *testing.T) {
	p := &AdPlan{Scenes: []Scene{{Seconds: 3}, {Seconds: 4}, {Seconds: 7}, {Seconds: 5}, {Seconds: 4}}}
	if got := p.TotalSeconds(); got != 23 {
		t.Errorf("expected 23, got %d", got)
	}
}
