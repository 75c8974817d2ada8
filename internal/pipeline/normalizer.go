package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/amit-git-account/ai-video-ads/internal/models"
)

const (
	MinSceneSeconds     = 3
	MaxSceneSeconds     = 7
	DefaultSceneSeconds = 4

	defaultHeadline = "New product, big upgrade"
	defaultCTA      = "Order now"

	// Appended when the model returns fewer than five scenes.
	fillerCaption   = "Order now"
	fillerNarration = "Order now and experience it today."
	fillerVisual    = "A clean product hero shot on a studio background, modern lighting, shallow depth of field."

	// Per-field defaults for scenes the model returned sparsely.
	defaultCaption   = "Learn more"
	defaultNarration = "Discover what makes it great."
	defaultVisual    = "A clean product shot, modern lighting, premium look, vertical composition."
)

// Normalize coerces raw planner output into a plan with exactly
// models.SceneCount scenes. Only output that is not a JSON object, or that has
// no scenes array, is rejected; everything else is padded, trimmed and
// defaulted.
func Normalize(raw, platform, tone string) (*models.AdPlan, error) {
	text := strings.TrimSpace(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, &PlanParseError{Raw: raw, Reason: "expected a JSON object", Err: err}
	}
	if obj == nil {
		return nil, &PlanParseError{Raw: raw, Reason: "expected a JSON object"}
	}

	scenesRaw, ok := obj["scenes"]
	if !ok || isNull(scenesRaw) {
		return nil, &PlanParseError{Raw: raw, Reason: "missing 'scenes' array"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(scenesRaw, &entries); err != nil {
		return nil, &PlanParseError{Raw: raw, Reason: "'scenes' is not an array", Err: err}
	}

	plan := &models.AdPlan{
		Headline: stringField(obj, "headline", defaultHeadline),
		CTA:      stringField(obj, "cta", defaultCTA),
		Platform: platform,
		Tone:     tone,
		Scenes:   make([]models.Scene, 0, models.SceneCount),
	}

	// Model order is trusted as hook, benefits, CTA; anything past the fifth
	// scene is dropped.
	for _, entry := range entries {
		if len(plan.Scenes) == models.SceneCount {
			break
		}
		plan.Scenes = append(plan.Scenes, normalizeScene(entry))
	}

	for len(plan.Scenes) < models.SceneCount {
		plan.Scenes = append(plan.Scenes, models.Scene{
			Seconds:      DefaultSceneSeconds,
			Caption:      fillerCaption,
			Narration:    fillerNarration,
			VisualPrompt: fillerVisual,
		})
	}

	return plan, nil
}

// normalizeScene treats a non-object entry like an empty one, so every field
// falls back to its default.
func normalizeScene(entry json.RawMessage) models.Scene {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		fields = nil
	}

	return models.Scene{
		Seconds:      CoerceSeconds(fields["seconds"]),
		Caption:      stringField(fields, "caption", defaultCaption),
		Narration:    stringField(fields, "narration", defaultNarration),
		VisualPrompt: stringField(fields, "visual_prompt", defaultVisual),
	}
}

// CoerceSeconds casts a JSON value to an integer number of seconds and clamps
// it to [MinSceneSeconds, MaxSceneSeconds]. Numbers are truncated, numeric
// strings are parsed, and anything else becomes DefaultSceneSeconds.
func CoerceSeconds(raw json.RawMessage) int {
	n := DefaultSceneSeconds

	var v interface{}
	if len(raw) > 0 && json.Unmarshal(raw, &v) == nil {
		switch x := v.(type) {
		case float64:
			// Anything this large clamps to the ceiling anyway.
			t := math.Trunc(x)
			if t > 1e6 {
				t = 1e6
			} else if t < -1e6 {
				t = -1e6
			}
			n = int(t)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				n = i
			}
		case bool:
			n = 0
			if x {
				n = 1
			}
		}
	}

	return ClampSeconds(n)
}

// ClampSeconds bounds n to [MinSceneSeconds, MaxSceneSeconds].
func ClampSeconds(n int) int {
	if n < MinSceneSeconds {
		return MinSceneSeconds
	}
	if n > MaxSceneSeconds {
		return MaxSceneSeconds
	}
	return n
}

// stringField returns fields[key] when it is a JSON string, otherwise def.
func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		return def
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
