package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amit-git-account/ai-video-ads/internal/models"
	"github.com/rs/zerolog"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewOpenAIService(OpenAIOptions{APIKey: "test-key", BaseURL: ts.URL + "/v1"}, zerolog.Nop())
}

func TestDraftPlanReturnsRawContent(t *testing.T) {
	raw := `{"headline": "Glow", "scenes": []}`
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}

		var payload struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != defaultPlanModel {
			t.Errorf("unexpected model: %s", payload.Model)
		}
		if payload.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", payload.ResponseFormat.Type)
		}
		if len(payload.Messages) != 1 || !strings.Contains(payload.Messages[0].Content, "Solar lantern") {
			t.Errorf("prompt does not carry the product description: %+v", payload.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "  " + raw + "\n"},
			}},
		})
	})

	got, err := svc.DraftPlan(context.Background(), models.Brief{Prompt: "Solar lantern", Platform: "IG", Tone: "Fun"})
	if err != nil {
		t.Fatalf("DraftPlan error: %v", err)
	}
	if got != raw {
		t.Errorf("DraftPlan = %q, want %q", got, raw)
	}
}

func TestDraftPlanNoChoices(t *testing.T) {
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	})

	if _, err := svc.DraftPlan(context.Background(), models.Brief{Prompt: "p"}); err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}

func TestGenerateImageDecodesBase64(t *testing.T) {
	png := []byte("\x89PNG fake")
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload["model"] != "dall-e-3" || payload["size"] != "1024x1024" || payload["response_format"] != "b64_json" {
			t.Errorf("unexpected image request: %v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	})

	got, err := svc.GenerateImage(context.Background(), "a lantern on a beach")
	if err != nil {
		t.Fatalf("GenerateImage error: %v", err)
	}
	if string(got) != string(png) {
		t.Errorf("unexpected image bytes %q", got)
	}
}

func TestGenerateImageProviderError(t *testing.T) {
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "content policy violation", "type": "invalid_request_error"}}`))
	})

	if _, err := svc.GenerateImage(context.Background(), "p"); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload["voice"] != defaultTTSVoice || payload["input"] != "Hello there." {
			t.Errorf("unexpected speech request: %v", payload)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 audio"))
	})

	got, err := svc.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if string(got) != "ID3 audio" {
		t.Errorf("unexpected audio %q", got)
	}
}

func TestBuildPlanPrompt(t *testing.T) {
	p := BuildPlanPrompt(models.Brief{Prompt: "  Solar lantern\n", Platform: "YT", Tone: "Clean"})
	for _, want := range []string{
		"vertical video ad for YT",
		"Tone: Clean",
		"Exactly 5 scenes",
		`"visual_prompt"`,
		"Product description:\nSolar lantern",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}
