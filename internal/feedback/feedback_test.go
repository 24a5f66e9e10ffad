package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/services/llm"
	"tunevision/internal/testsupport"
)

func setup(t *testing.T) (*config.Config, *artifacts.Store, *runs.Run) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	prompt := testsupport.WriteText(t, cfg.Paths.PromptDir, "20240101_120000.txt", "a cat sits on a red chair", time.Time{})
	video := testsupport.WriteText(t, cfg.Paths.VideoDir, "20240101_120000_out.mp4", "v", time.Time{})
	run, err := runs.New(prompt, video)
	if err != nil {
		t.Fatalf("runs.New: %v", err)
	}
	path, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindComparison)
	comparison := artifacts.ComparisonResult{
		PromptObjects:   []string{"cat", "chair"},
		DetectedObjects: []string{"cat"},
		AppearedObjects: []string{"cat"},
		MissingObjects:  []string{"chair"},
	}
	if err := store.WriteJSON(path, comparison); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	return cfg, store, run
}

func readArtifact(t *testing.T, store *artifacts.Store, run *runs.Run, kind artifacts.Kind) string {
	t.Helper()
	path, _ := store.Resolve(run.ID, run.VideoBase, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", kind, err)
	}
	return string(data)
}

func runStage(t *testing.T, st *Stage, run *runs.Run) error {
	t.Helper()
	if err := st.Prepare(context.Background(), run); err != nil {
		return err
	}
	return st.Execute(context.Background(), run)
}

func TestMissingCredentialWritesPlaceholders(t *testing.T) {
	cfg, store, run := setup(t)
	client := llm.NewClient(llm.Config{})
	st := NewStage(store, client, cfg.LLM, logging.NewNop())
	if err := runStage(t, st, run); err != nil {
		t.Fatalf("stage: %v", err)
	}
	for _, kind := range []artifacts.Kind{artifacts.KindFeedback, artifacts.KindRevisedPrompt} {
		text := readArtifact(t, store, run, kind)
		if !strings.Contains(text, "not configured") || !strings.Contains(text, "chair") {
			t.Fatalf("%s placeholder = %q", kind, text)
		}
	}
	if !run.Degraded || run.Feedback == nil || !run.Feedback.Degraded {
		t.Fatalf("run should be degraded: %+v", run.Feedback)
	}
	if run.Feedback.RevisedPrompt != "" {
		t.Fatalf("revised prompt = %q, want empty", run.Feedback.RevisedPrompt)
	}
}

func TestConfiguredClientWritesModelOutput(t *testing.T) {
	var calls atomic.Int32
	var (
		mu    sync.Mutex
		temps []float64
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		temps = append(temps, body.Temperature)
		mu.Unlock()
		calls.Add(1)
		content := "The chair is missing; describe it more concretely."
		if strings.Contains(body.Messages[0].Content, "expert assistant") {
			content = "Feedback:\nThe chair never appears.\n\nImproved Prompt:\n\"A tabby cat sitting on a bright red wooden chair\""
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	cfg, store, run := setup(t)
	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: server.URL})
	st := NewStage(store, client, cfg.LLM, logging.NewNop())
	if err := runStage(t, st, run); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(temps) != 2 || temps[0] != 0.7 || temps[1] != 0.6 {
		t.Fatalf("temperatures = %v", temps)
	}
	if got := readArtifact(t, store, run, artifacts.KindFeedback); !strings.Contains(got, "chair is missing") {
		t.Fatalf("feedback = %q", got)
	}
	if run.Degraded {
		t.Fatalf("run should not be degraded: %+v", run.Feedback)
	}
	if want := "A tabby cat sitting on a bright red wooden chair"; run.Feedback.RevisedPrompt != want {
		t.Fatalf("revised prompt = %q, want %q", run.Feedback.RevisedPrompt, want)
	}
}

func TestServiceFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg, store, run := setup(t)
	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: server.URL}, llm.WithRetryMaxAttempts(1))
	st := NewStage(store, client, cfg.LLM, logging.NewNop())
	if err := runStage(t, st, run); err != nil {
		t.Fatalf("stage should not fail on service errors: %v", err)
	}
	text := readArtifact(t, store, run, artifacts.KindRevisedPrompt)
	if !strings.Contains(text, "error occurred") || !strings.Contains(text, "502") {
		t.Fatalf("placeholder = %q", text)
	}
	if !run.Degraded {
		t.Fatal("run should be degraded")
	}
}

func TestCorruptComparisonIsFatal(t *testing.T) {
	cfg, store, run := setup(t)
	path, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindComparison)
	if err := os.WriteFile(path, []byte(`{"prompt_objects":["cat"]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st := NewStage(store, llm.NewClient(llm.Config{}), cfg.LLM, logging.NewNop())
	err := runStage(t, st, run)
	if !errors.Is(err, services.ErrMalformedArtifact) {
		t.Fatalf("expected ErrMalformedArtifact, got %v", err)
	}
	fbPath, _ := store.Resolve(run.ID, run.VideoBase, artifacts.KindFeedback)
	if _, statErr := os.Stat(fbPath); !os.IsNotExist(statErr) {
		t.Fatalf("feedback artifact should not exist: %v", statErr)
	}
}

func TestExtractRevisedPrompt(t *testing.T) {
	tests := map[string]string{
		"Feedback:\nok\n\nImproved Prompt:\nA red chair": "A red chair",
		"**Improved Prompt:** \"A cat\"":                 "A cat",
		"Feedback:\nx\n\nImproved Prompt:\nN/A":          "",
		"no headings at all":                             "",
		"improved prompt: first\nIMPROVED PROMPT: second": "second",
		strings.Repeat("Ⱥ", 20) + "\nImproved Prompt:":  "",
		"Ⱥȿ feedback\nImproved Prompt: Ⱥ cat":             "Ⱥ cat",
	}
	for in, want := range tests {
		if got := ExtractRevisedPrompt(in); got != want {
			t.Errorf("ExtractRevisedPrompt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReviseMessageCarriesTokenGuidance(t *testing.T) {
	msg := reviseMessage(Context{Prompt: "a cat", PromptObjects: []string{"cat"}})
	for _, want := range []string{"fewer than 75 tokens", "hard limit of 77", "Objects from the prompt that were missing in the video: None"} {
		if !strings.Contains(msg, want) {
			t.Errorf("revise message missing %q", want)
		}
	}
}
