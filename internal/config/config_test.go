package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tunevision/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	workDir := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(workDir)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.DataRoot != filepath.Join(workDir, "data") {
		t.Fatalf("unexpected data root: %q", cfg.Paths.DataRoot)
	}
	if cfg.Paths.PromptDir != filepath.Join(workDir, "data", "prompts") {
		t.Fatalf("unexpected prompt dir: %q", cfg.Paths.PromptDir)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "state", "tunevision") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Extraction.FrameInterval != 10 {
		t.Fatalf("unexpected frame interval: %d", cfg.Extraction.FrameInterval)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Watch.Dispatch != config.DispatchProcess {
		t.Fatalf("unexpected dispatch mode: %q", cfg.Watch.Dispatch)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" || cfg.LLM.FeedbackMaxTokens != 400 || cfg.LLM.ReviseMaxTokens != 600 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataRoot, cfg.Paths.PromptDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
[paths]
data_root = "~/evals"
video_dir = "/srv/comfy/output"

[extraction]
frame_interval = 5

[detector]
model = "~/models/yolov8n.pt"

[watch]
dispatch = "TASK"
video_extensions = ["MP4", ".webm", "mp4"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.DataRoot != filepath.Join(home, "evals") {
		t.Fatalf("unexpected data root: %q", cfg.Paths.DataRoot)
	}
	if cfg.Paths.VideoDir != "/srv/comfy/output" {
		t.Fatalf("unexpected video dir: %q", cfg.Paths.VideoDir)
	}
	if cfg.Extraction.FrameInterval != 5 {
		t.Fatalf("unexpected frame interval: %d", cfg.Extraction.FrameInterval)
	}
	if cfg.Detector.Model != filepath.Join(home, "models", "yolov8n.pt") {
		t.Fatalf("unexpected detector model: %q", cfg.Detector.Model)
	}
	if cfg.Watch.Dispatch != config.DispatchTask {
		t.Fatalf("unexpected dispatch: %q", cfg.Watch.Dispatch)
	}
	if got := strings.Join(cfg.Watch.VideoExtensions, ","); got != ".mp4,.webm" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	// Unset sections keep defaults.
	if cfg.Scorer.Command != "tunevision-clip" {
		t.Fatalf("unexpected scorer command: %q", cfg.Scorer.Command)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[extraction]\nframe_intervall = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestAPIKeyFromEnvAndDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	workDir := t.TempDir()
	t.Chdir(workDir)

	t.Setenv("OPENAI_API_KEY", "from-env")
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("expected key from env, got %q", cfg.LLM.APIKey)
	}

	// Configured key wins over the environment.
	path := filepath.Join(workDir, "tunevision.toml")
	if err := os.WriteFile(path, []byte("[llm]\napi_key = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-file" {
		t.Fatalf("expected key from file, got %q", cfg.LLM.APIKey)
	}
}

func TestDotEnvSuppliesMissingKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	workDir := t.TempDir()
	t.Chdir(workDir)
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	if err := os.WriteFile(filepath.Join(workDir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "OPENAI_API_KEY") {
		t.Fatalf("sample config missing credential hint: %s", contents)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Extraction.FrameInterval != 10 || cfg.Detector.Model != "yolov8m.pt" {
		t.Fatalf("unexpected sample values: %+v", cfg)
	}
}

func TestRedactedHidesKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-secret"
	redacted := cfg.Redacted()
	data, err := redacted.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Fatalf("expected key to be redacted, got %s", data)
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Fatal("redaction must not mutate the original")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"frame interval", func(c *config.Config) { c.Extraction.FrameInterval = 0 }},
		{"dispatch", func(c *config.Config) { c.Watch.Dispatch = "thread" }},
		{"concurrency", func(c *config.Config) { c.Watch.MaxConcurrentRuns = -1 }},
		{"temperature", func(c *config.Config) { c.LLM.ReviseTemperature = 3 }},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestEnsureVideoDirReportsFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Paths.VideoDir = filepath.Join(blocker, "videos")
	if err := cfg.EnsureVideoDir(); err == nil || !strings.Contains(err.Error(), "create video directory") {
		t.Fatalf("expected video directory error, got %v", err)
	}

	cfg.Paths.VideoDir = filepath.Join(base, "videos")
	if err := cfg.EnsureVideoDir(); err != nil {
		t.Fatalf("EnsureVideoDir: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.VideoDir); err != nil || !info.IsDir() {
		t.Fatalf("video dir not created: %v", err)
	}
}
