package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the data layout and the watched directories.
type Paths struct {
	DataRoot  string `toml:"data_root"`
	PromptDir string `toml:"prompt_dir"`
	VideoDir  string `toml:"video_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Extraction configures frame sampling.
type Extraction struct {
	FrameInterval int    `toml:"frame_interval"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Scorer configures the frame/prompt similarity model command.
type Scorer struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Model   string   `toml:"model"`
	Device  string   `toml:"device"`
}

// Detector configures the object detector command.
type Detector struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Model   string   `toml:"model"`
	Device  string   `toml:"device"`
}

// Keywords configures prompt noun extraction.
type Keywords struct {
	// Script is an optional Lua file defining filter(words) -> words.
	Script         string   `toml:"script"`
	ExtraStopWords []string `toml:"extra_stop_words"`
}

// LLM contains chat completions connection and sampling settings.
type LLM struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Model               string  `toml:"model"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	FeedbackTemperature float64 `toml:"feedback_temperature"`
	ReviseTemperature   float64 `toml:"revise_temperature"`
	FeedbackMaxTokens   int     `toml:"feedback_max_tokens"`
	ReviseMaxTokens     int     `toml:"revise_max_tokens"`
}

// Watch configures the trigger loop.
type Watch struct {
	PollInterval      int      `toml:"poll_interval"`
	Dispatch          string   `toml:"dispatch"`
	MaxConcurrentRuns int      `toml:"max_concurrent_runs"`
	IncludeExisting   bool     `toml:"include_existing"`
	VideoExtensions   []string `toml:"video_extensions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tunevision.
//
// Configuration sections by subsystem:
//   - Paths: artifact root, watched prompt/video directories, state and logs
//   - Extraction: frame sampling interval and ffmpeg/ffprobe binaries
//   - Scorer: similarity model command
//   - Detector: object detector command and weights
//   - Keywords: prompt noun extraction hook
//   - LLM: feedback/revision chat completions settings
//   - Watch: polling, dispatch mode, and concurrency
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extraction Extraction `toml:"extraction"`
	Scorer     Scorer     `toml:"scorer"`
	Detector   Detector   `toml:"detector"`
	Keywords   Keywords   `toml:"keywords"`
	LLM        LLM        `toml:"llm"`
	Watch      Watch      `toml:"watch"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tunevision/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// loaded first so credentials placed there act like real environment variables.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}
	// godotenv.Load never overrides variables already present in the environment.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("tunevision.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline and watch loop write to.
// The video directory belongs to the upstream generator; see EnsureVideoDir.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataRoot, c.Paths.PromptDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EnsureVideoDir creates the video directory. Callers treat a failure as a
// warning: explicit --video paths still work without it.
func (c *Config) EnsureVideoDir() error {
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.VideoDir, 0o755); err != nil {
		return fmt.Errorf("create video directory %q: %w", c.Paths.VideoDir, err)
	}
	return nil
}

// PollInterval returns the watch loop tick as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.Watch.PollInterval <= 0 {
		return time.Duration(defaultPollInterval) * time.Second
	}
	return time.Duration(c.Watch.PollInterval) * time.Second
}

// HistoryPath returns the SQLite run ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the watch loop lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "watch.lock")
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	out.Scorer.Args = append([]string(nil), c.Scorer.Args...)
	out.Detector.Args = append([]string(nil), c.Detector.Args...)
	out.Watch.VideoExtensions = append([]string(nil), c.Watch.VideoExtensions...)
	out.Keywords.ExtraStopWords = append([]string(nil), c.Keywords.ExtraStopWords...)
	return out
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
