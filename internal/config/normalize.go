package config

import (
	"fmt"
	"os"
	"strings"
)

// Normalize expands paths, trims strings, fills empty values with defaults and
// applies environment fallbacks.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCommands(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeWatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_root", &c.Paths.DataRoot, defaultDataRoot},
		{"paths.prompt_dir", &c.Paths.PromptDir, defaultPromptDir},
		{"paths.video_dir", &c.Paths.VideoDir, defaultVideoDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeCommands() error {
	c.Extraction.FFmpegBinary = stringOr(c.Extraction.FFmpegBinary, defaultFFmpegBinary)
	c.Extraction.FFprobeBinary = stringOr(c.Extraction.FFprobeBinary, defaultFFprobeBinary)
	c.Scorer.Command = stringOr(c.Scorer.Command, defaultScorerCommand)
	c.Scorer.Model = stringOr(c.Scorer.Model, defaultScorerModel)
	c.Scorer.Device = strings.ToLower(stringOr(c.Scorer.Device, defaultDevice))
	c.Detector.Command = stringOr(c.Detector.Command, defaultDetectorCommand)
	c.Detector.Device = strings.ToLower(stringOr(c.Detector.Device, defaultDevice))

	// Detector weights may be a bare model name resolved by the detector itself
	// (yolov8m.pt) or a filesystem path, which gets the usual expansion.
	model := stringOr(c.Detector.Model, defaultDetectorModel)
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasPrefix(model, "~") {
		expanded, err := expandPath(model)
		if err != nil {
			return fmt.Errorf("detector.model: %w", err)
		}
		model = expanded
	}
	c.Detector.Model = model

	if script := strings.TrimSpace(c.Keywords.Script); script != "" {
		expanded, err := expandPath(script)
		if err != nil {
			return fmt.Errorf("keywords.script: %w", err)
		}
		c.Keywords.Script = expanded
	}
	words := make([]string, 0, len(c.Keywords.ExtraStopWords))
	for _, word := range c.Keywords.ExtraStopWords {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			words = append(words, word)
		}
	}
	c.Keywords.ExtraStopWords = words
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = stringOr(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = stringOr(c.LLM.Model, defaultLLMModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	if c.LLM.FeedbackMaxTokens <= 0 {
		c.LLM.FeedbackMaxTokens = defaultFeedbackMaxTokens
	}
	if c.LLM.ReviseMaxTokens <= 0 {
		c.LLM.ReviseMaxTokens = defaultReviseMaxTokens
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.Dispatch = strings.ToLower(stringOr(c.Watch.Dispatch, defaultDispatch))
	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = defaultPollInterval
	}
	if c.Watch.MaxConcurrentRuns == 0 {
		c.Watch.MaxConcurrentRuns = defaultMaxConcurrentRuns
	}
	exts := make([]string, 0, len(c.Watch.VideoExtensions))
	seen := make(map[string]struct{}, len(c.Watch.VideoExtensions))
	for _, ext := range c.Watch.VideoExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".mp4"}
	}
	c.Watch.VideoExtensions = exts
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func stringOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
