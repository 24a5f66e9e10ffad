package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. A missing LLM key is not an
// error: the feedback stage degrades to placeholder output instead.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateExtraction() error {
	if c.Paths.DataRoot == "" {
		return errors.New("paths.data_root must be set")
	}
	if c.Extraction.FrameInterval < 1 {
		return fmt.Errorf("extraction.frame_interval must be at least 1 (got %d)", c.Extraction.FrameInterval)
	}
	return nil
}

func (c *Config) validateLLM() error {
	for name, temp := range map[string]float64{
		"llm.feedback_temperature": c.LLM.FeedbackTemperature,
		"llm.revise_temperature":   c.LLM.ReviseTemperature,
	} {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("%s must be between 0 and 2 (got %v)", name, temp)
		}
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Dispatch {
	case DispatchProcess, DispatchTask:
	default:
		return fmt.Errorf("watch.dispatch must be %q or %q (got %q)", DispatchProcess, DispatchTask, c.Watch.Dispatch)
	}
	if c.Watch.MaxConcurrentRuns < 1 {
		return fmt.Errorf("watch.max_concurrent_runs must be at least 1 (got %d)", c.Watch.MaxConcurrentRuns)
	}
	if c.Paths.PromptDir == "" || c.Paths.VideoDir == "" {
		return errors.New("paths.prompt_dir and paths.video_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
}
