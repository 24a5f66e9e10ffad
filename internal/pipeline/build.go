package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/comparison"
	"tunevision/internal/config"
	"tunevision/internal/detection"
	"tunevision/internal/extraction"
	"tunevision/internal/feedback"
	"tunevision/internal/keywords"
	"tunevision/internal/runs"
	"tunevision/internal/scoring"
	"tunevision/internal/services/clip"
	"tunevision/internal/services/llm"
	"tunevision/internal/services/yolo"
)

// Build wires the default five-stage engine from configuration.
func Build(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	store := artifacts.NewStore(cfg.Paths.DataRoot)
	steps, err := DefaultSteps(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	return NewEngine(steps, logger, append([]Option{WithResultCleaner(store)}, opts...)...), nil
}

// DefaultSteps constructs the stage handlers in pipeline order.
func DefaultSteps(cfg *config.Config, store *artifacts.Store, logger *slog.Logger) ([]Step, error) {
	extractorOpts := []keywords.Option{keywords.WithStopWords(cfg.Keywords.ExtraStopWords...)}
	if script := strings.TrimSpace(cfg.Keywords.Script); script != "" {
		hook, err := keywords.LoadHook(script)
		if err != nil {
			return nil, fmt.Errorf("keyword hook: %w", err)
		}
		extractorOpts = append(extractorOpts, keywords.WithHook(hook))
	}
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	return []Step{
		{Name: runs.StageExtract, Handler: extraction.NewExtractor(cfg, store, logger)},
		{Name: runs.StageScore, Handler: scoring.NewStage(store, clip.New(cfg.Scorer), logger)},
		{Name: runs.StageDetect, Handler: detection.NewStage(store, yolo.New(cfg.Detector), logger)},
		{Name: runs.StageCompare, Handler: comparison.NewStage(store, keywords.New(extractorOpts...), logger)},
		{Name: runs.StageFeedback, Handler: feedback.NewStage(store, client, cfg.LLM, logger)},
	}, nil
}
