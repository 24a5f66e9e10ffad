// Package comparison implements the fourth stage: the objects named in the
// prompt are compared with every label the detector saw across the video.
//
// Labels and prompt nouns are case folded before the set arithmetic, so
// "Dog" and "dog" are the same object. Every list in the result is sorted and
// de-duplicated; appeared and missing partition the prompt objects.
package comparison

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"tunevision/internal/artifacts"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

const stageName = runs.StageCompare

// NounExtractor lists the object nouns in a prompt.
type NounExtractor interface {
	Nouns(ctx context.Context, text string) ([]string, error)
}

// Stage compares prompt nouns with detected labels.
type Stage struct {
	store    *artifacts.Store
	keywords NounExtractor
	logger   *slog.Logger
}

// NewStage builds the compare stage.
func NewStage(store *artifacts.Store, keywords NounExtractor, logger *slog.Logger) *Stage {
	return &Stage{
		store:    store,
		keywords: keywords,
		logger:   logging.NewComponentLogger(logger, "comparison"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "comparison")
}

// Prepare ensures the prompt text and detections are available. Detections
// are reloaded from the detect artifact when the run was not threaded through
// the earlier stages in memory.
func (s *Stage) Prepare(_ context.Context, run *runs.Run) error {
	if s == nil || s.store == nil || s.keywords == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Comparison stage is not configured", nil)
	}
	if run.PromptText == "" {
		data, err := os.ReadFile(run.PromptPath)
		if err != nil {
			return services.Wrap(services.ErrSourceUnreadable, stageName, "read prompt", run.PromptPath, err)
		}
		run.PromptText = strings.TrimSpace(string(data))
	}
	if run.Detections == nil {
		path, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindDetections)
		if err != nil {
			return err
		}
		detections, err := artifacts.ReadDetections(path)
		if err != nil {
			return services.Wrap(services.ErrMalformedArtifact, stageName, "load detections", path, err)
		}
		run.Detections = detections
	}
	return nil
}

// Execute writes the object comparison artifact.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	nouns, err := s.keywords.Nouns(ctx, run.PromptText)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "extract keywords", "Prompt keyword extraction failed", err)
	}
	result := Compare(nouns, run.Detections)

	path, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindComparison)
	if err != nil {
		return err
	}
	if err := s.store.WriteJSON(path, result); err != nil {
		run.Record(stageName, artifacts.KindComparison, path, err)
		return err
	}
	run.Comparison = &result
	run.Record(stageName, artifacts.KindComparison, path, nil)

	logging.WithContext(ctx, s.logger).Info("objects compared",
		logging.Int("prompt_objects", len(result.PromptObjects)),
		logging.Int("detected_objects", len(result.DetectedObjects)),
		logging.String("appeared", strings.Join(result.AppearedObjects, ",")),
		logging.String("missing", strings.Join(result.MissingObjects, ",")),
	)
	return nil
}

// HealthCheck always reports ready; the stage has no external collaborator
// beyond the in-process tagger.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.keywords == nil {
		return stage.Unhealthy(stageName, "keyword extractor not configured")
	}
	return stage.Healthy(stageName)
}

// Compare folds prompt objects and detected labels and computes appeared
// (prompt ∩ detected) and missing (prompt − detected).
func Compare(promptObjects []string, detections []artifacts.FrameDetection) artifacts.ComparisonResult {
	fold := cases.Fold()
	prompt := normalize(fold, promptObjects)

	var labels []string
	for _, d := range detections {
		labels = append(labels, d.Objects...)
	}
	detected := normalize(fold, labels)

	appeared := []string{}
	missing := []string{}
	for _, obj := range prompt {
		if _, found := slices.BinarySearch(detected, obj); found {
			appeared = append(appeared, obj)
		} else {
			missing = append(missing, obj)
		}
	}
	return artifacts.ComparisonResult{
		PromptObjects:   prompt,
		DetectedObjects: detected,
		AppearedObjects: appeared,
		MissingObjects:  missing,
	}
}

func normalize(fold cases.Caser, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(fold.String(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
