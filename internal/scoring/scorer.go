// Package scoring implements the similarity stage: every extracted frame is
// scored against the prompt text and the series is persisted as JSON plus a
// trend chart.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/chart"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/stage"
)

const stageName = runs.StageScore

// FrameScorer scores a directory of frames against a prompt file.
type FrameScorer interface {
	Score(ctx context.Context, promptFile, framesDir string) ([]artifacts.FrameScore, error)
	Available() error
	Model() string
}

// Stage runs the similarity scorer for one run.
type Stage struct {
	store  *artifacts.Store
	scorer FrameScorer
	logger *slog.Logger
}

// NewStage builds the score stage.
func NewStage(store *artifacts.Store, scorer FrameScorer, logger *slog.Logger) *Stage {
	return &Stage{
		store:  store,
		scorer: scorer,
		logger: logging.NewComponentLogger(logger, "scoring"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "scoring")
}

// Prepare loads the prompt text and checks frames are present.
func (s *Stage) Prepare(_ context.Context, run *runs.Run) error {
	if s == nil || s.store == nil || s.scorer == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Scoring stage is not configured", nil)
	}
	if len(run.Frames) == 0 {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "No extracted frames to score", nil)
	}
	data, err := os.ReadFile(run.PromptPath)
	if err != nil {
		return services.Wrap(services.ErrSourceUnreadable, stageName, "read prompt", run.PromptPath, err)
	}
	run.PromptText = strings.TrimSpace(string(data))
	return nil
}

// Execute scores the frames and writes the score series and chart.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	logger := logging.WithContext(ctx, s.logger)
	framesDir, err := s.store.FramesDir(run.ID, run.VideoBase)
	if err != nil {
		return err
	}
	raw, err := s.scorer.Score(ctx, run.PromptPath, framesDir)
	if err != nil {
		return err
	}
	scores, err := Order(run.Frames, raw)
	if err != nil {
		return err
	}
	run.Scores = scores

	scoresPath, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindScores)
	if err != nil {
		return err
	}
	if err := s.store.WriteJSON(scoresPath, scores); err != nil {
		run.Record(stageName, artifacts.KindScores, scoresPath, err)
		return err
	}
	run.Record(stageName, artifacts.KindScores, scoresPath, nil)

	chartPath, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindScoreChart)
	if err != nil {
		return err
	}
	png, err := chart.SimilarityPNG(fmt.Sprintf("CLIP similarity: %s", run.VideoBase), scores)
	if err != nil {
		err = services.Wrap(services.ErrExternalTool, stageName, "render chart", chartPath, err)
		run.Record(stageName, artifacts.KindScoreChart, chartPath, err)
		return err
	}
	if err := s.store.WriteBytes(chartPath, png); err != nil {
		run.Record(stageName, artifacts.KindScoreChart, chartPath, err)
		return err
	}
	run.Record(stageName, artifacts.KindScoreChart, chartPath, nil)

	mean, lo, hi := summarize(scores)
	logger.Info("frames scored",
		logging.Int("frames", len(scores)),
		logging.String("model", s.scorer.Model()),
		logging.Float64("mean_score", mean),
		logging.Float64("min_score", lo),
		logging.Float64("max_score", hi),
	)
	return nil
}

// HealthCheck reports whether the scorer command resolves.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.scorer == nil {
		return stage.Unhealthy(stageName, "scorer not configured")
	}
	if err := s.scorer.Available(); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

// Order aligns raw scores with frames in index order and rounds each to four
// decimals. A frame without a score is an external tool failure.
func Order(frames []artifacts.Frame, raw []artifacts.FrameScore) ([]artifacts.FrameScore, error) {
	byFrame := make(map[string]float64, len(raw))
	for _, score := range raw {
		byFrame[score.Frame] = score.Score
	}
	out := make([]artifacts.FrameScore, 0, len(frames))
	for _, frame := range frames {
		value, ok := byFrame[frame.Name]
		if !ok {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "score frames",
				"scorer returned no score for "+frame.Name, nil)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "score frames",
				fmt.Sprintf("scorer returned %v for %s", value, frame.Name), nil)
		}
		out = append(out, artifacts.FrameScore{Frame: frame.Name, Score: Round(value)})
	}
	return out, nil
}

// Round rounds to four decimal places.
func Round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func summarize(scores []artifacts.FrameScore) (mean, lo, hi float64) {
	if len(scores) == 0 {
		return 0, 0, 0
	}
	lo, hi = scores[0].Score, scores[0].Score
	var sum float64
	for _, s := range scores {
		sum += s.Score
		lo = min(lo, s.Score)
		hi = max(hi, s.Score)
	}
	return Round(sum / float64(len(scores))), lo, hi
}
