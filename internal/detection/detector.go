// Package detection implements the object detection stage.
package detection

import (
	"context"
	"log/slog"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/services/yolo"
	"tunevision/internal/stage"
)

const stageName = runs.StageDetect

// ObjectDetector labels the objects visible in each frame of a directory.
type ObjectDetector interface {
	Detect(ctx context.Context, framesDir, model string) ([]artifacts.FrameDetection, error)
	Available() error
	Model() string
}

// Stage runs the detector for one run.
type Stage struct {
	store    *artifacts.Store
	detector ObjectDetector
	logger   *slog.Logger
}

// NewStage builds the detect stage.
func NewStage(store *artifacts.Store, detector ObjectDetector, logger *slog.Logger) *Stage {
	return &Stage{
		store:    store,
		detector: detector,
		logger:   logging.NewComponentLogger(logger, "detection"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "detection")
}

// Prepare verifies frames exist and the model weights can be found.
func (s *Stage) Prepare(_ context.Context, run *runs.Run) error {
	if s == nil || s.store == nil || s.detector == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Detection stage is not configured", nil)
	}
	if len(run.Frames) == 0 {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "No extracted frames to analyze", nil)
	}
	return yolo.CheckModel(s.model(run))
}

// Execute detects objects and writes the per-frame label sets.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	framesDir, err := s.store.FramesDir(run.ID, run.VideoBase)
	if err != nil {
		return err
	}
	raw, err := s.detector.Detect(ctx, framesDir, s.model(run))
	if err != nil {
		return err
	}
	detections := Normalize(run.Frames, raw)
	run.Detections = detections

	path, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindDetections)
	if err != nil {
		return err
	}
	if err := s.store.WriteJSON(path, detections); err != nil {
		run.Record(stageName, artifacts.KindDetections, path, err)
		return err
	}
	run.Record(stageName, artifacts.KindDetections, path, nil)

	labels := 0
	for _, d := range detections {
		labels += len(d.Objects)
	}
	logging.WithContext(ctx, s.logger).Info("objects detected",
		logging.Int("frames", len(detections)),
		logging.Int("labels", labels),
		logging.String("model", s.model(run)),
	)
	return nil
}

// HealthCheck reports whether the detector command and weights resolve.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.detector == nil {
		return stage.Unhealthy(stageName, "detector not configured")
	}
	if err := s.detector.Available(); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

func (s *Stage) model(run *runs.Run) string {
	if m := strings.TrimSpace(run.DetectorModel); m != "" {
		return m
	}
	return s.detector.Model()
}

// Normalize emits one entry per extracted frame in index order. Labels are
// trimmed and de-duplicated within a frame keeping first-seen order and the
// detector's casing. Frames the detector skipped get an empty label list.
func Normalize(frames []artifacts.Frame, raw []artifacts.FrameDetection) []artifacts.FrameDetection {
	byFrame := make(map[string][]string, len(raw))
	for _, d := range raw {
		byFrame[d.Frame] = append(byFrame[d.Frame], d.Objects...)
	}
	out := make([]artifacts.FrameDetection, 0, len(frames))
	for _, frame := range frames {
		seen := map[string]struct{}{}
		objects := []string{}
		for _, label := range byFrame[frame.Name] {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			objects = append(objects, label)
		}
		out = append(out, artifacts.FrameDetection{Frame: frame.Name, Objects: objects})
	}
	return out
}
