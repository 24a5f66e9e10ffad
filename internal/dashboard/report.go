package dashboard

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/services"
)

// ArtifactStatus describes one result file of the run.
type ArtifactStatus struct {
	Kind    artifacts.Kind `json:"kind" yaml:"kind"`
	Label   string         `json:"label" yaml:"label"`
	Path    string         `json:"path" yaml:"path"`
	Present bool           `json:"present" yaml:"present"`
}

// ScoreSummary aggregates the similarity series.
type ScoreSummary struct {
	Frames   int     `json:"frames" yaml:"frames"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Min      float64 `json:"min" yaml:"min"`
	MinFrame string  `json:"min_frame" yaml:"min_frame"`
	Max      float64 `json:"max" yaml:"max"`
	MaxFrame string  `json:"max_frame" yaml:"max_frame"`
}

// ObjectCount is how often the detector emitted a label across all frames.
type ObjectCount struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Report is the read-only view of one run and video.
type Report struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	VideoBase  string `json:"video_base" yaml:"video_base"`
	PromptPath string `json:"prompt_path,omitempty" yaml:"prompt_path,omitempty"`
	Prompt     string `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	Scores          []artifacts.FrameScore      `json:"scores,omitempty" yaml:"scores,omitempty"`
	ScoreSummary    *ScoreSummary               `json:"score_summary,omitempty" yaml:"score_summary,omitempty"`
	ChartPath       string                      `json:"chart_path,omitempty" yaml:"chart_path,omitempty"`
	DetectionFrames int                         `json:"detection_frames" yaml:"detection_frames"`
	ObjectCounts    []ObjectCount               `json:"object_counts,omitempty" yaml:"object_counts,omitempty"`
	Comparison      *artifacts.ComparisonResult `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Feedback        string                      `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Revised         string                      `json:"revised,omitempty" yaml:"revised,omitempty"`

	Artifacts []ArtifactStatus `json:"artifacts" yaml:"artifacts"`
	Warnings  []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Present reports whether the artifact of kind exists.
func (r *Report) Present(kind artifacts.Kind) bool {
	for _, a := range r.Artifacts {
		if a.Kind == kind {
			return a.Present
		}
	}
	return false
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ResolveVideo picks the video base for runID. An explicit base is returned
// unchanged. Otherwise the run must hold artifacts for exactly one video.
func ResolveVideo(store *artifacts.Store, runID, videoBase string) (string, error) {
	if strings.TrimSpace(videoBase) != "" {
		return videoBase, nil
	}
	bases, err := store.VideoBases(runID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrValidation, "report", "resolve video",
				fmt.Sprintf("no artifacts for run %q under %s", runID, store.Root()), err)
		}
		return "", err
	}
	switch len(bases) {
	case 0:
		return "", services.Wrap(services.ErrValidation, "report", "resolve video",
			fmt.Sprintf("run %q has no result artifacts", runID), nil)
	case 1:
		return bases[0], nil
	default:
		slices.Sort(bases)
		return "", services.Wrap(services.ErrValidation, "report", "resolve video",
			fmt.Sprintf("run %q has artifacts for several videos (%s); pass --video", runID, strings.Join(bases, ", ")), nil)
	}
}

// Load reads every artifact of runID/videoBase. promptPath is optional; when
// empty or unreadable the prompt section carries a warning.
func Load(store *artifacts.Store, runID, videoBase, promptPath string) (*Report, error) {
	report := &Report{RunID: runID, VideoBase: videoBase, PromptPath: promptPath}
	for _, kind := range artifacts.Kinds {
		path, err := store.Resolve(runID, videoBase, kind)
		if err != nil {
			return nil, err
		}
		_, statErr := os.Stat(path)
		report.Artifacts = append(report.Artifacts, ArtifactStatus{
			Kind:    kind,
			Label:   kind.Label(),
			Path:    path,
			Present: statErr == nil,
		})
	}

	report.loadPrompt()
	for _, a := range report.Artifacts {
		if !a.Present {
			report.warn("%s not found: %s", a.Label, a.Path)
			continue
		}
		report.loadArtifact(a)
	}
	return report, nil
}

func (r *Report) loadPrompt() {
	if r.PromptPath == "" {
		r.warn("prompt file unknown for run %s", r.RunID)
		return
	}
	data, err := os.ReadFile(r.PromptPath)
	if err != nil {
		r.warn("prompt unreadable: %v", err)
		return
	}
	r.Prompt = strings.TrimSpace(string(data))
}

func (r *Report) loadArtifact(a ArtifactStatus) {
	switch a.Kind {
	case artifacts.KindScores:
		scores, err := artifacts.ReadScores(a.Path)
		if err != nil {
			r.warn("%s unreadable: %v", a.Label, err)
			return
		}
		r.Scores = scores
		r.ScoreSummary = Summarize(scores)
	case artifacts.KindScoreChart:
		r.ChartPath = a.Path
	case artifacts.KindDetections:
		detections, err := artifacts.ReadDetections(a.Path)
		if err != nil {
			r.warn("%s unreadable: %v", a.Label, err)
			return
		}
		r.DetectionFrames = len(detections)
		r.ObjectCounts = CountObjects(detections)
	case artifacts.KindComparison:
		comparison, err := artifacts.ReadComparison(a.Path)
		if err != nil {
			r.warn("%s unreadable: %v", a.Label, err)
			return
		}
		r.Comparison = &comparison
	case artifacts.KindFeedback:
		text, err := artifacts.ReadText(a.Path)
		if err != nil {
			r.warn("%s unreadable: %v", a.Label, err)
			return
		}
		r.Feedback = text
	case artifacts.KindRevisedPrompt:
		text, err := artifacts.ReadText(a.Path)
		if err != nil {
			r.warn("%s unreadable: %v", a.Label, err)
			return
		}
		r.Revised = text
	}
}

// Summarize returns nil for an empty series.
func Summarize(scores []artifacts.FrameScore) *ScoreSummary {
	if len(scores) == 0 {
		return nil
	}
	s := &ScoreSummary{
		Frames:   len(scores),
		Min:      scores[0].Score,
		MinFrame: scores[0].Frame,
		Max:      scores[0].Score,
		MaxFrame: scores[0].Frame,
	}
	var total float64
	for _, row := range scores {
		total += row.Score
		if row.Score < s.Min {
			s.Min, s.MinFrame = row.Score, row.Frame
		}
		if row.Score > s.Max {
			s.Max, s.MaxFrame = row.Score, row.Frame
		}
	}
	s.Mean = total / float64(len(scores))
	return s
}

// CountObjects tallies labels exactly as the detector emitted them, most
// frequent first and then by label.
func CountObjects(detections []artifacts.FrameDetection) []ObjectCount {
	counts := map[string]int{}
	for _, frame := range detections {
		for _, label := range frame.Objects {
			counts[label]++
		}
	}
	out := make([]ObjectCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, ObjectCount{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b ObjectCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}
