package runs

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tunevision/internal/artifacts"
)

// Stage names in execution order.
const (
	StageExtract  = "extract"
	StageScore    = "score"
	StageDetect   = "detect"
	StageCompare  = "compare"
	StageFeedback = "feedback"
)

// Stages lists the pipeline stages in the only order they may run.
var Stages = []string{StageExtract, StageScore, StageDetect, StageCompare, StageFeedback}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusAborted Status = "aborted"
	// StatusCrashed marks a dispatched run whose process exited without a
	// pipeline verdict (killed, panicked, bad flags).
	StatusCrashed Status = "crashed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusAborted || s == StatusCrashed
}

// Run is the unit of work for one prompt/video pair.
type Run struct {
	ID         string
	PromptPath string
	VideoPath  string
	VideoBase  string
	// DetectorModel overrides the configured detector weights for this run.
	DetectorModel string

	PromptText string
	Frames     []artifacts.Frame
	Scores     []artifacts.FrameScore
	Detections []artifacts.FrameDetection
	Comparison *artifacts.ComparisonResult
	Feedback   *artifacts.FeedbackResult

	Artifacts    []artifacts.Record
	Status       Status
	AbortedStage string
	Failure      string
	Degraded     bool
	StartedAt    time.Time
	FinishedAt   time.Time
}

// New builds a pending run for the pair. Paths are made absolute.
func New(promptPath, videoPath string) (*Run, error) {
	promptAbs, err := filepath.Abs(promptPath)
	if err != nil {
		return nil, err
	}
	videoAbs, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:         DeriveID(filepath.Base(promptAbs)),
		PromptPath: promptAbs,
		VideoPath:  videoAbs,
		VideoBase:  BaseName(videoAbs),
		Status:     StatusPending,
	}, nil
}

var timestampToken = regexp.MustCompile(`\d{8}_\d{6}`)

// DeriveID returns the first YYYYMMDD_HHMMSS token in the prompt file name, or
// the name without extension, made filesystem-safe. Two prompts written in the
// same second share an id and therefore a run directory.
func DeriveID(promptName string) string {
	name := filepath.Base(promptName)
	if token := timestampToken.FindString(name); token != "" {
		return token
	}
	return Sanitize(BaseName(name))
}

// BaseName strips directory and final extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Sanitize replaces characters outside [A-Za-z0-9._-] with '_' and guards
// against empty or dot-only results.
func Sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "run" + strings.ReplaceAll(out, ".", "_")
	}
	return out
}

// Record appends an artifact record.
func (r *Run) Record(stage string, kind artifacts.Kind, path string, err error) {
	rec := artifacts.Record{
		Stage:      stage,
		Kind:       kind,
		Path:       path,
		ProducedAt: time.Now().UTC(),
		Status:     artifacts.StatusOK,
	}
	if err != nil {
		rec.Status = artifacts.StatusFailed
		rec.ErrorDetail = err.Error()
	}
	r.Artifacts = append(r.Artifacts, rec)
}

// ArtifactPath returns the most recent successful path recorded for kind.
func (r *Run) ArtifactPath(kind artifacts.Kind) (string, bool) {
	for i := len(r.Artifacts) - 1; i >= 0; i-- {
		rec := r.Artifacts[i]
		if rec.Kind == kind && rec.Status == artifacts.StatusOK {
			return rec.Path, true
		}
	}
	return "", false
}

// ResetOutputs clears stage outputs so a re-run starts from extraction.
func (r *Run) ResetOutputs() {
	r.PromptText = ""
	r.Frames = nil
	r.Scores = nil
	r.Detections = nil
	r.Comparison = nil
	r.Feedback = nil
	r.Artifacts = nil
	r.AbortedStage = ""
	r.Failure = ""
	r.Degraded = false
	r.Status = StatusPending
}
