package artifacts

import "time"

// FrameScore is one row of the similarity artifact.
type FrameScore struct {
	Frame string  `json:"frame" yaml:"frame"`
	Score float64 `json:"score" yaml:"score"`
}

// FrameDetection is one row of the detection artifact.
type FrameDetection struct {
	Frame   string   `json:"frame" yaml:"frame"`
	Objects []string `json:"objects" yaml:"objects"`
}

// ComparisonResult partitions the prompt's nouns into objects the detector saw
// and objects it did not. All lists are lowercase, sorted and de-duplicated.
type ComparisonResult struct {
	PromptObjects   []string `json:"prompt_objects" yaml:"prompt_objects"`
	DetectedObjects []string `json:"detected_objects" yaml:"detected_objects"`
	AppearedObjects []string `json:"appeared_objects" yaml:"appeared_objects"`
	MissingObjects  []string `json:"missing_objects" yaml:"missing_objects"`
}

// FeedbackResult holds the two texts written by the feedback stage.
type FeedbackResult struct {
	Feedback      string
	Revised       string
	RevisedPrompt string
	Degraded      bool
	Reason        string
}

// Status of a produced artifact.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Record describes one artifact a stage produced or failed to produce.
type Record struct {
	Stage       string    `json:"stage" yaml:"stage"`
	Kind        Kind      `json:"kind,omitempty"`
	Path        string    `json:"path" yaml:"path"`
	ProducedAt  time.Time `json:"produced_at" yaml:"produced_at"`
	Status      Status    `json:"status" yaml:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}
