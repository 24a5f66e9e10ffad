package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tunevision/internal/services"
)

// Kind names one result artifact.
type Kind string

const (
	KindScores        Kind = "clip"
	KindScoreChart    Kind = "clip_plot"
	KindDetections    Kind = "yolo"
	KindComparison    Kind = "object_comparison"
	KindFeedback      Kind = "feedback_gpt"
	KindRevisedPrompt Kind = "feedback_and_revised_prompt"
)

// Kinds lists result artifacts in production order.
var Kinds = []Kind{KindScores, KindScoreChart, KindDetections, KindComparison, KindFeedback, KindRevisedPrompt}

// Suffix returns the file name suffix appended to the video base name.
func (k Kind) Suffix() string {
	switch k {
	case KindScoreChart:
		return string(k) + ".png"
	case KindFeedback, KindRevisedPrompt:
		return string(k) + ".txt"
	default:
		return string(k) + ".json"
	}
}

// Label is a short human-facing name.
func (k Kind) Label() string {
	switch k {
	case KindScores:
		return "similarity scores"
	case KindScoreChart:
		return "similarity chart"
	case KindDetections:
		return "detections"
	case KindComparison:
		return "object comparison"
	case KindFeedback:
		return "feedback"
	case KindRevisedPrompt:
		return "revised prompt"
	default:
		return string(k)
	}
}

const (
	framesDirName  = "frames"
	resultsDirName = "analysis_results"
)

// Store maps run identifiers to artifact paths under a data root.
type Store struct {
	root string
}

// NewStore returns a store rooted at dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{root: filepath.Clean(dataRoot)}
}

// Root returns the data root.
func (s *Store) Root() string {
	return s.root
}

// RunDir returns {root}/{runID}.
func (s *Store) RunDir(runID string) (string, error) {
	if err := checkSegment("run id", runID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, runID), nil
}

// ResultsDir returns {root}/{runID}/analysis_results.
func (s *Store) ResultsDir(runID string) (string, error) {
	dir, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, resultsDirName), nil
}

// Resolve returns the path of one result artifact. It performs no I/O.
func (s *Store) Resolve(runID, videoBase string, kind Kind) (string, error) {
	if err := checkSegment("video base name", videoBase); err != nil {
		return "", err
	}
	dir, err := s.ResultsDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, videoBase+"_"+kind.Suffix()), nil
}

// FramesDir returns {root}/{runID}/frames/{videoBase}.
func (s *Store) FramesDir(runID, videoBase string) (string, error) {
	if err := checkSegment("video base name", videoBase); err != nil {
		return "", err
	}
	dir, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, framesDirName, videoBase), nil
}

// EnsureDirs creates dir (and parents) if absent. Existing directories are fine.
func (s *Store) EnsureDirs(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "artifacts", "create directory", dir, err)
	}
	return nil
}

// EnsureParent creates the directory holding path.
func (s *Store) EnsureParent(path string) error {
	return s.EnsureDirs(filepath.Dir(path))
}

// RemoveResults deletes every result artifact of runID/videoBase. Files that
// are already absent are ignored.
func (s *Store) RemoveResults(runID, videoBase string) error {
	for _, kind := range Kinds {
		path, err := s.Resolve(runID, videoBase, kind)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrFilesystem, "artifacts", "remove stale result", path, err)
		}
	}
	return nil
}

// VideoBases lists the video base names that have at least one result artifact for runID.
func (s *Store) VideoBases(runID string) ([]string, error) {
	dir, err := s.ResultsDir(runID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var bases []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, kind := range Kinds {
			suffix := "_" + kind.Suffix()
			if base, ok := strings.CutSuffix(name, suffix); ok && base != "" {
				if _, dup := seen[base]; !dup {
					seen[base] = struct{}{}
					bases = append(bases, base)
				}
				break
			}
		}
	}
	return bases, nil
}

func checkSegment(label, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return services.Wrap(services.ErrValidation, "artifacts", "resolve", label+" is empty", nil)
	case value == "." || value == "..", strings.ContainsAny(value, `/\`):
		return services.Wrap(services.ErrValidation, "artifacts", "resolve",
			fmt.Sprintf("%s %q is not a single path segment", label, value), errors.New("unsafe path segment"))
	}
	return nil
}
