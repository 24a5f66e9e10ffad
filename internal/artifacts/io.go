package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"tunevision/internal/fileutil"
	"tunevision/internal/services"
)

// WriteJSON atomically writes v as indented JSON, creating the parent directory.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrFilesystem, "artifacts", "encode json", path, err)
	}
	return s.WriteBytes(path, append(data, '\n'))
}

// WriteText atomically writes text, creating the parent directory.
func (s *Store) WriteText(path, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return s.WriteBytes(path, []byte(text))
}

// WriteBytes atomically writes raw content, creating the parent directory.
func (s *Store) WriteBytes(path string, data []byte) error {
	if err := s.EnsureParent(path); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrFilesystem, "artifacts", "write", path, err)
	}
	return nil
}

// ReadScores loads a similarity artifact.
func ReadScores(path string) ([]FrameScore, error) {
	var raw []struct {
		Frame *string  `json:"frame"`
		Score *float64 `json:"score"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make([]FrameScore, 0, len(raw))
	for i, row := range raw {
		if row.Frame == nil || row.Score == nil {
			return nil, malformed(path, fmt.Sprintf("row %d missing frame or score", i))
		}
		out = append(out, FrameScore{Frame: *row.Frame, Score: *row.Score})
	}
	return out, nil
}

// ReadDetections loads a detection artifact.
func ReadDetections(path string) ([]FrameDetection, error) {
	var raw []struct {
		Frame   *string   `json:"frame"`
		Objects *[]string `json:"objects"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make([]FrameDetection, 0, len(raw))
	for i, row := range raw {
		if row.Frame == nil || row.Objects == nil {
			return nil, malformed(path, fmt.Sprintf("row %d missing frame or objects", i))
		}
		out = append(out, FrameDetection{Frame: *row.Frame, Objects: *row.Objects})
	}
	return out, nil
}

// ReadComparison loads a comparison artifact; every list field is required.
func ReadComparison(path string) (ComparisonResult, error) {
	var raw struct {
		PromptObjects   *[]string `json:"prompt_objects"`
		DetectedObjects *[]string `json:"detected_objects"`
		AppearedObjects *[]string `json:"appeared_objects"`
		MissingObjects  *[]string `json:"missing_objects"`
	}
	if err := readJSON(path, &raw); err != nil {
		return ComparisonResult{}, err
	}
	fields := []struct {
		name  string
		value *[]string
	}{
		{"prompt_objects", raw.PromptObjects},
		{"detected_objects", raw.DetectedObjects},
		{"appeared_objects", raw.AppearedObjects},
		{"missing_objects", raw.MissingObjects},
	}
	for _, f := range fields {
		if f.value == nil {
			return ComparisonResult{}, malformed(path, "missing field "+f.name)
		}
	}
	return ComparisonResult{
		PromptObjects:   *raw.PromptObjects,
		DetectedObjects: *raw.DetectedObjects,
		AppearedObjects: *raw.AppearedObjects,
		MissingObjects:  *raw.MissingObjects,
	}, nil
}

// ReadText loads a text artifact with surrounding whitespace trimmed.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", wrapReadError(path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return wrapReadError(path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return malformed(path, "empty file")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return services.Wrap(services.ErrMalformedArtifact, "artifacts", "decode", path, err)
	}
	return nil
}

// wrapReadError keeps fs.ErrNotExist reachable so callers can tell absent
// artifacts from unreadable ones.
func wrapReadError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifact %s: %w", path, err)
	}
	return services.Wrap(services.ErrFilesystem, "artifacts", "read", path, err)
}

func malformed(path, detail string) error {
	return services.Wrap(services.ErrMalformedArtifact, "artifacts", "decode", path+": "+detail, nil)
}
