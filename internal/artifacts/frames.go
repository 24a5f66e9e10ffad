package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// FramePattern is the ffmpeg output template for extracted frames.
const FramePattern = "frame_%04d.jpg"

// Frame is one extracted still.
type Frame struct {
	Index int
	Name  string
	Path  string
}

// FrameName returns the file name for a frame index.
func FrameName(index int) string {
	return fmt.Sprintf(FramePattern, index)
}

// ParseFrameIndex extracts the index from frame_NNNN.jpg. Wider indices
// (frame_10000.jpg) are accepted.
func ParseFrameIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "frame_")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".jpg")
	if !ok || len(digits) < 4 {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// ListFrames returns the frames in dir ordered by parsed index, never by
// directory enumeration order.
func ListFrames(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := ParseFrameIndex(entry.Name())
		if !ok {
			continue
		}
		frames = append(frames, Frame{Index: index, Name: entry.Name(), Path: filepath.Join(dir, entry.Name())})
	}
	slices.SortFunc(frames, func(a, b Frame) int { return a.Index - b.Index })
	return frames, nil
}

// Contiguous reports whether frame indices run 0..n-1 without gaps.
func Contiguous(frames []Frame) bool {
	for i, frame := range frames {
		if frame.Index != i {
			return false
		}
	}
	return true
}
