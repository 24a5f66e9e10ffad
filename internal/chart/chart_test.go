package chart

import (
	"bytes"
	"errors"
	"testing"

	"tunevision/internal/artifacts"
)

func TestSimilarityPNG(t *testing.T) {
	scores := []artifacts.FrameScore{
		{Frame: "frame_0000.jpg", Score: 0.28},
		{Frame: "frame_0001.jpg", Score: 0.31},
		{Frame: "frame_0002.jpg", Score: 0.295},
	}
	data, err := SimilarityPNG("clip", scores)
	if err != nil {
		t.Fatalf("SimilarityPNG: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a PNG (first bytes %q)", data[:min(8, len(data))])
	}
}

func TestSimilarityPNGEmpty(t *testing.T) {
	if _, err := SimilarityPNG("clip", nil); !errors.Is(err, ErrNoScores) {
		t.Fatalf("expected ErrNoScores, got %v", err)
	}
}
