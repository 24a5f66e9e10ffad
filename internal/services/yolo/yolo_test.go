package yolo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"tunevision/internal/config"
	"tunevision/internal/services"
)

func TestDetectUsesOverrideModel(t *testing.T) {
	weights := filepath.Join(t.TempDir(), "custom.pt")
	if err := os.WriteFile(weights, []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}
	var gotArgs []string
	detector := New(config.Detector{Command: "yolo", Model: "yolov8m.pt"}).
		WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
			gotArgs = args
			return []byte(`[{"frame":"frame_0000.jpg","objects":["cat","cat"]}]`), nil, nil
		})
	detections, err := detector.Detect(context.Background(), "/frames", weights)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 || len(detections[0].Objects) != 2 {
		t.Fatalf("unexpected detections %+v", detections)
	}
	if !slices.Contains(gotArgs, weights) {
		t.Fatalf("expected override model in args %v", gotArgs)
	}
}

func TestDetectMissingModelFileIsModelUnavailable(t *testing.T) {
	called := false
	detector := New(config.Detector{Command: "yolo", Model: filepath.Join(t.TempDir(), "missing.pt")}).
		WithRunner(func(context.Context, string, ...string) ([]byte, []byte, error) {
			called = true
			return nil, nil, nil
		})
	_, err := detector.Detect(context.Background(), "/frames", "")
	if !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
	if called {
		t.Fatal("detector must not launch when weights are missing")
	}
}

func TestCheckModelAllowsBareNames(t *testing.T) {
	if err := CheckModel("yolov8m.pt"); err != nil {
		t.Fatalf("bare model names should pass: %v", err)
	}
	if err := CheckModel(""); !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected empty model to fail, got %v", err)
	}
}
