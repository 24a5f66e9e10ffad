package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", AvgFrameRate: "25/1", NBFrames: "100"},
		},
		Format: Format{Duration: "4.0"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	video, ok := result.PrimaryVideo()
	if !ok || video.FrameRate() != 25 {
		t.Fatalf("unexpected primary video %+v", video)
	}
	if result.EstimatedFrames() != 100 {
		t.Fatalf("expected 100 frames, got %d", result.EstimatedFrames())
	}
	if result.DurationSeconds() != 4 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestEstimatedFramesFallsBackToDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "30000/1001"}},
		Format:  Format{Duration: "10.01"},
	}
	if got := result.EstimatedFrames(); got != 300 {
		t.Fatalf("expected 300 frames, got %d", got)
	}
	if (Result{}).EstimatedFrames() != 0 {
		t.Fatal("expected zero frames without a video stream")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if (Stream{AvgFrameRate: "0/0"}).FrameRate() != 0 {
		t.Fatal("expected zero frame rate for 0/0")
	}
}

func TestInspectUsesBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-ffprobe")
	body := "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\",\"nb_frames\":\"100\"}],\"format\":{\"duration\":\"4\"}}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), script, "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.EstimatedFrames() != 100 {
		t.Fatalf("unexpected result %+v", result)
	}

	failing := filepath.Join(dir, "broken-ffprobe")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(context.Background(), failing, "/tmp/video.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
}
