package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tunevision/internal/artifacts"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteText writes text to dir/name and optionally pins its mtime. It returns
// the full path.
func WriteText(t testing.TB, dir, name, text string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
	return path
}

// WriteFrames creates count placeholder frames named frame_0000.jpg onwards.
func WriteFrames(t testing.TB, dir string, count int) []artifacts.Frame {
	t.Helper()
	frames := make([]artifacts.Frame, 0, count)
	for i := range count {
		name := artifacts.FrameName(i)
		path := filepath.Join(dir, name)
		WriteFile(t, path, 16)
		frames = append(frames, artifacts.Frame{Index: i, Name: name, Path: path})
	}
	return frames
}

// WriteScript writes an executable POSIX shell script named name into dir.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}
