package modelcmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tunevision/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunJSONDecodesStdoutAndPassesArgs(t *testing.T) {
	script := writeScript(t, `echo "[\"$1\",\"$2\",\"$3\"]"`+"\n")
	cmd := New("score", script, []string{"fixed"})
	var out []string
	if err := cmd.RunJSON(context.Background(), &out, "--frames-dir", "/x"); err != nil {
		t.Fatalf("RunJSON: %v", err)
	}
	if len(out) != 3 || out[0] != "fixed" || out[1] != "--frames-dir" || out[2] != "/x" {
		t.Fatalf("unexpected args %v", out)
	}
}

func TestRunJSONClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		binary string
		want   error
	}{
		{"missing binary", filepath.Join(t.TempDir(), "absent"), services.ErrModelUnavailable},
		{"model load", writeScript(t, "echo 'weights not found' >&2\nexit 3\n"), services.ErrModelUnavailable},
		{"crash", writeScript(t, "echo 'CUDA out of memory' >&2\nexit 1\n"), services.ErrExternalTool},
		{"garbage", writeScript(t, "echo loading model...\n"), services.ErrExternalTool},
		{"empty", writeScript(t, "exit 0\n"), services.ErrExternalTool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out []any
			err := New("detect", tc.binary, nil).RunJSON(context.Background(), &out)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRunJSONUsesInjectedRunner(t *testing.T) {
	var gotName string
	cmd := New("detect", "yolo", nil).WithRunner(func(_ context.Context, name string, _ ...string) ([]byte, []byte, error) {
		gotName = name
		return []byte(`[1,2]`), nil, nil
	})
	var out []int
	if err := cmd.RunJSON(context.Background(), &out); err != nil {
		t.Fatal(err)
	}
	if gotName != "yolo" || len(out) != 2 {
		t.Fatalf("unexpected result %q %v", gotName, out)
	}
	if err := cmd.Available(); err != nil {
		t.Fatalf("injected runner should count as available: %v", err)
	}
}
