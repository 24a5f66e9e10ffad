package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tunevision/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrModelUnavailable, "detect", "load model", "yolov8m.pt missing", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"detect", "load model", "yolov8m.pt missing", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindOfClassifiesMarkers(t *testing.T) {
	tests := []struct {
		err  error
		want services.Kind
	}{
		{nil, services.KindNone},
		{services.Wrap(services.ErrSourceUnreadable, "extract", "probe", "", nil), services.KindSourceUnreadable},
		{services.Wrap(services.ErrFilesystem, "score", "write", "", errors.New("disk full")), services.KindFilesystem},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrMalformedArtifact, "feedback", "load", "", nil)), services.KindMalformedArtifact},
		{services.Wrap(nil, "detect", "infer", "", nil), services.KindExternalTool},
		{errors.New("plain"), services.KindUnknown},
	}
	for _, tc := range tests {
		if got := services.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDetailsAndDegradable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := services.Wrap(services.ErrServiceUnavailable, "feedback", "chat completion", "llm unreachable", cause)
	details := services.Details(err)
	if details.Kind != services.KindServiceUnavailable {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "feedback" || details.Operation != "chat completion" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Cause != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if !services.Degradable(err) {
		t.Fatal("expected service failure to be degradable")
	}
	if services.Degradable(services.Wrap(services.ErrModelUnavailable, "detect", "", "", nil)) {
		t.Fatal("model failures must not be degradable")
	}
}
