// Package yolo adapts the external object detector command to typed detections.
//
// The command is invoked as
//
//	command [args...] --frames-dir D --model M --device X
//
// and prints [{"frame":"frame_0000.jpg","objects":["cat","cat","chair"]}, ...]
// on stdout. Labels are returned exactly as emitted.
package yolo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/services"
	"tunevision/internal/services/modelcmd"
)

// Detector wraps the detection command.
type Detector struct {
	cmd    modelcmd.Command
	model  string
	device string
}

// New builds a detector from configuration.
func New(cfg config.Detector) *Detector {
	return &Detector{
		cmd:    modelcmd.New("detect", cfg.Command, cfg.Args),
		model:  cfg.Model,
		device: cfg.Device,
	}
}

// WithRunner swaps the process runner (tests).
func (d *Detector) WithRunner(runner modelcmd.Runner) *Detector {
	d.cmd = d.cmd.WithRunner(runner)
	return d
}

// Model returns the configured weights reference.
func (d *Detector) Model() string { return d.model }

// Available reports whether the command resolves and, when the model is a
// filesystem path, whether the weights exist.
func (d *Detector) Available() error {
	if err := d.cmd.Available(); err != nil {
		return err
	}
	return CheckModel(d.model)
}

// CheckModel fails with services.ErrModelUnavailable when model names a path that
// does not exist. Bare names (yolov8m.pt) are left for the detector to resolve.
func CheckModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return services.Wrap(services.ErrModelUnavailable, "detect", "check model", "no detector model configured", nil)
	}
	if !filepath.IsAbs(model) && !strings.ContainsRune(model, os.PathSeparator) {
		return nil
	}
	info, err := os.Stat(model)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrModelUnavailable, "detect", "check model", "model file not found: "+model, err)
		}
		return services.Wrap(services.ErrModelUnavailable, "detect", "check model", model, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrModelUnavailable, "detect", "check model", fmt.Sprintf("%s is a directory", model), nil)
	}
	return nil
}

// Detect runs the detector over framesDir. model overrides the configured
// weights when non-empty.
func (d *Detector) Detect(ctx context.Context, framesDir, model string) ([]artifacts.FrameDetection, error) {
	if strings.TrimSpace(model) == "" {
		model = d.model
	}
	if err := CheckModel(model); err != nil {
		return nil, err
	}
	args := []string{"--frames-dir", framesDir, "--model", model}
	if d.device != "" {
		args = append(args, "--device", d.device)
	}
	var detections []artifacts.FrameDetection
	if err := d.cmd.RunJSON(ctx, &detections, args...); err != nil {
		return nil, err
	}
	return detections, nil
}
