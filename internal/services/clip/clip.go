// Package clip adapts the external CLIP similarity command to typed scores.
//
// The command is invoked as
//
//	command [args...] --prompt-file P --frames-dir D --model M --device X
//
// and prints [{"frame":"frame_0000.jpg","score":0.3125}, ...] on stdout, one
// entry per frame scored independently against the same prompt text.
package clip

import (
	"context"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/services/modelcmd"
)

// Scorer wraps the similarity command.
type Scorer struct {
	cmd    modelcmd.Command
	model  string
	device string
}

// New builds a scorer from configuration.
func New(cfg config.Scorer) *Scorer {
	return &Scorer{
		cmd:    modelcmd.New("score", cfg.Command, cfg.Args),
		model:  cfg.Model,
		device: cfg.Device,
	}
}

// WithRunner swaps the process runner (tests).
func (s *Scorer) WithRunner(runner modelcmd.Runner) *Scorer {
	s.cmd = s.cmd.WithRunner(runner)
	return s
}

// Model returns the configured model name.
func (s *Scorer) Model() string { return s.model }

// Available reports whether the command resolves.
func (s *Scorer) Available() error { return s.cmd.Available() }

// Score returns one raw score per frame in framesDir. Ordering and rounding
// are the caller's concern.
func (s *Scorer) Score(ctx context.Context, promptFile, framesDir string) ([]artifacts.FrameScore, error) {
	var scores []artifacts.FrameScore
	args := []string{"--prompt-file", promptFile, "--frames-dir", framesDir}
	if s.model != "" {
		args = append(args, "--model", s.model)
	}
	if s.device != "" {
		args = append(args, "--device", s.device)
	}
	if err := s.cmd.RunJSON(ctx, &scores, args...); err != nil {
		return nil, err
	}
	return scores, nil
}
