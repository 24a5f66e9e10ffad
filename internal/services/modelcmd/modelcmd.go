// Package modelcmd runs the external model commands (similarity scorer and
// object detector) that print a JSON array on stdout.
//
// Exit status contract for model commands:
//
//	0  success, stdout holds the JSON payload
//	3  the model or its weights could not be loaded
//	*  inference failed part way
package modelcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"tunevision/internal/services"
)

// ExitModelUnavailable is the exit status a model command uses when it cannot load its model.
const ExitModelUnavailable = 3

// Runner executes name with args and returns stdout, stderr and the exit error.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Command is a configured model executable plus its fixed leading arguments.
type Command struct {
	Binary string
	Args   []string
	// Stage labels errors for the pipeline stage that owns the command.
	Stage  string
	runner Runner
}

// New builds a Command.
func New(stage, binary string, args []string) Command {
	return Command{Binary: strings.TrimSpace(binary), Args: append([]string(nil), args...), Stage: stage}
}

// WithRunner returns a copy that uses runner instead of os/exec (tests).
func (c Command) WithRunner(runner Runner) Command {
	c.runner = runner
	return c
}

// Available reports whether the binary can be resolved on PATH.
func (c Command) Available() error {
	if c.Binary == "" {
		return errors.New("command not configured")
	}
	if c.runner != nil {
		return nil
	}
	if _, err := exec.LookPath(c.Binary); err != nil {
		return err
	}
	return nil
}

// RunJSON executes the command with extra arguments and decodes stdout into target.
// Launch failures and exit status 3 map to services.ErrModelUnavailable; other
// failures map to services.ErrExternalTool.
func (c Command) RunJSON(ctx context.Context, target any, extra ...string) error {
	if c.Binary == "" {
		return services.Wrap(services.ErrModelUnavailable, c.Stage, "launch", "model command not configured", nil)
	}
	args := append(append([]string(nil), c.Args...), extra...)
	run := c.runner
	if run == nil {
		run = execRunner
	}
	stdout, stderr, err := run(ctx, c.Binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := lastLine(stderr)
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr) && exitErr.ExitCode() == ExitModelUnavailable:
			return services.Wrap(services.ErrModelUnavailable, c.Stage, "load model", detail, err)
		case errors.As(err, &exitErr):
			return services.Wrap(services.ErrExternalTool, c.Stage, "inference", detail, err)
		default:
			return services.Wrap(services.ErrModelUnavailable, c.Stage, "launch "+c.Binary, detail, err)
		}
	}
	payload := bytes.TrimSpace(stdout)
	if len(payload) == 0 {
		return services.Wrap(services.ErrExternalTool, c.Stage, "decode output", "empty stdout", nil)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return services.Wrap(services.ErrExternalTool, c.Stage, "decode output",
			fmt.Sprintf("unexpected output %q", truncate(string(payload), 120)), err)
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func lastLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return truncate(line, 200)
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
