// Package cfcheck delegates the CF conventions checks to the external
// cfchecks program and turns its text output into a report section.
package cfcheck

//go:generate mockgen -source=runner.go -destination=mock_runner.go -package=cfcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultProgram is the name of the CF checker executable.
const DefaultProgram = "cfchecks"

// Runner runs a CF checker against a file and returns its raw text output.
type Runner interface {
	Run(ctx context.Context, path string, cfVersion string) (string, error)
}

// ExecRunner runs the cfchecks program as a subprocess.
type ExecRunner struct {
	Program string        // defaults to DefaultProgram
	Args    []string      // extra arguments placed before the file
	Timeout time.Duration // zero means no timeout
}

// Run executes cfchecks on path. cfVersion, when set, is passed as --version.
// cfchecks exits non-zero when it finds errors, so an exit error with output
// on stdout is treated as a completed run.
func (r *ExecRunner) Run(ctx context.Context, path string, cfVersion string) (string, error) {
	program := r.Program
	if program == "" {
		program = DefaultProgram
	}

	args := append([]string{}, r.Args...)
	if cfVersion != "" {
		args = append(args, "--version", cfVersion)
	}
	args = append(args, path)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	slog.Debug("running CF checker", "program", program, "args", args)
	start := time.Now()
	err := cmd.Run()
	out := stdout.String()
	slog.Debug("CF checker finished", "program", program, "duration", time.Since(start), "bytes", len(out))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil && strings.TrimSpace(out) != "" {
			slog.Debug("CF checker exited non-zero", "code", exitErr.ExitCode())
			return out, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("running %s: %w", program, ctx.Err())
		}
		return "", fmt.Errorf("running %s: %w: %s", program, err, strings.TrimSpace(stderr.String()))
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%s produced no output: %s", program, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
