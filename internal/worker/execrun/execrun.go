// Package execrun launches external programs (the renderer, the image
// conversion tool) and collapses every way they can fail into a single
// "no result" signal. The failure cause is classified and logged with
// full context here; callers only branch on nil.
package execrun

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"farmhand/internal/pkg/logger"
)

// noOutput is the diagnostic fallback when a program produced nothing
// on either stream.
const noOutput = "no program output"

// Result carries the captured outcome of a completed program run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output merges the captured streams into one diagnostic string,
// falling back to a fixed message when both are empty.
func (r *Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)

	switch {
	case out == "" && errOut == "":
		return noOutput
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// failure classification, retained for logging only. Callers treat
// every class identically.
type failureClass string

const (
	failLaunch failureClass = "launch"
	failExit   failureClass = "exit"
	failFault  failureClass = "fault"
)

// Runner runs an external program and returns its captured result, or
// nil when the program could not be launched, exited non-zero, or
// faulted while running.
type Runner interface {
	Run(ctx context.Context, exe string, args []string, dir string) *Result
}

// ExecRunner is the os/exec-backed Runner.
type ExecRunner struct {
	log *logger.Logger
}

// New creates an ExecRunner logging through log.
func New(log *logger.Logger) *ExecRunner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &ExecRunner{log: log.WithComponent("execrun")}
}

// Run launches exe with args in dir and waits for completion. On
// success it returns the captured result; on any failure it logs the
// command, arguments, exit code and captured streams, then returns nil.
func (r *ExecRunner) Run(ctx context.Context, exe string, args []string, dir string) *Result {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		r.log.Debug("program completed",
			"command", exe,
			"args", strings.Join(args, " "),
		)
		return res
	}

	class := failFault
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		class = failExit
		res.ExitCode = exitErr.ExitCode()
	case cmd.Process == nil:
		class = failLaunch
		res.ExitCode = -1
	default:
		res.ExitCode = -1
	}

	r.log.Error("program failed",
		"command", exe,
		"args", strings.Join(args, " "),
		"dir", dir,
		"class", string(class),
		"exit_code", res.ExitCode,
		"output", res.Output(),
		"error", err.Error(),
	)
	return nil
}
