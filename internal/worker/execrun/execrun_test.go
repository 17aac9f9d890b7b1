package execrun

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"

	"farmhand/internal/pkg/logger"
)

func newTestRunner(buf *bytes.Buffer) *ExecRunner {
	return New(logger.New(logger.Config{
		Level:  "debug",
		Format: "json",
		Output: buf,
	}))
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestRunSuccess(t *testing.T) {
	sh := requireShell(t)
	var buf bytes.Buffer
	r := newTestRunner(&buf)

	res := r.Run(context.Background(), sh, []string{"-c", "echo rendered"}, t.TempDir())
	if res == nil {
		t.Fatal("expected result for successful run")
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "rendered") {
		t.Errorf("expected stdout to contain 'rendered', got %q", res.Stdout)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	sh := requireShell(t)
	var buf bytes.Buffer
	r := newTestRunner(&buf)

	res := r.Run(context.Background(), sh, []string{"-c", "echo broken >&2; exit 3"}, t.TempDir())
	if res != nil {
		t.Fatalf("expected nil result for non-zero exit, got %+v", res)
	}

	logged := buf.String()
	if !strings.Contains(logged, "broken") {
		t.Errorf("expected diagnostic to contain captured stderr, got: %s", logged)
	}
	if !strings.Contains(logged, "exit") {
		t.Errorf("expected failure class in diagnostic, got: %s", logged)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRunner(&buf)

	res := r.Run(context.Background(), "/nonexistent/renderer", nil, t.TempDir())
	if res != nil {
		t.Fatalf("expected nil result for launch failure, got %+v", res)
	}

	logged := buf.String()
	if !strings.Contains(logged, "no program output") {
		t.Errorf("expected 'no program output' fallback in diagnostic, got: %s", logged)
	}
	if !strings.Contains(logged, "launch") {
		t.Errorf("expected launch failure class in diagnostic, got: %s", logged)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	sh := requireShell(t)
	var buf bytes.Buffer
	r := newTestRunner(&buf)
	dir := t.TempDir()

	res := r.Run(context.Background(), sh, []string{"-c", "pwd"}, dir)
	if res == nil {
		t.Fatal("expected result")
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Errorf("expected program to run in %s, got %q", dir, res.Stdout)
	}
}

func TestResultOutput(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected string
	}{
		{
			name:     "both streams empty",
			result:   Result{},
			expected: "no program output",
		},
		{
			name:     "stdout only",
			result:   Result{Stdout: "frame saved\n"},
			expected: "frame saved",
		},
		{
			name:     "stderr only",
			result:   Result{Stderr: "warning: color management\n"},
			expected: "warning: color management",
		},
		{
			name:     "both streams",
			result:   Result{Stdout: "ok", Stderr: "warn"},
			expected: "ok\nwarn",
		},
		{
			name:     "whitespace-only streams fall back",
			result:   Result{Stdout: "  \n", Stderr: "\t"},
			expected: "no program output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Output(); got != tt.expected {
				t.Errorf("Output() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
