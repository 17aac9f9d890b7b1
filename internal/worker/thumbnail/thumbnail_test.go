package thumbnail

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"farmhand/internal/pkg/logger"
	"farmhand/internal/worker/execrun"
)

// fakeRunner records invocations and returns a canned result.
type fakeRunner struct {
	calls  int
	exe    string
	args   []string
	dir    string
	result *execrun.Result
}

func (f *fakeRunner) Run(ctx context.Context, exe string, args []string, dir string) *execrun.Result {
	f.calls++
	f.exe = exe
	f.args = args
	f.dir = dir
	return f.result
}

func newTestGenerator(r execrun.Runner) *Generator {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
	return New(r, "/opt/imagemagick/convert", log)
}

func TestGenerate(t *testing.T) {
	workDir := t.TempDir()

	t.Run("converts first supported file", func(t *testing.T) {
		runner := &fakeRunner{result: &execrun.Result{}}
		g := newTestGenerator(runner)

		files := []string{
			filepath.Join(workDir, "render.blend"),
			filepath.Join(workDir, "frame_0007.png"),
			filepath.Join(workDir, "frame_0007.exr"),
		}

		got := g.Generate(context.Background(), files, workDir, "job-1", 7)

		want := filepath.Join(workDir, "job-1_7_thumbnail.png")
		if got != want {
			t.Errorf("expected thumbnail path %q, got %q", want, got)
		}
		if runner.calls != 1 {
			t.Fatalf("expected 1 conversion call, got %d", runner.calls)
		}
		if runner.args[0] != files[1] {
			t.Errorf("expected source %q, got %q", files[1], runner.args[0])
		}
	})

	t.Run("passes shrink-only geometry", func(t *testing.T) {
		runner := &fakeRunner{result: &execrun.Result{}}
		g := newTestGenerator(runner)

		g.Generate(context.Background(), []string{filepath.Join(workDir, "a.png")}, workDir, "job-1", 1)

		foundGeometry := false
		for i, arg := range runner.args {
			if arg == "-resize" && i+1 < len(runner.args) && runner.args[i+1] == "200x150>" {
				foundGeometry = true
			}
		}
		if !foundGeometry {
			t.Errorf("expected -resize 200x150> in args, got %v", runner.args)
		}
	})

	t.Run("no compatible source skips conversion", func(t *testing.T) {
		runner := &fakeRunner{result: &execrun.Result{}}
		g := newTestGenerator(runner)

		got := g.Generate(context.Background(), []string{
			filepath.Join(workDir, "scene.blend"),
			filepath.Join(workDir, "notes.txt"),
		}, workDir, "job-1", 2)

		if got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
		if runner.calls != 0 {
			t.Errorf("expected conversion tool not to be invoked, got %d calls", runner.calls)
		}
	})

	t.Run("empty file set skips conversion", func(t *testing.T) {
		runner := &fakeRunner{result: &execrun.Result{}}
		g := newTestGenerator(runner)

		if got := g.Generate(context.Background(), nil, workDir, "job-1", 3); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
		if runner.calls != 0 {
			t.Errorf("expected no conversion call, got %d", runner.calls)
		}
	})

	t.Run("conversion failure soft-fails", func(t *testing.T) {
		runner := &fakeRunner{result: nil} // runner signals failure with nil
		g := newTestGenerator(runner)

		got := g.Generate(context.Background(), []string{filepath.Join(workDir, "frame.png")}, workDir, "job-1", 4)

		if got != "" {
			t.Errorf("expected empty path on conversion failure, got %q", got)
		}
		if runner.calls != 1 {
			t.Errorf("expected 1 conversion attempt, got %d", runner.calls)
		}
	})

	t.Run("extension match is case-insensitive", func(t *testing.T) {
		runner := &fakeRunner{result: &execrun.Result{}}
		g := newTestGenerator(runner)

		got := g.Generate(context.Background(), []string{filepath.Join(workDir, "FRAME.PNG")}, workDir, "job-1", 5)
		if got == "" {
			t.Error("expected uppercase extension to be accepted")
		}
	})
}
