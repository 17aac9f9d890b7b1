package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"farmhand/internal/pkg/errors"
	"farmhand/internal/pkg/logger"
	"farmhand/internal/worker/execrun"
	"farmhand/internal/worker/params"
)

const (
	testBlender = "/opt/blender/blender"
	testConvert = "/opt/imagemagick/convert"
)

// scriptedRunner dispatches invocations to a per-executable behavior so
// one fake can stand in for both the renderer and the conversion tool.
type scriptedRunner struct {
	calls     []string
	behaviors map[string]func(args []string, dir string) *execrun.Result
}

func (r *scriptedRunner) Run(ctx context.Context, exe string, args []string, dir string) *execrun.Result {
	r.calls = append(r.calls, exe)
	if fn, ok := r.behaviors[exe]; ok {
		return fn(args, dir)
	}
	return nil
}

func newTestProcessor(runner execrun.Runner) *Processor {
	var buf bytes.Buffer
	return New(Deps{
		Runner:      runner,
		BlenderPath: testBlender,
		ConvertPath: testConvert,
		Log:         logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf}),
	})
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func renderTask(workDir string) Task {
	return Task{
		JobID:  "job-1",
		TaskID: "task-7",
		Index:  7,
		Kind:   KindRender,
		Parameters: map[string]string{
			"jobfile": "scene.blend",
			"output":  "frame",
			"format":  "PNG",
		},
		WorkDir: workDir,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	workDir := t.TempDir()
	touch(t, workDir, "scene.blend")

	runner := &scriptedRunner{behaviors: map[string]func([]string, string) *execrun.Result{
		testBlender: func(args []string, dir string) *execrun.Result {
			touch(t, dir, "frame_0007.png")
			touch(t, dir, "frame_0007.png.stdout")
			return &execrun.Result{Stdout: "Fra:7 | rendered"}
		},
		testConvert: func(args []string, dir string) *execrun.Result {
			return &execrun.Result{}
		},
	}}

	p := newTestProcessor(runner)
	outcome := p.ProcessTask(context.Background(), renderTask(workDir))

	if outcome.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (output: %s)", outcome.Status, outcome.Output)
	}
	if !strings.Contains(outcome.Output, "Fra:7") {
		t.Errorf("expected captured renderer output, got %q", outcome.Output)
	}

	var outputs, previews []string
	for _, f := range outcome.Files {
		switch f.Kind {
		case FileOutput:
			outputs = append(outputs, f.Path)
		case FilePreview:
			previews = append(previews, f.Path)
		}
	}

	if len(outputs) != 1 || filepath.Base(outputs[0]) != "frame_0007.png" {
		t.Errorf("expected exactly frame_0007.png as output, got %v", outputs)
	}
	if len(previews) != 1 || filepath.Base(previews[0]) != "job-1_7_thumbnail.png" {
		t.Errorf("expected preview job-1_7_thumbnail.png, got %v", previews)
	}
	for _, f := range outcome.Files {
		if strings.HasSuffix(f.Path, ".stdout") {
			t.Errorf("stdout capture must be excluded from outputs: %s", f.Path)
		}
	}
}

func TestProcessTaskLaunchFailure(t *testing.T) {
	workDir := t.TempDir()
	runner := &scriptedRunner{} // unknown executable -> nil result

	p := newTestProcessor(runner)
	outcome := p.ProcessTask(context.Background(), renderTask(workDir))

	if outcome.Status != StatusRetry {
		t.Fatalf("expected RETRYABLE_FAILURE, got %s", outcome.Status)
	}
	if len(outcome.Files) != 0 {
		t.Errorf("expected no output files, got %v", outcome.Files)
	}
	// The conversion tool must not run when the renderer failed.
	for _, exe := range runner.calls {
		if exe == testConvert {
			t.Error("conversion tool invoked after renderer failure")
		}
	}
}

func TestProcessTaskInvalidParameters(t *testing.T) {
	workDir := t.TempDir()
	runner := &scriptedRunner{}

	task := renderTask(workDir)
	delete(task.Parameters, "format")

	p := newTestProcessor(runner)
	outcome := p.ProcessTask(context.Background(), task)

	if outcome.Status != StatusPermanent {
		t.Fatalf("expected PERMANENT_FAILURE, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.Output, "format") {
		t.Errorf("expected report to mention 'format', got %q", outcome.Output)
	}
	if len(runner.calls) != 0 {
		t.Errorf("renderer must not be invoked on invalid parameters, got %d calls", len(runner.calls))
	}
}

func TestProcessTaskMissingThumbnailIsNotFatal(t *testing.T) {
	workDir := t.TempDir()

	runner := &scriptedRunner{behaviors: map[string]func([]string, string) *execrun.Result{
		testBlender: func(args []string, dir string) *execrun.Result {
			touch(t, dir, "frame_0007.png")
			return &execrun.Result{Stdout: "done"}
		},
		// conversion tool fails: no behavior registered for testConvert
	}}

	p := newTestProcessor(runner)
	outcome := p.ProcessTask(context.Background(), renderTask(workDir))

	if outcome.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS despite thumbnail failure, got %s", outcome.Status)
	}
	for _, f := range outcome.Files {
		if f.Kind == FilePreview {
			t.Errorf("expected no preview entry, got %s", f.Path)
		}
	}
}

func TestProcessTaskIgnoresPreexistingFiles(t *testing.T) {
	workDir := t.TempDir()
	touch(t, workDir, "scene.blend")
	touch(t, workDir, "frame_0001.png") // from an earlier task on this machine

	runner := &scriptedRunner{behaviors: map[string]func([]string, string) *execrun.Result{
		testBlender: func(args []string, dir string) *execrun.Result {
			touch(t, dir, "frame_0007.png")
			return &execrun.Result{Stdout: "done"}
		},
		testConvert: func(args []string, dir string) *execrun.Result {
			return &execrun.Result{}
		},
	}}

	p := newTestProcessor(runner)
	outcome := p.ProcessTask(context.Background(), renderTask(workDir))

	if outcome.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", outcome.Status)
	}
	for _, f := range outcome.Files {
		if f.Kind == FileOutput && filepath.Base(f.Path) != "frame_0007.png" {
			t.Errorf("pre-existing file reported as output: %s", f.Path)
		}
	}
}

func TestProcessMerge(t *testing.T) {
	t.Run("packs prefixed outputs", func(t *testing.T) {
		workDir := t.TempDir()
		touch(t, workDir, "frame_0001.png")
		touch(t, workDir, "frame_0002.png")
		touch(t, workDir, "unrelated.txt")

		runner := &scriptedRunner{behaviors: map[string]func([]string, string) *execrun.Result{
			testConvert: func(args []string, dir string) *execrun.Result {
				return &execrun.Result{}
			},
		}}

		p := newTestProcessor(runner)
		task := renderTask(workDir)
		task.Kind = KindMerge

		result, err := p.ProcessMerge(context.Background(), task)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if filepath.Base(result.ArchivePath) != "output.zip" {
			t.Errorf("expected archive output.zip, got %s", result.ArchivePath)
		}
		if filepath.Base(result.PreviewPath) != "job-1_7_thumbnail.png" {
			t.Errorf("expected preview job-1_7_thumbnail.png, got %s", result.PreviewPath)
		}

		zr, err := zip.OpenReader(result.ArchivePath)
		if err != nil {
			t.Fatalf("failed to open archive: %v", err)
		}
		defer zr.Close()

		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		if len(names) != 2 {
			t.Fatalf("expected 2 archive entries, got %v", names)
		}
		for _, name := range names {
			if !strings.HasPrefix(name, "frame") {
				t.Errorf("unexpected archive entry %q", name)
			}
		}
	})

	t.Run("no matching outputs is the distinct no-inputs failure", func(t *testing.T) {
		workDir := t.TempDir()
		touch(t, workDir, "unrelated.txt")

		p := newTestProcessor(&scriptedRunner{})
		task := renderTask(workDir)
		task.Kind = KindMerge

		_, err := p.ProcessMerge(context.Background(), task)
		if err == nil {
			t.Fatal("expected error when no files match the prefix")
		}
		if !errors.IsNoInputs(err) {
			t.Errorf("expected NO_INPUTS, got %s", errors.GetCode(err))
		}
	})

	t.Run("invalid parameters are fatal", func(t *testing.T) {
		workDir := t.TempDir()

		runner := &scriptedRunner{}
		p := newTestProcessor(runner)
		task := renderTask(workDir)
		task.Kind = KindMerge
		delete(task.Parameters, "output")

		_, err := p.ProcessMerge(context.Background(), task)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !errors.IsValidation(err) {
			t.Errorf("expected VALIDATION_ERROR, got %s", errors.GetCode(err))
		}
		if len(runner.calls) != 0 {
			t.Errorf("no external tool may run on invalid merge parameters, got %d calls", len(runner.calls))
		}
	})
}

func TestRenderArgsTemplate(t *testing.T) {
	tp := params.TaskParams{
		JobFile:      "scene.blend",
		OutputPrefix: "frame",
		Format:       "PNG",
	}

	got := renderArgs("/work/job-1", tp, 7)
	want := []string{
		"-b", filepath.Join("/work/job-1", "scene.blend"),
		"-o", filepath.Join("/work/job-1", "frame") + "_####",
		"-F", "PNG",
		"-f", "7",
		"-t", "0",
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("renderArgs = %v, expected %v", got, want)
	}
}
