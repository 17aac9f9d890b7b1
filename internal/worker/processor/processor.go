// Package processor executes one render or merge task against a working
// directory: validate parameters, invoke the renderer, isolate its
// output, and classify the outcome for the dispatch layer. It performs
// no retries; every failure is classified once and returned.
package processor

import (
	"context"
	"path/filepath"
	"strconv"

	"farmhand/internal/pkg/errors"
	"farmhand/internal/pkg/logger"
	"farmhand/internal/worker/archive"
	"farmhand/internal/worker/execrun"
	"farmhand/internal/worker/fsdiff"
	"farmhand/internal/worker/params"
	"farmhand/internal/worker/thumbnail"
)

// archiveName is the fixed merge archive filename.
const archiveName = "output.zip"

type Deps struct {
	Runner      execrun.Runner
	BlenderPath string
	ConvertPath string
	Log         *logger.Logger
}

type Processor struct {
	runner  execrun.Runner
	blender string
	thumbs  *thumbnail.Generator
	log     *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	return &Processor{
		runner:  d.Runner,
		blender: d.BlenderPath,
		thumbs:  thumbnail.New(d.Runner, d.ConvertPath, log),
		log:     log,
	}
}

// ProcessTask runs one frame task: snapshot, render, diff, collect,
// preview. The returned outcome is owned by the caller.
func (p *Processor) ProcessTask(ctx context.Context, task Task) TaskOutcome {
	log := p.log.FromContext(ctx).WithJobID(task.JobID).WithTaskID(task.TaskID)

	tp, err := params.ValidateTask(task.Parameters)
	if err != nil {
		log.Error("task parameters invalid", "report", err.Error())
		return TaskOutcome{Status: StatusPermanent, Output: err.Error()}
	}

	before, err := fsdiff.Snapshot(task.WorkDir, "*")
	if err != nil {
		log.Error("pre-render snapshot failed", "error", err.Error())
		return TaskOutcome{Status: StatusRetry}
	}

	log.Info("invoking renderer", "frame", task.Index, "format", tp.Format)
	res := p.runner.Run(ctx, p.blender, renderArgs(task.WorkDir, tp, task.Index), task.WorkDir)
	if res == nil {
		// Runner already logged the full failure context.
		return TaskOutcome{Status: StatusRetry}
	}

	newFiles, err := fsdiff.Diff(before, task.WorkDir)
	if err != nil {
		log.Error("post-render diff failed", "error", err.Error())
		return TaskOutcome{Status: StatusRetry}
	}

	outcome := TaskOutcome{
		Status: StatusSuccess,
		Output: res.Output(),
	}
	produced := newFiles.Paths()
	for _, path := range produced {
		outcome.Files = append(outcome.Files, OutputFile{Path: path, Kind: FileOutput})
	}

	if thumb := p.thumbs.Generate(ctx, produced, task.WorkDir, task.JobID, task.Index); thumb != "" {
		outcome.Files = append(outcome.Files, OutputFile{Path: thumb, Kind: FilePreview})
	}

	log.Info("task completed", "files", len(outcome.Files))
	return outcome
}

// ProcessMerge collects every file in the working directory carrying the
// validated output prefix and packs them into output.zip. A malformed
// merge task and an empty input set are both fatal; there is no
// retryable notion on this path.
func (p *Processor) ProcessMerge(ctx context.Context, task Task) (*JobResult, error) {
	log := p.log.FromContext(ctx).WithJobID(task.JobID).WithTaskID(task.TaskID)

	tp, err := params.ValidateTask(task.Parameters)
	if err != nil {
		log.Error("merge parameters invalid", "report", err.Error())
		return nil, errors.Wrap(err, "processor.merge", "merge task parameters invalid")
	}

	matched, err := fsdiff.Snapshot(task.WorkDir, tp.OutputPrefix+"*")
	if err != nil {
		return nil, errors.Wrap(err, "processor.merge", "failed to list task outputs")
	}
	inputs := matched.Paths()
	log.Info("collecting task outputs", "prefix", tp.OutputPrefix, "count", len(inputs))

	archivePath := filepath.Join(task.WorkDir, archiveName)
	if err := archive.Zip(inputs, archivePath); err != nil {
		return nil, err
	}

	result := &JobResult{ArchivePath: archivePath}
	if thumb := p.thumbs.Generate(ctx, inputs, task.WorkDir, task.JobID, task.Index); thumb != "" {
		result.PreviewPath = thumb
	}

	log.Info("merge completed", "archive", archivePath, "inputs", len(inputs))
	return result, nil
}

// renderArgs builds the fixed renderer argument template. One task
// renders exactly one frame, so the frame argument is the task's own
// index, never a range.
func renderArgs(workDir string, tp params.TaskParams, frame int) []string {
	return []string{
		"-b", filepath.Join(workDir, tp.JobFile),
		"-o", filepath.Join(workDir, tp.OutputPrefix) + "_####",
		"-F", tp.Format,
		"-f", strconv.Itoa(frame),
		"-t", "0",
	}
}
