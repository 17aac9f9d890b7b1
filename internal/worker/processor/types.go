package processor

// TaskKind distinguishes ordinary frame tasks from the merge task that
// runs after every frame task has completed.
type TaskKind string

const (
	KindRender TaskKind = "render"
	KindMerge  TaskKind = "merge"
)

// Task is the unit of work handed over by the dispatch layer. The
// identifiers are opaque tokens used only for naming outputs and audit
// messages.
type Task struct {
	JobID      string            `json:"job_id"`
	TaskID     string            `json:"task_id"`
	Index      int               `json:"index"`
	Kind       TaskKind          `json:"kind"`
	Parameters map[string]string `json:"parameters"`

	// WorkDir is the designated working directory for this invocation,
	// resolved by the worker loop before processing.
	WorkDir string `json:"-"`
}

// Status is the three-way verdict for a processed task.
type Status string

const (
	// StatusSuccess: the renderer exited cleanly and outputs were collected.
	StatusSuccess Status = "SUCCESS"
	// StatusRetry: the renderer could not be launched or crashed; the
	// same task may succeed elsewhere or later.
	StatusRetry Status = "RETRYABLE_FAILURE"
	// StatusPermanent: the task's own parameters are invalid; retrying
	// with the same submission cannot succeed.
	StatusPermanent Status = "PERMANENT_FAILURE"
)

// FileKind tags an output file as ordinary renderer output or a
// derived preview.
type FileKind string

const (
	FileOutput  FileKind = "output"
	FilePreview FileKind = "preview"
)

// OutputFile describes one file a task produced.
type OutputFile struct {
	Path string   `json:"path"`
	Kind FileKind `json:"kind"`
}

// TaskOutcome is the classified result of processing one render task.
type TaskOutcome struct {
	Status Status       `json:"status"`
	Output string       `json:"output"`
	Files  []OutputFile `json:"files"`
}

// JobResult is produced by the merge task only: the packaged archive
// plus an optional preview.
type JobResult struct {
	ArchivePath string `json:"archive_path"`
	PreviewPath string `json:"preview_path,omitempty"`
}
