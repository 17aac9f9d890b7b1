// Package params validates the flat string-keyed parameter maps that
// arrive with job and task submissions. Validation fails closed: every
// applicable field is checked, failures accumulate, and the caller gets
// either a fully populated parameter set or a single aggregated report
// attributing each error to its parameter.
package params

import (
	"fmt"
	"strconv"
	"strings"

	"farmhand/internal/pkg/errors"
)

// Required parameter keys.
const (
	KeyJobFile = "jobfile"
	KeyOutput  = "output"
	KeyFormat  = "format"
	KeyStart   = "start"
	KeyEnd     = "end"
)

// TaskParams is the validated configuration for one task or merge task.
type TaskParams struct {
	// JobFile is the path to the source scene file, relative to the
	// working directory.
	JobFile string
	// OutputPrefix is the filename stem for rendered frames.
	OutputPrefix string
	// Format is the output image format identifier passed to the renderer.
	Format string
}

// JobParams is the validated configuration for a job-level submission.
// It extends TaskParams with the frame range.
type JobParams struct {
	TaskParams
	Start int
	End   int
}

// ValidateTask parses and validates the parameters a task needs: the
// scene file, the output prefix and the image format. The frame index is
// not a parameter; it arrives as the task's own index.
func ValidateTask(parameters map[string]string) (TaskParams, error) {
	var v validator

	p := TaskParams{
		JobFile:      v.requireString(parameters, KeyJobFile),
		OutputPrefix: v.requireString(parameters, KeyOutput),
		Format:       v.requireString(parameters, KeyFormat),
	}

	if err := v.err(); err != nil {
		return TaskParams{}, err
	}
	return p, nil
}

// ValidateJob parses and validates a job-level submission, which
// additionally carries the start and end frame indices.
func ValidateJob(parameters map[string]string) (JobParams, error) {
	var v validator

	p := JobParams{
		TaskParams: TaskParams{
			JobFile:      v.requireString(parameters, KeyJobFile),
			OutputPrefix: v.requireString(parameters, KeyOutput),
			Format:       v.requireString(parameters, KeyFormat),
		},
		Start: v.requireInt(parameters, KeyStart),
		End:   v.requireInt(parameters, KeyEnd),
	}

	if err := v.err(); err != nil {
		return JobParams{}, err
	}
	return p, nil
}

// validator accumulates per-field failures so a verdict is only reached
// after every applicable field has been checked.
type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// requireString returns the value for key, recording a failure when the
// key is absent. No format constraint beyond presence.
func (v *validator) requireString(parameters map[string]string, key string) string {
	val, ok := parameters[key]
	if !ok {
		v.addf("missing required parameter: %s", key)
		return ""
	}
	return val
}

// requireInt returns the value for key parsed as a non-negative base-10
// integer. On any failure it records the problem and returns a hold
// value of zero, which is never used because the verdict is Invalid.
func (v *validator) requireInt(parameters map[string]string, key string) int {
	val, ok := parameters[key]
	if !ok {
		v.addf("missing required parameter: %s", key)
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		v.addf("malformed integer parameter %s: %q", key, val)
		return 0
	}
	if n < 0 {
		v.addf("integer parameter %s out of range: %d (must be >= 0)", key, n)
		return 0
	}
	return n
}

// err returns the aggregated validation error, or nil when every check
// passed. The report is one `* `-prefixed bullet per failure, newline
// joined, so operators can fix a submission in one pass.
func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	bullets := make([]string, len(v.problems))
	for i, p := range v.problems {
		bullets[i] = "* " + p
	}
	return errors.Validation(strings.Join(bullets, "\n")).
		WithField("problem_count", len(v.problems))
}
