// Package store reports task lifecycle and outcomes to the
// orchestrator's database.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"farmhand/internal/worker/processor"
	"farmhand/internal/worker/util"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// MarkTaskRunning records that this worker picked the task up.
func (s *Store) MarkTaskRunning(ctx context.Context, taskID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status='RUNNING', started_at=NOW(), finished_at=NULL, error_text=NULL WHERE id=$1`,
		taskID,
	)
	return err
}

// SaveOutcome persists a finished task's classification, diagnostic
// output and produced files.
func (s *Store) SaveOutcome(ctx context.Context, taskID string, outcome processor.TaskOutcome) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status=$2, finished_at=NOW(), output_text=$3 WHERE id=$1`,
		taskID, string(outcome.Status), truncate(outcome.Output, 4000),
	)
	if err != nil {
		return err
	}

	for _, f := range outcome.Files {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO task_outputs (id, task_id, path, kind) VALUES ($1,$2,$3,$4)`,
			util.NewID("out"), taskID, f.Path, string(f.Kind),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkTaskFailed records a terminal failure with its diagnostic text.
func (s *Store) MarkTaskFailed(ctx context.Context, taskID string, status processor.Status, errText string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status=$2, finished_at=NOW(), error_text=$3 WHERE id=$1`,
		taskID, string(status), truncate(errText, 2000),
	)
	return err
}

// SaveMergeResult records the packaged job archive and closes the job.
func (s *Store) SaveMergeResult(ctx context.Context, jobID, taskID string, result *processor.JobResult, downloadURL string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_results (id, job_id, task_id, archive_path, preview_path, download_url)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		util.NewID("res"), jobID, taskID, result.ArchivePath, nullIfEmpty(result.PreviewPath), nullIfEmpty(downloadURL),
	)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE jobs SET status='DONE', finished_at=NOW() WHERE id=$1`,
		jobID,
	)
	return err
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
