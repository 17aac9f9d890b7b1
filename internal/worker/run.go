package worker

import (
	"context"
	"encoding/json"
	"mime"
	"os"
	"path/filepath"
	"time"

	"farmhand/internal/pkg/logger"
	"farmhand/internal/ports"
	"farmhand/internal/worker/appdir"
	"farmhand/internal/worker/execrun"
	"farmhand/internal/worker/processor"
	"farmhand/internal/worker/queue"
	"farmhand/internal/worker/store"
)

// taskEnvelope is the queue payload: the task itself plus the attempt
// counter the dispatcher uses to bound retries.
type taskEnvelope struct {
	processor.Task
	Attempt int `json:"attempt"`
}

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	q := queue.NewRedisQueue(d.RDB, d.QueueName)
	st := store.New(d.Pool)
	paths := appdir.New(d.AppRoot)

	p := processor.New(processor.Deps{
		Runner:      execrun.New(log),
		BlenderPath: paths.Blender(),
		ConvertPath: paths.Convert(),
		Log:         log,
	})

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		// Use a separate context with timeout for queue operations
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		payload, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			// Check if it's a context cancellation
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if payload == "" {
			continue
		}

		var env taskEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			log.Error("discarding malformed task payload", "error", err.Error())
			continue
		}

		taskCtx := logger.ContextWithJobID(ctx, env.JobID)
		taskCtx = logger.ContextWithTaskID(taskCtx, env.TaskID)
		taskLog := log.WithJobID(env.JobID).WithTaskID(env.TaskID)

		env.WorkDir = filepath.Join(d.StorageRoot, "jobs", env.JobID)
		if err := os.MkdirAll(env.WorkDir, 0o755); err != nil {
			taskLog.Error("cannot create working directory", "dir", env.WorkDir, "error", err.Error())
			continue
		}

		if err := st.MarkTaskRunning(taskCtx, env.TaskID); err != nil {
			taskLog.Warn("failed to mark task as running", "error", err.Error())
		}

		taskLog.Info("processing task", "kind", string(env.Kind), "attempt", env.Attempt)
		startTime := time.Now()

		if env.Kind == processor.KindMerge {
			runMerge(taskCtx, p, st, d.SP, env, taskLog)
		} else {
			runRender(taskCtx, p, st, q, env, maxAttempts, taskLog)
		}

		taskLog.Info("task finished",
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}
}

func runRender(ctx context.Context, p *processor.Processor, st *store.Store, q *queue.RedisQueue, env taskEnvelope, maxAttempts int, log *logger.Logger) {
	outcome := p.ProcessTask(ctx, env.Task)

	switch outcome.Status {
	case processor.StatusSuccess:
		if err := st.SaveOutcome(ctx, env.TaskID, outcome); err != nil {
			log.Error("failed to save task outcome", "error", err.Error())
		}

	case processor.StatusPermanent:
		if err := st.MarkTaskFailed(ctx, env.TaskID, outcome.Status, outcome.Output); err != nil {
			log.Error("failed to record permanent failure", "error", err.Error())
		}

	case processor.StatusRetry:
		if env.Attempt+1 >= maxAttempts {
			log.Error("task exhausted retry budget", "attempts", env.Attempt+1)
			if err := st.MarkTaskFailed(ctx, env.TaskID, outcome.Status, "retry budget exhausted"); err != nil {
				log.Error("failed to record retryable failure", "error", err.Error())
			}
			return
		}

		env.Attempt++
		payload, err := json.Marshal(env)
		if err != nil {
			log.Error("failed to re-encode task for requeue", "error", err.Error())
			return
		}
		if err := q.Push(ctx, string(payload)); err != nil {
			log.Error("failed to requeue task", "error", err.Error())
			return
		}
		log.Info("task requeued", "attempt", env.Attempt)
	}
}

func runMerge(ctx context.Context, p *processor.Processor, st *store.Store, sp ports.StorageProvider, env taskEnvelope, log *logger.Logger) {
	result, err := p.ProcessMerge(ctx, env.Task)
	if err != nil {
		log.Error("merge failed", "error", err.Error())
		if dbErr := st.MarkTaskFailed(ctx, env.TaskID, processor.StatusPermanent, err.Error()); dbErr != nil {
			log.Error("failed to record merge failure", "error", dbErr.Error())
		}
		return
	}

	archiveKey := "jobs/" + env.JobID + "/" + filepath.Base(result.ArchivePath)
	if err := uploadFile(ctx, sp, result.ArchivePath, archiveKey); err != nil {
		log.Error("failed to upload merge archive", "error", err.Error())
		if dbErr := st.MarkTaskFailed(ctx, env.TaskID, processor.StatusRetry, err.Error()); dbErr != nil {
			log.Error("failed to record upload failure", "error", dbErr.Error())
		}
		return
	}

	if result.PreviewPath != "" {
		previewKey := "jobs/" + env.JobID + "/" + filepath.Base(result.PreviewPath)
		if err := uploadFile(ctx, sp, result.PreviewPath, previewKey); err != nil {
			// A lost preview never fails the merge.
			log.Warn("failed to upload preview", "error", err.Error())
		}
	}

	downloadURL := ""
	if signed, err := sp.GetSignedURL(ctx, archiveKey, 24*time.Hour); err == nil {
		downloadURL = signed.URL
	} else {
		log.Warn("failed to sign download URL", "error", err.Error())
	}

	if err := st.SaveMergeResult(ctx, env.JobID, env.TaskID, result, downloadURL); err != nil {
		log.Error("failed to save merge result", "error", err.Error())
		return
	}
	log.Info("merge result saved", "archive_key", archiveKey)
}

func uploadFile(ctx context.Context, sp ports.StorageProvider, path, objectKey string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: contentType,
		Reader:      f,
		Size:        info.Size(),
	})
	return err
}
