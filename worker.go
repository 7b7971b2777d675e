package batch_scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
	"github.com/google/uuid"
)

type WorkerOptions func(w *Worker)

// WithMarkRunning 预检查通过后先把状态写成RUNNING再执行，
// 其他节点的预检查可以直接看到执行中的状态
func WithMarkRunning(mark bool) WorkerOptions {
	return func(w *Worker) {
		w.markRunning = mark
	}
}

func WithWorkerClock(now func() time.Time) WorkerOptions {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker 一次触发对应一次Run：预检查 -> 执行 -> 写回状态
type Worker struct {
	repo        repository.JobRepository
	checker     *PreliminaryChecker
	registry    *Registry
	logger      Logger
	markRunning bool
	now         func() time.Time
}

func NewWorker(repo repository.JobRepository,
	checker *PreliminaryChecker,
	registry *Registry,
	logger Logger,
	opts ...WorkerOptions) *Worker {
	w := &Worker{
		repo:     repo,
		checker:  checker,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run 执行一次Job，没有通过预检查时不修改任何状态。
// 返回的错误已经记录过日志，调度器不需要再处理。
func (w *Worker) Run(ctx context.Context, jobID int64) error {
	runID := uuid.NewString()
	job, err := w.repo.Get(ctx, jobID)
	if err != nil {
		w.logger.Error("failed to load job",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "err", Val: err})
		return err
	}

	w.logger.Info("going to run a job",
		Field{Key: "run_id", Val: runID},
		Field{Key: "job_id", Val: jobID},
		Field{Key: "job_name", Val: job.JobName})

	if err = w.checker.Check(ctx, jobID); err != nil {
		w.logger.Info("job is not allowed to run",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "reason", Val: err.Error()})
		return err
	}

	runnable, err := w.registry.Lookup(jobID)
	if err != nil {
		w.logger.Error("failed to find runnable for job",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "err", Val: err})
		return err
	}

	if w.markRunning {
		err = w.repo.Update(ctx, jobID, _const.JobStatusRunning, job.JobContent, w.now())
		if err != nil {
			w.logger.Error("failed to mark job running",
				Field{Key: "run_id", Val: runID},
				Field{Key: "job_id", Val: jobID},
				Field{Key: "err", Val: err})
			return err
		}
	}

	status, content, err := w.invoke(ctx, runnable)
	if err != nil {
		w.logger.Error("job runnable panicked, status not updated",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "err", Val: err})
		return err
	}

	if !status.Valid() {
		w.logger.Warn("job returned unknown status, recorded as failed",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "status", Val: int(status)})
		status = _const.JobStatusFailed
	}

	payload, err := json.Marshal(content)
	if err != nil {
		w.logger.Warn("job content is not serializable, recorded as failed",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "err", Val: err})
		status = _const.JobStatusFailed
		payload, _ = json.Marshal(Content{"error": err.Error()})
	}

	if err = w.repo.Update(ctx, jobID, status, string(payload), w.now()); err != nil {
		w.logger.Error("failed to update job status",
			Field{Key: "run_id", Val: runID},
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "status", Val: status.String()},
			Field{Key: "err", Val: err})
		return err
	}

	w.logger.Info("job has been updated",
		Field{Key: "run_id", Val: runID},
		Field{Key: "job_id", Val: jobID},
		Field{Key: "job_name", Val: job.JobName},
		Field{Key: "status", Val: status.String()})
	return nil
}

func (w *Worker) invoke(ctx context.Context, runnable RunnableFunc) (status _const.JobStatus, content Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrRunnablePanicked, r)
		}
	}()

	status, content = runnable(ctx)
	return status, content, nil
}
