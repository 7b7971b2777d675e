package batch_scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
)

type CheckerOptions func(c *PreliminaryChecker)

// WithPauseStrategy 替换默认的随机等待策略
func WithPauseStrategy(factory StrategyFactory) CheckerOptions {
	return func(c *PreliminaryChecker) {
		c.newStrategy = factory
	}
}

func WithClock(now func() time.Time) CheckerOptions {
	return func(c *PreliminaryChecker) {
		c.now = now
	}
}

// WithNodeName 日志中标识当前节点，默认取hostname
func WithNodeName(name string) CheckerOptions {
	return func(c *PreliminaryChecker) {
		c.node = name
	}
}

// PreliminaryChecker 判断一个Job在触发时刻是否允许执行
//
// 多个节点共用同一份Job存储但没有分布式锁，同一时刻触发的同一个Job通过
// 随机等待后重新读取last_updated_ts来降低重复执行的概率，这只是概率上的
// 规避，不能保证只有一个节点执行。
type PreliminaryChecker struct {
	repo        repository.JobRepository
	logger      Logger
	newStrategy StrategyFactory
	now         func() time.Time
	node        string
}

func NewPreliminaryChecker(repo repository.JobRepository, logger Logger, opts ...CheckerOptions) *PreliminaryChecker {
	c := &PreliminaryChecker{
		repo:   repo,
		logger: logger,
		newStrategy: func() ScheduleStrategy {
			return NewRandomScheduleStrategy(_const.DefaultPauseMin,
				_const.DefaultPauseMax, _const.DefaultPauseRounds)
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.node == "" {
		c.node, _ = os.Hostname()
	}

	return c
}

// MayRun 只有Check明确放行才返回true，任何错误都视为不允许执行
func (c *PreliminaryChecker) MayRun(ctx context.Context, jobID int64) bool {
	return c.Check(ctx, jobID) == nil
}

// Check 放行返回nil，否则返回原因：
//   - domain.ErrJobNotFound / domain.ErrStoreUnavailable 读取失败
//   - domain.ErrJobDisabled / domain.ErrJobRunning / domain.ErrLagNotElapsed 拒绝执行
//   - ctx的错误，等待期间被取消
func (c *PreliminaryChecker) Check(ctx context.Context, jobID int64) error {
	job, err := c.repo.Get(ctx, jobID)
	if err != nil {
		c.logger.Error("preliminary check failed to load job",
			Field{Key: "job_id", Val: jobID},
			Field{Key: "err", Val: err})
		return err
	}

	if !job.JobEnabled {
		c.logger.Warn("job is in disabled state, cannot run now",
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName})
		return domain.ErrJobDisabled
	}

	if job.JobStatus == _const.JobStatusRunning {
		c.logger.Warn("job is already running, cannot run now",
			Field{Key: "job_id", Val: jobID},
			Field{Key: "job_name", Val: job.JobName})
		return domain.ErrJobRunning
	}

	if err = c.pause(ctx, job); err != nil {
		return err
	}

	// 等待期间其他节点可能已经执行完并写回
	job, err = c.repo.Get(ctx, jobID)
	if err != nil {
		c.logger.Error("preliminary check failed to reload job",
			Field{Key: "job_id", Val: jobID},
			Field{Key: "err", Val: err})
		return err
	}

	now := c.now()
	elapsed := int64(now.Sub(job.LastUpdatedTs) / time.Second)
	c.logger.Info("job lag check",
		Field{Key: "job_id", Val: jobID},
		Field{Key: "job_name", Val: job.JobName},
		Field{Key: "last_updated_ts", Val: job.LastUpdatedTs},
		Field{Key: "current_ts", Val: now},
		Field{Key: "elapsed_seconds", Val: elapsed},
		Field{Key: "job_run_lag_check", Val: job.LagCheck()})
	if elapsed <= job.JobRunLagCheck {
		return domain.ErrLagNotElapsed
	}

	return nil
}

// pause 按策略分轮等待，ctx取消时立刻返回
func (c *PreliminaryChecker) pause(ctx context.Context, job domain.JobDefinition) error {
	strategy := c.newStrategy()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for round := 1; ; round++ {
		interval, err := strategy.Next()
		if errors.Is(err, ErrOverMaxCount) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pause strategy: %w", err)
		}

		c.logger.Info("job sleeping before lag check",
			Field{Key: "job_id", Val: job.JobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "host", Val: c.node},
			Field{Key: "round", Val: round},
			Field{Key: "sleep", Val: interval})

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}

		select {
		case <-ctx.Done():
			c.logger.Warn("preliminary check canceled while sleeping",
				Field{Key: "job_id", Val: job.JobID},
				Field{Key: "err", Val: ctx.Err()})
			return ctx.Err()
		case <-timer.C:
		}
	}
}
