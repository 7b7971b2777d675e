package batch_scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

type Scheduler interface {
	// Start 加载所有Job并开始调度
	Start(ctx context.Context) error
	// Stop 停止调度，不等待执行中的Job，返回的ctx在执行中的Job全部结束后Done
	Stop() context.Context
	// Status 当前调度器状态
	Status() _const.SchedulerStatus
}

// JobRunner 调度触发时调用，Worker实现了该接口
type JobRunner interface {
	Run(ctx context.Context, jobID int64) error
}

type Options func(core *SchedulerCore)

// WithLimiter 设置节点并发执行的Job数量，获取不到时在Job自己的goroutine里等待
func WithLimiter(limiter int64) Options {
	return func(c *SchedulerCore) {
		c.limiter = semaphore.NewWeighted(limiter)
	}
}

// WithLocation cron表达式使用的时区，默认本地时区
func WithLocation(loc *time.Location) Options {
	return func(c *SchedulerCore) {
		c.location = loc
	}
}

// WithRegistry 启动时检查存储中的Job是否都注册了执行方法，只打印告警
func WithRegistry(registry *Registry) Options {
	return func(c *SchedulerCore) {
		c.registry = registry
	}
}

// ScheduledEntry 已经加入调度的Job
type ScheduledEntry struct {
	JobID   int64
	JobName string
	Cron    string
	Next    time.Time
}

// SkippedJob cron表达式解析失败没有加入调度的Job
type SkippedJob struct {
	JobID int64
	Cron  string
	Err   error
}

type SchedulerCore struct {
	logger Logger
	repo   repository.JobRepository
	runner JobRunner
	// 限流
	limiter  *semaphore.Weighted
	location *time.Location
	registry *Registry
	// 解析后的cron表达式
	cache *ScheduleCache

	mu      sync.Mutex
	status  _const.SchedulerStatus
	cron    *cron.Cron
	entries map[int64]cron.EntryID
	jobs    map[int64]domain.JobDefinition
	skipped []SkippedJob
}

func NewSchedulerCore(
	repo repository.JobRepository,
	runner JobRunner,
	logger Logger,
	opts ...Options) *SchedulerCore {
	scheduler := &SchedulerCore{
		repo:     repo,
		runner:   runner,
		logger:   logger,
		location: time.Local,
		cache:    NewScheduleCache(16),
		status:   _const.SchedulerStatusStopped,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.limiter == nil {
		scheduler.limiter = semaphore.NewWeighted(_const.DefaultLimiter)
	}

	return scheduler
}

// Start 加载全部Job（包括关闭的，开关在触发时由预检查判断），
// 单个Job的cron表达式错误只跳过该Job。
// ctx只用于加载Job，Job执行使用一个不会被取消的ctx。
func (s *SchedulerCore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == _const.SchedulerStatusRunning {
		return domain.ErrSchedulerRunning
	}

	jobs, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to load jobs", Field{Key: "err", Val: err})
		return err
	}

	cl := cronLogger{l: s.logger}
	c := cron.New(
		cron.WithParser(_const.Parser),
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	runCtx := context.WithoutCancel(ctx)
	entries := make(map[int64]cron.EntryID, len(jobs))
	scheduled := make(map[int64]domain.JobDefinition, len(jobs))
	var skipped []SkippedJob
	for _, job := range jobs {
		sched, err := s.cache.Parse(job.JobCron)
		if err != nil {
			s.logger.Error("invalid cron expression, job skipped",
				Field{Key: "job_id", Val: job.JobID},
				Field{Key: "job_name", Val: job.JobName},
				Field{Key: "job_cron", Val: job.JobCron},
				Field{Key: "err", Val: err})
			skipped = append(skipped, SkippedJob{JobID: job.JobID, Cron: job.JobCron, Err: err})
			continue
		}

		if s.registry != nil && !s.registry.Has(job.JobID) {
			s.logger.Warn("job has no registered runnable, every fire will fail",
				Field{Key: "job_id", Val: job.JobID},
				Field{Key: "job_name", Val: job.JobName})
		}

		entries[job.JobID] = c.Schedule(sched, s.fireFunc(runCtx, job.JobID))
		scheduled[job.JobID] = job
		s.logger.Info("job added to scheduler",
			Field{Key: "job_id", Val: job.JobID},
			Field{Key: "job_name", Val: job.JobName},
			Field{Key: "job_cron", Val: job.JobCron})
	}

	c.Start()
	s.cron = c
	s.entries = entries
	s.jobs = scheduled
	s.skipped = skipped
	s.status = _const.SchedulerStatusRunning
	s.logger.Info("scheduler started",
		Field{Key: "scheduled", Val: len(entries)},
		Field{Key: "skipped", Val: len(skipped)})
	return nil
}

// fireFunc cron在独立的goroutine中调用Job，预检查的长时间等待不会阻塞调度时钟
func (s *SchedulerCore) fireFunc(ctx context.Context, jobID int64) cron.Job {
	return cron.FuncJob(func() {
		if err := s.limiter.Acquire(ctx, 1); err != nil {
			s.logger.Error("failed to acquire limiter",
				Field{Key: "job_id", Val: jobID},
				Field{Key: "err", Val: err})
			return
		}
		defer s.limiter.Release(1)

		// 错误已经在Worker中记录
		_ = s.runner.Run(ctx, jobID)
	})
}

func (s *SchedulerCore) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != _const.SchedulerStatusRunning {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	done := s.cron.Stop()
	s.status = _const.SchedulerStatusStopped
	s.logger.Info("scheduler stopped")
	return done
}

// Run 启动调度并阻塞到ctx结束，退出前一定会停止调度
func (s *SchedulerCore) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer s.Stop()

	for _, e := range s.Entries() {
		s.logger.Debug("next fire time",
			Field{Key: "job_id", Val: e.JobID},
			Field{Key: "job_cron", Val: e.Cron},
			Field{Key: "next", Val: e.Next})
	}
	if skipped := s.Skipped(); len(skipped) > 0 {
		s.logger.Warn("some jobs are not scheduled, fix their cron expressions",
			Field{Key: "skipped", Val: len(skipped)})
	}

	<-ctx.Done()
	return nil
}

func (s *SchedulerCore) Status() _const.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Entries 已调度的Job以及下次触发时间，按JobID升序
func (s *SchedulerCore) Entries() []ScheduledEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]ScheduledEntry, 0, len(s.entries))
	for jobID, entryID := range s.entries {
		entry := s.cron.Entry(entryID)
		job := s.jobs[jobID]
		res = append(res, ScheduledEntry{
			JobID:   jobID,
			JobName: job.JobName,
			Cron:    job.JobCron,
			Next:    entry.Next,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].JobID < res[j].JobID })
	return res
}

func (s *SchedulerCore) Skipped() []SkippedJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]SkippedJob, len(s.skipped))
	copy(res, s.skipped)
	return res
}
