package batch_scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

type recordRunner struct {
	mu    sync.Mutex
	calls []int64
	panic bool
}

func (r *recordRunner) Run(_ context.Context, jobID int64) error {
	r.mu.Lock()
	r.calls = append(r.calls, jobID)
	r.mu.Unlock()
	if r.panic {
		panic("runner exploded")
	}
	return nil
}

func (r *recordRunner) Calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

// cron后台goroutine的日志只到Debug级别，测试里过滤掉避免测试结束后还在写日志
func schedulerLogger(t *testing.T) Logger {
	return NewZapLogger(zaptest.NewLogger(t, zaptest.Level(zapcore.InfoLevel)))
}

func fiveJobs() *memStore {
	now := time.Now()
	jobs := make([]domain.JobDefinition, 0, 5)
	for id := int64(1); id <= 5; id++ {
		jobs = append(jobs, enabledJob(id, now, 300))
	}
	jobs[3].JobCron = "61 * * *"
	jobs[4].JobEnabled = false
	return newMemStore(jobs...)
}

func stopAndWait(t *testing.T, s *SchedulerCore) {
	t.Helper()
	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

func TestSchedulerCore_StartSkipsMalformedCron(t *testing.T) {
	store := fiveJobs()
	s := NewSchedulerCore(store, &recordRunner{}, schedulerLogger(t))

	if s.Status() != _const.SchedulerStatusStopped {
		t.Fatalf("expected Stopped before start")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stopAndWait(t, s)

	if s.Status() != _const.SchedulerStatusRunning {
		t.Fatalf("expected Running, got %v", s.Status())
	}

	entries := s.Entries()
	wantIDs := []int64{1, 2, 3, 5}
	if len(entries) != len(wantIDs) {
		t.Fatalf("expected %d entries, got %+v", len(wantIDs), entries)
	}
	for i, e := range entries {
		if e.JobID != wantIDs[i] {
			t.Fatalf("entry %d: expected job %d, got %d", i, wantIDs[i], e.JobID)
		}
		if e.Next.IsZero() {
			t.Fatalf("job %d has no next fire time", e.JobID)
		}
		if e.Cron != "*/5 * * * *" {
			t.Fatalf("job %d cron %q", e.JobID, e.Cron)
		}
	}

	skipped := s.Skipped()
	if len(skipped) != 1 || skipped[0].JobID != 4 || skipped[0].Err == nil {
		t.Fatalf("expected job 4 skipped, got %+v", skipped)
	}

	// 相同的表达式只解析一次
	if s.cache.Len() != 1 {
		t.Fatalf("expected 1 cached schedule, got %d", s.cache.Len())
	}
}

func TestSchedulerCore_FireRunsWorker(t *testing.T) {
	store := fiveJobs()
	runner := &recordRunner{}
	s := NewSchedulerCore(store, runner, schedulerLogger(t), WithLimiter(1))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stopAndWait(t, s)

	s.cron.Entry(s.entries[2]).WrappedJob.Run()
	s.cron.Entry(s.entries[5]).WrappedJob.Run()

	calls := runner.Calls()
	if len(calls) != 2 || calls[0] != 2 || calls[1] != 5 {
		t.Fatalf("unexpected runner calls %v", calls)
	}
}

func TestSchedulerCore_RunnerPanicIsRecovered(t *testing.T) {
	store := fiveJobs()
	runner := &recordRunner{panic: true}
	s := NewSchedulerCore(store, runner, schedulerLogger(t))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stopAndWait(t, s)

	s.cron.Entry(s.entries[1]).WrappedJob.Run()

	// limiter必须被释放
	if !s.limiter.TryAcquire(_const.DefaultLimiter) {
		t.Fatalf("limiter leaked after panic")
	}
	s.limiter.Release(_const.DefaultLimiter)
}

func TestSchedulerCore_StartErrors(t *testing.T) {
	t.Run("store unavailable", func(t *testing.T) {
		store := fiveJobs()
		store.listErr = domain.ErrStoreUnavailable
		s := NewSchedulerCore(store, &recordRunner{}, schedulerLogger(t))

		if err := s.Start(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if s.Status() != _const.SchedulerStatusStopped {
			t.Fatalf("expected Stopped after failed start")
		}
	})

	t.Run("already running", func(t *testing.T) {
		s := NewSchedulerCore(fiveJobs(), &recordRunner{}, schedulerLogger(t))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer stopAndWait(t, s)

		if err := s.Start(context.Background()); !errors.Is(err, domain.ErrSchedulerRunning) {
			t.Fatalf("expected ErrSchedulerRunning, got %v", err)
		}
	})
}

func TestSchedulerCore_StopDoesNotWait(t *testing.T) {
	store := fiveJobs()
	block := make(chan struct{})
	runner := &blockingRunner{started: make(chan struct{}), block: block}
	s := NewSchedulerCore(store, runner, schedulerLogger(t))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := s.cron.Entry(s.entries[1]).WrappedJob
	go job.Run()
	<-runner.started

	start := time.Now()
	done := s.Stop()
	if time.Since(start) > time.Second {
		t.Fatalf("Stop blocked on in-flight job")
	}
	if s.Status() != _const.SchedulerStatusStopped {
		t.Fatalf("expected Stopped")
	}
	close(block)

	// 直接调用的Job不在cron的等待范围内，只校验重复Stop是安全的
	<-done.Done()
	<-s.Stop().Done()
}

type blockingRunner struct {
	started chan struct{}
	block   chan struct{}
}

func (b *blockingRunner) Run(context.Context, int64) error {
	close(b.started)
	<-b.block
	return nil
}

func TestSchedulerCore_Run(t *testing.T) {
	s := NewSchedulerCore(fiveJobs(), &recordRunner{}, schedulerLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.Status() != _const.SchedulerStatusRunning {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if s.Status() != _const.SchedulerStatusStopped {
		t.Fatalf("expected Stopped after Run returns")
	}
}
